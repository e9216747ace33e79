package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/budgets/types"
	"github.com/shopspring/decimal"
)

const budgetUnit = "USD"

// BudgetsReadAPI reads one budget and its notifications.
type BudgetsReadAPI interface {
	DescribeBudget(ctx context.Context, params *budgets.DescribeBudgetInput, optFns ...func(*budgets.Options)) (*budgets.DescribeBudgetOutput, error)
	DescribeNotificationsForBudget(ctx context.Context, params *budgets.DescribeNotificationsForBudgetInput, optFns ...func(*budgets.Options)) (*budgets.DescribeNotificationsForBudgetOutput, error)
}

// BudgetsWriteAPI adds the calls the applier needs.
type BudgetsWriteAPI interface {
	BudgetsReadAPI
	CreateBudget(ctx context.Context, params *budgets.CreateBudgetInput, optFns ...func(*budgets.Options)) (*budgets.CreateBudgetOutput, error)
	UpdateBudget(ctx context.Context, params *budgets.UpdateBudgetInput, optFns ...func(*budgets.Options)) (*budgets.UpdateBudgetOutput, error)
	CreateNotification(ctx context.Context, params *budgets.CreateNotificationInput, optFns ...func(*budgets.Options)) (*budgets.CreateNotificationOutput, error)
}

// BudgetCollector reports the monthly budget of the environment. It always
// emits one record, with exists=false when the budget is missing.
type BudgetCollector struct {
	Client    BudgetsReadAPI
	AccountID string
	AppName   string
}

func NewBudgetCollector(cfg aws.Config, accountID, app string) *BudgetCollector {
	return &BudgetCollector{Client: budgets.NewFromConfig(cfg), AccountID: accountID, AppName: app}
}

func (c *BudgetCollector) Category() model.Category { return model.CategoryBudget }

func (c *BudgetCollector) Collect(ctx context.Context, env string) ([]model.ResourceRecord, error) {
	if c.AccountID == "" {
		return nil, errors.New("budgets need the account id")
	}
	name := model.BudgetName(c.AppName, env)
	attrs := map[string]any{model.AttrBudgetExists: false}

	budget, err := describeBudget(ctx, c.Client, c.AccountID, name)
	if err != nil {
		return nil, err
	}
	if budget != nil {
		attrs[model.AttrBudgetExists] = true
		if budget.BudgetLimit != nil {
			attrs[model.AttrBudgetLimit] = aws.ToString(budget.BudgetLimit.Amount)
		}
		notes, err := budgetNotifications(ctx, c.Client, c.AccountID, name)
		if err != nil {
			return nil, err
		}
		attrs[model.AttrActualAlert] = hasNotification(notes, types.NotificationTypeActual, model.BudgetActualThreshold)
		attrs[model.AttrForecastAlert] = hasNotification(notes, types.NotificationTypeForecasted, model.BudgetForecastThreshold)
	}
	return []model.ResourceRecord{newRecord(model.CategoryBudget, model.KindBudget, name, true, attrs)}, nil
}

// BudgetApplier keeps a monthly cost budget at its limit with percentage
// alerts. Budgets are matched by name, so a second apply writes nothing.
type BudgetApplier struct {
	Client    BudgetsWriteAPI
	AccountID string
}

func NewBudgetApplier(cfg aws.Config, accountID string) *BudgetApplier {
	return &BudgetApplier{Client: budgets.NewFromConfig(cfg), AccountID: accountID}
}

func (a *BudgetApplier) Supports(op model.Operation) bool {
	return op == model.OpEnsureBudget
}

func (a *BudgetApplier) Apply(ctx context.Context, e model.ActionPlanEntry) error {
	if e.Operation != model.OpEnsureBudget {
		return fmt.Errorf("unsupported operation %s", e.Operation)
	}
	if a.AccountID == "" {
		return errors.New("budgets need the account id")
	}
	name := e.Target.Name
	limit, err := decimal.NewFromString(e.Parameters["limit"])
	if err != nil {
		return fmt.Errorf("budget %s: invalid limit %q: %w", name, e.Parameters["limit"], err)
	}
	email := e.Parameters["alert_email"]

	existing, err := describeBudget(ctx, a.Client, a.AccountID, name)
	if err != nil {
		return err
	}
	if existing == nil {
		in := &budgets.CreateBudgetInput{
			AccountId: aws.String(a.AccountID),
			Budget: &types.Budget{
				BudgetName:  aws.String(name),
				BudgetType:  types.BudgetTypeCost,
				TimeUnit:    types.TimeUnitMonthly,
				BudgetLimit: spend(limit),
			},
		}
		if email != "" {
			for _, n := range wantedNotifications() {
				in.NotificationsWithSubscribers = append(in.NotificationsWithSubscribers, types.NotificationWithSubscribers{
					Notification: &n,
					Subscribers:  emailSubscribers(email),
				})
			}
		}
		if _, err := a.Client.CreateBudget(ctx, in); err != nil {
			return fmt.Errorf("create budget %s: %w", name, err)
		}
		return nil
	}

	if !sameLimit(existing.BudgetLimit, limit) {
		updated := *existing
		updated.BudgetLimit = spend(limit)
		updated.CalculatedSpend = nil
		if _, err := a.Client.UpdateBudget(ctx, &budgets.UpdateBudgetInput{
			AccountId: aws.String(a.AccountID),
			NewBudget: &updated,
		}); err != nil {
			return fmt.Errorf("update budget %s: %w", name, err)
		}
	}

	if email == "" {
		return nil
	}
	notes, err := budgetNotifications(ctx, a.Client, a.AccountID, name)
	if err != nil {
		return err
	}
	for _, n := range wantedNotifications() {
		if hasNotification(notes, n.NotificationType, n.Threshold) {
			continue
		}
		if _, err := a.Client.CreateNotification(ctx, &budgets.CreateNotificationInput{
			AccountId:    aws.String(a.AccountID),
			BudgetName:   aws.String(name),
			Notification: &n,
			Subscribers:  emailSubscribers(email),
		}); err != nil {
			return fmt.Errorf("create %s notification on %s: %w", n.NotificationType, name, err)
		}
	}
	return nil
}

// describeBudget returns nil when the budget does not exist.
func describeBudget(ctx context.Context, client BudgetsReadAPI, account, name string) (*types.Budget, error) {
	out, err := client.DescribeBudget(ctx, &budgets.DescribeBudgetInput{
		AccountId:  aws.String(account),
		BudgetName: aws.String(name),
	})
	if err != nil {
		if isErrorCode(err, "NotFoundException") {
			return nil, nil
		}
		return nil, fmt.Errorf("describe budget %s: %w", name, err)
	}
	return out.Budget, nil
}

func budgetNotifications(ctx context.Context, client BudgetsReadAPI, account, name string) ([]types.Notification, error) {
	var out []types.Notification
	in := &budgets.DescribeNotificationsForBudgetInput{
		AccountId:  aws.String(account),
		BudgetName: aws.String(name),
	}
	for {
		page, err := client.DescribeNotificationsForBudget(ctx, in)
		if err != nil {
			if isErrorCode(err, "NotFoundException") {
				return out, nil
			}
			return nil, fmt.Errorf("describe notifications of %s: %w", name, err)
		}
		out = append(out, page.Notifications...)
		if aws.ToString(page.NextToken) == "" {
			return out, nil
		}
		in.NextToken = page.NextToken
	}
}

func wantedNotifications() []types.Notification {
	return []types.Notification{
		{
			NotificationType:   types.NotificationTypeActual,
			ComparisonOperator: types.ComparisonOperatorGreaterThan,
			Threshold:          model.BudgetActualThreshold,
			ThresholdType:      types.ThresholdTypePercentage,
		},
		{
			NotificationType:   types.NotificationTypeForecasted,
			ComparisonOperator: types.ComparisonOperatorGreaterThan,
			Threshold:          model.BudgetForecastThreshold,
			ThresholdType:      types.ThresholdTypePercentage,
		},
	}
}

func hasNotification(notes []types.Notification, kind types.NotificationType, threshold float64) bool {
	for _, n := range notes {
		if n.NotificationType == kind && n.ComparisonOperator == types.ComparisonOperatorGreaterThan &&
			n.Threshold == threshold && n.ThresholdType != types.ThresholdTypeAbsoluteValue {
			return true
		}
	}
	return false
}

func emailSubscribers(email string) []types.Subscriber {
	return []types.Subscriber{{SubscriptionType: types.SubscriptionTypeEmail, Address: aws.String(email)}}
}

func spend(amount decimal.Decimal) *types.Spend {
	return &types.Spend{Amount: aws.String(amount.StringFixed(2)), Unit: aws.String(budgetUnit)}
}

func sameLimit(s *types.Spend, want decimal.Decimal) bool {
	if s == nil {
		return false
	}
	have, err := decimal.NewFromString(aws.ToString(s.Amount))
	return err == nil && have.Equal(want)
}
