package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DrSkyle/cloudgov/internal/audit"
	"github.com/DrSkyle/cloudgov/pkg/config"
	"github.com/DrSkyle/cloudgov/pkg/engine"
	awsprovider "github.com/DrSkyle/cloudgov/pkg/engine/aws"
	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/DrSkyle/cloudgov/pkg/engine/notifier"
	"github.com/DrSkyle/cloudgov/pkg/engine/policy"
	"github.com/DrSkyle/cloudgov/pkg/engine/report"
	"github.com/DrSkyle/cloudgov/pkg/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"
)

// runSections is shared by every assessment subcommand.
func runSections(cmd *cobra.Command, execute bool, sections ...engine.Section) error {
	ctx := cmd.Context()

	settings, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	format, err := report.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	if err := checkFormat(format, sections); err != nil {
		return err
	}

	logger := engine.NewLogger(settings.Verbose)

	var rules []policy.Rule
	if settings.RulesFile != "" {
		rules, err = policy.LoadRules(settings.RulesFile)
		if err != nil {
			return &config.ConfigurationError{Field: "rules_file", Reason: err.Error()}
		}
	}

	client, err := awsprovider.NewClient(ctx, settings.Region, settings.Profile, settings.Verbose, logger)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrNoCollectors, err)
	}
	account, err := client.VerifyIdentity(ctx, settings.CollectTimeout)
	if err != nil {
		return fmt.Errorf("%w: verify identity: %v", engine.ErrNoCollectors, err)
	}
	logger.Info("Connected to AWS", "account", account, "region", settings.Region)

	auditPath := settings.AuditLog
	if auditPath == "" {
		if auditPath, err = audit.DefaultPath(); err != nil {
			return err
		}
	}

	eng, err := engine.New(ctx,
		engine.WithLogger(logger),
		engine.WithSettings(settings),
		engine.WithCollectors(client.Collectors(settings)...),
		engine.WithBilling(client.Billing(settings.Cost)),
		engine.WithAppliers(client.Appliers()...),
		engine.WithRules(rules),
		engine.WithRecorder(audit.NewLog(auditPath)),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(context.Background()); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	rep, err := eng.Run(ctx, engine.Request{
		Environment: settings.Environment,
		Execute:     execute,
		Sections:    sections,
	})
	switch {
	case errors.Is(err, engine.ErrPartialResult):
		logger.Warn("Run interrupted, emitting partial report", "error", err)
	case err != nil:
		return err
	}

	// An interrupted run still writes and announces its report.
	ctx = context.WithoutCancel(ctx)
	if err := emit(ctx, cmd, logger, rep, format, client.Config); err != nil {
		return err
	}
	notify(ctx, logger, settings, rep)
	return nil
}

// checkFormat rejects csv for anything but the cost-only view.
func checkFormat(format report.Format, sections []engine.Section) error {
	if format != report.FormatCSV {
		return nil
	}
	if len(sections) == 1 && sections[0] == engine.SectionCost {
		return nil
	}
	return &config.ConfigurationError{Field: "format", Reason: "csv is only available for the cost command"}
}

func emit(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, rep *model.AnalysisReport, format report.Format, cfg aws.Config) error {
	if outputTarget == "" {
		return report.Render(cmd.OutOrStdout(), rep, format, report.DefaultTheme())
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, rep, format, report.PlainTheme()); err != nil {
		return err
	}
	store, key, err := storage.Open(outputTarget, cfg)
	if err != nil {
		return &config.ConfigurationError{Field: "output", Reason: err.Error()}
	}
	if err := store.Put(ctx, key, buf.Bytes()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("Report written", "target", outputTarget, "format", string(format))
	return nil
}

func notify(ctx context.Context, logger *slog.Logger, settings config.Settings, rep *model.AnalysisReport) {
	if settings.SlackWebhook == "" {
		return
	}
	slack := notifier.NewSlackClient(settings.SlackWebhook, settings.SlackChannel)
	if err := slack.SendAnalysisReport(ctx, rep); err != nil {
		logger.Warn("Slack notification failed", "error", err)
	}
}
