package aws

import (
	"reflect"
	"strings"
	"testing"
)

// Collectors only ever see these interfaces, so a mutating method on any of
// them is the only way a scan could change the account.
func TestCollectorInterfacesAreReadOnly(t *testing.T) {
	readOnly := []reflect.Type{
		reflect.TypeOf((*S3ReadAPI)(nil)).Elem(),
		reflect.TypeOf((*DynamoDBReadAPI)(nil)).Elem(),
		reflect.TypeOf((*LambdaAPI)(nil)).Elem(),
		reflect.TypeOf((*LogsAPI)(nil)).Elem(),
		reflect.TypeOf((*CloudFrontReadAPI)(nil)).Elem(),
		reflect.TypeOf((*IAMAPI)(nil)).Elem(),
		reflect.TypeOf((*KMSAPI)(nil)).Elem(),
		reflect.TypeOf((*CognitoAPI)(nil)).Elem(),
		reflect.TypeOf((*EC2API)(nil)).Elem(),
		reflect.TypeOf((*APIGatewayAPI)(nil)).Elem(),
		reflect.TypeOf((*CloudTrailAPI)(nil)).Elem(),
		reflect.TypeOf((*CostExplorerAPI)(nil)).Elem(),
		reflect.TypeOf((*BudgetsReadAPI)(nil)).Elem(),
	}
	allowedPrefixes := []string{"List", "Get", "Describe"}

	for _, it := range readOnly {
		for i := 0; i < it.NumMethod(); i++ {
			name := it.Method(i).Name
			ok := false
			for _, p := range allowedPrefixes {
				if strings.HasPrefix(name, p) {
					ok = true
					break
				}
			}
			if !ok {
				t.Errorf("%s exposes non-read method %s", it.Name(), name)
			}
		}
	}
}

func TestCollectorsHoldReadOnlyClients(t *testing.T) {
	field, _ := reflect.TypeOf(StorageCollector{}).FieldByName("Client")
	if field.Type != reflect.TypeOf((*S3ReadAPI)(nil)).Elem() {
		t.Errorf("StorageCollector.Client should be S3ReadAPI, got %s", field.Type)
	}
	field, _ = reflect.TypeOf(TableCollector{}).FieldByName("Client")
	if field.Type != reflect.TypeOf((*DynamoDBReadAPI)(nil)).Elem() {
		t.Errorf("TableCollector.Client should be DynamoDBReadAPI, got %s", field.Type)
	}
	field, _ = reflect.TypeOf(BudgetCollector{}).FieldByName("Client")
	if field.Type != reflect.TypeOf((*BudgetsReadAPI)(nil)).Elem() {
		t.Errorf("BudgetCollector.Client should be BudgetsReadAPI, got %s", field.Type)
	}
}
