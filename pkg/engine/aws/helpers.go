package aws

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
	"github.com/aws/smithy-go"
)

// inEnvironment reports whether a resource name belongs to the environment.
// Resources follow the <app>-<env>-<purpose> convention.
func inEnvironment(name, env string) bool {
	return env != "" && strings.Contains(name, env)
}

func newRecord(cat model.Category, kind, name string, tagged bool, attrs map[string]any) model.ResourceRecord {
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs[model.AttrKind] = kind
	return model.ResourceRecord{
		Category:          cat,
		Name:              name,
		EnvironmentTagged: tagged,
		Attributes:        attrs,
	}
}

// errorCode extracts the service error code, "" for transport errors.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func isErrorCode(err error, codes ...string) bool {
	code := errorCode(err)
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// policyDocument is the subset of an IAM / resource policy the checks inspect.
type policyDocument struct {
	Statement statements `json:"Statement"`
}

type statement struct {
	Effect    string                     `json:"Effect"`
	Principal any                        `json:"Principal"`
	Action    stringList                 `json:"Action"`
	Resource  stringList                 `json:"Resource"`
	Condition map[string]map[string]any `json:"Condition"`
}

// statements accepts a single statement object or a list.
type statements []statement

func (s *statements) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '{' {
		var one statement
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*s = statements{one}
		return nil
	}
	var many []statement
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// stringList accepts a string or a list of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*l = stringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

func (l stringList) contains(v string) bool {
	for _, s := range l {
		if s == v {
			return true
		}
	}
	return false
}

// parsePolicy decodes a policy document. IAM returns documents URL-encoded.
func parsePolicy(raw string) (policyDocument, error) {
	var doc policyDocument
	if decoded, err := url.QueryUnescape(raw); err == nil {
		raw = decoded
	}
	err := json.Unmarshal([]byte(raw), &doc)
	return doc, err
}

// enforcesTLS reports a Deny statement conditioned on aws:SecureTransport.
func (d policyDocument) enforcesTLS() bool {
	for _, st := range d.Statement {
		if st.Effect != "Deny" {
			continue
		}
		if _, ok := st.Condition["Bool"]["aws:SecureTransport"]; ok {
			return true
		}
	}
	return false
}

// allowsWildcardPrincipal reports an Allow statement granted to "*".
func (d policyDocument) allowsWildcardPrincipal() bool {
	for _, st := range d.Statement {
		if st.Effect != "Allow" {
			continue
		}
		switch p := st.Principal.(type) {
		case string:
			if p == "*" {
				return true
			}
		case map[string]any:
			if v, ok := p["AWS"].(string); ok && v == "*" {
				return true
			}
		}
	}
	return false
}

// grantsWildcard reports an Allow on every resource with a service-wide or global action.
func (d policyDocument) grantsWildcard() bool {
	for _, st := range d.Statement {
		if st.Effect != "Allow" || !st.Resource.contains("*") {
			continue
		}
		for _, a := range st.Action {
			if a == "*" || strings.HasSuffix(a, ":*") {
				return true
			}
		}
	}
	return false
}
