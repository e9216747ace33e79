// Package audit keeps an append-only record of actions applied to the account.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/DrSkyle/cloudgov/pkg/engine/model"
)

// Log appends one line per applied action.
type Log struct {
	Path string
	Now  func() time.Time

	mu sync.Mutex
}

// DefaultPath is ~/.cloudgov/audit.log.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cloudgov", "audit.log"), nil
}

// NewLog returns a log writing to path.
func NewLog(path string) *Log {
	return &Log{Path: path, Now: time.Now}
}

// Record appends an entry. Safe for concurrent use.
func (l *Log) Record(e model.ActionPlanEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return fmt.Errorf("create audit directory: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	// Format: [DATE] APPLIED ensure_ttl table/medeez-dev-users - Est. savings: $10.00/mo - Ensure TTL ...
	line := fmt.Sprintf("[%s] %s %s %s - Est. savings: $%s/mo - %s\n",
		l.Now().UTC().Format(time.RFC3339),
		outcomeLabel(e.Outcome),
		e.Operation,
		e.Target,
		e.EstimatedMonthlySaving.StringFixed(2),
		e.Description,
	)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func outcomeLabel(o model.Outcome) string {
	if o == model.OutcomePending {
		return "APPLIED"
	}
	return strings.ToUpper(string(o))
}
