// Package filter narrows account listings for the CLI and the MCP server.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/neilberkman/acctabs/internal/core/models"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ParseSince turns "yesterday", "last week", "2024-11-01" and the like into a
// point in time relative to now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	// Try standard formats first; "2024-11-01" is not natural language
	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
	}
	for _, format := range formats {
		if t, err := time.ParseInLocation(format, s, now.Location()); err == nil {
			return t, nil
		}
	}

	// Initialize date parser with English rules
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse date %q: %w", s, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("could not parse date %q", s)
	}
	return result.Time, nil
}

// Options select which accounts to keep
type Options struct {
	Since time.Time // zero keeps everything
	Limit int       // <= 0 keeps everything
}

// Apply filters accounts, which must already be ordered most recent first
func Apply(accounts []models.Account, opts Options) []models.Account {
	var out []models.Account
	for _, a := range accounts {
		if !opts.Since.IsZero() && a.LastActiveAt.Before(opts.Since) {
			continue
		}
		out = append(out, a)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out
}
