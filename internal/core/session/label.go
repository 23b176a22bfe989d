package session

import (
	"fmt"

	"github.com/cbroglie/mustache"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/acctabs/internal/core/models"
)

// DefaultLabelTemplate renders "🔒 Work" for a locked account named Work.
const DefaultLabelTemplate = "{{#locked}}🔒 {{/locked}}{{{short_name}}}"

// ShortNameLen is how many runes of a name fit in a tab title.
const ShortNameLen = 10

// Labeler renders tab labels from a mustache template.
type Labeler struct {
	tmpl *mustache.Template
}

// NewLabeler parses tmpl, falling back to DefaultLabelTemplate when empty.
func NewLabeler(tmpl string) (*Labeler, error) {
	if tmpl == "" {
		tmpl = DefaultLabelTemplate
	}
	t, err := mustache.ParseString(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse label template: %w", err)
	}
	return &Labeler{tmpl: t}, nil
}

// Label renders the display label for account.
func (l *Labeler) Label(account models.Account, locked bool) string {
	shortName := models.ShortName(account.Name, ShortNameLen)

	lastActive := "never"
	if !account.LastActiveAt.IsZero() {
		lastActive = humanize.Time(account.LastActiveAt)
	}

	data := map[string]interface{}{
		"name":         account.Name,
		"short_name":   shortName,
		"locked":       locked,
		"zoom_percent": models.ZoomPercent(account.ZoomFactor),
		"last_active":  lastActive,
	}

	out, err := l.tmpl.Render(data)
	if err != nil || out == "" {
		// Fall back to the bare name if the template fails
		return shortName
	}
	return out
}
