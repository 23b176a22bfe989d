package models

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Zoom bounds shared by the store, the session resource and the UI.
const (
	MinZoom     = 0.5
	MaxZoom     = 3.0
	DefaultZoom = 1.0
	ZoomStep    = 0.1
)

// Account is one managed account as persisted in the accounts table
type Account struct {
	ID             int64
	Name           string    // Display label, not unique
	StoragePath    string    // Isolated profile directory, fixed at creation
	ZoomFactor     float64   // Always within [MinZoom, MaxZoom]
	PasswordDigest string    // Empty when no lock password is set
	LastActiveAt   time.Time // Ordering only
}

// HasPassword reports whether the account is password protected
func (a *Account) HasPassword() bool {
	return a.PasswordDigest != ""
}

// Validate checks if the account has required fields
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("name is required")
	}
	if a.StoragePath == "" {
		return errors.New("storage path is required")
	}
	if a.ZoomFactor < MinZoom || a.ZoomFactor > MaxZoom {
		return errors.New("zoom factor out of range")
	}
	return nil
}

// ClampZoom bounds f to [MinZoom, MaxZoom]. NaN maps to DefaultZoom.
func ClampZoom(f float64) float64 {
	if math.IsNaN(f) {
		return DefaultZoom
	}
	// Round away float drift from repeated +/- steps (0.1 is not exact)
	f = math.Round(f*100) / 100
	return math.Min(MaxZoom, math.Max(MinZoom, f))
}

// ZoomPercent converts a zoom factor to the integer percent shown to users
func ZoomPercent(f float64) int {
	return int(math.Round(f * 100))
}

// ShortName truncates a display name the way tab titles do
func ShortName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max]) + "..."
}
