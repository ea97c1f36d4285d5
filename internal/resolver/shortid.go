package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/genie-dash/genie/pkg/dashboard"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
// Set to 4 characters to balance usability with collision avoidance.
const MinShortIDLength = 4

// Lister provides the stored layouts a short ID is resolved against.
type Lister interface {
	ListDashboards(ctx context.Context) ([]dashboard.Layout, error)
}

// ResolveLayoutID resolves a short ID prefix to a full layout ID.
// Returns the full layout ID if exactly one match found.
// Returns error if zero or multiple matches found.
//
// The function handles three cases:
// 1. Input exactly matches a stored layout ID - returned as-is
// 2. Input is too short (< 4 chars) - returns validation error
// 3. Input is a prefix - scans the stored layouts for a unique match
func ResolveLayoutID(ctx context.Context, lister Lister, shortID string) (string, error) {
	layouts, err := lister.ListDashboards(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list dashboards: %w", err)
	}

	// Exact match wins regardless of length
	for _, layout := range layouts {
		if layout.LayoutID == shortID {
			return shortID, nil
		}
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	var matches []string
	for _, layout := range layouts {
		if strings.HasPrefix(layout.LayoutID, shortID) {
			matches = append(matches, layout.LayoutID)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no layouts matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no dashboards found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple layouts matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d dashboards", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous short IDs.
// Lists all matching layout IDs (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("ambiguous short ID '%s' matches %d dashboards:\n", err.ShortID, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}

	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nUse a longer prefix to uniquely identify the dashboard."
	return msg
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
