// Package history persists the most recent reports, newest first.
//
// Stores hold the history as one list value. Append reads the whole list,
// prepends, trims and writes it back, so two concurrent appenders can lose
// one of the updates. Stores offer no atomic append, matching the browser
// storage the history lives in.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/privacycheck/privacycheck/internal/report"
)

// MaxEntries is the history cap. Older reports are dropped silently.
const MaxEntries = 10

// ErrNotFound is returned by Find for unknown report ids.
var ErrNotFound = errors.New("report not found")

// Store persists the report history as a whole list.
type Store interface {
	// Get returns the history, newest first. An empty history is not an error.
	Get(ctx context.Context) ([]report.Report, error)
	// Set replaces the history, trimming it to MaxEntries.
	Set(ctx context.Context, reports []report.Report) error
	// Clear removes every report.
	Clear(ctx context.Context) error
	Close() error
}

// Trim returns at most MaxEntries reports from the front of reports.
func Trim(reports []report.Report) []report.Report {
	if len(reports) > MaxEntries {
		return reports[:MaxEntries]
	}
	return reports
}

// Append adds r to the front of the history and writes the trimmed list.
func Append(ctx context.Context, s Store, r *report.Report) ([]report.Report, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	next := make([]report.Report, 0, len(current)+1)
	next = append(next, *r)
	next = append(next, current...)
	next = Trim(next)

	if err := s.Set(ctx, next); err != nil {
		return nil, fmt.Errorf("write history: %w", err)
	}
	return next, nil
}

// Find returns the report with the given id.
func Find(ctx context.Context, s Store, id string) (*report.Report, error) {
	reports, err := s.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	for i := range reports {
		if reports[i].ID == id {
			return &reports[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}
