// Package report accumulates the outcome of a source run and emits exactly
// one terminal report when the run ends.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/calendar"
	"github.com/sells-group/capitol-sync/internal/model"
)

// Report statuses.
const (
	StatusSuccess = "SUCCESS"
	StatusWarning = "WARNING"
	StatusNote    = "NOTE"
	StatusFailure = "FAILURE"
)

// ErrFinished is returned when Finish is called a second time.
var ErrFinished = errors.New("report: run already finished")

// Entry is one failure, warning, or note with the context needed to act on it.
type Entry struct {
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Sink receives each emitted report.
type Sink interface {
	Emit(ctx context.Context, r *model.Report) error
}

// Reporter collects entries for a single run of one source.
type Reporter struct {
	source   string
	clock    calendar.Clock
	sinks    []Sink
	failures []Entry
	warnings []Entry
	notes    []Entry
	abort    *Entry
	finished bool
}

// New returns a Reporter for source. A nil clock uses the system clock.
func New(source string, clock calendar.Clock, sinks ...Sink) *Reporter {
	if clock == nil {
		clock = calendar.SystemClock{Loc: time.UTC}
	}
	return &Reporter{source: source, clock: clock, sinks: sinks}
}

// Source returns the source the reporter was created for.
func (r *Reporter) Source() string { return r.source }

// Fail records an item-level error. The run continues.
func (r *Reporter) Fail(msg string, fields map[string]any) {
	r.failures = append(r.failures, Entry{Message: msg, Fields: fields})
}

// Warn records a non-fatal anomaly.
func (r *Reporter) Warn(msg string, fields map[string]any) {
	r.warnings = append(r.warnings, Entry{Message: msg, Fields: fields})
}

// Note records an informational entry.
func (r *Reporter) Note(msg string, fields map[string]any) {
	r.notes = append(r.notes, Entry{Message: msg, Fields: fields})
}

// Abort marks the run as failed outright. Only the first abort is kept.
func (r *Reporter) Abort(msg string, fields map[string]any) {
	if r.abort == nil {
		r.abort = &Entry{Message: msg, Fields: fields}
	}
}

// Aborted reports whether Abort was called.
func (r *Reporter) Aborted() bool { return r.abort != nil }

// Failures returns the per-item failures recorded so far.
func (r *Reporter) Failures() []Entry { return r.failures }

// Warnings returns the warnings recorded so far.
func (r *Reporter) Warnings() []Entry { return r.warnings }

// Notes returns the notes recorded so far.
func (r *Reporter) Notes() []Entry { return r.notes }

// Finish builds the run's reports and hands each to every sink. Attached
// WARNING and NOTE reports come first; the last report is the terminal
// SUCCESS or FAILURE. summary describes what the run did.
func (r *Reporter) Finish(ctx context.Context, summary string) ([]*model.Report, error) {
	if r.finished {
		return nil, ErrFinished
	}
	r.finished = true

	reports := r.build(summary)
	var errs []error
	for _, rep := range reports {
		for _, s := range r.sinks {
			if err := s.Emit(ctx, rep); err != nil {
				zap.L().Error("report: sink failed",
					zap.String("source", r.source),
					zap.String("status", rep.Status),
					zap.Error(err),
				)
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return reports, eris.Wrap(errors.Join(errs...), "report: emit")
	}
	return reports, nil
}

func (r *Reporter) build(summary string) []*model.Report {
	now := r.clock.Now().UTC()
	var out []*model.Report
	add := func(status, msg string, details map[string]any) {
		out = append(out, &model.Report{
			ID:        uuid.New().String(),
			Source:    r.source,
			Status:    status,
			Message:   msg,
			Details:   details,
			CreatedAt: now,
		})
	}

	if len(r.failures) > 0 {
		add(StatusWarning, fmt.Sprintf("%d failures while syncing %s", len(r.failures), r.source),
			map[string]any{"failures": r.failures})
	}
	if len(r.warnings) > 0 {
		add(StatusWarning, fmt.Sprintf("%d warnings while syncing %s", len(r.warnings), r.source),
			map[string]any{"warnings": r.warnings})
	}
	if len(r.notes) > 0 {
		add(StatusNote, fmt.Sprintf("%d notes while syncing %s", len(r.notes), r.source),
			map[string]any{"notes": r.notes})
	}

	if r.abort != nil {
		add(StatusFailure, r.abort.Message, r.abort.Fields)
		return out
	}
	add(StatusSuccess, r.summarize(summary), nil)
	return out
}

func (r *Reporter) summarize(summary string) string {
	var counts []string
	if n := len(r.failures); n > 0 {
		counts = append(counts, plural(n, "failure"))
	}
	if n := len(r.warnings); n > 0 {
		counts = append(counts, plural(n, "warning"))
	}
	if len(counts) == 0 {
		return summary
	}
	return summary + "; " + strings.Join(counts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
