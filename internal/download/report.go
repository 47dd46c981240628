package download

import (
	"errors"
	"fmt"

	"github.com/handiism/naip-downloader/internal/model"
)

// Stage is the progress of one (year, state) download.
//
//	Start → YearResolved → StateResolved → CompositesResolved → Downloading → Done
//
// Aborted can be reached from every stage before Done.
type Stage int

const (
	StageStart Stage = iota
	StageYearResolved
	StageStateResolved
	StageCompositesResolved
	StageDownloading
	StageDone
	StageAborted
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageYearResolved:
		return "year resolved"
	case StageStateResolved:
		return "state resolved"
	case StageCompositesResolved:
		return "composites resolved"
	case StageDownloading:
		return "downloading"
	case StageDone:
		return "done"
	case StageAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// TargetError is an error raised while processing one (year, state) target.
// Stage is the last stage the target reached.
type TargetError struct {
	Year  int
	State string
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *TargetError) Error() string {
	return fmt.Sprintf("%d/%s (at %s): %v", e.Year, e.State, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *TargetError) Unwrap() error {
	return e.Err
}

// TargetReport is the outcome of one (year, state) target.
type TargetReport struct {
	Year  int
	State string

	// Stage is the final stage: Done or Aborted.
	Stage Stage

	// Composites holds one report per composite folder that was processed.
	Composites []*model.DownloadReport

	// Err is set when the target was aborted or a composite could not be listed.
	Err error
}

// Totals sums the composite reports.
func (r *TargetReport) Totals() *model.DownloadReport {
	total := &model.DownloadReport{}
	for _, c := range r.Composites {
		total.Add(c)
	}
	return total
}

// NotFound reports whether the target was aborted because the year or state
// folder does not exist.
func (r *TargetReport) NotFound() bool {
	return r.Err != nil && errors.Is(r.Err, model.ErrNotFound)
}

// RunReport collects the targets processed by one Manager operation.
type RunReport struct {
	RunID   string
	Targets []*TargetReport
}

// Totals sums every target.
func (r *RunReport) Totals() *model.DownloadReport {
	total := &model.DownloadReport{}
	for _, t := range r.Targets {
		total.Add(t.Totals())
	}
	return total
}

// Errors returns the errors of the targets that did not complete cleanly.
func (r *RunReport) Errors() []error {
	var errs []error
	for _, t := range r.Targets {
		if t.Err != nil {
			errs = append(errs, t.Err)
		}
	}
	return errs
}

func (r *RunReport) add(t *TargetReport) {
	if t != nil {
		r.Targets = append(r.Targets, t)
	}
}
