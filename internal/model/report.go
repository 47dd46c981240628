package model

// Outcome is what happened to one file of a composite folder.
type Outcome int

const (
	OutcomeDownloaded Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

// String returns a lower-case label for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailedFile records a file whose download failed.
type FailedFile struct {
	File File
	Err  error
}

// DownloadReport summarizes one pass over a composite folder.
type DownloadReport struct {
	// Folder is the composite folder that was processed.
	Folder Folder

	Downloaded int
	Skipped    int
	Extracted  int

	// Failed lists every file whose download failed.
	Failed []FailedFile

	// Warnings holds non-fatal problems, such as archives that could not be extracted.
	Warnings []string

	// Bytes is the number of bytes written to disk by this pass.
	Bytes int64
}

// FailedCount returns the number of failed files.
func (r *DownloadReport) FailedCount() int {
	return len(r.Failed)
}

// Processed returns Downloaded + Skipped + Failed.
func (r *DownloadReport) Processed() int {
	return r.Downloaded + r.Skipped + len(r.Failed)
}

// Add folds another report's counters into r.
func (r *DownloadReport) Add(other *DownloadReport) {
	if other == nil {
		return
	}
	r.Downloaded += other.Downloaded
	r.Skipped += other.Skipped
	r.Extracted += other.Extracted
	r.Failed = append(r.Failed, other.Failed...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Bytes += other.Bytes
}
