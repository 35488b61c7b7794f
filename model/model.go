package model

// Outcome is the per-change status.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Result records what happened to one change.
type Result struct {
	Path    string
	NewPath string
	Kind    OperationKind
	Action  string
	Reason  string
	Outcome Outcome
	// Lines is the number of lines inserted, deleted or written.
	Lines   int
	Message string
	Preview string
	Err     error
}

// Report is the outcome of one batch run.
type Report struct {
	Explanation string
	Conclusion  string
	Results     []Result
	// Aborted is set when the fail-fast policy stopped the batch early.
	Aborted bool
	DryRun  bool
	// Message is a one-line status for runs without per-change results.
	Message string
}

// Failed returns the number of failed changes.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Renamed  []string
	Deleted  []string
	Failed   []string
	Skipped  []string
	Message  string
}

// Summary groups the report's results by what happened to each path.
func (r *Report) Summary() Summary {
	s := Summary{Message: r.Message}
	modified := make(map[string]bool)
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeFailed:
			s.Failed = append(s.Failed, res.Path)
			continue
		case OutcomeSkipped:
			s.Skipped = append(s.Skipped, res.Path)
			continue
		}
		switch res.Kind {
		case KindCreateFile:
			s.Created = append(s.Created, res.Path)
		case KindRenameFile:
			s.Renamed = append(s.Renamed, res.Path+" -> "+res.NewPath)
		case KindDeleteFile:
			s.Deleted = append(s.Deleted, res.Path)
		default:
			if !modified[res.Path] {
				modified[res.Path] = true
				s.Modified = append(s.Modified, res.Path)
			}
		}
	}
	return s
}
