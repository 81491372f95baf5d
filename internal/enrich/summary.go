package enrich

import "time"

type OutcomeStatus string

const (
	StatusEnriched OutcomeStatus = "enriched"
	StatusFailed   OutcomeStatus = "failed"
	StatusSkipped  OutcomeStatus = "skipped"
)

// Stages at which a grant can stop.
const (
	StageFetch   = "fetch"
	StageExtract = "extract"
	StagePersist = "persist"
	StageDone    = "done"
)

// GrantOutcome is the result of running one grant through the pipeline.
type GrantOutcome struct {
	GrantID   string
	GrantName string
	Status    OutcomeStatus
	Stage     string
	Err       error

	ReadinessPct    int
	FitScore        int
	FitSource       string
	CascadeEligible bool
	// WouldCreate is set in dry runs when the gate passed and no application
	// references the grant yet.
	WouldCreate bool
	Cascade     *CascadeResult
	CascadeErr  error
}

// Summary describes a finished batch.
type Summary struct {
	RunID      string
	Trigger    string
	DryRun     bool
	Total      int
	Enriched   int
	Failed     int
	Skipped    int
	Outcomes   []GrantOutcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// CreatedApplications lists the names of grants that got a new application.
func (s Summary) CreatedApplications() []string {
	var names []string
	for _, o := range s.Outcomes {
		if o.Cascade != nil && o.Cascade.Created {
			names = append(names, o.GrantName)
		}
	}
	return names
}

// Summarize folds per-grant outcomes into batch counts.
func Summarize(outcomes []GrantOutcome) Summary {
	s := Summary{Outcomes: outcomes, Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case StatusEnriched:
			s.Enriched++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}
