package models

import "time"

// ContributionType classifies how much a submission's type counts toward
// a destination's headline identity
type ContributionType string

const (
	ContributionPrimary    ContributionType = "primary"
	ContributionSupporting ContributionType = "supporting"
	ContributionReference  ContributionType = "reference"
)

// DestinationSubmissionLink is the provenance edge between a destination
// and a submission that contributed to its snapshot. Unique on
// (destination_id, submission_id). Weight is frozen at link time for
// audit; re-aggregation recomputes weights fresh.
type DestinationSubmissionLink struct {
	ID               string           `json:"id" db:"id"`
	DestinationID    string           `json:"destination_id" db:"destination_id"`
	SubmissionID     string           `json:"submission_id" db:"submission_id"`
	ContributionType ContributionType `json:"contribution_type" db:"contribution_type"`
	Weight           float64          `json:"weight" db:"weight"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}
