// Package weighting scores how much a submission should count toward a
// destination's aggregate statistics.
package weighting

import (
	"time"

	"github.com/Ramsey-B/aster/pkg/extraction"
	"github.com/Ramsey-B/aster/pkg/models"
)

const (
	baseWeight = 1.0
	minWeight  = 0.1
	maxWeight  = 2.0

	// recency decays linearly over one year and never drops below half
	recencyFloor = 0.5
	decayDays    = 365.0
)

// Weight computes the submission's scalar weight in [0.1, 2.0]:
// base 1.0 × completeness × recency, clamped.
func Weight(sub *models.Submission, now time.Time) float64 {
	w := baseWeight * Completeness(sub) * Recency(sub.CreatedAt, now)

	if w < minWeight {
		return minWeight
	}
	if w > maxWeight {
		return maxWeight
	}
	return w
}

// Completeness is the fraction of the type's required facts the payload
// actually provides. Types without a required-fact list score 1.0.
func Completeness(sub *models.Submission) float64 {
	data := sub.DataMap()

	switch sub.Type {
	case models.SubmissionTypeAccommodation:
		facts := extraction.Accommodation(data)
		return presentFraction(facts.Type != nil, facts.MonthlyRent != nil)
	case models.SubmissionTypeLivingExpenses:
		facts := extraction.Expenses(data)
		return presentFraction(facts.Total != nil)
	default:
		return 1.0
	}
}

// Recency decays from 1.0 to the 0.5 floor over decayDays
func Recency(createdAt, now time.Time) float64 {
	days := now.Sub(createdAt).Hours() / 24
	if days < 0 {
		days = 0
	}

	r := 1.0 - days/decayDays
	if r < recencyFloor {
		return recencyFloor
	}
	return r
}

// ContributionType classifies the submission's type: basic-info and
// experience submissions carry the destination's headline identity,
// the structured fact types support it, everything else is reference.
func ContributionType(t models.SubmissionType) models.ContributionType {
	switch t {
	case models.SubmissionTypeBasicInfo, models.SubmissionTypeExperience:
		return models.ContributionPrimary
	case models.SubmissionTypeAccommodation, models.SubmissionTypeLivingExpenses, models.SubmissionTypeCourseMatching:
		return models.ContributionSupporting
	default:
		return models.ContributionReference
	}
}

func presentFraction(present ...bool) float64 {
	count := 0
	for _, p := range present {
		if p {
			count++
		}
	}
	return float64(count) / float64(len(present))
}
