package weighting

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/aster/pkg/models"
)

func submission(t models.SubmissionType, data string, createdAt time.Time) *models.Submission {
	return &models.Submission{
		ID:        "sub-1",
		Type:      t,
		Status:    models.SubmissionStatusApproved,
		Location:  "Prague, Czech Republic",
		Data:      json.RawMessage(data),
		CreatedAt: createdAt,
	}
}

func TestWeight(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fresh complete accommodation scores full weight", func(t *testing.T) {
		sub := submission(models.SubmissionTypeAccommodation,
			`{"accommodationType": "dorm", "monthlyRent": 400}`, now)
		assert.InDelta(t, 1.0, Weight(sub, now), 0.001)
	})

	t.Run("half-complete accommodation halves the weight", func(t *testing.T) {
		sub := submission(models.SubmissionTypeAccommodation,
			`{"accommodationType": "dorm"}`, now)
		assert.InDelta(t, 0.5, Weight(sub, now), 0.001)
	})

	t.Run("types without a required list get full completeness", func(t *testing.T) {
		sub := submission(models.SubmissionTypeStory, `{}`, now)
		assert.InDelta(t, 1.0, Weight(sub, now), 0.001)
	})

	t.Run("clamped at the floor", func(t *testing.T) {
		sub := submission(models.SubmissionTypeAccommodation, `{}`, now.AddDate(-2, 0, 0))
		assert.Equal(t, 0.1, Weight(sub, now))
	})
}

func TestRecency(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt time.Time
		want      float64
	}{
		{"brand new", now, 1.0},
		{"hundred days of decay", now.AddDate(0, 0, -100), 1.0 - 100.0/365.0},
		{"half a year floors out", now.AddDate(0, 0, -183), 0.5},
		{"exactly a year hits the floor", now.AddDate(0, 0, -365), 0.5},
		{"two years stays at the floor", now.AddDate(-2, 0, 0), 0.5},
		{"future timestamps are treated as now", now.AddDate(0, 0, 7), 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Recency(tt.createdAt, now), 0.001)
		})
	}
}

func TestCompleteness_LivingExpenses(t *testing.T) {
	now := time.Now()

	t.Run("total budget present", func(t *testing.T) {
		sub := submission(models.SubmissionTypeLivingExpenses,
			`{"totalMonthlyBudget": 650}`, now)
		assert.Equal(t, 1.0, Completeness(sub))
	})

	t.Run("total budget missing", func(t *testing.T) {
		sub := submission(models.SubmissionTypeLivingExpenses,
			`{"food": 200}`, now)
		assert.Equal(t, 0.0, Completeness(sub))
	})

	t.Run("cents variant still counts", func(t *testing.T) {
		sub := submission(models.SubmissionTypeLivingExpenses,
			`{"totalMonthlyBudgetCents": 65000}`, now)
		assert.Equal(t, 1.0, Completeness(sub))
	})
}

func TestContributionType(t *testing.T) {
	tests := []struct {
		subType models.SubmissionType
		want    models.ContributionType
	}{
		{models.SubmissionTypeBasicInfo, models.ContributionPrimary},
		{models.SubmissionTypeExperience, models.ContributionPrimary},
		{models.SubmissionTypeAccommodation, models.ContributionSupporting},
		{models.SubmissionTypeLivingExpenses, models.ContributionSupporting},
		{models.SubmissionTypeCourseMatching, models.ContributionSupporting},
		{models.SubmissionTypeStory, models.ContributionReference},
		{models.SubmissionTypeQuickTip, models.ContributionReference},
		{models.SubmissionTypeDestinationInfo, models.ContributionReference},
	}

	for _, tt := range tests {
		t.Run(string(tt.subType), func(t *testing.T) {
			assert.Equal(t, tt.want, ContributionType(tt.subType))
		})
	}
}
