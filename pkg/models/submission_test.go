package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name     string
		location string
		city     string
		country  string
		ok       bool
	}{
		{"simple", "Prague, Czech Republic", "Prague", "Czech Republic", true},
		{"no space after comma", "Lisbon,Portugal", "Lisbon", "Portugal", true},
		{"extra whitespace", "  Oslo ,  Norway  ", "Oslo", "Norway", true},
		{"country with comma keeps remainder", "Seoul, South Korea, Republic of", "Seoul", "South Korea, Republic of", true},
		{"no comma", "Atlantis", "", "", false},
		{"empty city", ", Spain", "", "", false},
		{"empty country", "Madrid, ", "", "", false},
		{"blank", "   ", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			city, country, ok := ParseLocation(tt.location)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.city, city)
				assert.Equal(t, tt.country, country)
			}
		})
	}
}

func TestSubmissionIsEligible(t *testing.T) {
	sub := Submission{Status: SubmissionStatusApproved, Location: "Prague, Czech Republic"}
	assert.True(t, sub.IsEligible())

	sub.Status = SubmissionStatusPending
	assert.False(t, sub.IsEligible())

	sub.Status = SubmissionStatusApproved
	sub.Location = "nowhere"
	assert.False(t, sub.IsEligible())
}

func TestSubmissionDataMap(t *testing.T) {
	sub := Submission{Data: json.RawMessage(`{"rating": 4.5}`)}
	m := sub.DataMap()
	assert.Equal(t, 4.5, m["rating"])

	sub.Data = json.RawMessage(`not json`)
	assert.Empty(t, sub.DataMap())

	sub.Data = nil
	assert.Empty(t, sub.DataMap())
}

func TestDestinationIsStale(t *testing.T) {
	now := time.Now().UTC()

	dest := Destination{}
	assert.True(t, dest.IsStale(24*time.Hour, now), "no refresh recorded means stale")

	recent := now.Add(-1 * time.Hour)
	dest.LastDataUpdate = &recent
	assert.False(t, dest.IsStale(24*time.Hour, now))

	old := now.Add(-25 * time.Hour)
	dest.LastDataUpdate = &old
	assert.True(t, dest.IsStale(24*time.Hour, now))
}

func TestDestinationSnapshot(t *testing.T) {
	dest := Destination{}
	assert.Nil(t, dest.Snapshot())

	rating := 4.1
	raw, err := json.Marshal(AggregatedData{TotalSubmissions: 7, AverageRating: &rating})
	require.NoError(t, err)
	dest.AggregatedData = raw

	snapshot := dest.Snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, 7, snapshot.TotalSubmissions)
	assert.InDelta(t, 4.1, *snapshot.AverageRating, 0.001)
}

func TestAggregatedDataJSONKeys(t *testing.T) {
	rating := 4.0
	cost := 750.0
	data := AggregatedData{
		TotalSubmissions: 3,
		AverageRating:    &rating,
		AverageCost:      &cost,
		GeneratedAt:      time.Now().UTC(),
	}

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "totalSubmissions")
	assert.Contains(t, decoded, "averageRating")
	assert.Contains(t, decoded, "averageCost")
	assert.Contains(t, decoded, "generatedAt")
}
