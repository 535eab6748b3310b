package models

import (
	"encoding/json"
	"strings"
	"time"
)

// SubmissionType identifies the shape of a submission's data payload
type SubmissionType string

const (
	SubmissionTypeBasicInfo       SubmissionType = "basic-info"
	SubmissionTypeAccommodation   SubmissionType = "accommodation"
	SubmissionTypeCourseMatching  SubmissionType = "course-matching"
	SubmissionTypeLivingExpenses  SubmissionType = "living-expenses"
	SubmissionTypeExperience      SubmissionType = "help-future-students"
	SubmissionTypeStory           SubmissionType = "story"
	SubmissionTypeQuickTip        SubmissionType = "quick-tip"
	SubmissionTypeDestinationInfo SubmissionType = "destination-info"
)

// SubmissionStatus is the moderation state of a submission
type SubmissionStatus string

const (
	SubmissionStatusDraft    SubmissionStatus = "draft"
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
	SubmissionStatusArchived SubmissionStatus = "archived"
)

// Submission is a student-authored content blob keyed by "City, Country" location.
// Only approved submissions are eligible for aggregation.
type Submission struct {
	ID        string           `json:"id" db:"id"`
	Type      SubmissionType   `json:"type" db:"type"`
	Status    SubmissionStatus `json:"status" db:"status"`
	Location  string           `json:"location" db:"location"`
	Data      json.RawMessage  `json:"data" db:"data"`
	UserID    *string          `json:"user_id,omitempty" db:"user_id"`
	Processed bool             `json:"processed" db:"processed"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// IsEligible reports whether the submission can contribute to aggregation
func (s *Submission) IsEligible() bool {
	if s.Status != SubmissionStatusApproved {
		return false
	}
	_, _, ok := ParseLocation(s.Location)
	return ok
}

// DataMap unmarshals the raw payload into a map for field extraction.
// A malformed payload yields an empty map rather than an error.
func (s *Submission) DataMap() map[string]any {
	var m map[string]any
	if len(s.Data) == 0 {
		return map[string]any{}
	}
	if err := json.Unmarshal(s.Data, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// CreateSubmissionRequest is the request for creating a submission
type CreateSubmissionRequest struct {
	Type     SubmissionType  `json:"type" validate:"required"`
	Location string          `json:"location" validate:"required"`
	Data     json.RawMessage `json:"data" validate:"required"`
	UserID   *string         `json:"user_id,omitempty"`
}

// SubmissionFilter narrows submission queries
type SubmissionFilter struct {
	Location  *string           `json:"location,omitempty"`
	Status    *SubmissionStatus `json:"status,omitempty"`
	Type      *SubmissionType   `json:"type,omitempty"`
	Processed *bool             `json:"processed,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Offset    int               `json:"offset,omitempty"`
}

// ParseLocation splits a "City, Country" location string. ok is false when
// the string is blank, has no comma, or either side is empty.
func ParseLocation(location string) (city, country string, ok bool) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", "", false
	}

	idx := strings.Index(location, ",")
	if idx < 0 {
		return "", "", false
	}

	city = strings.TrimSpace(location[:idx])
	country = strings.TrimSpace(location[idx+1:])
	if city == "" || country == "" {
		return "", "", false
	}

	return city, country, true
}

// FormatLocation is the canonical inverse of ParseLocation
func FormatLocation(city, country string) string {
	return strings.TrimSpace(city) + ", " + strings.TrimSpace(country)
}
