package models

import (
	"encoding/json"
	"time"
)

// DestinationStatus is the curation state of a destination page
type DestinationStatus string

const (
	DestinationStatusDraft     DestinationStatus = "draft"
	DestinationStatusPublished DestinationStatus = "published"
	DestinationStatusArchived  DestinationStatus = "archived"
)

// Destination is the denormalized per-location record with a cached
// aggregation snapshot. Unique on (city, country).
type Destination struct {
	ID              string            `json:"id" db:"id"`
	City            string            `json:"city" db:"city"`
	Country         string            `json:"country" db:"country"`
	Slug            string            `json:"slug" db:"slug"`
	Description     *string           `json:"description,omitempty" db:"description"`
	Status          DestinationStatus `json:"status" db:"status"`
	Featured        bool              `json:"featured" db:"featured"`
	AggregatedData  json.RawMessage   `json:"aggregated_data,omitempty" db:"aggregated_data"`
	AdminOverrides  json.RawMessage   `json:"admin_overrides,omitempty" db:"admin_overrides"`
	SubmissionCount int               `json:"submission_count" db:"submission_count"`
	LastDataUpdate  *time.Time        `json:"last_data_update,omitempty" db:"last_data_update"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// Name is the display name used for search and listings
func (d *Destination) Name() string {
	return FormatLocation(d.City, d.Country)
}

// Snapshot unmarshals the cached aggregated data. Returns nil when the
// destination has never been aggregated.
func (d *Destination) Snapshot() *AggregatedData {
	if len(d.AggregatedData) == 0 {
		return nil
	}
	var data AggregatedData
	if err := json.Unmarshal(d.AggregatedData, &data); err != nil {
		return nil
	}
	return &data
}

// IsStale reports whether the cached snapshot is older than maxAge.
// A destination with no snapshot at all is always stale.
func (d *Destination) IsStale(maxAge time.Duration, now time.Time) bool {
	if d.LastDataUpdate == nil {
		return true
	}
	return now.Sub(*d.LastDataUpdate) > maxAge
}

// AggregatedData is the composite aggregation snapshot cached on a
// destination. Facet pointers are nil when no eligible submission provided
// data for that facet.
type AggregatedData struct {
	TotalSubmissions int                    `json:"totalSubmissions"`
	AverageRating    *float64               `json:"averageRating,omitempty"`
	AverageCost      *float64               `json:"averageCost,omitempty"`
	Accommodation    *AccommodationSummary  `json:"accommodationData,omitempty"`
	Courses          *CourseSummary         `json:"courseData,omitempty"`
	LivingExpenses   *LivingExpensesSummary `json:"livingExpensesData,omitempty"`
	Experiences      []ExperienceExcerpt    `json:"userExperiences,omitempty"`
	Demographics     *DemographicsSummary   `json:"demographics,omitempty"`
	GeneratedAt      time.Time              `json:"generatedAt"`
}

// NumericStats is a per-field summary over that field's own sample set
type NumericStats struct {
	Average    float64 `json:"average"`
	Median     float64 `json:"median"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	SampleSize int     `json:"sampleSize"`
}

// RentStats summarizes accommodation rents
type RentStats struct {
	Average    float64 `json:"average"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	SampleSize int     `json:"sampleSize"`
}

// AccommodationSummary summarizes accommodation submissions
type AccommodationSummary struct {
	Types          map[string]int `json:"types"`
	Rent           *RentStats     `json:"rent,omitempty"`
	AverageRating  *float64       `json:"averageRating,omitempty"`
	PopularOptions []string       `json:"popularOptions,omitempty"`
}

// CourseSummary summarizes course-matching submissions
type CourseSummary struct {
	Departments        map[string]int `json:"departments"`
	AverageCourseCount *float64       `json:"averageCourseCount,omitempty"`
	Difficulty         map[string]int `json:"difficulty,omitempty"`
}

// LivingExpensesSummary holds per-category expense statistics. Each
// category is computed over the submissions that provided that category.
type LivingExpensesSummary struct {
	Rent          *NumericStats `json:"rent,omitempty"`
	Food          *NumericStats `json:"food,omitempty"`
	Transport     *NumericStats `json:"transport,omitempty"`
	Entertainment *NumericStats `json:"entertainment,omitempty"`
	Total         *NumericStats `json:"total,omitempty"`
}

// ExperienceExcerpt is one entry in the capped most-recent-first
// experience list carried on the snapshot
type ExperienceExcerpt struct {
	SubmissionID string    `json:"submissionId"`
	Title        *string   `json:"title,omitempty"`
	Excerpt      *string   `json:"excerpt,omitempty"`
	Rating       *float64  `json:"rating,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DemographicsSummary summarizes who submitted
type DemographicsSummary struct {
	TopNationalities []FrequencyEntry `json:"topNationalities,omitempty"`
	TopHomeCountries []FrequencyEntry `json:"topHomeCountries,omitempty"`
	StudyLevels      map[string]int   `json:"studyLevels,omitempty"`
}

// FrequencyEntry is one row of an ordered frequency table
type FrequencyEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// AdminOverrides are curated field values that win over the computed
// snapshot at presentation time. The stored snapshot is never mutated.
type AdminOverrides struct {
	AverageRating *float64 `json:"averageRating,omitempty"`
	AverageCost   *float64 `json:"averageCost,omitempty"`
	Description   *string  `json:"description,omitempty"`
	HeroImageURL  *string  `json:"heroImageUrl,omitempty"`
}

// AggregateRequest is the request for creating a destination from submissions
type AggregateRequest struct {
	City      string          `json:"city" validate:"required"`
	Country   string          `json:"country" validate:"required"`
	Overrides *AdminOverrides `json:"overrides,omitempty"`
}

// UpdateOverridesRequest replaces a destination's admin overrides
type UpdateOverridesRequest struct {
	Overrides AdminOverrides `json:"overrides"`
}

// UpdateStatusRequest changes a destination's curation status
type UpdateStatusRequest struct {
	Status DestinationStatus `json:"status" validate:"required,oneof=draft published archived"`
}

// UpdateFeaturedRequest toggles a destination's featured flag
type UpdateFeaturedRequest struct {
	Featured bool `json:"featured"`
}

// DestinationListRequest filters and pages destination listings
type DestinationListRequest struct {
	Featured *bool   `json:"featured,omitempty" query:"featured"`
	Country  *string `json:"country,omitempty" query:"country"`
	OrderBy  string  `json:"order_by,omitempty" query:"order_by" validate:"omitempty,oneof=name submission_count last_data_update rating"`
	Order    string  `json:"order,omitempty" query:"order" validate:"omitempty,oneof=asc desc"`
	Limit    int     `json:"limit,omitempty" query:"limit" validate:"omitempty,min=1,max=100"`
	Offset   int     `json:"offset,omitempty" query:"offset" validate:"omitempty,min=0"`
}

// DestinationListResponse is the response for listing destinations
type DestinationListResponse struct {
	Items      []Destination `json:"items"`
	TotalCount int           `json:"total_count"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

// DestinationView is the presentation form of a destination with admin
// overrides already applied over the snapshot
type DestinationView struct {
	Destination
	HeroImageURL *string         `json:"heroImageUrl,omitempty"`
	Aggregations *AggregatedData `json:"aggregations,omitempty"`
}
