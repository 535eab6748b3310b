package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/extraction"
)

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func TestAggregateAccommodation(t *testing.T) {
	t.Run("empty input returns nil", func(t *testing.T) {
		assert.Nil(t, AggregateAccommodation(nil))
		assert.Nil(t, AggregateAccommodation([]extraction.AccommodationFacts{}))
	})

	t.Run("prague rent scenario", func(t *testing.T) {
		// Three submissions: rents 320, 480, missing. The missing rent
		// shrinks the sample, it does not count as zero.
		facts := []extraction.AccommodationFacts{
			{Type: str("dorm"), MonthlyRent: f64(320)},
			{Type: str("shared-flat"), MonthlyRent: f64(480)},
			{Type: str("dorm")},
		}

		summary := AggregateAccommodation(facts)
		require.NotNil(t, summary)
		require.NotNil(t, summary.Rent)
		assert.Equal(t, 400.0, summary.Rent.Average)
		assert.Equal(t, 320.0, summary.Rent.Min)
		assert.Equal(t, 480.0, summary.Rent.Max)
		assert.Equal(t, 2, summary.Rent.SampleSize)
		assert.Equal(t, map[string]int{"dorm": 2, "shared-flat": 1}, summary.Types)
		assert.Equal(t, []string{"dorm", "shared-flat"}, summary.PopularOptions)
	})

	t.Run("average sits within min and max", func(t *testing.T) {
		facts := []extraction.AccommodationFacts{
			{MonthlyRent: f64(250)},
			{MonthlyRent: f64(610)},
			{MonthlyRent: f64(420)},
		}
		summary := AggregateAccommodation(facts)
		require.NotNil(t, summary.Rent)
		assert.GreaterOrEqual(t, summary.Rent.Average, summary.Rent.Min)
		assert.LessOrEqual(t, summary.Rent.Average, summary.Rent.Max)
	})

	t.Run("popular options tie keeps first-seen order", func(t *testing.T) {
		facts := []extraction.AccommodationFacts{
			{Type: str("homestay")},
			{Type: str("dorm")},
			{Type: str("shared-flat")},
			{Type: str("dorm")},
			{Type: str("shared-flat")},
			{Type: str("studio")},
		}
		summary := AggregateAccommodation(facts)
		require.NotNil(t, summary)
		// dorm and shared-flat tie at 2; dorm was seen first. homestay
		// and studio tie at 1; homestay was seen first and studio is cut.
		assert.Equal(t, []string{"dorm", "shared-flat", "homestay"}, summary.PopularOptions)
	})

	t.Run("ratings average separate from rents", func(t *testing.T) {
		facts := []extraction.AccommodationFacts{
			{Rating: f64(4)},
			{Rating: f64(5)},
			{MonthlyRent: f64(300)},
		}
		summary := AggregateAccommodation(facts)
		require.NotNil(t, summary.AverageRating)
		assert.Equal(t, 4.5, *summary.AverageRating)
	})
}

func TestAggregateCourses(t *testing.T) {
	t.Run("empty input returns nil", func(t *testing.T) {
		assert.Nil(t, AggregateCourses(nil))
	})

	t.Run("department table capped at five", func(t *testing.T) {
		facts := []extraction.CourseFacts{
			{Department: str("cs")}, {Department: str("cs")},
			{Department: str("math")},
			{Department: str("physics")},
			{Department: str("biology")},
			{Department: str("history")},
			{Department: str("law")},
		}
		summary := AggregateCourses(facts)
		require.NotNil(t, summary)
		assert.Len(t, summary.Departments, 5)
		assert.Equal(t, 2, summary.Departments["cs"])
		assert.NotContains(t, summary.Departments, "law")
	})

	t.Run("difficulty stays categorical", func(t *testing.T) {
		facts := []extraction.CourseFacts{
			{Difficulty: str("hard"), CourseCount: f64(5)},
			{Difficulty: str("moderate"), CourseCount: f64(3)},
			{Difficulty: str("hard")},
		}
		summary := AggregateCourses(facts)
		require.NotNil(t, summary)
		assert.Equal(t, map[string]int{"hard": 2, "moderate": 1}, summary.Difficulty)
		require.NotNil(t, summary.AverageCourseCount)
		assert.Equal(t, 4.0, *summary.AverageCourseCount)
	})
}

func TestAggregateExpenses(t *testing.T) {
	t.Run("empty input returns nil", func(t *testing.T) {
		assert.Nil(t, AggregateExpenses(nil))
	})

	t.Run("all-empty facts return nil", func(t *testing.T) {
		assert.Nil(t, AggregateExpenses([]extraction.ExpenseFacts{{}, {}}))
	})

	t.Run("per-category sample sets", func(t *testing.T) {
		// A submission missing food still contributes to rent.
		facts := []extraction.ExpenseFacts{
			{Rent: f64(300), Food: f64(180), Total: f64(600)},
			{Rent: f64(420), Total: f64(720)},
			{Rent: f64(360), Food: f64(220), Total: f64(660)},
		}
		summary := AggregateExpenses(facts)
		require.NotNil(t, summary)

		require.NotNil(t, summary.Rent)
		assert.Equal(t, 3, summary.Rent.SampleSize)
		assert.Equal(t, 360.0, summary.Rent.Average)

		require.NotNil(t, summary.Food)
		assert.Equal(t, 2, summary.Food.SampleSize)
		assert.Equal(t, 200.0, summary.Food.Average)

		assert.Nil(t, summary.Transport)
		assert.Nil(t, summary.Entertainment)

		require.NotNil(t, summary.Total)
		assert.Equal(t, 660.0, summary.Total.Average)
	})

	t.Run("median is the lower-middle element", func(t *testing.T) {
		facts := []extraction.ExpenseFacts{
			{Total: f64(100)},
			{Total: f64(200)},
			{Total: f64(300)},
			{Total: f64(400)},
		}
		summary := AggregateExpenses(facts)
		require.NotNil(t, summary.Total)
		// Even-length sample: index floor(4/2) of the sorted values,
		// not an interpolated midpoint.
		assert.Equal(t, 300.0, summary.Total.Median)
	})

	t.Run("odd-length median", func(t *testing.T) {
		facts := []extraction.ExpenseFacts{
			{Total: f64(500)},
			{Total: f64(100)},
			{Total: f64(300)},
		}
		summary := AggregateExpenses(facts)
		require.NotNil(t, summary.Total)
		assert.Equal(t, 300.0, summary.Total.Median)
	})
}

func TestAggregateRatings(t *testing.T) {
	t.Run("no ratings returns nil", func(t *testing.T) {
		assert.Nil(t, AggregateRatings(nil))
		assert.Nil(t, AggregateRatings([]extraction.ExperienceFacts{{Title: str("x")}}))
	})

	t.Run("mean over non-nil ratings", func(t *testing.T) {
		facts := []extraction.ExperienceFacts{
			{OverallRating: f64(4)},
			{OverallRating: f64(5)},
			{Title: str("no rating")},
		}
		avg := AggregateRatings(facts)
		require.NotNil(t, avg)
		assert.Equal(t, 4.5, *avg)
	})
}

func TestAggregateDemographics(t *testing.T) {
	t.Run("no demographic data returns nil", func(t *testing.T) {
		assert.Nil(t, AggregateDemographics(nil, nil))
	})

	t.Run("combines basic-info and experience sources", func(t *testing.T) {
		basic := []extraction.BasicInfoFacts{
			{Nationality: str("German"), StudyLevel: str("bachelor")},
			{Nationality: str("French"), HomeCountry: str("France")},
		}
		experiences := []extraction.ExperienceFacts{
			{Nationality: str("German"), StudyLevel: str("master")},
		}

		summary := AggregateDemographics(basic, experiences)
		require.NotNil(t, summary)
		require.NotEmpty(t, summary.TopNationalities)
		assert.Equal(t, "German", summary.TopNationalities[0].Value)
		assert.Equal(t, 2, summary.TopNationalities[0].Count)
		assert.Equal(t, map[string]int{"bachelor": 1, "master": 1}, summary.StudyLevels)
	})

	t.Run("nationality tie keeps first-seen order", func(t *testing.T) {
		basic := []extraction.BasicInfoFacts{
			{Nationality: str("Spanish")},
			{Nationality: str("Italian")},
			{Nationality: str("Italian")},
			{Nationality: str("Spanish")},
		}
		summary := AggregateDemographics(basic, nil)
		require.NotNil(t, summary)
		require.Len(t, summary.TopNationalities, 2)
		assert.Equal(t, "Spanish", summary.TopNationalities[0].Value)
		assert.Equal(t, "Italian", summary.TopNationalities[1].Value)
	})

	t.Run("study levels keep the full distribution", func(t *testing.T) {
		basic := []extraction.BasicInfoFacts{
			{StudyLevel: str("bachelor")},
			{StudyLevel: str("master")},
			{StudyLevel: str("phd")},
			{StudyLevel: str("erasmus-mundus")},
			{StudyLevel: str("exchange")},
			{StudyLevel: str("visiting")},
		}
		summary := AggregateDemographics(basic, nil)
		require.NotNil(t, summary)
		assert.Len(t, summary.StudyLevels, 6)
	})
}
