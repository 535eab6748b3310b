// Package aggregation reduces extracted submission facts into the
// per-destination summary snapshot. Aggregators are pure reductions:
// empty input yields nil, and missing values are excluded from a
// statistic's sample rather than counted as zero.
package aggregation

import (
	"github.com/Ramsey-B/aster/pkg/extraction"
	"github.com/Ramsey-B/aster/pkg/models"
)

const popularOptionCount = 3
const topDepartmentCount = 5
const topDemographicCount = 5

// AggregateAccommodation reduces accommodation facts into a type
// frequency table, rent and rating statistics, and the top-3 popular
// options by count (ties keep first-seen order).
func AggregateAccommodation(facts []extraction.AccommodationFacts) *models.AccommodationSummary {
	if len(facts) == 0 {
		return nil
	}

	types := newFrequencyTable()
	var rents []float64
	var ratings []float64

	for _, f := range facts {
		if f.Type != nil {
			types.Add(*f.Type)
		}
		if f.MonthlyRent != nil {
			rents = append(rents, *f.MonthlyRent)
		}
		if f.Rating != nil {
			ratings = append(ratings, *f.Rating)
		}
	}

	summary := &models.AccommodationSummary{
		Types:          types.Counts(),
		PopularOptions: types.Top(popularOptionCount),
	}

	if len(rents) > 0 {
		min, max := minMax(rents)
		summary.Rent = &models.RentStats{
			Average:    mean(rents),
			Min:        min,
			Max:        max,
			SampleSize: len(rents),
		}
	}

	if len(ratings) > 0 {
		avg := mean(ratings)
		summary.AverageRating = &avg
	}

	return summary
}

// AggregateCourses reduces course-matching facts into a top-5 department
// table, an average course count, and a raw difficulty distribution.
// Difficulty stays categorical; the source data does not guarantee an
// ordinal scale.
func AggregateCourses(facts []extraction.CourseFacts) *models.CourseSummary {
	if len(facts) == 0 {
		return nil
	}

	departments := newFrequencyTable()
	difficulty := newFrequencyTable()
	var counts []float64

	for _, f := range facts {
		if f.Department != nil {
			departments.Add(*f.Department)
		}
		if f.Difficulty != nil {
			difficulty.Add(*f.Difficulty)
		}
		if f.CourseCount != nil {
			counts = append(counts, *f.CourseCount)
		}
	}

	summary := &models.CourseSummary{
		Departments: topCounts(departments, topDepartmentCount),
		Difficulty:  difficulty.Counts(),
	}

	if len(counts) > 0 {
		avg := mean(counts)
		summary.AverageCourseCount = &avg
	}

	return summary
}

// AggregateExpenses computes per-category statistics. Each category's
// sample set is only the submissions that provided that category, so
// sample sizes differ between categories.
func AggregateExpenses(facts []extraction.ExpenseFacts) *models.LivingExpensesSummary {
	if len(facts) == 0 {
		return nil
	}

	pick := func(get func(extraction.ExpenseFacts) *float64) []float64 {
		var values []float64
		for _, f := range facts {
			if v := get(f); v != nil {
				values = append(values, *v)
			}
		}
		return values
	}

	summary := &models.LivingExpensesSummary{
		Rent:          numericStats(pick(func(f extraction.ExpenseFacts) *float64 { return f.Rent })),
		Food:          numericStats(pick(func(f extraction.ExpenseFacts) *float64 { return f.Food })),
		Transport:     numericStats(pick(func(f extraction.ExpenseFacts) *float64 { return f.Transport })),
		Entertainment: numericStats(pick(func(f extraction.ExpenseFacts) *float64 { return f.Entertainment })),
		Total:         numericStats(pick(func(f extraction.ExpenseFacts) *float64 { return f.Total })),
	}

	if summary.Rent == nil && summary.Food == nil && summary.Transport == nil &&
		summary.Entertainment == nil && summary.Total == nil {
		return nil
	}

	return summary
}

// AggregateRatings is the arithmetic mean over the non-nil overall
// ratings from experience submissions
func AggregateRatings(facts []extraction.ExperienceFacts) *float64 {
	var ratings []float64
	for _, f := range facts {
		if f.OverallRating != nil {
			ratings = append(ratings, *f.OverallRating)
		}
	}
	if len(ratings) == 0 {
		return nil
	}

	avg := mean(ratings)
	return &avg
}

// AggregateDemographics builds top-5 nationality and home-country
// tables and the full study-level distribution from basic-info and
// experience facts combined.
func AggregateDemographics(basic []extraction.BasicInfoFacts, experiences []extraction.ExperienceFacts) *models.DemographicsSummary {
	nationalities := newFrequencyTable()
	homeCountries := newFrequencyTable()
	studyLevels := newFrequencyTable()

	for _, f := range basic {
		if f.Nationality != nil {
			nationalities.Add(*f.Nationality)
		}
		if f.HomeCountry != nil {
			homeCountries.Add(*f.HomeCountry)
		}
		if f.StudyLevel != nil {
			studyLevels.Add(*f.StudyLevel)
		}
	}
	for _, f := range experiences {
		if f.Nationality != nil {
			nationalities.Add(*f.Nationality)
		}
		if f.HomeCountry != nil {
			homeCountries.Add(*f.HomeCountry)
		}
		if f.StudyLevel != nil {
			studyLevels.Add(*f.StudyLevel)
		}
	}

	if nationalities.Len() == 0 && homeCountries.Len() == 0 && studyLevels.Len() == 0 {
		return nil
	}

	return &models.DemographicsSummary{
		TopNationalities: nationalities.TopCounts(topDemographicCount),
		TopHomeCountries: homeCountries.TopCounts(topDemographicCount),
		StudyLevels:      studyLevels.Counts(),
	}
}

func numericStats(values []float64) *models.NumericStats {
	if len(values) == 0 {
		return nil
	}

	min, max := minMax(values)
	return &models.NumericStats{
		Average:    mean(values),
		Median:     median(values),
		Min:        min,
		Max:        max,
		SampleSize: len(values),
	}
}

// topCounts keeps only the top-n entries of a table as a count map
func topCounts(ft *frequencyTable, n int) map[string]int {
	top := ft.Top(n)
	if len(top) == 0 {
		return nil
	}
	out := make(map[string]int, len(top))
	for _, value := range top {
		out[value] = ft.counts[value]
	}
	return out
}
