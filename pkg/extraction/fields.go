package extraction

// AccommodationFacts are the normalized facts from an accommodation
// submission
type AccommodationFacts struct {
	Type        *string
	MonthlyRent *float64
	Rating      *float64
}

// CourseFacts are the normalized facts from a course-matching submission
type CourseFacts struct {
	Department  *string
	CourseCount *float64
	Difficulty  *string
}

// ExpenseFacts are the normalized per-category amounts from a
// living-expenses submission
type ExpenseFacts struct {
	Rent          *float64
	Food          *float64
	Transport     *float64
	Entertainment *float64
	Total         *float64
}

// ExperienceFacts are the normalized facts from an experience submission
type ExperienceFacts struct {
	OverallRating *float64
	Title         *string
	Excerpt       *string
	Nationality   *string
	HomeCountry   *string
	StudyLevel    *string
}

// BasicInfoFacts are the normalized facts from a basic-info submission
type BasicInfoFacts struct {
	Nationality *string
	HomeCountry *string
	StudyLevel  *string
	University  *string
}

// Monthly rent precedence: cents paths win over unit paths, top-level
// wins over nested. First non-null candidate is the answer.
var monthlyRentCandidates = []Candidate{
	{Path: "monthlyRentCents", Divisor: 100},
	{Path: "accommodation.monthlyRentCents", Divisor: 100},
	{Path: "monthlyRent"},
	{Path: "accommodation.monthlyRent"},
}

// Accommodation extracts facts from an accommodation payload
func Accommodation(data map[string]any) AccommodationFacts {
	return AccommodationFacts{
		Type:        String(data, "accommodationType", "accommodation.type", "type"),
		MonthlyRent: Money(data, monthlyRentCandidates...),
		Rating: Rating(data,
			Candidate{Path: "rating"},
			Candidate{Path: "accommodation.rating"},
		),
	}
}

// Courses extracts facts from a course-matching payload
func Courses(data map[string]any) CourseFacts {
	return CourseFacts{
		Department: String(data, "department", "courses.department", "faculty"),
		CourseCount: Number(data,
			Candidate{Path: "courseCount"},
			Candidate{Path: "numberOfCourses"},
			Candidate{Path: "courses.count"},
		),
		Difficulty: String(data, "difficulty", "difficultyLevel", "courses.difficulty"),
	}
}

// Expenses extracts per-category amounts from a living-expenses payload.
// Every category follows the same precedence shape: cents paths, then
// top-level units, then the nested expenses object.
func Expenses(data map[string]any) ExpenseFacts {
	return ExpenseFacts{
		Rent:          expenseAmount(data, "rent"),
		Food:          expenseAmount(data, "food"),
		Transport:     expenseAmount(data, "transport"),
		Entertainment: expenseAmount(data, "entertainment"),
		Total: Money(data,
			Candidate{Path: "totalMonthlyBudgetCents", Divisor: 100},
			Candidate{Path: "totalMonthlyBudget"},
			Candidate{Path: "expenses.totalCents", Divisor: 100},
			Candidate{Path: "expenses.total"},
			Candidate{Path: "total"},
		),
	}
}

func expenseAmount(data map[string]any, category string) *float64 {
	return Money(data,
		Candidate{Path: category + "Cents", Divisor: 100},
		Candidate{Path: category},
		Candidate{Path: "expenses." + category + "Cents", Divisor: 100},
		Candidate{Path: "expenses." + category},
	)
}

// Experience extracts facts from an experience payload
func Experience(data map[string]any) ExperienceFacts {
	return ExperienceFacts{
		OverallRating: Rating(data,
			Candidate{Path: "overallRating"},
			Candidate{Path: "rating"},
			Candidate{Path: "experience.overallRating"},
		),
		Title:       String(data, "title", "headline"),
		Excerpt:     String(data, "excerpt", "summary", "story", "text"),
		Nationality: String(data, "nationality", "profile.nationality"),
		HomeCountry: String(data, "homeCountry", "profile.homeCountry"),
		StudyLevel:  String(data, "studyLevel", "profile.studyLevel", "levelOfStudy"),
	}
}

// BasicInfo extracts facts from a basic-info payload
func BasicInfo(data map[string]any) BasicInfoFacts {
	return BasicInfoFacts{
		Nationality: String(data, "nationality", "profile.nationality"),
		HomeCountry: String(data, "homeCountry", "profile.homeCountry"),
		StudyLevel:  String(data, "studyLevel", "profile.studyLevel", "levelOfStudy"),
		University:  String(data, "university", "homeUniversity", "profile.university"),
	}
}
