package scoring

import "strings"

// SpecialtyClass groups provider specialties by how quickly their insurance
// panel information goes stale. Mental-health panels churn fastest;
// hospital-based contracts are the most stable.
type SpecialtyClass string

const (
	ClassMentalHealth  SpecialtyClass = "mental-health"
	ClassPrimaryCare   SpecialtyClass = "primary-care"
	ClassHospitalBased SpecialtyClass = "hospital-based"
	ClassSpecialist    SpecialtyClass = "specialist" // default
)

// freshnessThresholdDays maps a specialty class to the number of days after
// which a verification is considered stale.
var freshnessThresholdDays = map[SpecialtyClass]int{
	ClassMentalHealth:  30,
	ClassPrimaryCare:   60,
	ClassHospitalBased: 90,
	ClassSpecialist:    60,
}

// specialtyKeywords drives the substring classifier. First matching class
// wins; order matters because "pediatric emergency" should classify as
// hospital-based before primary care.
var specialtyKeywords = []struct {
	class    SpecialtyClass
	keywords []string
}{
	{ClassMentalHealth, []string{
		"psychiat", "psycholog", "mental health", "behavioral health",
		"counsel", "therapist", "therapy", "social work", "addiction",
		"substance abuse",
	}},
	{ClassHospitalBased, []string{
		"hospital", "emergency", "anesthesi", "radiolog", "patholog",
		"intensivist", "critical care", "neonatolog",
	}},
	{ClassPrimaryCare, []string{
		"family medicine", "family practice", "internal medicine",
		"general practice", "primary care", "pediatric", "geriatric",
	}},
}

// ClassifySpecialty maps free-text provider specialty to a SpecialtyClass via
// case-insensitive keyword match. Unknown or empty text falls back to the
// specialist default.
func ClassifySpecialty(specialty string) SpecialtyClass {
	s := strings.ToLower(strings.TrimSpace(specialty))
	if s == "" {
		return ClassSpecialist
	}
	for _, entry := range specialtyKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(s, kw) {
				return entry.class
			}
		}
	}
	return ClassSpecialist
}

// FreshnessThresholdDays returns the staleness threshold in days for a
// free-text specialty.
func FreshnessThresholdDays(specialty string) int {
	return freshnessThresholdDays[ClassifySpecialty(specialty)]
}
