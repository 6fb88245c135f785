// Package cognitive turns aggregated AI usage hours and a user's age into
// the fixed cognitive scores and impact assessments reported by the API.
// Everything here is deterministic: identical inputs yield identical outputs.
package cognitive

import "strconv"

// DefaultAge is used when a profile carries no age.
const DefaultAge = 30

type Scores struct {
	AIUsageHours          float64 `json:"ai_usage_hours"`
	BrainActivityScore    float64 `json:"brain_activity_score"`
	CognitiveLoadScore    float64 `json:"cognitive_load_score"`
	MemoryUsageScore      float64 `json:"memory_usage_score"`
	CriticalThinkingScore float64 `json:"critical_thinking_score"`
	CreativityScore       float64 `json:"creativity_score"`
}

// Compute scores a window of usage. Negative hours are treated as zero.
func Compute(hours float64) Scores {
	if hours < 0 {
		hours = 0
	}
	return Scores{
		AIUsageHours:          hours,
		BrainActivityScore:    clamp(100 - hours*10),
		CognitiveLoadScore:    clamp(hours * 15),
		MemoryUsageScore:      clamp(100 - hours*8),
		CriticalThinkingScore: clamp(100 - hours*12),
		CreativityScore:       clamp(100 - hours*10),
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Thresholds are average daily hours at which an impact level starts.
type Thresholds struct {
	Medium float64
	High   float64
}

func ThresholdsFor(age int) Thresholds {
	switch {
	case age < 18:
		return Thresholds{Medium: 1, High: 2}
	case age < 30:
		return Thresholds{Medium: 2, High: 4}
	case age < 50:
		return Thresholds{Medium: 1.5, High: 3}
	default:
		return Thresholds{Medium: 1, High: 2}
	}
}

type Assessment struct {
	Age              int
	TotalHours       float64
	AvgDailyHours    float64
	Level            Level
	RiskFactors      []string
	Recommendations  []string
	AgeSpecificNotes string
}

// Assess classifies totalHours spread over days for a user of the given age.
// days below one is treated as a single day.
func Assess(totalHours float64, days int, age int) Assessment {
	if totalHours < 0 {
		totalHours = 0
	}
	if days < 1 {
		days = 1
	}
	avg := totalHours / float64(days)
	thresholds := ThresholdsFor(age)

	a := Assessment{
		Age:              age,
		TotalHours:       totalHours,
		AvgDailyHours:    avg,
		Level:            LevelLow,
		RiskFactors:      []string{},
		Recommendations:  []string{},
		AgeSpecificNotes: ageNotes(age),
	}

	switch {
	case avg >= thresholds.High:
		a.Level = LevelHigh
		a.RiskFactors = append(a.RiskFactors,
			"Excessive AI dependency may reduce cognitive engagement",
			"Potential decline in problem-solving skills",
			"Reduced memory formation and retention",
		)
		if age < 18 {
			a.RiskFactors = append(a.RiskFactors, "Critical: May impact brain development in adolescents")
		} else if age >= 50 {
			a.RiskFactors = append(a.RiskFactors, "Higher risk of cognitive decline in older adults")
		}
	case avg >= thresholds.Medium:
		a.Level = LevelMedium
		a.RiskFactors = append(a.RiskFactors,
			"Moderate AI dependency detected",
			"May affect critical thinking abilities",
		)
	}

	if avg > 0 {
		a.Recommendations = append(a.Recommendations,
			"Limit AI usage to "+strconv.FormatFloat(thresholds.Medium, 'f', -1, 64)+" hours per day",
			"Engage in daily brain exercises (see suggested tasks)",
			"Practice tasks manually before using AI assistance",
		)
	}
	if age < 18 {
		a.Recommendations = append(a.Recommendations,
			"Prioritize learning fundamentals without AI",
			"Balance AI use with traditional learning methods",
		)
	} else if age >= 50 {
		a.Recommendations = append(a.Recommendations,
			"Focus on activities that maintain cognitive reserve",
			"Regular physical exercise to support brain health",
		)
	}
	return a
}

func ageNotes(age int) string {
	switch {
	case age < 18:
		return "Children and adolescents are more vulnerable to cognitive dependency"
	case age >= 50:
		return "Older adults should prioritize cognitive maintenance activities"
	default:
		return "Maintain balance between AI assistance and independent thinking"
	}
}
