package rowability

const (
	maxScore = 10
	minScore = 1

	defaultTemperature   = 20.0
	defaultPrecipitation = 0.0

	gustRatio = 1.5
)

// Compute scores the given conditions on a 1-10 scale.
//
// Rules are evaluated in a fixed order (wind speed, wind gust, temperature,
// precipitation, visibility); each may lower the running score and append a
// factor and recommendation. The category recommendation is always last.
func Compute(c Conditions) Result {
	temperature := valueOr(c.Temperature, defaultTemperature)
	precipitation := valueOr(c.Precipitation, defaultPrecipitation)

	score := maxScore
	factors := make([]Factor, 0, 5)
	recommendations := make([]string, 0, 6)

	ws := c.WindSpeed
	switch {
	case ws <= 3:
		factors = append(factors, Factor{FactorWindSpeed, ws, ImpactPositive, "Light winds ideal for rowing"})
	case ws <= 6:
		score--
		factors = append(factors, Factor{FactorWindSpeed, ws, ImpactMinor, "Moderate winds, manageable"})
	case ws <= 10:
		score -= 2
		factors = append(factors, Factor{FactorWindSpeed, ws, ImpactModerate, "Strong winds, challenging conditions"})
		recommendations = append(recommendations, "Consider shorter sessions or sheltered areas")
	default:
		score -= 4
		factors = append(factors, Factor{FactorWindSpeed, ws, ImpactMajor, "Very strong winds, potentially dangerous"})
		recommendations = append(recommendations, "Not recommended for rowing today")
	}

	if c.WindGust != nil && *c.WindGust > ws*gustRatio {
		score--
		factors = append(factors, Factor{FactorWindGust, *c.WindGust, ImpactModerate, "Gusty conditions, unpredictable"})
		recommendations = append(recommendations, "Be prepared for sudden wind changes")
	}

	t := temperature
	switch {
	case t >= 10 && t <= 25:
		factors = append(factors, Factor{FactorTemperature, t, ImpactPositive, "Comfortable temperature for rowing"})
	case (t >= 5 && t < 10) || (t > 25 && t <= 30):
		score--
		factors = append(factors, Factor{FactorTemperature, t, ImpactMinor, "Temperature outside ideal range"})
		if t < 10 {
			recommendations = append(recommendations, "Dress warmly, consider thermal gear")
		} else {
			recommendations = append(recommendations, "Stay hydrated, consider early morning sessions")
		}
	default:
		score -= 2
		factors = append(factors, Factor{FactorTemperature, t, ImpactModerate, "Extreme temperature conditions"})
		if t < 5 {
			recommendations = append(recommendations, "Very cold, consider indoor alternatives")
		} else {
			recommendations = append(recommendations, "Very hot, consider early morning or evening")
		}
	}

	// No positive factor for dry or clear conditions.
	if precipitation > 5 {
		score--
		factors = append(factors, Factor{FactorPrecipitation, precipitation, ImpactMinor, "Wet conditions"})
		recommendations = append(recommendations, "Bring waterproof gear")
	}

	// A zero reading means the provider had no value, not fog.
	if c.Visibility != nil && *c.Visibility > 0 && *c.Visibility < 5 {
		score--
		factors = append(factors, Factor{FactorVisibility, *c.Visibility, ImpactModerate, "Poor visibility"})
		recommendations = append(recommendations, "Consider postponing or choose well-lit areas")
	}

	score = clamp(score)
	category := CategoryFor(score)
	recommendations = append(recommendations, summaryFor(category))

	return Result{
		Score:           score,
		Category:        category,
		Factors:         factors,
		Recommendations: recommendations,
	}
}

// CategoryFor maps a clamped score to its category.
func CategoryFor(score int) Category {
	switch {
	case score >= 8:
		return CategoryExcellent
	case score >= 6:
		return CategoryGood
	case score >= 4:
		return CategoryFair
	case score >= 2:
		return CategoryPoor
	default:
		return CategoryDangerous
	}
}

func summaryFor(category Category) string {
	switch category {
	case CategoryExcellent:
		return "Excellent conditions for rowing!"
	case CategoryGood:
		return "Good conditions, enjoy your row!"
	case CategoryFair:
		return "Fair conditions, proceed with caution"
	case CategoryPoor:
		return "Poor conditions, consider alternatives"
	default:
		return "Dangerous conditions, not recommended for rowing"
	}
}

func clamp(score int) int {
	if score > maxScore {
		return maxScore
	}
	if score < minScore {
		return minScore
	}
	return score
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
