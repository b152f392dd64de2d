package rowability

// Category buckets a score into a label shown to rowers.
type Category string

const (
	CategoryExcellent Category = "excellent"
	CategoryGood      Category = "good"
	CategoryFair      Category = "fair"
	CategoryPoor      Category = "poor"
	CategoryDangerous Category = "dangerous"
)

// Impact describes how strongly a factor moved the score.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactMinor    Impact = "minor"
	ImpactModerate Impact = "moderate"
	ImpactMajor    Impact = "major"
)

// Factor names, reported in evaluation order.
const (
	FactorWindSpeed     = "wind_speed"
	FactorWindGust      = "wind_gust"
	FactorTemperature   = "temperature"
	FactorPrecipitation = "precipitation"
	FactorVisibility    = "visibility"
)

// Conditions are the environmental readings fed into Compute.
// Nil optional fields fall back to their documented defaults.
type Conditions struct {
	WindSpeed     float64  `json:"wind_speed"`    // m/s
	WindGust      *float64 `json:"wind_gust"`     // m/s
	Temperature   *float64 `json:"temperature"`   // °C, defaults to 20
	Precipitation *float64 `json:"precipitation"` // mm, defaults to 0
	Visibility    *float64 `json:"visibility"`    // km
}

// Result is the scoring outcome for one set of conditions.
type Result struct {
	Score           int      `json:"score"`
	Category        Category `json:"category"`
	Factors         []Factor `json:"factors"`
	Recommendations []string `json:"recommendations"`
}

// Factor is one scored input dimension.
type Factor struct {
	Factor      string  `json:"factor"`
	Value       float64 `json:"value"`
	Impact      Impact  `json:"impact"`
	Description string  `json:"description"`
}
