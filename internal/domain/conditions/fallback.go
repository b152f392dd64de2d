package conditions

import "time"

// forecastSlots are the local times reported per fallback forecast day.
var forecastSlots = []string{"09:00", "12:00", "15:00", "18:00"}

// fallbackReading is substituted when the weather source cannot answer.
func fallbackReading(now time.Time) WeatherReading {
	gust := 8.0
	visibility := 10.0
	return WeatherReading{
		Timestamp:          now.UTC().Truncate(time.Minute),
		Temperature:        15.0,
		WindSpeed:          5.0,
		WindGust:           &gust,
		WindDirection:      180,
		Precipitation:      0.0,
		Humidity:           65,
		Pressure:           1013.0,
		Visibility:         &visibility,
		WeatherDescription: "Partly cloudy",
		IconCode:           "02d",
		Source:             SourceFallback,
	}
}

// fallbackWater has no measurements; there is no water data provider.
func fallbackWater(now time.Time) WaterReading {
	return WaterReading{Timestamp: now.UTC().Truncate(time.Minute)}
}

// fallbackForecast builds a synthetic forecast with slowly rising wind.
func fallbackForecast(now time.Time, days int) []ForecastEntry {
	today := now.UTC()
	entries := make([]ForecastEntry, 0, days*len(forecastSlots))
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, i).Format("2006-01-02")
		for _, slot := range forecastSlots {
			tMin, tMax := 12.0, 18.0
			gust := 8.0 + float64(i)*0.5
			entries = append(entries, ForecastEntry{
				Date:                     date,
				Time:                     slot,
				TemperatureMin:           &tMin,
				TemperatureMax:           &tMax,
				WindSpeed:                5.0 + float64(i)*0.5,
				WindGust:                 &gust,
				WindDirection:            180,
				PrecipitationProbability: 20,
				WeatherDescription:       "Partly cloudy",
				IconCode:                 "02d",
			})
		}
	}
	return entries
}
