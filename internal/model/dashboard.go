package model

import "strings"

// Dashboard holds the aggregates the endpoint computes over the active sheet.
type Dashboard struct {
	TempAvg          float64 `json:"tempAvg"`
	TempSum          float64 `json:"tempSum"`
	TempAnalysis     string  `json:"tempAnalysis"`
	HumidityAvg      float64 `json:"humidityAvg"`
	HumiditySum      float64 `json:"humiditySum"`
	HumidityAnalysis string  `json:"humidityAnalysis"`
	YearTempAvg      float64 `json:"yearTempAvg"`
	YearHumidityAvg  float64 `json:"yearHumidityAvg"`
	TotalRecords     int     `json:"totalRecords"`
	LastRecord       string  `json:"lastRecord"`
}

// Level is how an analysis label compares with its thresholds.
type Level string

const (
	LevelHigh   Level = "high"
	LevelLow    Level = "low"
	LevelNormal Level = "normal"
)

// AnalysisLevel maps an analysis label ("Alta", "Bajo", "Normal", ...) to a Level.
func AnalysisLevel(label string) Level {
	switch {
	case containsAny(label, "Alta", "Alto"):
		return LevelHigh
	case containsAny(label, "Baja", "Bajo"):
		return LevelLow
	default:
		return LevelNormal
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
