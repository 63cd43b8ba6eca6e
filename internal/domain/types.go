package domain

import (
	"fmt"
	"strconv"
	"time"
)

// NutritionRecord is a single food-intake entry as returned by the FoodGuard
// service. Nutrient fields are nil when the service did not report them.
type NutritionRecord struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Calorie        *float64 `json:"calorie,omitempty"`
	Carbohydrates  *float64 `json:"carbohydrates,omitempty"`
	Fats           *float64 `json:"fats,omitempty"`
	Sugar          *float64 `json:"sugar,omitempty"`
	Protein        *float64 `json:"protein,omitempty"`
	CreatedAt      string   `json:"createdAt"`
	Score          int      `json:"score"`
	Recommendation string   `json:"recommendation"`
}

// Amount returns the nutrient value or zero when it is unknown.
func Amount(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Float is a convenience for building optional nutrient values.
func Float(v float64) *float64 {
	return &v
}

// CreatedTime parses CreatedAt, a numeric string of epoch milliseconds.
func (r NutritionRecord) CreatedTime() (time.Time, error) {
	return ParseEpochMillis(r.CreatedAt)
}

func ParseEpochMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid createdAt %q: %w", s, err)
	}
	return time.UnixMilli(ms), nil
}

func EpochMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

type ScanStatus string

const (
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// Scan is the local log entry for one photo submitted for prediction.
type Scan struct {
	ID         string
	StorageKey string
	MimeType   string
	RecordID   string
	FoodName   string
	Status     ScanStatus
	Error      string
	CreatedAt  time.Time
}
