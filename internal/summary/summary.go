// Package summary aggregates nutrition records into the consumption
// dashboard: period totals, a bar series for one nutrient, and today's
// sugar intake against the daily limit.
package summary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vbonduro/foodguard/internal/domain"
)

// DefaultSugarLimit is the recommended daily sugar intake in grams.
const DefaultSugarLimit = 25.0

type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

var Periods = []Period{Weekly, Daily, Monthly}

type Nutrient string

const (
	Carbohydrates Nutrient = "carbohydrates"
	Fats          Nutrient = "fats"
	Sugar         Nutrient = "sugar"
)

var Nutrients = []Nutrient{Carbohydrates, Fats, Sugar}

// ParsePeriod accepts any case. An empty string selects Weekly.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "weekly":
		return Weekly, nil
	case "daily":
		return Daily, nil
	case "monthly":
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// ParseNutrient accepts the short dashboard labels as well. An empty string
// selects Carbohydrates.
func ParseNutrient(s string) (Nutrient, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "carbohydrates", "carbo", "carbs":
		return Carbohydrates, nil
	case "fats", "fat":
		return Fats, nil
	case "sugar":
		return Sugar, nil
	}
	return "", fmt.Errorf("unknown nutrient %q", s)
}

type Totals struct {
	Calorie       float64
	Carbohydrates float64
	Fats          float64
	Sugar         float64
	Protein       float64
}

func (t *Totals) add(r domain.NutritionRecord) {
	t.Calorie += domain.Amount(r.Calorie)
	t.Carbohydrates += domain.Amount(r.Carbohydrates)
	t.Fats += domain.Amount(r.Fats)
	t.Sugar += domain.Amount(r.Sugar)
	t.Protein += domain.Amount(r.Protein)
}

type Bar struct {
	Label string
	Value float64
}

type Summary struct {
	Period   Period
	Nutrient Nutrient
	From     time.Time
	To       time.Time
	Count    int
	Totals   Totals
	Bars     []Bar
	// Peak is the largest bar value, handy for scaling a chart.
	Peak float64

	SugarToday float64
	SugarLimit float64
}

func (s Summary) OverSugarLimit() bool {
	return s.SugarToday > s.SugarLimit
}

func (s Summary) SugarRemaining() float64 {
	if s.SugarToday >= s.SugarLimit {
		return 0
	}
	return s.SugarLimit - s.SugarToday
}

var weekdayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Compute summarises records falling in the period containing now, with
// calendar boundaries taken in loc. Records with an unparseable createdAt
// are ignored. A non-positive sugarLimit selects DefaultSugarLimit.
func Compute(records []domain.NutritionRecord, period Period, nutrient Nutrient, now time.Time, loc *time.Location, sugarLimit float64) Summary {
	if sugarLimit <= 0 {
		sugarLimit = DefaultSugarLimit
	}
	now = now.In(loc)
	today := startOfDay(now)
	from, to := bounds(period, today)

	s := Summary{
		Period:     period,
		Nutrient:   nutrient,
		From:       from,
		To:         to,
		SugarLimit: sugarLimit,
	}

	type timed struct {
		at time.Time
		r  domain.NutritionRecord
	}
	var inPeriod []timed
	for _, r := range records {
		at, err := r.CreatedTime()
		if err != nil {
			continue
		}
		at = at.In(loc)
		if !at.Before(today) && at.Before(today.AddDate(0, 0, 1)) {
			s.SugarToday += domain.Amount(r.Sugar)
		}
		if at.Before(from) || !at.Before(to) {
			continue
		}
		inPeriod = append(inPeriod, timed{at: at, r: r})
		s.Count++
		s.Totals.add(r)
	}

	switch period {
	case Daily:
		sort.SliceStable(inPeriod, func(i, j int) bool { return inPeriod[i].at.Before(inPeriod[j].at) })
		for _, t := range inPeriod {
			s.Bars = append(s.Bars, Bar{Label: t.at.Format("15:04"), Value: value(t.r, nutrient)})
		}
	case Monthly:
		s.Bars = make([]Bar, 5)
		for i := range s.Bars {
			s.Bars[i].Label = fmt.Sprintf("W%d", i+1)
		}
		for _, t := range inPeriod {
			s.Bars[(t.at.Day()-1)/7].Value += value(t.r, nutrient)
		}
	default:
		s.Bars = make([]Bar, len(weekdayLabels))
		for i, l := range weekdayLabels {
			s.Bars[i].Label = l
		}
		for _, t := range inPeriod {
			s.Bars[mondayIndex(t.at.Weekday())].Value += value(t.r, nutrient)
		}
	}

	for _, b := range s.Bars {
		if b.Value > s.Peak {
			s.Peak = b.Value
		}
	}
	return s
}

func bounds(period Period, today time.Time) (time.Time, time.Time) {
	switch period {
	case Daily:
		return today, today.AddDate(0, 0, 1)
	case Monthly:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return first, first.AddDate(0, 1, 0)
	default:
		monday := today.AddDate(0, 0, -mondayIndex(today.Weekday()))
		return monday, monday.AddDate(0, 0, 7)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func value(r domain.NutritionRecord, n Nutrient) float64 {
	switch n {
	case Fats:
		return domain.Amount(r.Fats)
	case Sugar:
		return domain.Amount(r.Sugar)
	default:
		return domain.Amount(r.Carbohydrates)
	}
}
