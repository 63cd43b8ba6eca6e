package predict

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vbonduro/foodguard/internal/domain"
)

var ErrNoPrediction = errors.New("model reply contains no nutrition object")

type modelReply struct {
	Name           string   `json:"name"`
	Calorie        *float64 `json:"calorie"`
	Carbohydrates  *float64 `json:"carbohydrates"`
	Fats           *float64 `json:"fats"`
	Sugar          *float64 `json:"sugar"`
	Protein        *float64 `json:"protein"`
	Score          float64  `json:"score"`
	Recommendation string   `json:"recommendation"`
}

// ParseRecord extracts the first JSON object from a model reply. Models
// often wrap JSON in prose or code fences, so everything outside the
// outermost braces is ignored. The record gets a fresh id and now as its
// creation time, since no service assigned them.
func ParseRecord(raw string, now time.Time) (*domain.NutritionRecord, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, ErrNoPrediction
	}

	var reply modelReply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPrediction, err)
	}
	reply.Name = strings.TrimSpace(reply.Name)
	if reply.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrNoPrediction)
	}

	return &domain.NutritionRecord{
		ID:             uuid.NewString(),
		Name:           reply.Name,
		Calorie:        nonNegative(reply.Calorie),
		Carbohydrates:  nonNegative(reply.Carbohydrates),
		Fats:           nonNegative(reply.Fats),
		Sugar:          nonNegative(reply.Sugar),
		Protein:        nonNegative(reply.Protein),
		CreatedAt:      domain.EpochMillis(now),
		Score:          clampScore(reply.Score),
		Recommendation: strings.TrimSpace(reply.Recommendation),
	}, nil
}

func nonNegative(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	return v
}

func clampScore(s float64) int {
	switch {
	case s < 0:
		return 0
	case s > 10:
		return 10
	default:
		return int(s + 0.5)
	}
}
