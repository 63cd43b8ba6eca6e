package predict

import (
	"context"
	"io"

	"github.com/vbonduro/foodguard/internal/domain"
)

// Prompt is the shared instruction used by the model-backed predictors.
const Prompt = `Identify the single main food or drink in this photo and estimate its nutrition for the portion shown.
Respond with one JSON object and nothing else, using these keys:
"name" (string), "calorie" (kcal), "carbohydrates", "fats", "sugar", "protein" (grams),
"score" (integer 0-10, 10 is healthiest), "recommendation" (one short sentence of advice).
Omit a nutrient key if you cannot estimate it.`

// Predictor turns a food photo into a nutrition record. foodapi.Client is
// the default implementation; the model-backed adapters in the claude and
// ollama subpackages estimate locally configured models instead.
type Predictor interface {
	Predict(ctx context.Context, r io.Reader, mimeType string) (*domain.NutritionRecord, error)
}
