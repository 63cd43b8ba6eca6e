package claude

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/vbonduro/foodguard/internal/domain"
	"github.com/vbonduro/foodguard/internal/predict"
)

// maxTokens comfortably fits the single JSON object the prompt asks for.
const maxTokens = 512

type Predictor struct {
	client *anthropic.Client
	model  string
	now    func() time.Time
}

func NewPredictor(apiKey, model string, opts ...anthropic.ClientOption) *Predictor {
	return &Predictor{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
		now:    time.Now,
	}
}

func (p *Predictor) Predict(ctx context.Context, r io.Reader, mimeType string) (*domain.NutritionRecord, error) {
	imageData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.Message{{
			Role: anthropic.RoleUser,
			Content: []anthropic.MessageContent{
				anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
					anthropic.MessagesContentSourceTypeBase64,
					normaliseMIME(mimeType),
					base64.StdEncoding.EncodeToString(imageData),
				)),
				anthropic.NewTextMessageContent(predict.Prompt),
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	return predict.ParseRecord(resp.GetFirstContentText(), p.now())
}

// normaliseMIME maps upload MIME types to the set the Messages API accepts.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
