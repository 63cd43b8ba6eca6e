package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/foodguard/internal/domain"
	"github.com/vbonduro/foodguard/internal/predict"
)

func TestOllamaPredict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llava", req.Model)
		assert.Equal(t, "json", req.Format)
		assert.False(t, req.Stream)
		assert.Len(t, req.Images, 1)

		resp := map[string]any{
			"model":    req.Model,
			"response": `{"name":"Pisang Goreng","carbohydrates":35,"fats":10,"sugar":14,"score":4}`,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	imageData := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	record, err := NewPredictor(server.URL, "llava").Predict(context.Background(), bytes.NewReader(imageData), "image/jpeg")

	require.NoError(t, err)
	assert.Equal(t, "Pisang Goreng", record.Name)
	assert.Equal(t, 14.0, domain.Amount(record.Sugar))
	assert.Nil(t, record.Protein)
	assert.Equal(t, 4, record.Score)
}

func TestOllamaPredictNetworkError(t *testing.T) {
	_, err := NewPredictor("http://localhost:99999", "llava").Predict(context.Background(), bytes.NewReader([]byte{0xFF}), "image/jpeg")
	assert.Error(t, err)
}

func TestOllamaPredictServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewPredictor(server.URL, "llava").Predict(context.Background(), bytes.NewReader([]byte{0xFF}), "image/jpeg")
	assert.Error(t, err)
}

func TestOllamaPredictUnparseableReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"I am not sure what this is."}`))
	}))
	defer server.Close()

	_, err := NewPredictor(server.URL, "llava").Predict(context.Background(), bytes.NewReader([]byte{0xFF}), "image/jpeg")
	assert.ErrorIs(t, err, predict.ErrNoPrediction)
}

func TestOllamaPredictReadError(t *testing.T) {
	_, err := NewPredictor("http://localhost:11434", "llava").Predict(context.Background(), &errReader{}, "image/jpeg")
	assert.Error(t, err)
}

type errReader struct{}

func (e *errReader) Read(_ []byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}
