// Package foodapi is the HTTP client for the FoodGuard nutrition service.
package foodapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vbonduro/foodguard/internal/domain"
)

const (
	loginPath      = "/api/v1/auth/login"
	registerPath   = "/api/v1/auth/register"
	nutritionsPath = "/api/v1/nutritions"
	predictionPath = "/api/v1/nutritions/predic"

	// PictureField is the multipart field the prediction endpoint reads.
	PictureField = "picture"
	// The service only accepts JPEG parts, whatever the source format.
	pictureContentType = "image/jpeg"
	defaultFilename    = "photo.jpg"
)

var (
	ErrFetchNutritions = errors.New("failed to fetch nutritions")
	ErrPrediction      = errors.New("failed to fetch nutrition prediction")
)

// AuthError is returned by Login and Register when the service rejects the
// request. Message is the server-supplied text and may be empty.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth request rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("auth request rejected with status %d: %s", e.StatusCode, e.Message)
}

// TokenSource supplies the bearer token for authenticated requests. An empty
// token means the request is sent without an Authorization header.
type TokenSource interface {
	Token() string
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient creates a client for baseURL. A zero timeout leaves the
// transport default in place. tokens may be nil.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

type authResponse struct {
	AccessToken string `json:"accessToken"`
	Message     string `json:"message"`
}

// Login exchanges credentials for an access token. The call only succeeds
// when the status is 2xx and the body carries a non-empty accessToken.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := c.postJSON(ctx, "login", loginPath, credentials{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	var body authResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: body.Message}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode login response: %w", decodeErr)
	}
	if body.AccessToken == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Message: body.Message}
	}
	return body.AccessToken, nil
}

func (c *Client) Register(ctx context.Context, email, username, password string) error {
	resp, err := c.postJSON(ctx, "register", registerPath, credentials{Email: email, Password: password, Username: username})
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body authResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &AuthError{StatusCode: resp.StatusCode, Message: body.Message}
	}
	return nil
}

// FetchNutritions returns the user's history in the order the service sends
// it (newest first by contract).
func (c *Client) FetchNutritions(ctx context.Context) ([]domain.NutritionRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+nutritionsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, "nutritions", true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchNutritions, err)
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchNutritions, resp.StatusCode)
	}

	var records []domain.NutritionRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrFetchNutritions, err)
	}
	return records, nil
}

// FetchNutritionPrediction uploads the image at imagePath and returns the
// service's prediction.
func (c *Client) FetchNutritionPrediction(ctx context.Context, imagePath string) (*domain.NutritionRecord, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("failed to close image file", "path", imagePath, "error", err)
		}
	}()

	return c.upload(ctx, f, filepath.Base(imagePath))
}

// Predict uploads image data read from r. The part is always labelled
// image/jpeg, so mimeType is not forwarded.
func (c *Client) Predict(ctx context.Context, r io.Reader, _ string) (*domain.NutritionRecord, error) {
	return c.upload(ctx, r, defaultFilename)
}

func (c *Client) upload(ctx context.Context, r io.Reader, filename string) (*domain.NutritionRecord, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     PictureField,
		"filename": filename,
	}))
	header.Set("Content-Type", pictureContentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictionPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req, "predict", true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrediction, err)
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrPrediction, resp.StatusCode)
	}

	var record domain.NutritionRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPrediction, err)
	}
	return &record, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, endpoint, false)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", endpoint, err)
	}
	return resp, nil
}

// do sends req, attaching the bearer token when authenticated is set and a
// token is available, and records request metrics.
func (c *Client) do(req *http.Request, endpoint string, authenticated bool) (*http.Response, error) {
	if authenticated && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	observe(endpoint, resp, err, time.Since(start))
	return resp, err
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Error("failed to close response body", "url", resp.Request.URL.Path, "error", err)
	}
}
