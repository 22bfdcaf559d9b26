// Package classifier wraps the remote spam/ham scoring model behind a
// narrow contract: classify(subject, body) -> {label, score}.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
)

// ErrClassificationFailed is returned for transport failures, malformed
// responses and labels outside the closed {ham, spam} set. The caller must
// treat it as terminal and record nothing: ambiguity never counts toward
// either bucket.
var ErrClassificationFailed = errors.New("classification failed")

const requestTimeout = 30 * time.Second

// Classifier scores a message.
type Classifier interface {
	Classify(ctx context.Context, msg models.Message) (models.Classification, error)
}

// HTTPClassifier posts messages to a remote model endpoint.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

func NewHTTPClassifier(url string) *HTTPClassifier {
	return &HTTPClassifier{
		url: url,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type classifyResponse struct {
	Label *string  `json:"label"`
	Score *float64 `json:"score"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, msg models.Message) (models.Classification, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return models.Classification{}, fmt.Errorf("%w: failed to encode request: %v", ErrClassificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return models.Classification{}, fmt.Errorf("%w: failed to create request: %v", ErrClassificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Classification{}, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Classification{}, fmt.Errorf("%w: unexpected status %d", ErrClassificationFailed, resp.StatusCode)
	}

	var decoded classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.Classification{}, fmt.Errorf("%w: failed to decode response: %v", ErrClassificationFailed, err)
	}
	if decoded.Label == nil {
		return models.Classification{}, fmt.Errorf("%w: response missing label", ErrClassificationFailed)
	}

	label, err := models.ParseLabel(*decoded.Label)
	if err != nil {
		return models.Classification{}, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	result := models.Classification{Label: label}
	if decoded.Score != nil {
		result.Score = *decoded.Score
	}
	return result, nil
}
