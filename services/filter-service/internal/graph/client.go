package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
)

var (
	// ErrUpstreamUnavailable covers transport failures and unexpected HTTP
	// statuses from the provider.
	ErrUpstreamUnavailable = errors.New("mail provider unavailable")

	// ErrMalformedMessage means the provider's response decoded but lacked
	// required fields. Responses fail closed rather than propagating empty
	// values into classification.
	ErrMalformedMessage = errors.New("malformed message from provider")
)

const requestTimeout = 30 * time.Second

// HTTPClient talks to a Graph-style mail provider REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

type subscribeRequest struct {
	ChangeType         string `json:"changeType"`
	NotificationURL    string `json:"notificationUrl"`
	Resource           string `json:"resource"`
	ExpirationDateTime string `json:"expirationDateTime"`
	ClientState        string `json:"clientState"`
}

type subscriptionResponse struct {
	ID                 *string `json:"id"`
	ExpirationDateTime *string `json:"expirationDateTime"`
}

func (c *HTTPClient) Subscribe(ctx context.Context, token, resource, callbackURL string, lease time.Duration, clientState string) (CreatedSubscription, error) {
	body := subscribeRequest{
		ChangeType:         "created", // only new mail
		NotificationURL:    callbackURL,
		Resource:           resource,
		ExpirationDateTime: time.Now().Add(lease).UTC().Format(time.RFC3339),
		ClientState:        clientState,
	}

	var decoded subscriptionResponse
	if err := c.do(ctx, token, http.MethodPost, "/subscriptions", body, http.StatusCreated, &decoded); err != nil {
		return CreatedSubscription{}, err
	}
	if decoded.ID == nil || *decoded.ID == "" {
		return CreatedSubscription{}, fmt.Errorf("%w: subscribe response missing id", ErrUpstreamUnavailable)
	}

	created := CreatedSubscription{ExternalID: *decoded.ID}
	if decoded.ExpirationDateTime != nil {
		if expires, err := time.Parse(time.RFC3339, *decoded.ExpirationDateTime); err == nil {
			created.ExpiresAt = expires
		}
	}
	if created.ExpiresAt.IsZero() {
		created.ExpiresAt = time.Now().Add(lease)
	}
	return created, nil
}

func (c *HTTPClient) Renew(ctx context.Context, token, externalID string, lease time.Duration) (time.Time, error) {
	body := map[string]string{
		"expirationDateTime": time.Now().Add(lease).UTC().Format(time.RFC3339),
	}

	var decoded subscriptionResponse
	path := "/subscriptions/" + externalID
	if err := c.do(ctx, token, http.MethodPatch, path, body, http.StatusOK, &decoded); err != nil {
		return time.Time{}, err
	}
	if decoded.ExpirationDateTime != nil {
		if expires, err := time.Parse(time.RFC3339, *decoded.ExpirationDateTime); err == nil {
			return expires, nil
		}
	}
	return time.Now().Add(lease), nil
}

func (c *HTTPClient) Unsubscribe(ctx context.Context, token, externalID string) error {
	return c.do(ctx, token, http.MethodDelete, "/subscriptions/"+externalID, nil, http.StatusNoContent, nil)
}

// messageResponse uses pointer fields so missing keys are distinguishable
// from empty values and can be rejected as malformed.
type messageResponse struct {
	Subject *string `json:"subject"`
	Body    *struct {
		Content *string `json:"content"`
	} `json:"body"`
}

func (c *HTTPClient) GetMessage(ctx context.Context, token, messageID string) (models.Message, error) {
	var decoded messageResponse
	if err := c.do(ctx, token, http.MethodGet, "/me/messages/"+messageID, nil, http.StatusOK, &decoded); err != nil {
		return models.Message{}, err
	}
	if decoded.Subject == nil || decoded.Body == nil || decoded.Body.Content == nil {
		return models.Message{}, fmt.Errorf("%w: missing subject or body", ErrMalformedMessage)
	}
	return models.Message{
		Subject: *decoded.Subject,
		Body:    *decoded.Body.Content,
	}, nil
}

func (c *HTTPClient) MoveMessage(ctx context.Context, token, messageID, destination string) error {
	body := map[string]string{"destinationId": destination}
	path := "/me/messages/" + messageID + "/move"
	return c.do(ctx, token, http.MethodPost, path, body, http.StatusCreated, nil)
}

// do performs one provider request and decodes the response into out when
// the status matches. Any other status maps to ErrUpstreamUnavailable.
func (c *HTTPClient) do(ctx context.Context, token, method, path string, body interface{}, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: unexpected status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, string(detail))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", ErrMalformedMessage, err)
		}
	}
	return nil
}
