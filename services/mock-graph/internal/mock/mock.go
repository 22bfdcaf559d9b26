// Package mock holds the in-memory state behind the development mail
// provider: subscriptions, messages, and a naive keyword classifier. It
// also plays the provider's active role, performing the validation
// handshake and delivering notifications to subscriber callbacks.
package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Subscription struct {
	ID              string    `json:"id"`
	Resource        string    `json:"resource"`
	NotificationURL string    `json:"notificationUrl"`
	ClientState     string    `json:"clientState"`
	ExpiresAt       time.Time `json:"expirationDateTime"`
}

type Message struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

var (
	mu            sync.Mutex
	subscriptions = map[string]Subscription{}
	messages      = map[string]Message{}

	httpClient = &http.Client{Timeout: 10 * time.Second}

	spamWords = []string{"winner", "free", "prize", "lottery", "viagra", "bitcoin"}
)

// CreateSubscription validates the callback with the provider handshake
// (the token must be echoed back verbatim) before registering it.
func CreateSubscription(resource, notificationURL, clientState string, expiresAt time.Time) (Subscription, error) {
	if err := validateCallback(notificationURL); err != nil {
		return Subscription{}, err
	}

	sub := Subscription{
		ID:              uuid.NewString(),
		Resource:        resource,
		NotificationURL: notificationURL,
		ClientState:     clientState,
		ExpiresAt:       expiresAt,
	}

	mu.Lock()
	subscriptions[sub.ID] = sub
	mu.Unlock()
	return sub, nil
}

func validateCallback(notificationURL string) error {
	token := uuid.NewString()
	target := notificationURL
	if strings.Contains(target, "?") {
		target += "&validationToken=" + url.QueryEscape(token)
	} else {
		target += "?validationToken=" + url.QueryEscape(token)
	}

	resp, err := httpClient.Post(target, "text/plain", nil)
	if err != nil {
		return fmt.Errorf("callback unreachable: %w", err)
	}
	defer resp.Body.Close()

	echoed, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(echoed) != token {
		return fmt.Errorf("callback failed validation handshake (status %d)", resp.StatusCode)
	}
	return nil
}

func RenewSubscription(id string, expiresAt time.Time) (Subscription, bool) {
	mu.Lock()
	defer mu.Unlock()
	sub, ok := subscriptions[id]
	if !ok {
		return Subscription{}, false
	}
	sub.ExpiresAt = expiresAt
	subscriptions[id] = sub
	return sub, true
}

func DeleteSubscription(id string) bool {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := subscriptions[id]; !ok {
		return false
	}
	delete(subscriptions, id)
	return true
}

func GetMessage(id string) (Message, bool) {
	mu.Lock()
	defer mu.Unlock()
	msg, ok := messages[id]
	return msg, ok
}

// DeliverMessage stores a message and pushes a notification batch to the
// subscription's callback, the way the real provider announces new mail.
func DeliverMessage(subscriptionID, subject, body string) (Message, error) {
	mu.Lock()
	sub, ok := subscriptions[subscriptionID]
	if !ok {
		mu.Unlock()
		return Message{}, fmt.Errorf("unknown subscription %s", subscriptionID)
	}
	msg := Message{ID: uuid.NewString(), Subject: subject, Body: body}
	messages[msg.ID] = msg
	mu.Unlock()

	batch := map[string]interface{}{
		"value": []map[string]interface{}{
			{
				"subscriptionId": sub.ID,
				"clientState":    sub.ClientState,
				"resourceData":   map[string]string{"id": msg.ID},
			},
		},
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return Message{}, err
	}

	resp, err := httpClient.Post(sub.NotificationURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return Message{}, fmt.Errorf("notification delivery failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return Message{}, fmt.Errorf("callback answered %d, expected 202", resp.StatusCode)
	}
	return msg, nil
}

// Classify is a toy keyword model: any spam word in the subject or body
// marks the message spam.
func Classify(subject, body string) (label string, score float64) {
	haystack := strings.ToLower(subject + " " + body)
	for _, word := range spamWords {
		if strings.Contains(haystack, word) {
			return "spam", 0.95
		}
	}
	return "ham", 0.88
}
