package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
)

func classify(t *testing.T, handler http.HandlerFunc) (models.Classification, error) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewHTTPClassifier(srv.URL)
	return client.Classify(context.Background(), models.Message{Subject: "Hello", Body: "World"})
}

func TestClassifySpam(t *testing.T) {
	verdict, err := classify(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.Message
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject != "Hello" {
			t.Errorf("unexpected request: %+v err=%v", req, err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"label": "spam", "score": 0.97})
	})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if verdict.Label != models.LabelSpam || verdict.Score != 0.97 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestClassifyFailsClosed(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "unrecognized label",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"label": "maybe", "score": 0.5})
			},
		},
		{
			name: "missing label",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"score": 0.5})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model loading", http.StatusInternalServerError)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := classify(t, tc.handler)
			if !errors.Is(err, ErrClassificationFailed) {
				t.Fatalf("expected ErrClassificationFailed, got %v", err)
			}
		})
	}
}
