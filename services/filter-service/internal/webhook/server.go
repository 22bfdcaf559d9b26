// Package webhook is the inbound HTTP surface: the provider's notification
// channel plus the small control API the dashboard frontend calls.
package webhook

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/pipeline"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/store"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/subscription"
)

const correlateTimeout = 30 * time.Second

type Server struct {
	stores     store.Stores
	manager    *subscription.Manager
	dispatcher *pipeline.Dispatcher
}

func NewServer(stores store.Stores, manager *subscription.Manager, dispatcher *pipeline.Dispatcher) *Server {
	return &Server{
		stores:     stores,
		manager:    manager,
		dispatcher: dispatcher,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/listen", s.handleListen)
	r.POST("/get-stats", s.handleGetStats)
	r.POST("/create-subscription", s.handleCreateSubscription)
	r.POST("/delete-subscription", s.handleDeleteSubscription)
	r.POST("/save-token", s.handleSaveToken)

	return r
}

// notificationEntry is the provider's wire shape for one webhook entry.
type notificationEntry struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientState    string `json:"clientState"`
	ResourceData   struct {
		ID string `json:"id"`
	} `json:"resourceData"`
}

type notificationBatch struct {
	Value []notificationEntry `json:"value"`
}

// handleListen serves both shapes of the provider's channel. A validation
// handshake is echoed back verbatim and synchronously. Notification batches
// are acked 202 immediately; correlation and dispatch happen off the
// request path because the provider enforces a short response-time budget.
func (s *Server) handleListen(c *gin.Context) {
	if token := c.Query("validationToken"); token != "" {
		c.Data(http.StatusOK, "text/plain", []byte(token))
		return
	}

	var batch notificationBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		// The channel never sees downstream failures; still ack.
		log.Printf("[Webhook] Undecodable notification payload: %v", err)
		c.Status(http.StatusAccepted)
		return
	}

	c.Status(http.StatusAccepted)

	received := time.Now()
	go s.correlateBatch(batch.Value, received)
}

// correlateBatch resolves each entry to its owner and hands it to the
// dispatcher. Entries are independent: a stale or foreign entry is logged
// and dropped without affecting the rest of the batch.
func (s *Server) correlateBatch(entries []notificationEntry, receivedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), correlateTimeout)
	defer cancel()

	for _, entry := range entries {
		sub, err := s.stores.Subscriptions.GetByExternalID(ctx, entry.SubscriptionID)
		if err != nil {
			log.Printf("[Webhook] Dropping notification for unknown subscription %s", entry.SubscriptionID)
			continue
		}
		if sub.ClientState != entry.ClientState {
			log.Printf("[Webhook] Dropping notification for %s: clientState mismatch", entry.SubscriptionID)
			continue
		}
		if entry.ResourceData.ID == "" {
			log.Printf("[Webhook] Dropping notification for %s: no resource id", entry.SubscriptionID)
			continue
		}

		ok := s.dispatcher.Submit(ctx, pipeline.Job{
			OwnerID: sub.OwnerID,
			Notification: models.Notification{
				ExternalID:        entry.SubscriptionID,
				ChangedResourceID: entry.ResourceData.ID,
				ReceivedAt:        receivedAt,
			},
		})
		if !ok {
			log.Printf("[Webhook] Dispatch queue unavailable, dropping message %s for user %s",
				entry.ResourceData.ID, sub.OwnerID)
		}
	}
}

type statsRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (s *Server) handleGetStats(c *gin.Context) {
	var req statsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId missing in body"})
		return
	}

	stats, created, err := s.stores.Stats.Get(c.Request.Context(), req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	// First access initializes the zero record; mirror that in the status.
	if created {
		c.JSON(http.StatusAccepted, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type subscriptionRequest struct {
	UserID      string `json:"userId" binding:"required"`
	AccessToken string `json:"accessToken" binding:"required"`
}

func (s *Server) handleCreateSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId or accessToken missing in body"})
		return
	}

	ctx := c.Request.Context()
	cred := models.AccessCredential{OwnerID: req.UserID, Token: req.AccessToken, SavedAt: time.Now()}
	if err := s.stores.Credentials.Save(ctx, cred); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sub, err := s.manager.Create(ctx, req.UserID, req.AccessToken)
	if err != nil {
		if errors.Is(err, subscription.ErrCreateFailed) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sub)
}

type deleteRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (s *Server) handleDeleteSubscription(c *gin.Context) {
	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId missing in body"})
		return
	}

	if err := s.manager.Delete(c.Request.Context(), req.UserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleSaveToken(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId or accessToken missing in body"})
		return
	}

	cred := models.AccessCredential{OwnerID: req.UserID, Token: req.AccessToken, SavedAt: time.Now()}
	if err := s.stores.Credentials.Save(c.Request.Context(), cred); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
