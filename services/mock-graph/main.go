package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RyanEisele1012/Email-Filter/services/mock-graph/internal/mock"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/subscriptions", handleCreateSubscription)
	r.PATCH("/subscriptions/:id", handleRenewSubscription)
	r.DELETE("/subscriptions/:id", handleDeleteSubscription)

	me := r.Group("/me")
	{
		me.GET("/messages/:id", handleGetMessage)
		me.POST("/messages/:id/move", handleMoveMessage)
	}

	r.POST("/classify", handleClassify)

	// Test-only endpoint to push a message through a subscription.
	admin := r.Group("/admin")
	{
		admin.POST("/messages", handleDeliverMessage)
	}

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Starting mock Graph server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

func handleCreateSubscription(c *gin.Context) {
	var req struct {
		ChangeType         string `json:"changeType"`
		NotificationURL    string `json:"notificationUrl" binding:"required"`
		Resource           string `json:"resource" binding:"required"`
		ExpirationDateTime string `json:"expirationDateTime" binding:"required"`
		ClientState        string `json:"clientState"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expires, err := time.Parse(time.RFC3339, req.ExpirationDateTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expirationDateTime (use RFC3339)"})
		return
	}

	sub, err := mock.CreateSubscription(req.Resource, req.NotificationURL, req.ClientState, expires)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":                 sub.ID,
		"resource":           sub.Resource,
		"clientState":        sub.ClientState,
		"expirationDateTime": sub.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func handleRenewSubscription(c *gin.Context) {
	var req struct {
		ExpirationDateTime string `json:"expirationDateTime" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expires, err := time.Parse(time.RFC3339, req.ExpirationDateTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expirationDateTime (use RFC3339)"})
		return
	}

	sub, ok := mock.RenewSubscription(c.Param("id"), expires)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                 sub.ID,
		"expirationDateTime": sub.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func handleDeleteSubscription(c *gin.Context) {
	if !mock.DeleteSubscription(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func handleGetMessage(c *gin.Context) {
	msg, ok := mock.GetMessage(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      msg.ID,
		"subject": msg.Subject,
		"body":    gin.H{"contentType": "text", "content": msg.Body},
	})
}

func handleMoveMessage(c *gin.Context) {
	var req struct {
		DestinationID string `json:"destinationId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, ok := mock.GetMessage(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	log.Printf("Moved message %s to %s", msg.ID, req.DestinationID)
	c.JSON(http.StatusCreated, gin.H{"id": msg.ID, "parentFolderId": req.DestinationID})
}

func handleClassify(c *gin.Context) {
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	label, score := mock.Classify(req.Subject, req.Body)
	c.JSON(http.StatusOK, gin.H{"label": label, "score": score})
}

func handleDeliverMessage(c *gin.Context) {
	var req struct {
		SubscriptionID string `json:"subscriptionId" binding:"required"`
		Subject        string `json:"subject"`
		Body           string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := mock.DeliverMessage(req.SubscriptionID, req.Subject, req.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": msg.ID, "delivered": true})
}
