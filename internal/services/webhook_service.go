package services

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/koskita/backend/internal/gateway"
)

// WebhookService receives Midtrans HTTP notifications. The gateway retries
// on any non-200, so every outcome answers 200: a rejected notification
// must not be redelivered forever.
type WebhookService struct {
	gw       *gateway.Client
	payments *PaymentService
	redis    *redis.Client
}

func NewWebhookService(gw *gateway.Client, payments *PaymentService, redisClient *redis.Client) *WebhookService {
	return &WebhookService{
		gw:       gw,
		payments: payments,
		redis:    redisClient,
	}
}

// HandleNotification processes a payment notification.
// @Summary Midtrans payment notification
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /payments/notify [post]
func (s *WebhookService) HandleNotification(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	// Midtrans adds fields over time, so decode leniently.
	var n gateway.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		log.Printf("[WEBHOOK] Undecodable notification body from %s: %v", r.RemoteAddr, err)
		s.ack(w)
		return
	}

	if n.OrderID == "" || n.StatusCode == "" || n.GrossAmount == "" || n.SignatureKey == "" {
		log.Printf("[WEBHOOK] Notification missing required fields, order_id=%q", n.OrderID)
		s.ack(w)
		return
	}

	if !s.gw.VerifySignature(&n) {
		log.Printf("[SECURITY] Invalid webhook signature for order %s from %s", n.OrderID, r.RemoteAddr)
		s.ack(w)
		return
	}

	if s.alreadySeen(r, n) {
		log.Printf("[WEBHOOK] Duplicate delivery for order %s status %s", n.OrderID, n.TransactionStatus)
		s.ack(w)
		return
	}

	err := s.payments.Reconcile(r.Context(), &gateway.TransactionStatus{
		OrderID:           n.OrderID,
		StatusCode:        n.StatusCode,
		GrossAmount:       n.GrossAmount,
		TransactionStatus: n.TransactionStatus,
		TransactionID:     n.TransactionID,
		PaymentType:       n.PaymentType,
		FraudStatus:       n.FraudStatus,
	})
	if err != nil {
		// Logged but still acked; the refresh endpoint and cron job
		// catch anything a failed apply leaves behind.
		log.Printf("[WEBHOOK] Failed to apply notification for order %s: %v", n.OrderID, err)
	}

	s.ack(w)
}

// alreadySeen marks the (order, status) pair in Redis and reports whether
// it was marked before. Without Redis every delivery is processed; the
// reconcile path is idempotent, this only saves the work.
func (s *WebhookService) alreadySeen(r *http.Request, n gateway.Notification) bool {
	if s.redis == nil {
		return false
	}
	key := "webhook:" + n.OrderID + ":" + n.TransactionStatus
	set, err := s.redis.SetNX(r.Context(), key, 1, 24*time.Hour).Result()
	if err != nil {
		log.Printf("[WEBHOOK] Redis dedup unavailable: %v", err)
		return false
	}
	return !set
}

func (s *WebhookService) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
