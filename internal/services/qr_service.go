package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// errQRUnavailable is returned when Redis is down: codes are single use,
// and without the nonce store single use cannot be enforced.
var errQRUnavailable = errors.New("QR tidak tersedia")

// QRService issues short-lived QR codes that carry a pending payment's
// checkout link, for paying at the kos front desk. Codes are single use:
// resolving one deletes the backing nonce.
type QRService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewQRService(db *sql.DB, redis *redis.Client) *QRService {
	return &QRService{
		db:    db,
		redis: redis,
	}
}

// GeneratePaymentQR encodes a pending payment's order id and redirect URL
// behind a Redis-backed nonce and renders it as a QR image.
func (s *QRService) GeneratePaymentQR(ctx context.Context, orderID string) (string, string, error) {
	if s.redis == nil {
		return "", "", errQRUnavailable
	}

	var redirectURL string
	var amount int64
	err := s.db.QueryRowContext(ctx, `
		SELECT redirect_url, amount FROM payments
		WHERE midtrans_order_id = $1 AND status = 'PENDING'`,
		orderID).Scan(&redirectURL, &amount)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("tidak ada pembayaran tertunda untuk order %s", orderID)
	}
	if err != nil {
		return "", "", err
	}

	payload := map[string]any{
		"orderId":     orderID,
		"amount":      amount,
		"redirectUrl": redirectURL,
		"timestamp":   time.Now().Unix(),
		"nonce":       s.generateNonce(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	qrCode := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("qr:%s", qrCode)
	if err := s.redis.Set(ctx, key, jsonData, 5*time.Minute).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(qrCode, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return qrCode, qrImage, nil
}

// ResolvePaymentQR returns the payment details behind a scanned code and
// invalidates it.
func (s *QRService) ResolvePaymentQR(ctx context.Context, qrData string) (map[string]any, error) {
	if s.redis == nil {
		return nil, errQRUnavailable
	}

	key := fmt.Sprintf("qr:%s", qrData)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("QR tidak valid atau kedaluwarsa")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return result, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
