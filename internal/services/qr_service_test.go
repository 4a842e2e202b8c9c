package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQRService_RedisUnavailable(t *testing.T) {
	// InitRedis returns nil when Redis is down; QR endpoints must answer
	// with an error instead of panicking.
	service := NewQRService(nil, nil)

	_, _, err := service.GeneratePaymentQR(context.Background(), "KOS-2026-000001-abcd1234")
	assert.EqualError(t, err, "QR tidak tersedia")

	_, err = service.ResolvePaymentQR(context.Background(), "some-code")
	assert.EqualError(t, err, "QR tidak tersedia")
}
