package gateway

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	sandboxSnapURL    = "https://app.sandbox.midtrans.com/snap/v1"
	productionSnapURL = "https://app.midtrans.com/snap/v1"
	sandboxAPIURL     = "https://api.sandbox.midtrans.com/v2"
	productionAPIURL  = "https://api.midtrans.com/v2"
)

// Transaction statuses as reported by Midtrans.
const (
	StatusCapture    = "capture"
	StatusSettlement = "settlement"
	StatusPending    = "pending"
	StatusDeny       = "deny"
	StatusCancel     = "cancel"
	StatusExpire     = "expire"
	StatusRefund     = "refund"
)

// Notification is the webhook payload Midtrans POSTs on every status change.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	TransactionTime   string `json:"transaction_time"`
	TransactionID     string `json:"transaction_id"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status,omitempty"`
}

// TransactionStatus is the /v2/{orderId}/status response.
type TransactionStatus struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	TransactionTime   string `json:"transaction_time"`
	FraudStatus       string `json:"fraud_status,omitempty"`
}

type SnapRequest struct {
	OrderID       string
	GrossAmount   int64
	CustomerName  string
	CustomerEmail string
	ItemName      string
	ExpiryMinutes int
}

type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Client wraps the Midtrans Snap and core APIs.
type Client struct {
	serverKey  string
	snapURL    string
	apiURL     string
	httpClient *http.Client
}

// NewClient reads midtrans.server_key and midtrans.is_production from viper.
func NewClient() *Client {
	snapURL, apiURL := sandboxSnapURL, sandboxAPIURL
	if viper.GetBool("midtrans.is_production") {
		snapURL, apiURL = productionSnapURL, productionAPIURL
	}
	return &Client{
		serverKey:  viper.GetString("midtrans.server_key"),
		snapURL:    snapURL,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithConfig is used by tests to point at a stub server.
func NewClientWithConfig(serverKey, snapURL, apiURL string) *Client {
	return &Client{
		serverKey:  serverKey,
		snapURL:    snapURL,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateSnapTransaction creates a hosted checkout session and returns the
// Snap token plus redirect URL.
func (c *Client) CreateSnapTransaction(ctx context.Context, req SnapRequest) (*SnapResponse, error) {
	payload := map[string]any{
		"transaction_details": map[string]any{
			"order_id":     req.OrderID,
			"gross_amount": req.GrossAmount,
		},
		"customer_details": map[string]any{
			"first_name": req.CustomerName,
			"email":      req.CustomerEmail,
		},
		"item_details": []map[string]any{
			{
				"id":       req.OrderID,
				"price":    req.GrossAmount,
				"quantity": 1,
				"name":     req.ItemName,
			},
		},
	}
	if req.ExpiryMinutes > 0 {
		payload["expiry"] = map[string]any{
			"unit":     "minutes",
			"duration": req.ExpiryMinutes,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.snapURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[MIDTRANS] Snap request failed for order %s: %v", req.OrderID, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		log.Printf("[MIDTRANS] Snap returned status %d for order %s", resp.StatusCode, req.OrderID)
		return nil, fmt.Errorf("midtrans snap returned status %d", resp.StatusCode)
	}

	var snap SnapResponse
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetTransactionStatus queries the core API for the current gateway-side
// state of an order.
func (c *Client) GetTransactionStatus(ctx context.Context, orderID string) (*TransactionStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/"+orderID+"/status", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[MIDTRANS] Status request failed for order %s: %v", orderID, err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("order %s not found at gateway", orderID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("midtrans status returned %d", resp.StatusCode)
	}

	var status TransactionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

// VerifySignature recomputes the notification signature:
// sha512(order_id + status_code + gross_amount + serverKey).
func (c *Client) VerifySignature(n *Notification) bool {
	h := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + c.serverKey))
	expected := hex.EncodeToString(h[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

// GrossAmountRupiah parses the gateway's decimal-string gross_amount
// (e.g. "145000.00") into whole rupiah.
func GrossAmountRupiah(grossAmount string) (int64, error) {
	d, err := decimal.NewFromString(grossAmount)
	if err != nil {
		return 0, fmt.Errorf("invalid gross_amount %q: %w", grossAmount, err)
	}
	return d.Round(0).IntPart(), nil
}

// IsSuccess reports whether a transaction status means the money was
// captured. capture only counts when fraud screening accepted it.
func IsSuccess(transactionStatus, fraudStatus string) bool {
	switch transactionStatus {
	case StatusSettlement:
		return true
	case StatusCapture:
		return fraudStatus == "" || fraudStatus == "accept"
	}
	return false
}

func (c *Client) setHeaders(req *http.Request) {
	auth := base64.StdEncoding.EncodeToString([]byte(c.serverKey + ":"))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
