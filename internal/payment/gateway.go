// Package payment creates gateway orders for carts and completes them once
// the gateway reports a payment.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/pkg/common"
)

// ErrInvalidSignature is returned when a payment confirmation does not
// carry the gateway signature.
var ErrInvalidSignature = fmt.Errorf("%w: invalid payment signature", domain.ErrValidation)

// GatewayOrder is the order as created by the gateway.
type GatewayOrder struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Receipt     string `json:"receipt"`
	Status      string `json:"status"`
}

// Gateway is a payment provider.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*GatewayOrder, error)
	VerifySignature(orderID, paymentID, signature string) error
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID".
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret, orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return ErrInvalidSignature
	}
	want := Sign(secret, orderID, paymentID)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// MockGateway accepts every order locally. Signatures are checked against
// its secret so clients can exercise the verify flow.
type MockGateway struct {
	Secret string
}

var _ Gateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &GatewayOrder{
		ID:          common.PrefixedID("order_mock"),
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     receipt,
		Status:      "created",
	}, nil
}

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) error {
	return verify(m.Secret, orderID, paymentID, signature)
}
