package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/talkincode/smartcart/internal/cart"
	"github.com/talkincode/smartcart/internal/checkout"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/store"
	"go.uber.org/zap"
)

// OrderResponse is returned to the client opening the payment form.
type OrderResponse struct {
	OrderID   string  `json:"orderId"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	CartTotal float64 `json:"cartTotal"`
}

// VerifyRequest is the confirmation the client forwards from the gateway.
type VerifyRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature"`
}

type VerifyResult struct {
	OrderID   string       `json:"orderId"`
	PaymentID string       `json:"paymentId"`
	Amount    float64      `json:"amount"`
	Order     domain.Order `json:"order"`
}

type Config struct {
	KeyID           string
	Currency        string
	VerifySignature bool
}

type Service struct {
	store    *store.Store
	gateway  Gateway
	checkout *checkout.Service
	cfg      Config
	now      func() time.Time
}

func NewService(st *store.Store, gw Gateway, co *checkout.Service, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &Service{store: st, gateway: gw, checkout: co, cfg: cfg, now: time.Now}
}

// Key returns the public key id handed to the payment form.
func (s *Service) Key() string {
	return s.cfg.KeyID
}

// Configured reports whether a real gateway key is set.
func (s *Service) Configured() bool {
	return s.cfg.KeyID != "" && s.gateway.Name() != "mock"
}

// ToMinor converts a main-unit amount to minor units (paise, cents).
func ToMinor(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromMinor converts minor units back to a main-unit amount.
func FromMinor(minor int64) float64 {
	f, _ := decimal.New(minor, -2).Float64()
	return f
}

// CreateOrder opens a gateway order for the user's cart total. The cart is
// never changed here.
func (s *Service) CreateOrder(ctx context.Context, userID string) (OrderResponse, error) {
	c, err := s.cart(ctx, userID)
	if err != nil {
		return OrderResponse{}, err
	}
	total := c.Total
	if total <= 0 {
		total = cart.Total(c.Items)
	}
	if total <= 0 {
		return OrderResponse{}, domain.Validationf("invalid cart total")
	}

	receipt := fmt.Sprintf("order_%d_%s", s.now().UnixMilli(), userID)
	order, err := s.gateway.CreateOrder(ctx, ToMinor(total), s.cfg.Currency, receipt)
	if err != nil {
		zap.L().Error("create gateway order failed",
			zap.String("namespace", "payment"),
			zap.String("gateway", s.gateway.Name()),
			zap.String("user", userID),
			zap.Error(err))
		return OrderResponse{}, fmt.Errorf("%w: failed to create payment order: %v", domain.ErrUpstream, err)
	}
	zap.L().Info("gateway order created",
		zap.String("namespace", "payment"),
		zap.String("order", order.ID),
		zap.String("user", userID),
		zap.Int64("amount", order.AmountMinor))
	return OrderResponse{
		OrderID:   order.ID,
		Amount:    FromMinor(order.AmountMinor),
		Currency:  order.Currency,
		CartTotal: total,
	}, nil
}

// Verify checks the gateway signature and completes the order.
func (s *Service) Verify(ctx context.Context, userID string, req VerifyRequest) (VerifyResult, error) {
	if s.cfg.VerifySignature {
		if err := s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature); err != nil {
			zap.L().Warn("payment signature rejected",
				zap.String("namespace", "payment"),
				zap.String("order", req.OrderID),
				zap.String("user", userID))
			return VerifyResult{}, err
		}
	}
	order, err := s.checkout.CompletePayment(ctx, userID, checkout.Payment{PaymentID: req.PaymentID, GatewayOrderID: req.OrderID})
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{OrderID: req.OrderID, PaymentID: req.PaymentID, Amount: order.Total, Order: order}, nil
}

func (s *Service) cart(ctx context.Context, userID string) (domain.Cart, error) {
	var out domain.Cart
	err := s.store.View(ctx, func(snap *store.Snapshot) error {
		i := cart.IndexByUser(snap.Carts, userID)
		if i == -1 || len(snap.Carts[i].Items) == 0 {
			return domain.ErrCartEmpty
		}
		out = snap.Carts[i].Clone()
		return nil
	})
	return out, err
}
