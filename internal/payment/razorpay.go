package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/guonaihong/gout/dataflow"
	"go.uber.org/zap"
)

// RazorpayGateway talks to the Razorpay orders API.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *dataflow.Gout
}

var _ Gateway = (*RazorpayGateway)(nil)

func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration) *RazorpayGateway {
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    gout.New(&http.Client{Timeout: timeout}),
	}
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

type razorpayError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type razorpayOrder struct {
	GatewayOrder
	Error *razorpayError `json:"error,omitempty"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*GatewayOrder, error) {
	var out razorpayOrder
	var code int
	auth := base64.StdEncoding.EncodeToString([]byte(g.keyID + ":" + g.keySecret))
	err := g.client.POST(g.baseURL + "/v1/orders").
		WithContext(ctx).
		SetHeader(gout.H{"Authorization": "Basic " + auth}).
		SetJSON(gout.H{
			"amount":          amountMinor,
			"currency":        currency,
			"receipt":         receipt,
			"payment_capture": 1,
		}).
		BindJSON(&out).
		Code(&code).
		Do()
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	if code < 200 || code > 299 {
		msg := http.StatusText(code)
		if out.Error != nil && out.Error.Description != "" {
			msg = out.Error.Description
		}
		zap.L().Error("razorpay rejected order",
			zap.String("namespace", "payment"),
			zap.Int("status", code),
			zap.String("receipt", receipt),
			zap.String("error", msg))
		return nil, fmt.Errorf("razorpay create order: status %d: %s", code, msg)
	}
	return &out.GatewayOrder, nil
}

func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) error {
	return verify(g.keySecret, orderID, paymentID, signature)
}
