package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const ProviderPaystack = "paystack"

// Paystack signs the raw body with HMAC-SHA512 under the account secret key
// and reports amounts in subunits (x100).
type Paystack struct {
	secret string
}

func NewPaystack(secret string) *Paystack {
	return &Paystack{secret: secret}
}

func (p *Paystack) Provider() string        { return ProviderPaystack }
func (p *Paystack) SignatureHeader() string { return "x-paystack-signature" }

func (p *Paystack) VerifySignature(payload []byte, signature string) bool {
	if p.secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.secret))
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

type paystackPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

func (p *Paystack) NormalizeEvent(payload []byte) (Notification, error) {
	var body paystackPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return Notification{}, fmt.Errorf("paystack: decode payload: %w", err)
	}
	if body.Data.Reference == "" {
		return Notification{}, fmt.Errorf("paystack: payload without reference")
	}
	n := Notification{
		Provider:  ProviderPaystack,
		Reference: body.Data.Reference,
		RawEvent:  body.Event,
		Amount:    decimal.New(body.Data.Amount, -2),
		Currency:  strings.ToUpper(body.Data.Currency),
	}
	if body.Data.ID != 0 {
		n.ProviderRef = strconv.FormatInt(body.Data.ID, 10)
	}
	status := strings.ToLower(body.Data.Status)
	switch {
	case body.Event == "charge.success" && (status == "" || status == "success"):
		n.Type = EventPaymentSucceeded
	case body.Event == "charge.failed" || status == "failed":
		n.Type = EventPaymentFailed
	case status == "abandoned":
		n.Type = EventPaymentCancelled
	}
	return n, nil
}
