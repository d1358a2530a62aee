package payment

import (
	"crypto/subtle"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const ProviderFlutterwave = "flutterwave"

// Flutterwave echoes the dashboard secret hash in the verif-hash header and
// reports amounts in major units.
type Flutterwave struct {
	secretHash string
}

func NewFlutterwave(secretHash string) *Flutterwave {
	return &Flutterwave{secretHash: secretHash}
}

func (f *Flutterwave) Provider() string        { return ProviderFlutterwave }
func (f *Flutterwave) SignatureHeader() string { return "verif-hash" }

func (f *Flutterwave) VerifySignature(_ []byte, signature string) bool {
	if f.secretHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(f.secretHash), []byte(signature)) == 1
}

type flutterwavePayload struct {
	Event string `json:"event"`
	Data  struct {
		ID       int64           `json:"id"`
		TxRef    string          `json:"tx_ref"`
		FlwRef   string          `json:"flw_ref"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
		Status   string          `json:"status"`
	} `json:"data"`
}

func (f *Flutterwave) NormalizeEvent(payload []byte) (Notification, error) {
	var body flutterwavePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return Notification{}, fmt.Errorf("flutterwave: decode payload: %w", err)
	}
	if body.Data.TxRef == "" {
		return Notification{}, fmt.Errorf("flutterwave: payload without tx_ref")
	}
	n := Notification{
		Provider:    ProviderFlutterwave,
		Reference:   body.Data.TxRef,
		RawEvent:    body.Event,
		Amount:      body.Data.Amount,
		Currency:    strings.ToUpper(body.Data.Currency),
		ProviderRef: body.Data.FlwRef,
	}
	if n.ProviderRef == "" && body.Data.ID != 0 {
		n.ProviderRef = strconv.FormatInt(body.Data.ID, 10)
	}
	if body.Event != "charge.completed" {
		return n, nil
	}
	switch strings.ToLower(body.Data.Status) {
	case "successful":
		n.Type = EventPaymentSucceeded
	case "failed":
		n.Type = EventPaymentFailed
	case "cancelled":
		n.Type = EventPaymentCancelled
	}
	return n, nil
}
