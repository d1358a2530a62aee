package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"wali/internal/apperr"
)

func paystackSign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystack_VerifySignature(t *testing.T) {
	p := NewPaystack("sk_test_wali")
	body := []byte(`{"event":"charge.success","data":{"reference":"WL-260314-ABC123"}}`)
	sig := paystackSign("sk_test_wali", body)

	cases := []struct {
		name string
		body []byte
		sig  string
		want bool
	}{
		{"valid", body, sig, true},
		{"valid upper-case hex", body, strings.ToUpper(sig), true},
		{"tampered body", append(append([]byte{}, body...), ' '), sig, false},
		{"wrong secret", body, paystackSign("sk_other", body), false},
		{"empty", body, "", false},
	}
	for _, tc := range cases {
		if got := p.VerifySignature(tc.body, tc.sig); got != tc.want {
			t.Errorf("%s: VerifySignature = %v, want %v", tc.name, got, tc.want)
		}
	}
	if NewPaystack("").VerifySignature(body, paystackSign("", body)) {
		t.Error("unconfigured secret must reject everything")
	}
}

func TestPaystack_NormalizeEvent(t *testing.T) {
	p := NewPaystack("sk")
	cases := []struct {
		body   string
		want   EventType
		amount string
	}{
		{`{"event":"charge.success","data":{"id":991,"reference":"WL-1","status":"success","amount":100000,"currency":"xof"}}`, EventPaymentSucceeded, "1000"},
		{`{"event":"charge.failed","data":{"reference":"WL-1","status":"failed","amount":100000}}`, EventPaymentFailed, "1000"},
		{`{"event":"charge.success","data":{"reference":"WL-1","status":"failed"}}`, EventPaymentFailed, "0"},
		{`{"event":"charge.abandoned","data":{"reference":"WL-1","status":"abandoned"}}`, EventPaymentCancelled, "0"},
		{`{"event":"transfer.success","data":{"reference":"WL-1","status":"success"}}`, "", "0"},
		{`{"event":"charge.success","data":{"reference":"WL-1","amount":100050}}`, EventPaymentSucceeded, "1000.5"},
	}
	for _, tc := range cases {
		n, err := p.NormalizeEvent([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: %v", tc.body, err)
		}
		if n.Type != tc.want || n.Reference != "WL-1" {
			t.Errorf("%s: type=%q ref=%q", tc.body, n.Type, n.Reference)
		}
		if !n.Amount.Equal(decimal.RequireFromString(tc.amount)) {
			t.Errorf("%s: amount=%s, want %s", tc.body, n.Amount, tc.amount)
		}
	}

	n, _ := p.NormalizeEvent([]byte(cases[0].body))
	if n.Currency != "XOF" || n.ProviderRef != "991" {
		t.Errorf("currency=%q provider_ref=%q", n.Currency, n.ProviderRef)
	}
	if _, err := p.NormalizeEvent([]byte(`{"event":"charge.success","data":{}}`)); err == nil {
		t.Error("expected error for missing reference")
	}
	if _, err := p.NormalizeEvent([]byte(`not json`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestFlutterwave(t *testing.T) {
	f := NewFlutterwave("flw-hash")
	if !f.VerifySignature(nil, "flw-hash") || f.VerifySignature(nil, "FLW-HASH") || f.VerifySignature(nil, "") {
		t.Error("verif-hash comparison wrong")
	}
	if NewFlutterwave("").VerifySignature(nil, "") {
		t.Error("unconfigured hash must reject everything")
	}

	cases := []struct {
		body string
		want EventType
	}{
		{`{"event":"charge.completed","data":{"id":5,"tx_ref":"WL-2","flw_ref":"FLW-MOCK-1","amount":2500,"currency":"XOF","status":"successful"}}`, EventPaymentSucceeded},
		{`{"event":"charge.completed","data":{"tx_ref":"WL-2","amount":2500,"status":"failed"}}`, EventPaymentFailed},
		{`{"event":"charge.completed","data":{"tx_ref":"WL-2","status":"cancelled"}}`, EventPaymentCancelled},
		{`{"event":"charge.completed","data":{"tx_ref":"WL-2","status":"pending"}}`, ""},
		{`{"event":"transfer.completed","data":{"tx_ref":"WL-2","status":"successful"}}`, ""},
	}
	for _, tc := range cases {
		n, err := f.NormalizeEvent([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: %v", tc.body, err)
		}
		if n.Type != tc.want || n.Reference != "WL-2" {
			t.Errorf("%s: type=%q ref=%q", tc.body, n.Type, n.Reference)
		}
	}
	n, _ := f.NormalizeEvent([]byte(cases[0].body))
	if !n.Amount.Equal(decimal.NewFromInt(2500)) || n.ProviderRef != "FLW-MOCK-1" {
		t.Errorf("amount=%s provider_ref=%q", n.Amount, n.ProviderRef)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry(NewPaystack("a"), NewFlutterwave("b"))
	if a, err := r.Lookup(" PayStack "); err != nil || a.Provider() != ProviderPaystack {
		t.Errorf("Lookup(paystack) = %v, %v", a, err)
	}
	_, err := r.Lookup("stripe")
	if !errors.Is(err, ErrUnknownProvider) || !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}
}
