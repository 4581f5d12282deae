package otp

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type memRecords struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memRecords) Put(_ context.Context, p Purpose, phone, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[recordKey(p, phone)] = code
	return nil
}

func (m *memRecords) Get(_ context.Context, p Purpose, phone string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[recordKey(p, phone)]
	if !ok {
		return "", ErrNoRecord
	}
	return v, nil
}

type captureSender struct {
	sent []string
}

func (c *captureSender) Send(_ context.Context, phone, msg string) error {
	c.sent = append(c.sent, phone+":"+msg)
	return nil
}

func TestNewCodeIsFourDigits(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode: %v", err)
		}
		if len(code) != 4 {
			t.Fatalf("code %q is not 4 chars", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("code %q has non-digit", code)
			}
		}
	}
}

func TestDeliverRecordsAndSends(t *testing.T) {
	records := &memRecords{}
	sender := &captureSender{}
	issuer := NewIssuer(records, sender)
	ctx := context.Background()

	if err := issuer.Deliver(ctx, PurposePickup, "+919000000001", "0420"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got, _ := records.Get(ctx, PurposePickup, "+919000000001"); got != "0420" {
		t.Fatalf("record = %q", got)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "0420") {
		t.Fatalf("sent = %v", sender.sent)
	}

	// same code again within the TTL is not re-sent
	if err := issuer.Deliver(ctx, PurposePickup, "+919000000001", "0420"); err != nil {
		t.Fatalf("Deliver again: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one sms, got %d", len(sender.sent))
	}

	if err := issuer.Deliver(ctx, PurposeDelivery, "+919000000001", "0420"); err != nil {
		t.Fatalf("Deliver delivery: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected delivery purpose to send, got %d", len(sender.sent))
	}
}

func TestMask(t *testing.T) {
	if got := mask("+919812345678"); got != "******5678" {
		t.Fatalf("mask = %s", got)
	}
	if got := mask("12"); got != "****" {
		t.Fatalf("mask short = %s", got)
	}
}
