// README: Handover OTPs: code generation, short-lived Redis records and SMS delivery.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	codeDigits = 4
	// RecordTTL bounds how long an issued code stays on record for support lookups.
	RecordTTL = 5 * time.Minute
)

type Purpose string

const (
	PurposePickup   Purpose = "pickup"
	PurposeDelivery Purpose = "delivery"
)

// Sender delivers one text message. Transport internals live with the SMS provider.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// Records keeps the most recent code issued per (purpose, phone).
type Records interface {
	Put(ctx context.Context, purpose Purpose, phone, code string, ttl time.Duration) error
	Get(ctx context.Context, purpose Purpose, phone string) (string, error)
}

// NewCode returns a uniformly random 4-digit code, zero padded.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

type Issuer struct {
	records Records
	sender  Sender
}

func NewIssuer(records Records, sender Sender) *Issuer {
	return &Issuer{records: records, sender: sender}
}

// Generate only mints a code. Delivery happens after the caller's transaction commits.
func (i *Issuer) Generate() (string, error) {
	return NewCode()
}

// Deliver records the code and texts it. Re-delivering the same code within the TTL is a no-op.
func (i *Issuer) Deliver(ctx context.Context, purpose Purpose, phone, code string) error {
	if i.records != nil {
		prev, err := i.records.Get(ctx, purpose, phone)
		if err == nil && prev == code {
			return nil
		}
		if err := i.records.Put(ctx, purpose, phone, code, RecordTTL); err != nil {
			log.Printf("[otp] record %s for %s: %v", purpose, mask(phone), err)
		}
	}
	return i.sender.Send(ctx, phone, message(purpose, code))
}

func message(purpose Purpose, code string) string {
	switch purpose {
	case PurposePickup:
		return fmt.Sprintf("Your parcel pickup code is %s. Share it with the traveller only at handover.", code)
	default:
		return fmt.Sprintf("Your parcel delivery code is %s. Share it with the traveller only when you receive the parcel.", code)
	}
}

func mask(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "******" + phone[len(phone)-4:]
}

// ErrNoRecord is returned by Records.Get when nothing is on file.
var ErrNoRecord = redis.Nil

type RedisRecords struct {
	client *redis.Client
}

func NewRedisRecords(client *redis.Client) *RedisRecords {
	return &RedisRecords{client: client}
}

func (r *RedisRecords) Put(ctx context.Context, purpose Purpose, phone, code string, ttl time.Duration) error {
	return r.client.Set(ctx, recordKey(purpose, phone), code, ttl).Err()
}

func (r *RedisRecords) Get(ctx context.Context, purpose Purpose, phone string) (string, error) {
	return r.client.Get(ctx, recordKey(purpose, phone)).Result()
}

func recordKey(purpose Purpose, phone string) string {
	return "otp:" + string(purpose) + ":" + phone
}
