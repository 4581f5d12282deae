// README: FCM push delivery; the device token is resolved per user at send time.
package notify

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"carryhub/internal/types"
)

// Messenger is the subset of *messaging.Client used here.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type TokenLookup interface {
	DeviceToken(ctx context.Context, userID types.ID) (string, error)
}

type FCM struct {
	client Messenger
	tokens TokenLookup
}

func NewFCM(client Messenger, tokens TokenLookup) *FCM {
	return &FCM{client: client, tokens: tokens}
}

func (f *FCM) Notify(ctx context.Context, ev Event) error {
	token, err := f.tokens.DeviceToken(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("device token for %s: %w", ev.UserID, err)
	}
	// users without a registered device simply get no push
	if token == "" {
		return nil
	}

	data := make(map[string]string, len(ev.Data)+1)
	for k, v := range ev.Data {
		data[k] = v
	}
	data["type"] = ev.Type

	_, err = f.client.Send(ctx, &messaging.Message{
		Token: token,
		Data:  data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	})
	return err
}
