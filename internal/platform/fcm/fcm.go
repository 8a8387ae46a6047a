// Package fcm delivers background notifications and manages push
// subscriptions through Firebase Cloud Messaging.
package fcm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/mmcdole/nearby/internal/domain"
	"google.golang.org/api/option"
)

// topicPrefix namespaces the topics derived from application keys
const topicPrefix = "nearby-"

// messenger is the subset of *messaging.Client used here
type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

// Background is a domain.BackgroundContext backed by FCM. Notifications
// go to a single device registration token.
type Background struct {
	client messenger
	token  string
	now    func() time.Time
}

// NewBackground creates a Firebase app from a service account file and
// returns a background context for the given device token.
func NewBackground(ctx context.Context, credentialsFile, token string) (*Background, error) {
	if token == "" {
		return nil, errors.New("device token is required")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return newBackground(client, token), nil
}

func newBackground(client messenger, token string) *Background {
	return &Background{client: client, token: token, now: time.Now}
}

// Topic derives the FCM topic for an application public key
func Topic(publicKey string) string {
	sum := sha256.Sum256([]byte(publicKey))
	return topicPrefix + hex.EncodeToString(sum[:8])
}

// Subscribe registers the device token on the key's topic
func (b *Background) Subscribe(ctx context.Context, publicKey string) (*domain.PushSubscription, error) {
	topic := Topic(publicKey)

	resp, err := b.client.SubscribeToTopic(ctx, []string{b.token}, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to topic: %w", err)
	}
	if err := topicError(resp); err != nil {
		return nil, err
	}

	return &domain.PushSubscription{
		ID:        uuid.NewString(),
		Endpoint:  "/topics/" + topic,
		Token:     b.token,
		PublicKey: publicKey,
		CreatedAt: b.now(),
	}, nil
}

// Unsubscribe removes the device token from the subscription's topic
func (b *Background) Unsubscribe(ctx context.Context, sub *domain.PushSubscription) error {
	if sub == nil {
		return nil
	}

	resp, err := b.client.UnsubscribeFromTopic(ctx, []string{sub.Token}, Topic(sub.PublicKey))
	if err != nil {
		return fmt.Errorf("failed to unsubscribe from topic: %w", err)
	}
	return topicError(resp)
}

func topicError(resp *messaging.TopicManagementResponse) error {
	if resp == nil || resp.FailureCount == 0 {
		return nil
	}
	if len(resp.Errors) > 0 && resp.Errors[0] != nil {
		return fmt.Errorf("topic management failed: %s", resp.Errors[0].Reason)
	}
	return fmt.Errorf("topic management failed for %d tokens", resp.FailureCount)
}

// ShowNotification sends n to the device. Tag is set on both the
// Android and web push payloads so repeats replace each other.
func (b *Background) ShowNotification(ctx context.Context, n domain.Notification) error {
	message := &messaging.Message{
		Token: b.token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Tag:  n.Tag,
				Icon: n.Icon,
			},
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
				Icon:  n.Icon,
				Tag:   n.Tag,
			},
		},
	}

	if _, err := b.client.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

var _ domain.BackgroundContext = (*Background)(nil)
