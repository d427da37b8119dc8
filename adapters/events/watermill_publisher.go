package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/layer-3/popgate/ports"
)

// Topics carrying gateway audit events.
const (
	TopicVerified  = "popgate.verified"
	TopicBlacklist = "popgate.blacklist"
)

// VerifiedEvent announces a successful personhood verification. Access
// tokens never appear in events.
type VerifiedEvent struct {
	IdentityID string    `json:"identity_id"`
	Tier       string    `json:"tier"`
	Score      int       `json:"score"`
	At         time.Time `json:"at"`
}

// BlacklistEvent announces a ban or a lifted ban.
type BlacklistEvent struct {
	IdentityID      string    `json:"identity_id"`
	Reason          string    `json:"reason,omitempty"`
	SessionsRevoked int       `json:"sessions_revoked"`
	Lifted          bool      `json:"lifted"`
	At              time.Time `json:"at"`
}

// WatermillPublisher implements ports.EventPublisher using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishVerified announces a successful verification.
func (p *WatermillPublisher) PublishVerified(ctx context.Context, identityID string, tier string, score int) error {
	return p.publish(TopicVerified, VerifiedEvent{
		IdentityID: identityID,
		Tier:       tier,
		Score:      score,
		At:         time.Now(),
	})
}

// PublishBlacklisted announces a ban.
func (p *WatermillPublisher) PublishBlacklisted(ctx context.Context, identityID, reason string, sessionsRevoked int) error {
	return p.publish(TopicBlacklist, BlacklistEvent{
		IdentityID:      identityID,
		Reason:          reason,
		SessionsRevoked: sessionsRevoked,
		At:              time.Now(),
	})
}

// PublishUnblacklisted announces a lifted ban.
func (p *WatermillPublisher) PublishUnblacklisted(ctx context.Context, identityID string) error {
	return p.publish(TopicBlacklist, BlacklistEvent{
		IdentityID: identityID,
		Lifted:     true,
		At:         time.Now(),
	})
}

func (p *WatermillPublisher) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
