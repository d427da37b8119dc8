package ports

import "context"

// EventPublisher notifies other instances of gateway decisions.
type EventPublisher interface {
	// PublishVerified announces a successful personhood verification.
	PublishVerified(ctx context.Context, identityID string, tier string, score int) error

	// PublishBlacklisted announces a ban and how many sessions it revoked.
	PublishBlacklisted(ctx context.Context, identityID, reason string, sessionsRevoked int) error

	// PublishUnblacklisted announces a lifted ban.
	PublishUnblacklisted(ctx context.Context, identityID string) error
}
