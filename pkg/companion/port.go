package companion

import (
	"context"

	"github.com/verso-labs/companion/pkg/kernel"
)

// Repository is the read side of the companion metadata store
type Repository interface {
	FindByID(ctx context.Context, id string) (*Companion, error)
}

// MessageRepository is the turn persistence sink: every committed turn
// is mirrored here for page rendering.
type MessageRepository interface {
	Create(ctx context.Context, msg Message) error
	FindByCompanionAndUser(ctx context.Context, companionID string, userID kernel.UserID, limit int) ([]Message, error)
}
