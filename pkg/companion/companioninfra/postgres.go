package companioninfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/verso-labs/companion/pkg/companion"
	"github.com/verso-labs/companion/pkg/errx"
	"github.com/verso-labs/companion/pkg/kernel"
)

// PostgresCompanionRepository implements the companion metadata reads
type PostgresCompanionRepository struct {
	db *sqlx.DB
}

// NewPostgresCompanionRepository creates the Postgres companion repository
func NewPostgresCompanionRepository(db *sqlx.DB) companion.Repository {
	return &PostgresCompanionRepository{
		db: db,
	}
}

// FindByID loads a companion's persona record
func (r *PostgresCompanionRepository) FindByID(ctx context.Context, id string) (*companion.Companion, error) {
	query := `
		SELECT
			id, category_id, name, description, instructions, seed, src,
			created_at, updated_at
		FROM companions
		WHERE id = $1`

	var c companion.Companion
	err := r.db.GetContext(ctx, &c, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, companion.ErrCompanionNotFound().WithDetail("companion_id", id)
		}
		return nil, errx.Wrap(err, "failed to find companion by id", errx.TypeInternal).
			WithDetail("companion_id", id)
	}

	return &c, nil
}

// PostgresMessageRepository implements the per-user message mirror
type PostgresMessageRepository struct {
	db *sqlx.DB
}

// NewPostgresMessageRepository creates the Postgres message repository
func NewPostgresMessageRepository(db *sqlx.DB) companion.MessageRepository {
	return &PostgresMessageRepository{
		db: db,
	}
}

// Create mirrors one committed turn
func (r *PostgresMessageRepository) Create(ctx context.Context, msg companion.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO messages (id, companion_id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.CompanionID, msg.UserID.String(), msg.Role, msg.Content, msg.CreatedAt)
	if err != nil {
		return errx.Wrap(err, "failed to create message", errx.TypeInternal).
			WithDetail("companion_id", msg.CompanionID)
	}

	return nil
}

// FindByCompanionAndUser returns a user's mirrored transcript with a
// companion, oldest first.
func (r *PostgresMessageRepository) FindByCompanionAndUser(ctx context.Context, companionID string, userID kernel.UserID, limit int) ([]companion.Message, error) {
	query := `
		SELECT id, companion_id, user_id, role, content, created_at
		FROM messages
		WHERE companion_id = $1 AND user_id = $2
		ORDER BY created_at ASC
		LIMIT $3`

	var messages []companion.Message
	err := r.db.SelectContext(ctx, &messages, query, companionID, userID.String(), limit)
	if err != nil {
		return nil, errx.Wrap(err, "failed to find messages", errx.TypeInternal).
			WithDetail("companion_id", companionID)
	}

	return messages, nil
}
