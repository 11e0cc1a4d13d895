package companion

import (
	"net/http"
	"time"

	"github.com/verso-labs/companion/pkg/errx"
	"github.com/verso-labs/companion/pkg/kernel"
)

// Companion is the persona a user chats with. The chat pipeline reads
// it once per request and never mutates it; authoring lives in a
// separate admin surface.
type Companion struct {
	ID           string    `db:"id" json:"id"`
	CategoryID   string    `db:"category_id" json:"category_id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	Instructions string    `db:"instructions" json:"instructions"`
	Seed         string    `db:"seed" json:"seed"`
	Src          string    `db:"src" json:"src"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentSet is the vector index filter identity for this companion's
// ingested background material.
func (c *Companion) DocumentSet() string {
	return c.ID + ".txt"
}

// Message roles in the durable per-user mirror
const (
	RoleUser   = "user"
	RoleSystem = "system"
)

// Message mirrors one committed turn for later page rendering. It is a
// side effect of the turn protocol, not part of the prompt pipeline.
type Message struct {
	ID          string        `db:"id" json:"id"`
	CompanionID string        `db:"companion_id" json:"companion_id"`
	UserID      kernel.UserID `db:"user_id" json:"user_id"`
	Role        string        `db:"role" json:"role"`
	Content     string        `db:"content" json:"content"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("COMPANION")

var (
	CodeNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Companion not found")
)

func ErrCompanionNotFound() *errx.Error {
	return ErrRegistry.New(CodeNotFound)
}
