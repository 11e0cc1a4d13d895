package memory

import (
	"net/http"

	"github.com/verso-labs/companion/pkg/errx"
	"github.com/verso-labs/companion/pkg/kernel"
)

// ConversationKey identifies one (companion, model, user) conversation.
// It scopes a history partition and the retrieval document set.
type ConversationKey struct {
	CompanionName string
	ModelName     string
	UserID        kernel.UserID
}

// Validate refuses keys that are not fully populated
func (k ConversationKey) Validate() error {
	if k.CompanionName == "" || k.ModelName == "" || k.UserID == "" {
		return ErrInvalidKey().
			WithDetail("companion", k.CompanionName).
			WithDetail("model", k.ModelName)
	}
	return nil
}

// PartitionKey derives the storage key for this conversation
func (k ConversationKey) PartitionKey() string {
	return k.CompanionName + "-" + k.ModelName + "-" + k.UserID.String()
}

// Chunk is one retrieved document fragment with its similarity score
type Chunk struct {
	Text  string
	Score float32
}

// Retrieval is the outcome of a relevant-context lookup. Degraded marks
// an empty result caused by a failing retrieval dependency, as opposed
// to a healthy lookup that simply found nothing. The distinction stays
// at this boundary; retrieval failures never surface to callers.
type Retrieval struct {
	Text     string
	Degraded bool
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("MEMORY")

var (
	CodeInvalidKey  = ErrRegistry.Register("INVALID_KEY", errx.TypeValidation, http.StatusBadRequest, "Conversation key must be fully populated")
	CodeStoreFailed = ErrRegistry.Register("STORE_FAILED", errx.TypeInternal, http.StatusServiceUnavailable, "History storage unavailable")
)

func ErrInvalidKey() *errx.Error {
	return ErrRegistry.New(CodeInvalidKey)
}

func ErrStoreFailed(err error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeStoreFailed, err)
}
