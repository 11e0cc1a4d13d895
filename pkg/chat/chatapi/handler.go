package chatapi

import (
	"bufio"

	"github.com/gofiber/fiber/v2"

	"github.com/verso-labs/companion/pkg/chat"
	"github.com/verso-labs/companion/pkg/chat/chatsrv"
	"github.com/verso-labs/companion/pkg/companion"
	"github.com/verso-labs/companion/pkg/iam"
	"github.com/verso-labs/companion/pkg/iam/auth"
	"github.com/verso-labs/companion/pkg/logx"
)

type ChatHandlers struct {
	service  *chatsrv.Service
	messages companion.MessageRepository
}

func NewChatHandlers(service *chatsrv.Service, messages companion.MessageRepository) *ChatHandlers {
	return &ChatHandlers{
		service:  service,
		messages: messages,
	}
}

func (h *ChatHandlers) RegisterRoutes(router fiber.Router, authMiddleware *auth.TokenMiddleware) {
	chatGroup := router.Group("/chat", authMiddleware.Authenticate())

	chatGroup.Post("/:companionId", h.Turn)
	chatGroup.Post("/:companionId/stream", h.TurnStream)
	chatGroup.Get("/:companionId/messages", h.GetMessages)
}

// Turn runs one blocking chat turn and returns the reply as JSON
func (h *ChatHandlers) Turn(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	var req chat.TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return chat.ErrEmptyPrompt().WithDetail("error", "invalid request body")
	}

	result, err := h.service.Turn(c.Context(), authContext, c.Params("companionId"), req.Prompt)
	if err != nil {
		return err
	}

	return c.JSON(chat.TurnResponse{Reply: result.Reply})
}

// TurnStream runs one chat turn and relays the completion text to the
// caller as it is produced. The protocol's validated prefix runs before
// any byte is written, so its failures still map to proper statuses.
func (h *ChatHandlers) TurnStream(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	var req chat.TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return chat.ErrEmptyPrompt().WithDetail("error", "invalid request body")
	}

	companionID := c.Params("companionId")
	ts, err := h.service.TurnStream(c.UserContext(), authContext, companionID, req.Prompt)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		for chunk := range ts.Chunks {
			if _, err := w.WriteString(chunk); err != nil {
				break
			}
			if err := w.Flush(); err != nil {
				break
			}
		}

		// If the caller went away mid-stream, keep draining so the
		// relay can finish the completion and commit the reply.
		for range ts.Chunks {
		}

		if outcome := <-ts.Outcome; outcome.Err != nil {
			logx.Errorf("streamed turn for companion %s failed: %v", companionID, outcome.Err)
		}
	})

	return nil
}

// GetMessages returns the caller's mirrored transcript with a companion
func (h *ChatHandlers) GetMessages(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	limit := c.QueryInt("limit", 100)

	messages, err := h.messages.FindByCompanionAndUser(
		c.Context(), c.Params("companionId"), authContext.UserID, limit)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}
