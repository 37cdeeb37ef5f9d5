package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/usecases"
)

const missingPredictionKey = "Server configured incorrectly: Gemini API key missing."

// ChatCompatHandler serves POST /api/chat. Its body shape, {reply} or
// {error}, is what existing chat widgets expect.
func ChatCompatHandler(deps *Dependencies) fiber.Handler {
	type chatRequest struct {
		Prompt any `json:"prompt"`
	}

	return func(c *fiber.Ctx) error {
		var req chatRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Prompt is required and must be a string"})
		}
		prompt, _ := req.Prompt.(string)

		reply, err := deps.Chat.Reply(c.UserContext(), "", prompt)
		if err != nil {
			status, msg := compatError(err)
			if status >= fiber.StatusInternalServerError {
				LoggerFromCtx(c.UserContext()).Error("chat failed", "error", err)
			}
			return c.Status(status).JSON(fiber.Map{"error": msg})
		}
		return c.JSON(fiber.Map{"reply": reply})
	}
}

func compatError(err error) (int, string) {
	var (
		ve *domain.ValidationError
		ue *domain.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, ve.Message
	case errors.Is(err, domain.ErrNotConfigured):
		return fiber.StatusInternalServerError, domain.ErrNotConfigured.Error()
	case errors.As(err, &ue):
		return upstreamStatus(ue), "Gemini API error: " + ue.Err.Error()
	default:
		return fiber.StatusInternalServerError, err.Error()
	}
}

type predictRequest struct {
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	SelectedLayers []string `json:"selectedLayers"`
}

// PredictHandler serves POST /v1/predictions and the legacy
// /api/gemini/predict. Errors use the {message} body of the legacy route.
func PredictHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !deps.Predictions.Configured() {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": missingPredictionKey})
		}

		var req predictRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": usecases.MissingPredictionParams})
		}
		if req.Latitude == nil || req.Longitude == nil || req.SelectedLayers == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": usecases.MissingPredictionParams})
		}

		p, err := deps.Predictions.Predict(c.UserContext(), "", domain.PredictionRequest{
			Latitude:       *req.Latitude,
			Longitude:      *req.Longitude,
			SelectedLayers: req.SelectedLayers,
		})
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": ve.Message})
			}
			LoggerFromCtx(c.UserContext()).Error("prediction failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "AI Error: " + err.Error()})
		}

		c.Set("X-Cache", cacheStatus(p.Cached))
		return c.JSON(p)
	}
}

// SessionPredictHandler predicts at the session's current centre with its
// selected layers.
func SessionPredictHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}

		p, err := deps.Predictions.PredictForSession(c.UserContext(), sess)
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set("X-Cache", cacheStatus(p.Cached))
		return c.JSON(p)
	}
}

type sessionChatRequest struct {
	Prompt string `json:"prompt"`
}

// TranscriptView is a session's chat history.
type TranscriptView struct {
	Messages []domain.ChatMessage `json:"messages"`
	Pending  bool                 `json:"pending"`
	Error    string               `json:"error,omitempty"`
}

// SessionChatHandler runs one chat exchange in the session transcript and
// returns the two new messages.
func SessionChatHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}

		var req sessionChatRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		msgs, err := deps.Chat.Send(c.UserContext(), sess, req.Prompt)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(TranscriptView{Messages: msgs})
	}
}

// SessionTranscriptHandler returns the session's chat history.
func SessionTranscriptHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := lookupSession(c, deps)
		if sess == nil {
			return err
		}
		msgs := sess.Chat.Messages()
		if msgs == nil {
			msgs = []domain.ChatMessage{}
		}
		return c.JSON(TranscriptView{
			Messages: msgs,
			Pending:  sess.Chat.Pending(),
			Error:    sess.Chat.LastError(),
		})
	}
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
