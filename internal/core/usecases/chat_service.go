package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/groundwatch/internal/core/domain"
	"github.com/samirrijal/groundwatch/internal/core/ports"
	"github.com/samirrijal/groundwatch/internal/pkg/metrics"
)

const (
	expertInstruction = "You are a world-class expert in geographic information systems (GIS) and " +
		"hydrology, specialised in groundwater analysis, recharge and flow within smart environmental " +
		"systems, particularly in mountainous regions such as Ibb Governorate. Keep answers very short, " +
		"precise and dense with direct, well-founded information. Analyse data on your own when needed " +
		"and return finished results. Apply current geospatial modelling techniques such as LSTM, " +
		"XGBoost and Random Forest where relevant. Never mention any company or platform, do not use " +
		"colloquial language, and do not talk about yourself; stay focused on the task."

	expertAcknowledgement = "Understood. I am ready to assist with any questions regarding GIS, " +
		"water resources, and groundwater analysis."

	// NoReplyText stands in for an empty model answer.
	NoReplyText = "No reply from the model"

	promptRequired = "Prompt is required and must be a string"
)

// ChatService answers free-text questions with the hosted language model.
type ChatService struct {
	model     ports.LanguageModel
	publisher ports.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewChatService creates a new ChatService. A nil model makes every call
// fail with domain.ErrNotConfigured; publisher may be nil.
func NewChatService(model ports.LanguageModel, publisher ports.EventPublisher, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{model: model, publisher: publisher, logger: logger, now: time.Now}
}

// Configured reports whether a language model is available.
func (s *ChatService) Configured() bool { return s.model != nil }

// Reply sends prompt to the model behind the expert priming turns.
func (s *ChatService) Reply(ctx context.Context, sessionID, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.NewValidationError("prompt", promptRequired)
	}
	if s.model == nil {
		return "", domain.ErrNotConfigured
	}

	turns := []domain.Turn{
		{Role: domain.RoleUser, Text: expertInstruction},
		{Role: domain.RoleModel, Text: expertAcknowledgement},
		{Role: domain.RoleUser, Text: prompt},
	}

	start := time.Now()
	reply, err := s.model.Generate(ctx, turns)
	metrics.ObserveLLM("chat", start, err)
	if err != nil {
		return "", fmt.Errorf("chat reply: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		reply = NoReplyText
	}

	publishAnalysis(ctx, s.publisher, s.logger, &domain.Analysis{
		ID:        uuid.NewString(),
		Kind:      domain.AnalysisChat,
		SessionID: sessionID,
		Prompt:    prompt,
		Response:  reply,
		CreatedAt: s.now().UTC(),
	})

	return reply, nil
}

// Send runs one exchange in a session's transcript and returns the user
// message followed by the AI message. Only one exchange per session may be
// in progress.
func (s *ChatService) Send(ctx context.Context, sess *Session, text string) ([]domain.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewValidationError("prompt", promptRequired)
	}

	userMsg, err := sess.Chat.Begin(text, s.now().UTC())
	if err != nil {
		return nil, err
	}

	reply, err := s.Reply(ctx, sess.ID, text)
	if err != nil {
		sess.Chat.Fail(err)
		return nil, err
	}

	aiMsg := sess.Chat.Complete(reply, s.now().UTC())
	return []domain.ChatMessage{userMsg, aiMsg}, nil
}

// publishAnalysis hands a finished exchange to the archive. Failures are
// logged; the caller already has its answer.
func publishAnalysis(ctx context.Context, pub ports.EventPublisher, logger *slog.Logger, a *domain.Analysis) {
	if pub == nil {
		return
	}
	if err := pub.PublishAnalysis(ctx, a); err != nil {
		logger.WarnContext(ctx, "publish analysis failed", "kind", a.Kind, "id", a.ID, "error", err)
	}
}
