package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/llm"
)

const (
	chatTitleMaxRunes   = 60
	chatSessionsLimit   = 50
	defaultChatHistory  = 20
	defaultSystemPrompt = "You are a helpful teaching assistant for a school classroom platform. Answer clearly and concisely."
)

type chatRepository interface {
	Create(ctx context.Context, history *models.ChatHistory) error
	FindForUser(ctx context.Context, id primitive.ObjectID, userID string) (*models.ChatHistory, error)
	AppendMessages(ctx context.Context, id primitive.ObjectID, userID string, messages ...models.ChatMessage) error
	ListForUser(ctx context.Context, userID string, limit int64) ([]models.ChatSessionSummary, error)
	DeleteForUser(ctx context.Context, id primitive.ObjectID, userID string) (bool, error)
}

// ChatConfig shapes the prompt sent to the model.
type ChatConfig struct {
	SystemPrompt  string
	HistoryWindow int
}

// ChatService relays user questions to the LLM and keeps transcripts in MongoDB.
type ChatService struct {
	repo      chatRepository
	client    llm.Client
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ChatConfig
	now       func() time.Time
}

// NewChatService constructs a ChatService. metrics may be nil.
func NewChatService(repo chatRepository, client llm.Client, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ChatConfig) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = defaultChatHistory
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	return &ChatService{
		repo:      repo,
		client:    client,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Send asks the assistant a question, continuing req.SessionID when set.
// Nothing is stored when the model call fails.
func (s *ChatService) Send(ctx context.Context, actor models.Actor, req models.ChatRequest) (*models.ChatReply, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid chat message")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message is empty")
	}

	var history *models.ChatHistory
	if req.SessionID != "" {
		id, err := parseSessionID(req.SessionID)
		if err != nil {
			return nil, err
		}
		if history, err = s.load(ctx, id, actor.ID); err != nil {
			return nil, err
		}
	}

	prompt := llm.Request{System: s.config.SystemPrompt}
	if history != nil {
		prior := history.Messages
		if len(prior) > s.config.HistoryWindow {
			prior = prior[len(prior)-s.config.HistoryWindow:]
		}
		for _, m := range prior {
			prompt.Messages = append(prompt.Messages, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	prompt.Messages = append(prompt.Messages, llm.Message{Role: llm.RoleUser, Content: message})

	started := s.now()
	reply, err := s.client.Complete(ctx, prompt)
	s.metrics.ObserveLLMRequest(err == nil, s.now().Sub(started))
	if err != nil {
		s.logger.Warn("llm request failed", zap.String("user_id", actor.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "assistant is unavailable, try again later")
	}

	now := s.now().UTC()
	turns := []models.ChatMessage{
		{Role: models.ChatRoleUser, Content: message, CreatedAt: now},
		{Role: models.ChatRoleAssistant, Content: reply.Text, CreatedAt: now},
	}

	if history == nil {
		history = &models.ChatHistory{
			UserID:    actor.ID,
			Title:     chatTitle(message),
			Messages:  turns,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, history); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save chat session")
		}
	} else if err := s.repo.AppendMessages(ctx, history.ID, actor.ID, turns...); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chat session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save chat messages")
	}

	return &models.ChatReply{SessionID: history.ID.Hex(), Title: history.Title, Reply: turns[1]}, nil
}

// ListSessions returns the caller's chat sessions, most recent first.
func (s *ChatService) ListSessions(ctx context.Context, actor models.Actor) ([]models.ChatSessionSummary, error) {
	sessions, err := s.repo.ListForUser(ctx, actor.ID, chatSessionsLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list chat sessions")
	}
	if sessions == nil {
		sessions = []models.ChatSessionSummary{}
	}
	return sessions, nil
}

// GetSession returns a full transcript owned by the caller.
func (s *ChatService) GetSession(ctx context.Context, actor models.Actor, rawID string) (*models.ChatHistory, error) {
	id, err := parseSessionID(rawID)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id, actor.ID)
}

// DeleteSession removes a transcript owned by the caller.
func (s *ChatService) DeleteSession(ctx context.Context, actor models.Actor, rawID string) error {
	id, err := parseSessionID(rawID)
	if err != nil {
		return err
	}
	deleted, err := s.repo.DeleteForUser(ctx, id, actor.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete chat session")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "chat session not found")
	}
	return nil
}

func (s *ChatService) load(ctx context.Context, id primitive.ObjectID, userID string) (*models.ChatHistory, error) {
	history, err := s.repo.FindForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chat session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chat session")
	}
	return history, nil
}

func parseSessionID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, appErrors.Clone(appErrors.ErrNotFound, "chat session not found")
	}
	return id, nil
}

func chatTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) <= chatTitleMaxRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:chatTitleMaxRunes-1])) + "…"
}
