package chat

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/bryanwahyu/healthwave/internal/application"
	"github.com/bryanwahyu/healthwave/internal/domain/ai"
	domain "github.com/bryanwahyu/healthwave/internal/domain/conversation"
	"github.com/bryanwahyu/healthwave/internal/domain/failures"
)

const (
	defaultHistoryWindow = 20
	defaultHistoryLimit  = 20
	maxHistoryLimit      = 100
)

// Service implements the chatbot conversation use-cases.
type Service struct {
	Repo         domain.Repository
	Client       ai.Client
	Extractors   domain.ExtractorSet
	Scratch      *application.Scratch
	Clock        application.Clock
	Logger       *slog.Logger
	SystemPrompt string

	// HistoryWindow is how many stored turns are replayed to the model.
	HistoryWindow   int
	MaxMessageChars int
	// MaxExtractedChars bounds the text stored and replayed for an attachment.
	MaxExtractedChars int
	MaxUploadBytes    int64
	Timeout           time.Duration
}

// RespondCommand carries exactly one of Message or File.
type RespondCommand struct {
	UserID  int64 `validate:"gt=0"`
	Message string
	File    *domain.Attachment
}

// Reply is a successful exchange: the stored user turn and the assistant answer.
type Reply struct {
	Content       string       `json:"reply"`
	UserTurn      *domain.Turn `json:"user_turn"`
	AssistantTurn *domain.Turn `json:"assistant_turn"`
}

// Respond appends the user's message or attachment to the conversation, asks
// the chat model for an answer and stores it. A user turn that cannot be
// stored stops the exchange before the model is called.
func (s *Service) Respond(ctx context.Context, cmd RespondCommand) (Reply, error) {
	if err := application.Validate(cmd); err != nil {
		return Reply{}, err
	}

	userTurn, err := s.userTurn(ctx, cmd)
	if err != nil {
		return Reply{}, err
	}

	past, err := s.Repo.History(ctx, cmd.UserID, s.window())
	if err != nil {
		return Reply{}, fmt.Errorf("%w: fetch history: %w", failures.ErrPersistence, err)
	}

	if err := s.Repo.Save(ctx, userTurn); err != nil {
		return Reply{}, fmt.Errorf("%w: save user turn: %w", failures.ErrPersistence, err)
	}

	callCtx := ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	answer, err := s.Client.Complete(callCtx, s.messages(past, userTurn))
	if err != nil {
		s.Logger.Warn("chat completion failed", "user_id", cmd.UserID, "error", err)
		return Reply{}, fmt.Errorf("%w: %w", failures.ErrExternalService, err)
	}

	assistantTurn := &domain.Turn{
		ID:        domain.TurnID(application.NewID()),
		UserID:    cmd.UserID,
		Role:      domain.RoleAssistant,
		Content:   answer,
		CreatedAt: s.Clock.Now(),
	}
	if err := s.Repo.Save(ctx, assistantTurn); err != nil {
		return Reply{}, fmt.Errorf("%w: save assistant turn: %w", failures.ErrPersistence, err)
	}

	s.Logger.Info("chat turn answered",
		"user_id", cmd.UserID,
		"is_file", userTurn.IsFile,
		"history_turns", len(past),
	)
	return Reply{Content: answer, UserTurn: userTurn, AssistantTurn: assistantTurn}, nil
}

// History returns the user's most recent turns, newest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*domain.Turn, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	turns, err := s.Repo.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch history: %w", failures.ErrPersistence, err)
	}
	return turns, nil
}

func (s *Service) userTurn(ctx context.Context, cmd RespondCommand) (*domain.Turn, error) {
	turn := &domain.Turn{
		ID:     domain.TurnID(application.NewID()),
		UserID: cmd.UserID,
		Role:   domain.RoleUser,
	}

	hasText := strings.TrimSpace(cmd.Message) != ""
	switch {
	case cmd.File != nil && hasText:
		return nil, fmt.Errorf("%w: send either a message or a file, not both", failures.ErrInvalidInput)
	case cmd.File != nil:
		content, name, err := s.extract(ctx, cmd.File)
		if err != nil {
			return nil, err
		}
		turn.Content = content
		turn.IsFile = true
		turn.FileName = name
	case hasText:
		msg := strings.TrimSpace(cmd.Message)
		if s.MaxMessageChars > 0 && utf8.RuneCountInString(msg) > s.MaxMessageChars {
			return nil, fmt.Errorf("%w: message longer than %d characters", failures.ErrInvalidInput, s.MaxMessageChars)
		}
		turn.Content = msg
	default:
		return nil, fmt.Errorf("%w: message or file is required", failures.ErrInvalidInput)
	}

	turn.CreatedAt = s.Clock.Now()
	return turn, nil
}

// extract resolves the extractor before touching disk so unsupported types
// never leave a scratch file behind.
func (s *Service) extract(ctx context.Context, file *domain.Attachment) (string, string, error) {
	name := application.SanitizeFilename(file.Name)
	if name == "" || file.Body == nil {
		return "", "", fmt.Errorf("%w: missing attachment", failures.ErrInvalidInput)
	}
	ext := strings.ToLower(filepath.Ext(name))
	extractor, ok := s.Extractors.For(ext)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", failures.ErrUnsupportedFileType, ext)
	}

	path, release, err := s.Scratch.Write(name, file.Body, s.MaxUploadBytes)
	if err != nil {
		return "", "", err
	}
	defer release()

	text, err := extractor.Extract(ctx, path)
	if err != nil {
		return "", "", fmt.Errorf("%w: extract %s: %w", failures.ErrInvalidInput, name, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("%w: no text found in %s", failures.ErrInvalidInput, name)
	}
	if s.MaxExtractedChars > 0 && utf8.RuneCountInString(text) > s.MaxExtractedChars {
		return "", "", fmt.Errorf("%w: %s holds more than %d characters of text",
			failures.ErrInvalidInput, name, s.MaxExtractedChars)
	}
	return text, name, nil
}

// messages builds the model input: system prompt, past turns oldest first,
// then the new user turn.
func (s *Service) messages(past []*domain.Turn, current *domain.Turn) []ai.Message {
	chronological := lo.Reverse(append([]*domain.Turn(nil), past...))
	out := make([]ai.Message, 0, len(past)+2)
	if s.SystemPrompt != "" {
		out = append(out, ai.Message{Role: ai.RoleSystem, Content: s.SystemPrompt})
	}
	out = append(out, lo.Map(chronological, func(t *domain.Turn, _ int) ai.Message {
		return ai.Message{Role: string(t.Role), Content: t.Content}
	})...)
	return append(out, ai.Message{Role: ai.RoleUser, Content: current.Content})
}

func (s *Service) window() int {
	if s.HistoryWindow <= 0 {
		return defaultHistoryWindow
	}
	return s.HistoryWindow
}
