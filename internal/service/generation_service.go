package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"project0/internal/featureflags"
	"project0/internal/llm"
	"project0/internal/middleware"
	"project0/internal/models"
	"project0/internal/notifications"
	"project0/internal/observability"
	"project0/internal/prompts"
	"project0/internal/repository"
	"project0/internal/stream"
	"project0/internal/validation"
)

// Progress messages of the generation stream.
const (
	StatusAnalyzingIdea = "🧠 Analyzing idea..."
	StatusDesigningUI   = "🎨 Designing UI..."
)

// Placeholder pages for the preview endpoint.
const (
	PreviewNoCode   = "<h1>No code generated</h1>"
	PreviewNotFound = "<h1>MVP not found</h1>"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	mvpIDAttempts   = 5
)

var (
	htmlFence = regexp.MustCompile("(?s)```html\n(.*?)\n```")
	bareFence = regexp.MustCompile("(?s)```\n(.*?)\n```")
)

// ExtractHTML returns the first ```html block of a model reply. A bare ```
// block is accepted only when it looks like markup. Otherwise it returns "".
func ExtractHTML(markdown string) string {
	if m := htmlFence.FindStringSubmatch(markdown); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := bareFence.FindStringSubmatch(markdown); m != nil {
		code := m[1]
		if strings.Contains(code, "<!DOCTYPE") || strings.Contains(code, "<html") || strings.Contains(code, "<div") {
			return strings.TrimSpace(code)
		}
	}
	return ""
}

// PreviewHTML is what /preview serves for a stored MVP.
func PreviewHTML(m *models.MVP) string {
	if m == nil || !m.HasCode() {
		return PreviewNoCode
	}
	return m.Code
}

type GenerationConfig struct {
	Users     repository.UserRepository
	MVPs      repository.MVPRepository
	Analytics repository.AnalyticsRepository
	LLM       llm.Streamer
	Prompts   *prompts.Catalogue
	Flags     *featureflags.Manager
	Notifier  notifications.Publisher
	Model     string
}

type GenerationService struct {
	users     repository.UserRepository
	mvps      repository.MVPRepository
	analytics repository.AnalyticsRepository
	llm       llm.Streamer
	prompts   *prompts.Catalogue
	flags     *featureflags.Manager
	notifier  notifications.Publisher
	model     string
	now       func() time.Time
}

func NewGenerationService(cfg GenerationConfig) *GenerationService {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notifications.NopPublisher{}
	}
	return &GenerationService{
		users:     cfg.Users,
		mvps:      cfg.MVPs,
		analytics: cfg.Analytics,
		llm:       cfg.LLM,
		prompts:   cfg.Prompts,
		flags:     cfg.Flags,
		notifier:  notifier,
		model:     cfg.Model,
		now:       time.Now,
	}
}

// Model is the chat model name reported by the health endpoint.
func (s *GenerationService) Model() string { return s.model }

// PrepareGeneration validates the idea and charges the user before any
// stream is opened, so failures can still be reported as plain HTTP errors.
func (s *GenerationService) PrepareGeneration(ctx context.Context, userID uint, idea string) (string, error) {
	idea = strings.TrimSpace(idea)
	if err := validation.ValidateLength("idea", idea, 1, validation.MaxIdeaLength); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	if err := chargeRequest(ctx, s.users, s.flags, userID); err != nil {
		return "", err
	}
	return idea, nil
}

// chargeRequest takes a credit when the credits flag is on and counts the request.
func chargeRequest(ctx context.Context, users repository.UserRepository, flags *featureflags.Manager, userID uint) error {
	if flags.Enabled(featureflags.FlagCredits, userID) {
		ok, err := users.DeductCredit(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewForbiddenError("Insufficient credits")
		}
	}
	return users.IncrementRequests(ctx, userID)
}

// Generate streams an MVP for idea to sink and stores the result. Exactly one
// terminal event is sent unless the client disconnects first.
func (s *GenerationService) Generate(ctx context.Context, userID uint, idea string, sink Sink) (*models.MVP, error) {
	log := middleware.Logger.With(slog.Uint64("user_id", uint64(userID)), slog.String("model", s.model))

	for _, msg := range []string{StatusAnalyzingIdea, StatusDesigningUI} {
		if err := sink.Send(stream.Status(msg)); err != nil {
			return nil, ErrClientGone
		}
	}

	userPrompt, err := s.prompts.MVPUser(idea)
	if err != nil {
		finish(sink, stream.Error(err))
		return nil, models.NewInternalError(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	chunks, errs := s.llm.StreamChat(ctx, llm.ChatRequest{
		Model: s.model,
		Messages: []llm.Message{
			{Role: "system", Content: s.prompts.MVPSystem()},
			{Role: "user", Content: userPrompt},
		},
		Options: &llm.Options{Temperature: 0.8, TopP: 0.95, NumCtx: 8192},
	})

	text, n, err := relay(cancel, chunks, errs, sink)
	if errors.Is(err, ErrClientGone) {
		log.InfoContext(ctx, "generation abandoned by client", slog.Int("chunks", n))
		return nil, err
	}
	if err != nil {
		log.WarnContext(ctx, "generation failed", slog.Int("chunks", n), slog.String("error", err.Error()))
		finish(sink, stream.Error(err))
		return nil, models.NewUpstreamError(err)
	}

	mvp := &models.MVP{
		UserID:   userID,
		Idea:     idea,
		Code:     ExtractHTML(text),
		Markdown: text,
		Model:    s.model,
	}
	// The stream is complete; persistence must not depend on the client staying.
	saveCtx := context.WithoutCancel(ctx)
	if err := s.save(saveCtx, mvp); err != nil {
		log.ErrorContext(ctx, "failed to store mvp", slog.String("error", err.Error()))
		finish(sink, stream.Error(errors.New("failed to save MVP")))
		return nil, err
	}

	finish(sink, stream.MVPDone(mvp.ID, mvp.HasCode()))
	log.InfoContext(ctx, "mvp generated", slog.String("mvp_id", mvp.ID), slog.Int("chunks", n), slog.Bool("has_code", mvp.HasCode()))

	s.afterSave(saveCtx, mvp)
	return mvp, nil
}

// save stores mvp under the current unix-millis id, moving forward on collision.
func (s *GenerationService) save(ctx context.Context, mvp *models.MVP) error {
	id := s.now().UnixMilli()
	var err error
	for i := 0; i < mvpIDAttempts; i++ {
		mvp.ID = strconv.FormatInt(id+int64(i), 10)
		err = s.mvps.Create(ctx, mvp)
		var appErr *models.AppError
		if err == nil || !errors.As(err, &appErr) || appErr.Code != models.CodeConflict {
			return err
		}
	}
	return err
}

func (s *GenerationService) afterSave(ctx context.Context, mvp *models.MVP) {
	engine := models.EngineLLM
	observability.GenerationsTotal.WithLabelValues("mvp", engine).Inc()
	if err := s.analytics.Increment(ctx, models.CounterMVPs); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to bump mvp counter", slog.String("error", err.Error()))
	}
	if !s.flags.Enabled(featureflags.FlagNotifications, mvp.UserID) {
		return
	}
	ev := notifications.NewEvent(notifications.EventMVPReady, map[string]any{
		"mvp_id":   mvp.ID,
		"idea":     mvp.Idea,
		"has_code": mvp.HasCode(),
	})
	if err := s.notifier.Notify(ctx, mvp.UserID, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish mvp notification", slog.String("error", err.Error()))
	}
}

// ChatInput is a conversation, optionally about one of the caller's MVPs.
type ChatInput struct {
	Messages []llm.Message
	MVPID    string
}

// PrepareChat validates the conversation and prepends the MVP context when requested.
func (s *GenerationService) PrepareChat(ctx context.Context, userID uint, in ChatInput) ([]llm.Message, error) {
	if len(in.Messages) == 0 {
		return nil, models.NewValidationError("messages are required")
	}
	if len(in.Messages) > validation.MaxChatMessages {
		return nil, models.NewValidationError("too many messages")
	}

	msgs := make([]llm.Message, 0, len(in.Messages)+2)
	if id := strings.TrimSpace(in.MVPID); id != "" {
		mvp, err := s.mvps.GetForUser(ctx, id, userID)
		if err != nil {
			return nil, err
		}
		contextMsg, err := s.prompts.ChatContext(mvp.Idea, mvp.Code)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		msgs = append(msgs,
			llm.Message{Role: "system", Content: s.prompts.MVPSystem()},
			llm.Message{Role: "system", Content: contextMsg},
		)
	}

	for _, m := range in.Messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if err := validation.ValidateOneOf("role", role, "user", "assistant"); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if err := validation.ValidateLength("content", m.Content, 1, validation.MaxChatMessageLength); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return msgs, nil
}

// Chat relays a model reply to sink. Only the chats counter is stored.
func (s *GenerationService) Chat(ctx context.Context, userID uint, msgs []llm.Message, sink Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks, errs := s.llm.StreamChat(ctx, llm.ChatRequest{
		Model:    s.model,
		Messages: msgs,
		Options:  &llm.Options{Temperature: 0.7, TopP: 0.95, NumCtx: 8192},
	})
	_, n, err := relay(cancel, chunks, errs, sink)
	if errors.Is(err, ErrClientGone) {
		return err
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "chat failed",
			slog.Uint64("user_id", uint64(userID)), slog.Int("chunks", n), slog.String("error", err.Error()))
		finish(sink, stream.Error(err))
		return models.NewUpstreamError(err)
	}

	finish(sink, stream.Done())
	if err := s.analytics.Increment(context.WithoutCancel(ctx), models.CounterChats); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to bump chat counter", slog.String("error", err.Error()))
	}
	return nil
}

func (s *GenerationService) GetMVP(ctx context.Context, id string, userID uint) (*models.MVP, error) {
	return s.mvps.GetForUser(ctx, id, userID)
}

func (s *GenerationService) ListMVPs(ctx context.Context, userID uint, limit, offset int) ([]models.MVP, error) {
	limit, offset = normalizePage(limit, offset)
	return s.mvps.ListByUser(ctx, userID, limit, offset)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
