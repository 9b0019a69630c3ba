package service

import (
	"context"
	"log/slog"
	"time"

	"project0/internal/featureflags"
	"project0/internal/middleware"
	"project0/internal/models"
	"project0/internal/notifications"
	"project0/internal/repository"
)

// activeWindow is how recent a login must be to count as an active user.
const activeWindow = 30 * 24 * time.Hour

// OnlineCounter reports connected WebSocket users. The notification hub implements it.
type OnlineCounter interface {
	OnlineCount(ctx context.Context) int
}

type CreditService struct {
	users     repository.UserRepository
	credits   repository.CreditRepository
	analytics repository.AnalyticsRepository
	mvps      repository.MVPRepository
	analyses  repository.AnalysisRepository
	flags     *featureflags.Manager
	notifier  notifications.Publisher
	online    OnlineCounter
	amount    int
	now       func() time.Time
}

type CreditConfig struct {
	Users     repository.UserRepository
	Credits   repository.CreditRepository
	Analytics repository.AnalyticsRepository
	MVPs      repository.MVPRepository
	Analyses  repository.AnalysisRepository
	Flags     *featureflags.Manager
	Notifier  notifications.Publisher
	Online    OnlineCounter
	// Amount is the number of credits a request asks for.
	Amount int
}

func NewCreditService(cfg CreditConfig) *CreditService {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notifications.NopPublisher{}
	}
	amount := cfg.Amount
	if amount <= 0 {
		amount = 5
	}
	return &CreditService{
		users:     cfg.Users,
		credits:   cfg.Credits,
		analytics: cfg.Analytics,
		mvps:      cfg.MVPs,
		analyses:  cfg.Analyses,
		flags:     cfg.Flags,
		notifier:  notifier,
		online:    cfg.Online,
		amount:    amount,
		now:       time.Now,
	}
}

// Request opens a credit request. A user may have one pending request at a time.
func (s *CreditService) Request(ctx context.Context, userID uint) (*models.CreditRequest, error) {
	req := &models.CreditRequest{
		UserID: userID,
		Amount: s.amount,
		Status: models.CreditRequestPending,
	}
	if err := s.credits.Create(ctx, req); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "credit request created",
		slog.Uint64("user_id", uint64(userID)), slog.Uint64("request_id", uint64(req.ID)))
	return req, nil
}

// List returns requests filtered by status; "" lists all of them.
func (s *CreditService) List(ctx context.Context, status string, limit, offset int) ([]models.CreditRequest, error) {
	switch status {
	case "", models.CreditRequestPending, models.CreditRequestApproved, models.CreditRequestRejected:
	default:
		return nil, models.NewValidationError("status must be one of pending, approved, rejected")
	}
	limit, offset = normalizePage(limit, offset)
	return s.credits.List(ctx, status, limit, offset)
}

func (s *CreditService) Approve(ctx context.Context, id uint) (*models.CreditRequest, error) {
	return s.process(ctx, id, true)
}

func (s *CreditService) Reject(ctx context.Context, id uint) (*models.CreditRequest, error) {
	return s.process(ctx, id, false)
}

func (s *CreditService) process(ctx context.Context, id uint, approve bool) (*models.CreditRequest, error) {
	req, err := s.credits.Process(ctx, id, approve, s.now())
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "credit request processed",
		slog.Uint64("request_id", uint64(req.ID)), slog.String("status", req.Status))

	if s.flags.Enabled(featureflags.FlagNotifications, req.UserID) {
		ev := notifications.NewEvent(notifications.EventCreditRequestProcessed, map[string]any{
			"request_id": req.ID,
			"status":     req.Status,
			"amount":     req.Amount,
		})
		if err := s.notifier.Notify(ctx, req.UserID, ev); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish credit notification", slog.String("error", err.Error()))
		}
	}
	return req, nil
}

// AdminAnalytics is the payload of the admin dashboard.
type AdminAnalytics struct {
	TotalUsers            int64            `json:"total_users"`
	ActiveUsers           int64            `json:"active_users"`
	TotalAIRequests       int64            `json:"total_ai_requests"`
	PendingCreditRequests int64            `json:"pending_credit_requests"`
	OnlineUsers           int              `json:"online_users"`
	Counters              map[string]int64 `json:"counters"`
}

func (s *CreditService) Analytics(ctx context.Context) (*AdminAnalytics, error) {
	var (
		out AdminAnalytics
		err error
	)
	if out.TotalUsers, err = s.users.Count(ctx); err != nil {
		return nil, err
	}
	if out.ActiveUsers, err = s.users.CountActiveSince(ctx, s.now().Add(-activeWindow)); err != nil {
		return nil, err
	}
	if out.TotalAIRequests, err = s.users.SumRequests(ctx); err != nil {
		return nil, err
	}
	if out.PendingCreditRequests, err = s.credits.CountPending(ctx); err != nil {
		return nil, err
	}
	if out.Counters, err = s.analytics.All(ctx); err != nil {
		return nil, err
	}
	for _, key := range []string{models.CounterMVPs, models.CounterAnalyses, models.CounterLLMAnalyses, models.CounterChats} {
		if _, ok := out.Counters[key]; !ok {
			out.Counters[key] = 0
		}
	}
	if s.online != nil {
		out.OnlineUsers = s.online.OnlineCount(ctx)
	}
	return &out, nil
}

// Totals are the record counts shown on the health endpoint.
type Totals struct {
	MVPs     int64 `json:"total_mvps"`
	Analyses int64 `json:"total_analyses"`
}

func (s *CreditService) Totals(ctx context.Context) (*Totals, error) {
	mvps, err := s.mvps.Count(ctx)
	if err != nil {
		return nil, err
	}
	analyses, err := s.analyses.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Totals{MVPs: mvps, Analyses: analyses}, nil
}
