package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"project0/internal/config"
	"project0/internal/database"
	"project0/internal/featureflags"
	"project0/internal/llm"
	"project0/internal/models"
	"project0/internal/notifications"
	"project0/internal/prompts"
	"project0/internal/repository"
	"project0/internal/stream"
	"project0/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// recordingSink collects events. failAfter > 0 makes the n-th send onward fail.
type recordingSink struct {
	events    []stream.Event
	failAfter int
}

var errSinkClosed = errors.New("broken pipe")

func (s *recordingSink) Send(ev stream.Event) error {
	if s.failAfter > 0 && len(s.events)+1 >= s.failAfter {
		return errSinkClosed
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) types() []string {
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func (s *recordingSink) last() stream.Event {
	return s.events[len(s.events)-1]
}

// recordingPublisher captures notifications.
type recordingPublisher struct {
	events map[uint][]notifications.Event
}

func (p *recordingPublisher) Notify(_ context.Context, userID uint, ev notifications.Event) error {
	if p.events == nil {
		p.events = make(map[uint][]notifications.Event)
	}
	p.events[userID] = append(p.events[userID], ev)
	return nil
}

type testEnv struct {
	db        *gorm.DB
	users     repository.UserRepository
	sessions  repository.SessionRepository
	mvps      repository.MVPRepository
	analyses  repository.AnalysisRepository
	credits   repository.CreditRepository
	analytics repository.AnalyticsRepository
	ollama    *testutil.FakeOllama
	llm       *llm.Client
	notifier  *recordingPublisher
	cfg       *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	fake := testutil.NewFakeOllama()
	t.Cleanup(fake.Close)

	return &testEnv{
		db:        db,
		users:     repository.NewUserRepository(db),
		sessions:  repository.NewSessionRepository(db),
		mvps:      repository.NewMVPRepository(db),
		analyses:  repository.NewAnalysisRepository(db),
		credits:   repository.NewCreditRepository(db),
		analytics: repository.NewAnalyticsRepository(db),
		ollama:    fake,
		llm:       llm.NewClient(fake.URL, "", 5*time.Second),
		notifier:  &recordingPublisher{},
		cfg: &config.Config{
			JWTSecret:            "test-secret-with-at-least-32-characters",
			SessionLifetimeHours: 1,
			StartingCredits:      3,
			CreditRequestAmount:  5,
			Language:             "en",
			UploadDir:            t.TempDir(),
			AvatarMaxSizeMB:      1,
			MaxUploadSizeMB:      1,
		},
	}
}

func (e *testEnv) createUser(t *testing.T, username string, credits int) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hash",
		Role:     models.RoleCandidate,
		Language: "en",
		Credits:  credits,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) reloadUser(t *testing.T, id uint) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.First(&u, id).Error)
	return &u
}

func (e *testEnv) generation(flags string) *GenerationService {
	return NewGenerationService(GenerationConfig{
		Users:     e.users,
		MVPs:      e.mvps,
		Analytics: e.analytics,
		LLM:       e.llm,
		Prompts:   prompts.MustDefault(),
		Flags:     featureflags.NewManager(flags),
		Notifier:  e.notifier,
		Model:     "test-chat",
	})
}

func (e *testEnv) analysis(flags string) *AnalysisService {
	return NewAnalysisService(AnalysisConfig{
		Users:          e.users,
		Analyses:       e.analyses,
		Analytics:      e.analytics,
		LLM:            e.llm,
		Prompts:        prompts.MustDefault(),
		Flags:          featureflags.NewManager(flags),
		Notifier:       e.notifier,
		Model:          "test-analysis",
		OllamaURL:      e.ollama.URL,
		MaxUploadBytes: 1 << 20,
	})
}

func (e *testEnv) creditService(flags string) *CreditService {
	return NewCreditService(CreditConfig{
		Users:     e.users,
		Credits:   e.credits,
		Analytics: e.analytics,
		MVPs:      e.mvps,
		Analyses:  e.analyses,
		Flags:     featureflags.NewManager(flags),
		Notifier:  e.notifier,
		Amount:    e.cfg.CreditRequestAmount,
	})
}

func requireAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected *models.AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
}
