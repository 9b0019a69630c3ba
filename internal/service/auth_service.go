package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"project0/internal/cache"
	"project0/internal/config"
	"project0/internal/middleware"
	"project0/internal/models"
	"project0/internal/prompts"
	"project0/internal/repository"
	"project0/internal/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// ErrRealtimeUnavailable is returned when a feature needs Redis and none is configured.
var ErrRealtimeUnavailable = errors.New("realtime features require redis")

type AuthService struct {
	users           repository.UserRepository
	sessions        repository.SessionRepository
	rdb             *redis.Client
	jwtSecret       string
	sessionLifetime time.Duration
	startingCredits int
	defaultLanguage string
	now             func() time.Time
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FullName  string
	Role      string
	Language  string
	UserAgent string
	IP        string
}

type LoginInput struct {
	// Login is an email address or a username.
	Login     string
	Password  string
	UserAgent string
	IP        string
}

// AuthResult is what a successful register or login hands back to the client.
type AuthResult struct {
	User    *models.User
	Token   string
	Session *models.Session
}

func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, rdb *redis.Client, cfg *config.Config) *AuthService {
	lifetime := time.Duration(cfg.SessionLifetimeHours) * time.Hour
	if lifetime <= 0 {
		lifetime = 30 * 24 * time.Hour
	}
	return &AuthService{
		users:           users,
		sessions:        sessions,
		rdb:             rdb,
		jwtSecret:       cfg.JWTSecret,
		sessionLifetime: lifetime,
		startingCredits: cfg.StartingCredits,
		defaultLanguage: prompts.NormalizeLang(cfg.Language),
		now:             time.Now,
	}
}

// SessionLifetime is the max-age for session cookies.
func (s *AuthService) SessionLifetime() time.Duration { return s.sessionLifetime }

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateLength("full_name", in.FullName, 0, validation.MaxFullName); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = models.RoleCandidate
	}
	if err := validation.ValidateOneOf("role", role, models.RoleCandidate, models.RoleRecruiter); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	lang := s.defaultLanguage
	if strings.TrimSpace(in.Language) != "" {
		lang = strings.ToLower(strings.TrimSpace(in.Language))
		if err := validation.ValidateOneOf("language", lang, prompts.LangEN, prompts.LangRU); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing, err = s.users.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, err
		}
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	now := s.now()
	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hashed),
		FullName:  in.FullName,
		Role:      role,
		Language:  lang,
		Credits:   s.startingCredits,
		LastLogin: &now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "user registered", slog.Uint64("user_id", uint64(user.ID)))
	return s.startSession(ctx, user, in.UserAgent, in.IP)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	login := strings.TrimSpace(in.Login)
	if login == "" || in.Password == "" {
		return nil, models.NewValidationError("Email or username and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.users.GetByEmail(ctx, login)
	} else {
		user, err = s.users.GetByUsername(ctx, login)
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLogin = &now

	return s.startSession(ctx, user, in.UserAgent, in.IP)
}

func (s *AuthService) startSession(ctx context.Context, user *models.User, userAgent, ip string) (*AuthResult, error) {
	raw, err := newSessionToken()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	now := s.now()
	session := &models.Session{
		Token:     raw,
		UserID:    user.ID,
		UserAgent: truncate(userAgent, 255),
		IP:        truncate(ip, 64),
		ExpiresAt: now.Add(s.sessionLifetime),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	token, _, err := middleware.IssueToken(s.jwtSecret, user.ID, user.Username, now)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, Session: session}, nil
}

// Logout deletes the cookie session and revokes the bearer token. Both are optional.
func (s *AuthService) Logout(ctx context.Context, sessionToken, bearer string) error {
	if sessionToken != "" {
		if err := s.sessions.DeleteByToken(ctx, sessionToken); err != nil {
			return err
		}
	}
	if bearer == "" || s.rdb == nil {
		return nil
	}
	claims, err := middleware.ParseToken(s.jwtSecret, bearer)
	if err != nil || claims.JTI == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, middleware.BlacklistKey(claims.JTI), "1", ttl).Err(); err != nil {
		return models.NewInternalError(fmt.Errorf("revoke token: %w", err))
	}
	return nil
}

// ValidateAccessToken parses a bearer JWT and rejects revoked ones.
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*middleware.TokenClaims, error) {
	claims, err := middleware.ParseToken(s.jwtSecret, token)
	if err != nil {
		return nil, models.NewUnauthorizedError(capitalize(err.Error()))
	}
	if claims.JTI != "" && s.rdb != nil {
		n, err := s.rdb.Exists(ctx, middleware.BlacklistKey(claims.JTI)).Result()
		if err == nil && n > 0 {
			return nil, models.NewUnauthorizedError("Token has been revoked")
		}
	}
	return claims, nil
}

// SessionUser resolves a session cookie. Expired sessions are deleted.
func (s *AuthService) SessionUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, models.NewUnauthorizedError("Authorization required")
	}
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, models.NewUnauthorizedError("Invalid session")
	}
	if session.Expired(s.now()) {
		_ = s.sessions.DeleteByToken(ctx, token)
		return nil, models.NewUnauthorizedError("Session expired")
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return nil, models.NewUnauthorizedError("Invalid session")
		}
		return nil, err
	}
	return user, nil
}

// IssueWSTicket stores a single-use ticket that authenticates one WebSocket upgrade.
func (s *AuthService) IssueWSTicket(ctx context.Context, userID uint) (string, error) {
	if s.rdb == nil {
		return "", models.NewInternalError(ErrRealtimeUnavailable)
	}
	ticket := uuid.NewString()
	err := s.rdb.Set(ctx, cache.WSTicketKey(ticket), strconv.FormatUint(uint64(userID), 10), cache.WSTicketTTL).Err()
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return ticket, nil
}

// RedeemWSTicket consumes a ticket and returns its user.
func (s *AuthService) RedeemWSTicket(ctx context.Context, ticket string) (uint, error) {
	if ticket == "" || s.rdb == nil {
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	raw, err := s.rdb.GetDel(ctx, cache.WSTicketKey(ticket)).Result()
	if err != nil {
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	return uint(id), nil
}

// PurgeExpiredSessions removes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
