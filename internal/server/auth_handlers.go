package server

import (
	"time"

	"project0/internal/middleware"
	"project0/internal/models"
	"project0/internal/service"

	"github.com/gofiber/fiber/v2"
)

// MeResponse is the account summary returned by /api/auth/me.
type MeResponse struct {
	ID            uint       `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	Role          string     `json:"role"`
	Language      string     `json:"language"`
	Credits       int        `json:"credits"`
	TotalRequests int        `json:"total_requests"`
	IsAdmin       bool       `json:"is_admin"`
	AvatarURL     string     `json:"avatar_url"`
	CreatedAt     time.Time  `json:"created_at"`
	LastLogin     *time.Time `json:"last_login"`
}

func toMeResponse(u *models.User) MeResponse {
	return MeResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          u.Role,
		Language:      u.Language,
		Credits:       u.Credits,
		TotalRequests: u.TotalRequests,
		IsAdmin:       u.IsAdmin,
		AvatarURL:     u.AvatarURL(),
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}
}

// Register handles POST /api/auth/register
// @Summary User registration
// @Description Register a new account and start a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string,full_name=string,role=string,language=string} true "Registration request"
// @Success 201 {object} object{success=bool,token=string,user=MeResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Role     string `json:"role"`
		Language string `json:"language"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.authService.Register(c.UserContext(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FullName:  req.FullName,
		Role:      req.Role,
		Language:  req.Language,
		UserAgent: c.Get(fiber.HeaderUserAgent),
		IP:        c.IP(),
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	s.setSessionCookie(c, result.Session)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"token":   result.Token,
		"user":    toMeResponse(result.User),
	})
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate by email or username and start a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,username=string,password=string} true "Login credentials"
// @Success 200 {object} object{success=bool,token=string,user=MeResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	login := req.Email
	if login == "" {
		login = req.Username
	}

	result, err := s.authService.Login(c.UserContext(), service.LoginInput{
		Login:     login,
		Password:  req.Password,
		UserAgent: c.Get(fiber.HeaderUserAgent),
		IP:        c.IP(),
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	s.setSessionCookie(c, result.Session)
	return c.JSON(fiber.Map{
		"success": true,
		"token":   result.Token,
		"user":    toMeResponse(result.User),
	})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Ends the cookie session and revokes the bearer token
// @Tags auth
// @Produce json
// @Success 200 {object} object{success=bool}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.Logout(c.UserContext(), c.Cookies(sessionCookie), middleware.BearerToken(c)); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	c.ClearCookie(sessionCookie)
	return c.JSON(fiber.Map{"success": true})
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(toMeResponse(user))
}

func (s *Server) setSessionCookie(c *fiber.Ctx, session *models.Session) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(s.authService.SessionLifetime().Seconds()),
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.config.Env == "production",
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
