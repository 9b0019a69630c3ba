package server

import (
	"strings"

	"project0/internal/models"

	"github.com/gofiber/fiber/v2"
)

// RequestCredits handles POST /api/credits/request
// @Summary Ask an admin for more credits
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.CreditRequest
// @Failure 409 {object} models.ErrorResponse
// @Router /credits/request [post]
func (s *Server) RequestCredits(c *fiber.Ctx) error {
	req, err := s.creditService.Request(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// GetAdminAnalytics handles GET /api/admin/analytics
// @Summary Admin dashboard numbers
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.AdminAnalytics
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/analytics [get]
func (s *Server) GetAdminAnalytics(c *fiber.Ctx) error {
	out, err := s.creditService.Analytics(c.UserContext())
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(out)
}

// GetCreditRequests handles GET /api/admin/credit-requests
// @Summary List credit requests
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.CreditRequest
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/credit-requests [get]
func (s *Server) GetCreditRequests(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))

	reqs, err := s.creditService.List(c.UserContext(), status, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(reqs)
}

// ApproveCreditRequest handles POST /api/admin/credit-requests/:id/approve
// @Summary Approve a credit request
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.CreditRequest
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/credit-requests/{id}/approve [post]
func (s *Server) ApproveCreditRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	req, err := s.creditService.Approve(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(req)
}

// RejectCreditRequest handles POST /api/admin/credit-requests/:id/reject
// @Summary Reject a credit request
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Success 200 {object} models.CreditRequest
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/credit-requests/{id}/reject [post]
func (s *Server) RejectCreditRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	req, err := s.creditService.Reject(c.UserContext(), id)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(req)
}
