package server

import (
	"strings"

	"project0/internal/models"
	"project0/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAllUsers handles GET /api/admin/users
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.User
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 100)

	users, err := s.userService.ListUsers(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(users)
}

// GetMyProfile handles GET /api/users/me
// @Summary My profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update my profile
// @Description Omitted fields are left unchanged
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		FullName    *string `json:"full_name"`
		Headline    *string `json:"headline"`
		Location    *string `json:"location"`
		Bio         *string `json:"bio"`
		Phone       *string `json:"phone"`
		Skills      *string `json:"skills"`
		LinkedInURL *string `json:"linkedin_url"`
		GithubURL   *string `json:"github_url"`
		Website     *string `json:"website"`
		Language    *string `json:"language"`
		Role        *string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:      currentUserID(c),
		FullName:    req.FullName,
		Headline:    req.Headline,
		Location:    req.Location,
		Bio:         req.Bio,
		Phone:       req.Phone,
		Skills:      req.Skills,
		LinkedInURL: req.LinkedInURL,
		GithubURL:   req.GithubURL,
		Website:     req.Website,
		Language:    req.Language,
		Role:        req.Role,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(user)
}

// UploadAvatar handles POST /api/users/me/avatar
// @Summary Upload avatar
// @Description Crops to a square, resizes and stores the image as WebP or JPEG
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Image"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	file, err := readFormFile(c, "avatar")
	if err != nil {
		return nil
	}

	user, err := s.avatarService.Upload(c.UserContext(), service.UploadAvatarInput{
		UserID:      currentUserID(c),
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Content:     file.Content,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(user)
}

// ServeAvatar handles GET /uploads/avatars/:name
func (s *Server) ServeAvatar(c *fiber.Ctx) error {
	path, err := s.avatarService.Resolve(c.Params("name"))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	return c.SendFile(path)
}

// UploadResume handles POST /api/users/me/resume
// @Summary Upload profile resume
// @Description Stores a PDF, DOCX or text resume used by /analyze when no file is sent
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Resume"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me/resume [post]
func (s *Server) UploadResume(c *fiber.Ctx) error {
	file, err := readFormFile(c, "file")
	if err != nil {
		return nil
	}

	user, err := s.resumeService.Upload(c.UserContext(), service.UploadResumeInput{
		UserID:   currentUserID(c),
		Filename: file.Filename,
		Content:  file.Content,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(user)
}

// DownloadResume handles GET /api/users/me/resume
// @Summary Download profile resume
// @Tags users
// @Produce application/octet-stream
// @Security BearerAuth
// @Success 200 {file} file
// @Failure 404 {object} models.ErrorResponse
// @Router /users/me/resume [get]
func (s *Server) DownloadResume(c *fiber.Ctx) error {
	stored, err := s.resumeService.Open(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.Download(stored.Path, stored.Filename)
}

// DeleteResume handles DELETE /api/users/me/resume
// @Summary Remove profile resume
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /users/me/resume [delete]
func (s *Server) DeleteResume(c *fiber.Ctx) error {
	user, err := s.resumeService.Delete(c.UserContext(), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(user)
}

// PromoteToAdmin handles POST /api/admin/users/:id/promote-admin
// Admin check is enforced by AdminRequired middleware on the route.
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	targetID, err := s.parseID(c)
	if err != nil {
		return nil
	}

	target, err := s.userService.SetAdmin(c.UserContext(), targetID, true)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(fiber.Map{"message": "User promoted to admin", "user": target})
}

// DemoteFromAdmin handles POST /api/admin/users/:id/demote-admin
// Admin check is enforced by AdminRequired middleware on the route.
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	targetID, err := s.parseID(c)
	if err != nil {
		return nil
	}
	if strings.EqualFold(s.config.Env, "development") && targetID == 1 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("cannot demote protected development root admin user"))
	}
	if targetID == currentUserID(c) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("cannot demote yourself"))
	}

	target, err := s.userService.SetAdmin(c.UserContext(), targetID, false)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(fiber.Map{"message": "User demoted from admin", "user": target})
}
