package server

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"strings"

	"project0/internal/llm"
	"project0/internal/middleware"
	"project0/internal/models"
	"project0/internal/service"
	"project0/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// streamSSE commits the event-stream headers and runs fn against the response
// body once the handler returns. fn must not touch c: fasthttp recycles the
// request context before the body writer runs. A failed flush means the
// client left, which the services turn into a cancelled upstream call.
func streamSSE(c *fiber.Ctx, fn func(ctx context.Context, sink *stream.Writer)) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := c.UserContext()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		fn(ctx, stream.NewWriter(w))
	}))
	return nil
}

// logStreamEnd records how a stream ended. The services log the details.
func logStreamEnd(ctx context.Context, kind string, err error) {
	if err == nil {
		return
	}
	middleware.Logger.DebugContext(ctx, "stream ended early",
		slog.String("stream", kind),
		slog.Bool("client_gone", errors.Is(err, service.ErrClientGone)),
		slog.String("error", err.Error()))
}

// Generate handles POST /api/generate
// @Summary Generate an MVP
// @Description Streams the model's reply as Server-Sent Events and stores the extracted HTML
// @Tags generate
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param request body object{idea=string} true "Product idea"
// @Success 200 {string} string "status, content and one done or error event"
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /generate [post]
func (s *Server) Generate(c *fiber.Ctx) error {
	var req struct {
		Idea string `json:"idea"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	userID := currentUserID(c)
	idea, err := s.generationService.PrepareGeneration(c.UserContext(), userID, req.Idea)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return streamSSE(c, func(ctx context.Context, sink *stream.Writer) {
		_, err := s.generationService.Generate(ctx, userID, idea, sink)
		logStreamEnd(ctx, "generate", err)
	})
}

// Chat handles POST /api/chat
// @Summary Chat about an MVP
// @Description Streams a model reply. With mvp_id the stored MVP is sent as context
// @Tags generate
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param request body object{messages=[]llm.Message,mvp_id=string} true "Conversation"
// @Success 200 {string} string "content events and one done or error event"
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /chat [post]
func (s *Server) Chat(c *fiber.Ctx) error {
	var req struct {
		Messages []llm.Message `json:"messages"`
		MVPID    string        `json:"mvp_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	userID := currentUserID(c)
	msgs, err := s.generationService.PrepareChat(c.UserContext(), userID, service.ChatInput{
		Messages: req.Messages,
		MVPID:    req.MVPID,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return streamSSE(c, func(ctx context.Context, sink *stream.Writer) {
		logStreamEnd(ctx, "chat", s.generationService.Chat(ctx, userID, msgs, sink))
	})
}

// Analyze handles POST /api/analyze
// @Summary Match a resume against a vacancy
// @Description Extracts the resume, streams the model's JSON analysis and stores the parsed result
// @Tags analyze
// @Accept multipart/form-data
// @Produce text/event-stream
// @Security BearerAuth
// @Param file formData file false "Resume (.pdf, .docx, .txt, .md); the profile resume when omitted"
// @Param job_description formData string true "Vacancy text"
// @Param use_profile_skills formData string false "yes to include confirmed profile skills"
// @Success 200 {string} string "status, content and one done or error event"
// @Failure 400 {object} models.ErrorResponse
// @Router /analyze [post]
func (s *Server) Analyze(c *fiber.Ctx) error {
	in := service.AnalyzeInput{
		JobDescription:   c.FormValue("job_description"),
		UseProfileSkills: formBool(c.FormValue("use_profile_skills")),
	}
	// Without a file the stored profile resume is analysed.
	if _, err := c.FormFile("file"); err == nil {
		file, err := readFormFile(c, "file")
		if err != nil {
			return nil
		}
		in.Filename, in.Data = file.Filename, file.Content
	}

	job, err := s.analysisService.PrepareAnalysis(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return streamSSE(c, func(ctx context.Context, sink *stream.Writer) {
		_, err := s.analysisService.Analyze(ctx, job, sink)
		logStreamEnd(ctx, "analyze", err)
	})
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "on", "1":
		return true
	}
	return false
}
