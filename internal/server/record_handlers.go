package server

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"project0/internal/bundle"
	"project0/internal/models"
	"project0/internal/service"

	"github.com/gofiber/fiber/v2"
)

// MVPResponse is a stored MVP.
type MVPResponse struct {
	ID        string    `json:"id"`
	Idea      string    `json:"idea"`
	Code      string    `json:"code"`
	Markdown  string    `json:"markdown"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// MVPSummary is one row of the MVP list.
type MVPSummary struct {
	ID        string    `json:"id"`
	Idea      string    `json:"idea"`
	HasCode   bool      `json:"has_code"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalysisResponse is a stored analysis with its parsed result.
type AnalysisResponse struct {
	*models.Analysis
	Result models.AnalysisResult `json:"analysis"`
}

// UploadResponse is the text extracted from an uploaded document.
type UploadResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Characters  int    `json:"characters"`
	Text        string `json:"text"`
}

// Upload handles POST /api/upload
// @Summary Extract document text
// @Tags upload
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Document (.pdf, .docx, .doc, .txt, .md)"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /upload [post]
func (s *Server) Upload(c *fiber.Ctx) error {
	file, err := readFormFile(c, "file")
	if err != nil {
		return nil
	}

	doc, err := s.analysisService.ExtractDocument(file.Filename, file.Content)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(UploadResponse{
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Characters:  utf8.RuneCountInString(doc.Text),
		Text:        doc.Text,
	})
}

// ListMVPs handles GET /api/mvps
// @Summary List my MVPs
// @Tags records
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} MVPSummary
// @Router /mvps [get]
func (s *Server) ListMVPs(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	mvps, err := s.generationService.ListMVPs(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	out := make([]MVPSummary, 0, len(mvps))
	for i := range mvps {
		m := &mvps[i]
		out = append(out, MVPSummary{ID: m.ID, Idea: m.Idea, HasCode: m.HasCode(), Model: m.Model, CreatedAt: m.CreatedAt})
	}
	return c.JSON(out)
}

// GetMVP handles GET /api/mvp/:id
// @Summary Get an MVP
// @Tags records
// @Produce json
// @Security BearerAuth
// @Param id path string true "MVP ID"
// @Success 200 {object} MVPResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /mvp/{id} [get]
func (s *Server) GetMVP(c *fiber.Ctx) error {
	mvp, err := s.generationService.GetMVP(c.UserContext(), c.Params("id"), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(MVPResponse{
		ID:        mvp.ID,
		Idea:      mvp.Idea,
		Code:      mvp.Code,
		Markdown:  mvp.Markdown,
		Model:     mvp.Model,
		CreatedAt: mvp.CreatedAt,
	})
}

// PreviewMVP handles GET /preview/:id and serves the stored HTML as a page.
func (s *Server) PreviewMVP(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)

	mvp, err := s.generationService.GetMVP(c.UserContext(), c.Params("id"), currentUserID(c))
	if err != nil {
		status := mapServiceError(err)
		if status == fiber.StatusNotFound {
			return c.Status(status).SendString(service.PreviewNotFound)
		}
		return c.Status(status).SendString("<h1>Preview unavailable</h1>")
	}
	return c.SendString(service.PreviewHTML(mvp))
}

// DownloadMVP handles GET /api/download/:id
// @Summary Download an MVP bundle
// @Tags download
// @Produce application/zip
// @Security BearerAuth
// @Param id path string true "MVP ID"
// @Success 200 {file} file
// @Failure 404 {object} models.ErrorResponse
// @Router /download/{id} [get]
func (s *Server) DownloadMVP(c *fiber.Ctx) error {
	mvp, err := s.generationService.GetMVP(c.UserContext(), c.Params("id"), currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	archive, err := bundle.MVPArchive(mvp)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return sendZip(c, bundle.MVPFilename(mvp), archive)
}

// ListAnalyses handles GET /api/analyses
// @Summary List my analyses
// @Tags records
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Analysis
// @Router /analyses [get]
func (s *Server) ListAnalyses(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	analyses, err := s.analysisService.List(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(analyses)
}

// GetAnalysis handles GET /api/analysis/:id
// @Summary Get an analysis
// @Tags records
// @Produce json
// @Security BearerAuth
// @Param id path int true "Analysis ID"
// @Success 200 {object} AnalysisResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /analysis/{id} [get]
func (s *Server) GetAnalysis(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	view, err := s.analysisService.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	return c.JSON(AnalysisResponse{Analysis: view.Analysis, Result: view.Result})
}

// DownloadAnalysis handles GET /api/analysis/:id/download
// @Summary Download an analysis report
// @Description format selects zip (default, analysis.json plus report.md), json, docx or xlsx.
// @Tags download
// @Produce application/zip
// @Produce json
// @Produce application/vnd.openxmlformats-officedocument.wordprocessingml.document
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path int true "Analysis ID"
// @Param format query string false "Export format" Enums(zip, json, docx, xlsx)
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /analysis/{id}/download [get]
func (s *Server) DownloadAnalysis(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}

	view, err := s.analysisService.Get(c.UserContext(), id, currentUserID(c))
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	exp, err := bundle.ExportAnalysis(c.Query("format"), view.Analysis, view.Result)
	if errors.Is(err, bundle.ErrUnknownFormat) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown format. Allowed: zip, json, docx, xlsx"))
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
	}
	return sendAttachment(c, exp.Filename, exp.ContentType, exp.Data)
}

func sendZip(c *fiber.Ctx, filename string, archive []byte) error {
	return sendAttachment(c, filename, "application/zip", archive)
}

func sendAttachment(c *fiber.Ctx, filename, contentType string, archive []byte) error {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(filename, `"`, "")))
	return c.Send(archive)
}
