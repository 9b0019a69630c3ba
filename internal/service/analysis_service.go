package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"project0/internal/docparse"
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

// Progress messages of the analysis stream.
const (
	StatusExtractingResume = "📄 Extracting resume..."
	StatusComparingVacancy = "🔍 Comparing with vacancy..."
	resumeExcerptLimit     = 1200
)

// ErrNoJSON is returned when a model reply holds no JSON object.
var ErrNoJSON = errors.New("no JSON object in model reply")

type AnalysisConfig struct {
	Users          repository.UserRepository
	Analyses       repository.AnalysisRepository
	Analytics      repository.AnalyticsRepository
	LLM            llm.Streamer
	Prompts        *prompts.Catalogue
	Flags          *featureflags.Manager
	Notifier       notifications.Publisher
	Model          string
	OllamaURL      string
	MaxUploadBytes int64
	// Resumes supplies the profile resume when a request carries no file.
	Resumes ResumeLoader
}

// ResumeLoader returns a user's stored resume.
type ResumeLoader interface {
	Load(ctx context.Context, userID uint) (filename string, data []byte, err error)
}

type AnalysisService struct {
	users          repository.UserRepository
	analyses       repository.AnalysisRepository
	analytics      repository.AnalyticsRepository
	llm            llm.Streamer
	prompts        *prompts.Catalogue
	flags          *featureflags.Manager
	notifier       notifications.Publisher
	model          string
	ollamaURL      string
	maxUploadBytes int64
	resumes        ResumeLoader
}

func NewAnalysisService(cfg AnalysisConfig) *AnalysisService {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notifications.NopPublisher{}
	}
	return &AnalysisService{
		users:          cfg.Users,
		analyses:       cfg.Analyses,
		analytics:      cfg.Analytics,
		llm:            cfg.LLM,
		prompts:        cfg.Prompts,
		flags:          cfg.Flags,
		notifier:       notifier,
		model:          cfg.Model,
		ollamaURL:      cfg.OllamaURL,
		maxUploadBytes: cfg.MaxUploadBytes,
		resumes:        cfg.Resumes,
	}
}

// ExtractDocument validates an upload and returns its text.
func (s *AnalysisService) ExtractDocument(filename string, data []byte) (*docparse.Document, error) {
	return docparse.Extract(filename, data, s.maxUploadBytes)
}

// AnalyzeInput is one analysis request. Without a file the profile resume is
// used.
type AnalyzeInput struct {
	Filename         string
	Data             []byte
	JobDescription   string
	UseProfileSkills bool
}

// AnalysisJob is a validated analysis request ready to stream.
type AnalysisJob struct {
	UserID   uint
	Filename string
	Resume   string
	Vacancy  string
	Language string
	Skills   string
}

// PrepareAnalysis extracts the resume and loads the user's language and
// skills. Every failure here is reported before the stream starts.
func (s *AnalysisService) PrepareAnalysis(ctx context.Context, userID uint, in AnalyzeInput) (*AnalysisJob, error) {
	vacancy := strings.TrimSpace(in.JobDescription)
	if err := validation.ValidateLength("job_description", vacancy, 1, validation.MaxJobDescription); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Filename == "" && len(in.Data) == 0 {
		if s.resumes == nil {
			return nil, models.NewValidationError("No file uploaded")
		}
		name, data, err := s.resumes.Load(ctx, userID)
		if err != nil {
			if models.StatusFor(err) == http.StatusNotFound {
				return nil, models.NewValidationError("No file uploaded and no resume on profile")
			}
			return nil, err
		}
		in.Filename, in.Data = name, data
	}
	doc, err := s.ExtractDocument(in.Filename, in.Data)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.IncrementRequests(ctx, userID); err != nil {
		return nil, err
	}

	job := &AnalysisJob{
		UserID:   userID,
		Filename: doc.Filename,
		Resume:   doc.Text,
		Vacancy:  vacancy,
		Language: prompts.NormalizeLang(user.Language),
	}
	if in.UseProfileSkills {
		job.Skills = strings.TrimSpace(user.Skills)
	}
	return job, nil
}

// Analyze asks the model to compare resume and vacancy, relaying its output to
// sink. A failed or unreadable reply is replaced by a heuristic or static
// analysis; only a storage failure ends the stream with an error event.
func (s *AnalysisService) Analyze(ctx context.Context, job *AnalysisJob, sink Sink) (*models.Analysis, error) {
	log := middleware.Logger.With(slog.Uint64("user_id", uint64(job.UserID)), slog.String("model", s.model))

	for _, msg := range []string{StatusExtractingResume, StatusComparingVacancy} {
		if err := sink.Send(stream.Status(msg)); err != nil {
			return nil, ErrClientGone
		}
	}

	prompt, err := s.prompts.AnalysisPrompt(job.Language, prompts.AnalysisInput{
		Resume:  job.Resume,
		Vacancy: job.Vacancy,
		Skills:  job.Skills,
	})
	if err != nil {
		finish(sink, stream.Error(err))
		return nil, models.NewInternalError(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	chunks, errs := s.llm.StreamGenerate(ctx, llm.GenerateRequest{
		Model:  s.model,
		Prompt: prompt,
		Format: "json",
	})

	raw, n, err := relay(cancel, chunks, errs, sink)
	if errors.Is(err, ErrClientGone) {
		log.InfoContext(ctx, "analysis abandoned by client", slog.Int("chunks", n))
		return nil, err
	}

	engine := models.EngineLLM
	var result models.AnalysisResult
	if err == nil {
		result, err = ParseAnalysis(raw)
	}
	if err != nil {
		log.WarnContext(ctx, "model analysis unavailable, using fallback", slog.Int("chunks", n), slog.String("error", err.Error()))
		engine, result = s.fallback(job)
	}

	data, err := json.Marshal(result)
	if err != nil {
		finish(sink, stream.Error(err))
		return nil, models.NewInternalError(err)
	}
	analysis := &models.Analysis{
		UserID:         job.UserID,
		Filename:       job.Filename,
		JobDescription: job.Vacancy,
		ResumeExcerpt:  truncate(job.Resume, resumeExcerptLimit),
		MatchScore:     result.MatchScore,
		Engine:         engine,
		AnalysisData:   string(data),
	}
	if engine == models.EngineLLM {
		analysis.Model = s.model
	}

	saveCtx := context.WithoutCancel(ctx)
	if err := s.analyses.Create(saveCtx, analysis); err != nil {
		log.ErrorContext(ctx, "failed to store analysis", slog.String("error", err.Error()))
		finish(sink, stream.Error(errors.New("failed to save analysis")))
		return nil, err
	}

	finish(sink, stream.AnalysisDone(analysis.ID, analysis.MatchScore, engine))
	log.InfoContext(ctx, "analysis stored",
		slog.Uint64("analysis_id", uint64(analysis.ID)), slog.String("engine", engine), slog.Float64("match_score", analysis.MatchScore))

	s.afterSave(saveCtx, analysis)
	return analysis, nil
}

func (s *AnalysisService) fallback(job *AnalysisJob) (string, models.AnalysisResult) {
	if s.flags.Enabled(featureflags.FlagHeuristicFallback, job.UserID) {
		return models.EngineHeuristic, HeuristicAnalysis(s.prompts.Heuristic(job.Language), job.Resume, job.Vacancy)
	}
	return models.EngineFallback, s.prompts.Fallback(job.Language, s.model, s.ollamaURL)
}

func (s *AnalysisService) afterSave(ctx context.Context, a *models.Analysis) {
	observability.GenerationsTotal.WithLabelValues("analysis", a.Engine).Inc()
	keys := []string{models.CounterAnalyses}
	if a.Engine == models.EngineLLM {
		keys = append(keys, models.CounterLLMAnalyses)
	}
	for _, key := range keys {
		if err := s.analytics.Increment(ctx, key); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to bump counter", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	if !s.flags.Enabled(featureflags.FlagNotifications, a.UserID) {
		return
	}
	ev := notifications.NewEvent(notifications.EventAnalysisReady, map[string]any{
		"analysis_id": a.ID,
		"match_score": a.MatchScore,
		"engine":      a.Engine,
	})
	if err := s.notifier.Notify(ctx, a.UserID, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish analysis notification", slog.String("error", err.Error()))
	}
}

// looseResult accepts a score given as a number or a numeric string.
type looseResult struct {
	models.AnalysisResult
	MatchScore json.RawMessage `json:"match_score"`
}

// ParseAnalysis extracts the JSON object from a model reply, clamps scores to
// 0..100 and replaces missing lists with empty ones.
func ParseAnalysis(raw string) (models.AnalysisResult, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return models.AnalysisResult{}, ErrNoJSON
	}

	var loose looseResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &loose); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("decode analysis: %w", err)
	}
	result := loose.AnalysisResult
	result.MatchScore = parseScore(loose.MatchScore)
	normalizeResult(&result)
	return result, nil
}

func parseScore(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		// ParseFloat accepts "NaN" and "Inf", which cannot be stored as JSON.
		if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return 0
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(100, v))
}

func normalizeResult(r *models.AnalysisResult) {
	r.MatchScore = clampScore(r.MatchScore)
	r.ExperienceMatch.Score = clampScore(r.ExperienceMatch.Score)
	r.EducationMatch.Score = clampScore(r.EducationMatch.Score)
	for _, l := range []*[]string{
		&r.Pros, &r.Cons, &r.Recommendations,
		&r.SkillsMatch.MatchedSkills, &r.SkillsMatch.MissingSkills, &r.SkillsMatch.AdditionalSkills,
	} {
		if *l == nil {
			*l = []string{}
		}
	}
}

// AnalysisView is a stored analysis with its decoded result.
type AnalysisView struct {
	Analysis *models.Analysis
	Result   models.AnalysisResult
}

// DecodeResult reads the stored result; a corrupt payload yields an empty one.
func DecodeResult(a *models.Analysis) models.AnalysisResult {
	var r models.AnalysisResult
	if a.AnalysisData != "" {
		if err := json.Unmarshal([]byte(a.AnalysisData), &r); err != nil {
			r = models.AnalysisResult{MatchScore: a.MatchScore}
		}
	}
	normalizeResult(&r)
	return r
}

func (s *AnalysisService) Get(ctx context.Context, id, userID uint) (*AnalysisView, error) {
	a, err := s.analyses.GetForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return &AnalysisView{Analysis: a, Result: DecodeResult(a)}, nil
}

func (s *AnalysisService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Analysis, error) {
	limit, offset = normalizePage(limit, offset)
	return s.analyses.ListByUser(ctx, userID, limit, offset)
}
