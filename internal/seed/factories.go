// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"project0/internal/models"
	"project0/internal/prompts"
	"project0/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated account.
const DefaultPassword = "password123"

// SeedOptions tune how the factory builds records.
type SeedOptions struct {
	// DryRun assigns synthetic IDs instead of writing to the database.
	DryRun bool
	// SkipBcrypt stores the plain password; only for throwaway databases.
	SkipBcrypt bool
	// MaxDays bounds how far back created_at timestamps are spread.
	MaxDays int
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts SeedOptions
	rng  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID  uint
	usedIDs map[string]struct{}
	hash    string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:   db,
		opts: opts,
		// #nosec G404: acceptable for seeding
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		nextID:  1000,
		usedIDs: make(map[string]struct{}),
	}
}

func (f *Factory) password() string {
	if f.opts.SkipBcrypt {
		return DefaultPassword
	}
	if f.hash == "" {
		hashed, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		f.hash = string(hashed)
	}
	return f.hash
}

// createdAt returns a timestamp spread over the last MaxDays days.
func (f *Factory) createdAt() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

func (f *Factory) persist(v any, id *uint, what string) error {
	if f.opts.DryRun {
		if id != nil {
			f.nextID++
			*id = f.nextID
		}
		log.Printf("[dry-run] %s (no DB write)", what)
		return nil
	}
	return f.db.Create(v).Error
}

// BuildUser constructs a sample user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, gofakeit.Number(10, 999)))
	if len(username) > 30 {
		username = username[:30]
	}
	role := models.RoleCandidate
	if f.rng.Intn(4) == 0 {
		role = models.RoleRecruiter
	}
	lastLogin := f.createdAt()
	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		Password:  f.password(),
		FullName:  first + " " + last,
		Role:      role,
		Language:  prompts.LangEN,
		Headline:  gofakeit.JobTitle(),
		Location:  gofakeit.City(),
		Bio:       gofakeit.Sentence(12),
		Skills:    strings.Join(skills(f.rng, 5), ", "),
		Credits:   f.rng.Intn(6),
		LastLogin: &lastLogin,
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.persist(user, &user.ID, "CreateUser "+user.Username); err != nil {
		return nil, err
	}
	return user, nil
}

var ideaTemplates = []string{
	"A %s tracker for %s teams",
	"Landing page for a %s subscription aimed at %s",
	"Booking app for %s studios run by %s",
	"Marketplace where %s sellers meet %s",
	"Dashboard that summarizes %s metrics for %s",
}

func (f *Factory) idea() string {
	tpl := ideaTemplates[f.rng.Intn(len(ideaTemplates))]
	return fmt.Sprintf(tpl, strings.ToLower(gofakeit.HipsterWord()), strings.ToLower(gofakeit.JobDescriptor())+" "+strings.ToLower(gofakeit.JobLevel())+"s")
}

// mvpID keeps ids unique while staying unix-millis strings.
func (f *Factory) mvpID(at time.Time) string {
	ms := at.UnixMilli()
	for {
		id := strconv.FormatInt(ms, 10)
		if _, taken := f.usedIDs[id]; !taken {
			f.usedIDs[id] = struct{}{}
			return id
		}
		ms++
	}
}

// BuildMVP constructs a sample MVP for user without persisting it.
func (f *Factory) BuildMVP(user *models.User, overrides ...func(*models.MVP)) *models.MVP {
	idea := f.idea()
	title := gofakeit.AppName()
	code := fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head><title>%s</title></head>\n<body>\n<div class=\"hero\"><h1>%s</h1><p>%s</p></div>\n</body>\n</html>",
		title, title, gofakeit.Sentence(10))
	markdown := fmt.Sprintf("Here is an MVP for **%s**.\n\n```html\n%s\n```\n", idea, code)
	created := f.createdAt()

	mvp := &models.MVP{
		ID:        f.mvpID(created),
		UserID:    user.ID,
		Idea:      idea,
		Code:      service.ExtractHTML(markdown),
		Markdown:  markdown,
		Model:     "seed",
		CreatedAt: created,
	}
	for _, override := range overrides {
		override(mvp)
	}
	return mvp
}

// CreateMVP constructs and persists a sample MVP.
func (f *Factory) CreateMVP(user *models.User, overrides ...func(*models.MVP)) (*models.MVP, error) {
	mvp := f.BuildMVP(user, overrides...)
	if err := f.persist(mvp, nil, "CreateMVP "+mvp.ID); err != nil {
		return nil, err
	}
	return mvp, nil
}

// BuildAnalysis constructs a keyword-overlap analysis of a generated resume
// against a generated vacancy, without persisting it.
func (f *Factory) BuildAnalysis(user *models.User, overrides ...func(*models.Analysis)) *models.Analysis {
	lang := prompts.NormalizeLang(user.Language)
	vacancy := fmt.Sprintf("%s wanted. Required: %s.", gofakeit.JobTitle(), strings.Join(skills(f.rng, 6), " "))
	resume := fmt.Sprintf("%s. %s Experienced with %s.", user.FullName, gofakeit.Sentence(15), strings.Join(skills(f.rng, 6), " "))

	result := service.HeuristicAnalysis(prompts.MustDefault().Heuristic(lang), resume, vacancy)
	data, _ := json.Marshal(result)

	a := &models.Analysis{
		UserID:         user.ID,
		Filename:       strings.ToLower(strings.ReplaceAll(user.FullName, " ", "_")) + "_cv.pdf",
		JobDescription: vacancy,
		ResumeExcerpt:  resume,
		MatchScore:     result.MatchScore,
		Engine:         models.EngineHeuristic,
		AnalysisData:   string(data),
		CreatedAt:      f.createdAt(),
	}
	for _, override := range overrides {
		override(a)
	}
	return a
}

// CreateAnalysis constructs and persists a sample analysis.
func (f *Factory) CreateAnalysis(user *models.User, overrides ...func(*models.Analysis)) (*models.Analysis, error) {
	a := f.BuildAnalysis(user, overrides...)
	if err := f.persist(a, &a.ID, "CreateAnalysis"); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateCreditRequest persists a pending credit request for user.
func (f *Factory) CreateCreditRequest(user *models.User, amount int) (*models.CreditRequest, error) {
	req := &models.CreditRequest{
		UserID:    user.ID,
		Amount:    amount,
		Status:    models.CreditRequestPending,
		CreatedAt: f.createdAt(),
	}
	if err := f.persist(req, &req.ID, "CreateCreditRequest"); err != nil {
		return nil, err
	}
	return req, nil
}

var skillPool = []string{
	"golang", "python", "javascript", "typescript", "react", "postgresql", "redis",
	"docker", "kubernetes", "terraform", "graphql", "rest", "grpc", "kafka", "linux",
	"aws", "figma", "sql", "testing", "agile", "leadership", "communication",
}

func skills(rng *rand.Rand, n int) []string {
	idx := rng.Perm(len(skillPool))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = skillPool[idx[i]]
	}
	return out
}
