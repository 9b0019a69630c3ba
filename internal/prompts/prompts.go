// Package prompts holds the embedded prompt catalogue used for generation
// and resume analysis.
package prompts

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"project0/internal/models"

	"gopkg.in/yaml.v3"
)

// Supported languages.
const (
	LangEN = "en"
	LangRU = "ru"
)

//go:embed prompts.yaml
var catalogueYAML []byte

type mvpSection struct {
	System      string `yaml:"system"`
	User        string `yaml:"user"`
	ChatContext string `yaml:"chat_context"`
}

type analysisSection struct {
	Skills string `yaml:"skills"`
	Prompt string `yaml:"prompt"`
}

// HeuristicTexts are the localized phrases of the keyword-overlap analysis.
type HeuristicTexts struct {
	Strength        string   `yaml:"strength"`
	Weakness        string   `yaml:"weakness"`
	DefaultStrength string   `yaml:"default_strength"`
	DefaultWeakness string   `yaml:"default_weakness"`
	Experience      string   `yaml:"experience"`
	Education       string   `yaml:"education"`
	Recommendations []string `yaml:"recommendations"`
	Summary         string   `yaml:"summary"`
}

// StrengthFor renders the strength line for a matched token.
func (h HeuristicTexts) StrengthFor(token string) string {
	return strings.ReplaceAll(h.Strength, "{token}", token)
}

// WeaknessFor renders the weakness line for a missing token.
func (h HeuristicTexts) WeaknessFor(token string) string {
	return strings.ReplaceAll(h.Weakness, "{token}", token)
}

type document struct {
	MVP       mvpSection                       `yaml:"mvp"`
	Analysis  map[string]analysisSection       `yaml:"analysis"`
	Fallback  map[string]models.AnalysisResult `yaml:"fallback"`
	Heuristic map[string]HeuristicTexts        `yaml:"heuristic"`
}

// Catalogue is a parsed, ready-to-render prompt set.
type Catalogue struct {
	doc         document
	mvpUser     *template.Template
	chatContext *template.Template
	analysis    map[string]*template.Template
	skills      map[string]*template.Template
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalogue
	defaultErr  error
)

// Default returns the catalogue parsed from the embedded prompts.yaml.
func Default() (*Catalogue, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(catalogueYAML)
	})
	return defaultCat, defaultErr
}

// MustDefault is Default for callers that treat a broken catalogue as a programming error.
func MustDefault() *Catalogue {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalogue from YAML. Every language needs an analysis
// prompt, a fallback and heuristic texts.
func Parse(raw []byte) (*Catalogue, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse prompt catalogue: %w", err)
	}
	if doc.MVP.System == "" || doc.MVP.User == "" {
		return nil, fmt.Errorf("prompt catalogue: mvp.system and mvp.user are required")
	}

	c := &Catalogue{
		doc:      doc,
		analysis: make(map[string]*template.Template),
		skills:   make(map[string]*template.Template),
	}

	var err error
	if c.mvpUser, err = template.New("mvp.user").Parse(doc.MVP.User); err != nil {
		return nil, fmt.Errorf("prompt catalogue: %w", err)
	}
	if c.chatContext, err = template.New("mvp.chat_context").Parse(doc.MVP.ChatContext); err != nil {
		return nil, fmt.Errorf("prompt catalogue: %w", err)
	}

	for _, lang := range []string{LangEN, LangRU} {
		section, ok := doc.Analysis[lang]
		if !ok || section.Prompt == "" {
			return nil, fmt.Errorf("prompt catalogue: analysis.%s.prompt is required", lang)
		}
		if _, ok := doc.Fallback[lang]; !ok {
			return nil, fmt.Errorf("prompt catalogue: fallback.%s is required", lang)
		}
		if _, ok := doc.Heuristic[lang]; !ok {
			return nil, fmt.Errorf("prompt catalogue: heuristic.%s is required", lang)
		}
		if c.analysis[lang], err = template.New("analysis." + lang).Parse(section.Prompt); err != nil {
			return nil, fmt.Errorf("prompt catalogue: %w", err)
		}
		if c.skills[lang], err = template.New("skills." + lang).Parse(section.Skills); err != nil {
			return nil, fmt.Errorf("prompt catalogue: %w", err)
		}
	}
	return c, nil
}

// NormalizeLang maps anything unsupported to English.
func NormalizeLang(lang string) string {
	if strings.EqualFold(strings.TrimSpace(lang), LangRU) {
		return LangRU
	}
	return LangEN
}

func render(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return sb.String(), nil
}

// MVPSystem is the system message for generation and chat.
func (c *Catalogue) MVPSystem() string {
	return c.doc.MVP.System
}

// MVPUser renders the user message asking for an MVP of idea.
func (c *Catalogue) MVPUser(idea string) (string, error) {
	return render(c.mvpUser, struct{ Idea string }{idea})
}

// ChatContext renders the context message prepended to a chat about an existing MVP.
func (c *Catalogue) ChatContext(idea, code string) (string, error) {
	return render(c.chatContext, struct{ Idea, Code string }{idea, code})
}

// AnalysisInput is the data injected into the analysis prompt.
type AnalysisInput struct {
	Resume  string
	Vacancy string
	Skills  string
}

// AnalysisPrompt renders the resume analysis prompt in lang. Confirmed skills
// are included only when non-empty.
func (c *Catalogue) AnalysisPrompt(lang string, in AnalysisInput) (string, error) {
	lang = NormalizeLang(lang)

	skillsSection := ""
	if strings.TrimSpace(in.Skills) != "" {
		s, err := render(c.skills[lang], in)
		if err != nil {
			return "", err
		}
		skillsSection = s
	}

	return render(c.analysis[lang], struct {
		AnalysisInput
		SkillsSection string
	}{in, skillsSection})
}

// Fallback returns a fresh copy of the static analysis used when the model is
// unreachable, with the model name and URL filled in.
func (c *Catalogue) Fallback(lang, model, url string) models.AnalysisResult {
	src := c.doc.Fallback[NormalizeLang(lang)]
	r := strings.NewReplacer("{model}", model, "{url}", url)

	out := src
	out.Pros = append([]string(nil), src.Pros...)
	out.Cons = append([]string(nil), src.Cons...)
	out.SkillsMatch = models.SkillsMatch{
		MatchedSkills:    append([]string{}, src.SkillsMatch.MatchedSkills...),
		MissingSkills:    append([]string{}, src.SkillsMatch.MissingSkills...),
		AdditionalSkills: append([]string{}, src.SkillsMatch.AdditionalSkills...),
	}
	out.Recommendations = make([]string, len(src.Recommendations))
	for i, rec := range src.Recommendations {
		out.Recommendations[i] = r.Replace(rec)
	}
	out.ExperienceMatch.Analysis = r.Replace(src.ExperienceMatch.Analysis)
	out.EducationMatch.Analysis = r.Replace(src.EducationMatch.Analysis)
	out.Summary = r.Replace(src.Summary)
	return out
}

// Heuristic returns the phrases for the keyword-overlap analysis in lang.
func (c *Catalogue) Heuristic(lang string) HeuristicTexts {
	return c.doc.Heuristic[NormalizeLang(lang)]
}
