// Package bundle builds the downloadable archives and reports for generated
// records.
package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"project0/internal/models"
)

// Analysis export formats.
const (
	FormatZip  = "zip"
	FormatJSON = "json"
	FormatDOCX = "docx"
	FormatXLSX = "xlsx"
)

// ErrUnknownFormat is returned for an export format outside the list above.
var ErrUnknownFormat = errors.New("unknown export format")

var formatContentTypes = map[string]string{
	FormatZip:  "application/zip",
	FormatJSON: "application/json",
	FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slug lower-cases s, collapses runs of non-alphanumerics into "-" and trims dashes.
func Slug(s string) string {
	return strings.ToLower(strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-"))
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// MVPFilename is the attachment name for an MVP archive.
func MVPFilename(m *models.MVP) string {
	return fmt.Sprintf("project-0-%s-%s.zip", Slug(truncateRunes(m.Idea, 30)), m.ID)
}

// AnalysisFilename is the attachment name for an analysis archive.
func AnalysisFilename(a *models.Analysis) string {
	return analysisFilename(a, FormatZip)
}

func analysisFilename(a *models.Analysis, ext string) string {
	base := strings.TrimSuffix(a.Filename, fileExt(a.Filename))
	slug := Slug(truncateRunes(base, 30))
	if slug == "" {
		return fmt.Sprintf("analysis-%d.%s", a.ID, ext)
	}
	return fmt.Sprintf("analysis-%s-%d.%s", slug, a.ID, ext)
}

func fileExt(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}

type entry struct {
	name    string
	content string
}

func writeZip(entries []entry, modified time.Time) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	zw := zip.NewWriter(buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", e.name, err)
		}
		if _, err := w.Write([]byte(e.content)); err != nil {
			return nil, fmt.Errorf("zip %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip close: %w", err)
	}
	return buf.Bytes(), nil
}

// MVPArchive packs index.html, README.md and PROJECT-INFO.txt.
func MVPArchive(m *models.MVP) ([]byte, error) {
	date := m.CreatedAt.Format(time.RFC3339)

	readme := fmt.Sprintf(`# %s

Generated by Project-0
Date: %s

## How to Use

1. Open `+"`index.html`"+` in your web browser
2. All styles and scripts are included in the HTML file
3. No server or build process required

## Features

%s

---

Generated with ❤️ by Project-0
`, m.Idea, date, m.Markdown)

	info := fmt.Sprintf(`Project: %s
Generated: %s
MVP ID: %s
Model: %s

This is a self-contained HTML project.
Everything you need is in index.html.
`, m.Idea, date, m.ID, m.Model)

	return writeZip([]entry{
		{"index.html", m.Code},
		{"README.md", readme},
		{"PROJECT-INFO.txt", info},
	}, m.CreatedAt)
}

type analysisExport struct {
	ID             uint                  `json:"id"`
	Filename       string                `json:"filename"`
	CreatedAt      time.Time             `json:"created_at"`
	Engine         string                `json:"engine"`
	Model          string                `json:"model,omitempty"`
	MatchScore     float64               `json:"match_score"`
	JobDescription string                `json:"job_description"`
	Result         models.AnalysisResult `json:"result"`
}

// Export is one rendered analysis download.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportAnalysis renders the analysis in format. An empty format means zip.
func ExportAnalysis(format string, a *models.Analysis, result models.AnalysisResult) (*Export, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatZip
	}
	contentType, ok := formatContentTypes[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = AnalysisJSON(a, result)
	case FormatDOCX:
		data, err = AnalysisDOCX(a, result)
	case FormatXLSX:
		data, err = AnalysisXLSX(a, result)
	default:
		data, err = AnalysisArchive(a, result)
	}
	if err != nil {
		return nil, err
	}
	return &Export{Filename: analysisFilename(a, format), ContentType: contentType, Data: data}, nil
}

// AnalysisJSON is the indented analysis.json document.
func AnalysisJSON(a *models.Analysis, result models.AnalysisResult) ([]byte, error) {
	payload, err := json.MarshalIndent(analysisExport{
		ID:             a.ID,
		Filename:       a.Filename,
		CreatedAt:      a.CreatedAt,
		Engine:         a.Engine,
		Model:          a.Model,
		MatchScore:     a.MatchScore,
		JobDescription: a.JobDescription,
		Result:         result,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	return payload, nil
}

// AnalysisArchive packs analysis.json and a Markdown report.
func AnalysisArchive(a *models.Analysis, result models.AnalysisResult) ([]byte, error) {
	payload, err := AnalysisJSON(a, result)
	if err != nil {
		return nil, err
	}

	return writeZip([]entry{
		{"analysis.json", string(payload)},
		{"report.md", Report(a, result)},
	}, a.CreatedAt)
}

// Report renders the analysis as Markdown.
func Report(a *models.Analysis, r models.AnalysisResult) string {
	var sb strings.Builder
	title := a.Filename
	if title == "" {
		title = fmt.Sprintf("Analysis #%d", a.ID)
	}
	fmt.Fprintf(&sb, "# Resume analysis: %s\n\n", title)
	fmt.Fprintf(&sb, "Date: %s\n", a.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Engine: %s\n\n", a.Engine)
	fmt.Fprintf(&sb, "## Match score: %.0f/100\n\n", r.MatchScore)

	if r.Summary != "" {
		fmt.Fprintf(&sb, "%s\n\n", r.Summary)
	}

	list := func(heading string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "## %s\n\n", heading)
		for _, it := range items {
			fmt.Fprintf(&sb, "- %s\n", it)
		}
		sb.WriteString("\n")
	}
	list("Strengths", r.Pros)
	list("Gaps", r.Cons)
	list("Matched skills", r.SkillsMatch.MatchedSkills)
	list("Missing skills", r.SkillsMatch.MissingSkills)
	list("Additional skills", r.SkillsMatch.AdditionalSkills)

	section := func(heading string, s models.SectionScore) {
		if s.Analysis == "" && s.Score == 0 {
			return
		}
		fmt.Fprintf(&sb, "## %s (%.0f/100)\n\n%s\n\n", heading, s.Score, s.Analysis)
	}
	section("Experience", r.ExperienceMatch)
	section("Education", r.EducationMatch)
	list("Recommendations", r.Recommendations)

	fmt.Fprintf(&sb, "## Job description\n\n%s\n", a.JobDescription)
	return sb.String()
}
