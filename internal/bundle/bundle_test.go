package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"project0/internal/docparse"
	"project0/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Todo App", "todo-app"},
		{"  --Hello,   World!!  ", "hello-world"},
		{"AI-powered   CRM 2.0", "ai-powered-crm-2-0"},
		{"Трекер привычек", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestMVPFilename_TruncatesIdea(t *testing.T) {
	m := &models.MVP{ID: "1700000000000", Idea: "A marketplace for renting camping gear near you"}
	assert.Equal(t, "project-0-a-marketplace-for-renting-camp-1700000000000.zip", MVPFilename(m))
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestMVPArchive_Contents(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &models.MVP{
		ID:        "1740830400000",
		Idea:      "Habit tracker",
		Code:      "<!DOCTYPE html><html></html>",
		Markdown:  "## ✨ Features Included\n- Streaks",
		Model:     "glm-4.6:cloud",
		CreatedAt: created,
	}

	data, err := MVPArchive(m)
	require.NoError(t, err)
	files := readZip(t, data)

	require.Len(t, files, 3)
	assert.Equal(t, m.Code, files["index.html"])
	assert.Contains(t, files["README.md"], "# Habit tracker\n\nGenerated by Project-0\nDate: 2025-03-01T12:00:00Z")
	assert.Contains(t, files["README.md"], "## Features\n\n## ✨ Features Included\n- Streaks")
	assert.Contains(t, files["README.md"], "Generated with ❤️ by Project-0")
	assert.Contains(t, files["PROJECT-INFO.txt"], "MVP ID: 1740830400000")
}

func sampleAnalysis() (*models.Analysis, models.AnalysisResult) {
	a := &models.Analysis{
		ID:             7,
		Filename:       "Jane Doe CV.pdf",
		JobDescription: "Senior Go engineer",
		MatchScore:     81,
		Engine:         models.EngineLLM,
		CreatedAt:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	r := models.AnalysisResult{
		MatchScore:  81,
		Pros:        []string{"Strong Go"},
		SkillsMatch: models.SkillsMatch{MatchedSkills: []string{"Go", "SQL"}, MissingSkills: []string{"Kafka"}},
		Summary:     "Good fit & <fast> learner.",
	}
	return a, r
}

func TestAnalysisArchive_Contents(t *testing.T) {
	a, r := sampleAnalysis()

	assert.Equal(t, "analysis-jane-doe-cv-7.zip", AnalysisFilename(a))

	data, err := AnalysisArchive(a, r)
	require.NoError(t, err)
	files := readZip(t, data)

	var exported map[string]any
	require.NoError(t, json.Unmarshal([]byte(files["analysis.json"]), &exported))
	assert.Equal(t, 81.0, exported["match_score"])
	assert.Equal(t, "llm", exported["engine"])

	report := files["report.md"]
	assert.Contains(t, report, "## Match score: 81/100")
	assert.Contains(t, report, "- Strong Go")
	assert.Contains(t, report, "## Missing skills\n\n- Kafka")
	assert.NotContains(t, report, "## Experience")
	assert.Contains(t, report, "Senior Go engineer")
}

func TestExportAnalysis_Formats(t *testing.T) {
	a, r := sampleAnalysis()

	tests := []struct {
		format      string
		filename    string
		contentType string
	}{
		{"", "analysis-jane-doe-cv-7.zip", "application/zip"},
		{"zip", "analysis-jane-doe-cv-7.zip", "application/zip"},
		{"JSON", "analysis-jane-doe-cv-7.json", "application/json"},
		{"docx", "analysis-jane-doe-cv-7.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"xlsx", "analysis-jane-doe-cv-7.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	}
	for _, tt := range tests {
		t.Run("format "+tt.format, func(t *testing.T) {
			exp, err := ExportAnalysis(tt.format, a, r)
			require.NoError(t, err)
			assert.Equal(t, tt.filename, exp.Filename)
			assert.Equal(t, tt.contentType, exp.ContentType)
			assert.NotEmpty(t, exp.Data)
		})
	}

	_, err := ExportAnalysis("pdf", a, r)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestAnalysisJSON(t *testing.T) {
	a, r := sampleAnalysis()
	data, err := AnalysisJSON(a, r)
	require.NoError(t, err)

	var exported struct {
		ID     uint                  `json:"id"`
		Result models.AnalysisResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &exported))
	assert.EqualValues(t, 7, exported.ID)
	assert.Equal(t, []string{"Kafka"}, exported.Result.SkillsMatch.MissingSkills)
}

func TestAnalysisDOCX_ReadableAsDocument(t *testing.T) {
	a, r := sampleAnalysis()
	data, err := AnalysisDOCX(a, r)
	require.NoError(t, err)

	files := readZip(t, data)
	require.Contains(t, files, "[Content_Types].xml")
	require.Contains(t, files, "_rels/.rels")
	assert.Contains(t, files["word/document.xml"], "Good fit &amp; &lt;fast&gt; learner.")

	doc, err := docparse.Extract("report.docx", data, 0)
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Resume analysis: Jane Doe CV.pdf")
	assert.Contains(t, doc.Text, "Match score: 81/100")
	assert.Contains(t, doc.Text, "• Kafka")
	assert.NotContains(t, doc.Text, "## ")
}

func TestAnalysisXLSX_Sheets(t *testing.T) {
	a, r := sampleAnalysis()
	data, err := AnalysisXLSX(a, r)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetSummary, SheetSkills, SheetNotes}, f.GetSheetList())

	score, err := f.GetCellValue(SheetSummary, "B7")
	require.NoError(t, err)
	assert.Equal(t, "81", score)
	label, err := f.GetCellValue(SheetSummary, "A7")
	require.NoError(t, err)
	assert.Equal(t, "Match score", label)

	for cell, want := range map[string]string{
		"A1": "Matched skills", "A2": "Go", "A3": "SQL",
		"B1": "Missing skills", "B2": "Kafka",
		"C1": "Additional skills", "C2": "",
	} {
		got, err := f.GetCellValue(SheetSkills, cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}

	notes, err := f.GetCellValue(SheetNotes, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Strong Go", notes)
}
