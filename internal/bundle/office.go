package bundle

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"project0/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`</Types>`
	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
)

// AnalysisDOCX renders the Markdown report as a Word document. Headings become
// bold paragraphs and list items keep a bullet prefix.
func AnalysisDOCX(a *models.Analysis, result models.AnalysisResult) ([]byte, error) {
	var body bytes.Buffer
	for _, line := range strings.Split(Report(a, result), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		size := 0
		switch {
		case strings.HasPrefix(line, "# "):
			line, size = strings.TrimPrefix(line, "# "), 32
		case strings.HasPrefix(line, "## "):
			line, size = strings.TrimPrefix(line, "## "), 26
		case strings.HasPrefix(line, "- "):
			line = "• " + strings.TrimPrefix(line, "- ")
		}
		if err := writeParagraph(&body, line, size); err != nil {
			return nil, err
		}
	}

	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	return writeZip([]entry{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", doc},
	}, a.CreatedAt)
}

// writeParagraph emits one w:p. size is in half-points; zero means body text.
func writeParagraph(w *bytes.Buffer, text string, size int) error {
	w.WriteString("<w:p><w:r>")
	if size > 0 {
		fmt.Fprintf(w, `<w:rPr><w:b/><w:sz w:val="%d"/></w:rPr>`, size)
	}
	w.WriteString(`<w:t xml:space="preserve">`)
	if err := xml.EscapeText(w, []byte(text)); err != nil {
		return fmt.Errorf("docx text: %w", err)
	}
	w.WriteString("</w:t></w:r></w:p>")
	return nil
}

// Sheet names in the XLSX export.
const (
	SheetSummary = "Summary"
	SheetSkills  = "Skills"
	SheetNotes   = "Notes"
)

// AnalysisXLSX renders the analysis as a workbook: scores on the summary
// sheet, skills and notes as columns on their own sheets.
func AnalysisXLSX(a *models.Analysis, result models.AnalysisResult) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	summary := [][]any{
		{"Field", "Value"},
		{"Analysis ID", a.ID},
		{"File", a.Filename},
		{"Date", a.CreatedAt.Format(time.RFC3339)},
		{"Engine", a.Engine},
		{"Model", a.Model},
		{"Match score", result.MatchScore},
		{"Experience score", result.ExperienceMatch.Score},
		{"Experience", result.ExperienceMatch.Analysis},
		{"Education score", result.EducationMatch.Score},
		{"Education", result.EducationMatch.Analysis},
		{"Summary", result.Summary},
		{"Job description", a.JobDescription},
	}
	if err := writeRows(f, SheetSummary, summary, header); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 20); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	if err := f.SetColWidth(SheetSummary, "B", "B", 80); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}

	sm := result.SkillsMatch
	if err := writeColumns(f, SheetSkills, header,
		column{"Matched skills", sm.MatchedSkills},
		column{"Missing skills", sm.MissingSkills},
		column{"Additional skills", sm.AdditionalSkills},
	); err != nil {
		return nil, err
	}
	if err := writeColumns(f, SheetNotes, header,
		column{"Strengths", result.Pros},
		column{"Gaps", result.Cons},
		column{"Recommendations", result.Recommendations},
	); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, header int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, header)
}

type column struct {
	title string
	items []string
}

func writeColumns(f *excelize.File, sheet string, header int, cols ...column) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("xlsx sheet %s: %w", sheet, err)
	}
	for c, col := range cols {
		values := append([]string{col.title}, col.items...)
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetSheetCol(sheet, cell, &values); err != nil {
			return fmt.Errorf("xlsx %s column %d: %w", sheet, c+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last[:len(last)-1], 32); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, header)
}
