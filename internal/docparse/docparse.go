// Package docparse extracts plain text from uploaded resumes and notes.
package docparse

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"project0/internal/models"
	"project0/internal/observability"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxText caps extracted text when the caller sets no byte limit.
const DefaultMaxText = 10 << 20

// markupFactor bounds an inflated document.xml relative to the text limit.
const markupFactor = 8

// Document kinds.
const (
	KindPDF  = "pdf"
	KindDOCX = "docx"
	KindText = "text"
)

// Extraction failures. They are returned wrapped in a validation AppError.
var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("file is empty")
	ErrContentMismatch = errors.New("file content does not match its extension")
	ErrUnreadable      = errors.New("file could not be read")
)

// Document is the extracted text plus what was detected about the upload.
type Document struct {
	Filename    string
	Kind        string
	ContentType string
	Text        string
}

var extensionKinds = map[string]string{
	".pdf":  KindPDF,
	".docx": KindDOCX,
	".doc":  KindDOCX,
	".txt":  KindText,
	".md":   KindText,
}

// KindFor returns the document kind implied by the file name.
func KindFor(filename string) (string, error) {
	kind, ok := extensionKinds[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", invalid(ErrUnsupportedType, "Unsupported file type. Allowed: .pdf, .docx, .doc, .txt, .md")
	}
	return kind, nil
}

func invalid(err error, msg string) error {
	return &models.AppError{Code: models.CodeValidation, Message: msg, Err: err}
}

// Extract validates the upload and returns its text. maxBytes <= 0 disables
// the size check.
func Extract(filename string, data []byte, maxBytes int64) (doc *Document, err error) {
	kind, err := KindFor(filename)
	if err != nil {
		observability.DocumentsParsed.WithLabelValues("unknown", "rejected").Inc()
		return nil, err
	}
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "rejected"
		}
		observability.DocumentsParsed.WithLabelValues(kind, outcome).Inc()
	}()

	if len(data) == 0 {
		return nil, invalid(ErrEmpty, "File is empty")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, invalid(ErrTooLarge, fmt.Sprintf("File too large (max %d MB)", maxBytes/(1<<20)))
	}

	contentType := http.DetectContentType(data)
	if !sniffMatches(kind, contentType) {
		return nil, invalid(ErrContentMismatch, "File content does not match its extension")
	}

	limit := int64(DefaultMaxText)
	if maxBytes > 0 {
		limit = maxBytes
	}

	var text string
	switch kind {
	case KindPDF:
		text, err = pdfText(data, limit)
	case KindDOCX:
		text, err = docxText(data, limit)
	default:
		text = string(bytes.ToValidUTF8(data, []byte("�")))
	}
	if errors.Is(err, ErrTooLarge) {
		return nil, invalid(ErrTooLarge, fmt.Sprintf("Document text too large (max %d MB)", limit/(1<<20)))
	}
	if err != nil {
		return nil, invalid(fmt.Errorf("%w: %v", ErrUnreadable, err), "Could not read "+strings.ToUpper(kind)+" file")
	}

	return &Document{
		Filename:    filepath.Base(filename),
		Kind:        kind,
		ContentType: contentType,
		Text:        normalize(text),
	}, nil
}

func sniffMatches(kind, contentType string) bool {
	switch kind {
	case KindPDF:
		return contentType == "application/pdf"
	case KindDOCX:
		// OOXML is a zip container; legacy binary .doc is not supported.
		return contentType == "application/zip"
	default:
		return strings.HasPrefix(contentType, "text/")
	}
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func pdfText(data []byte, limit int64) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(io.LimitReader(plain, limit+1)); err != nil {
		return "", err
	}
	if int64(buf.Len()) > limit {
		return "", ErrTooLarge
	}
	return buf.String(), nil
}

func docxText(data []byte, limit int64) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		xmlCap := limit * markupFactor
		if f.UncompressedSize64 > uint64(xmlCap) {
			return "", ErrTooLarge
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		// The header size is attacker controlled; the reader cap is not.
		return documentXMLText(&capReader{r: rc, n: xmlCap}, limit)
	}
	return "", errors.New("word/document.xml not found")
}

// capReader fails with ErrTooLarge once more than n bytes have been read.
type capReader struct {
	r io.Reader
	n int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.n < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > c.n+1 {
		p = p[:c.n+1]
	}
	n, err := c.r.Read(p)
	c.n -= int64(n)
	if c.n < 0 {
		return n, ErrTooLarge
	}
	return n, err
}

// documentXMLText joins w:t runs, one line per w:p paragraph. It stops with
// ErrTooLarge once the text exceeds limit bytes.
func documentXMLText(r io.Reader, limit int64) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, ErrTooLarge) {
				return "", ErrTooLarge
			}
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
		if int64(sb.Len()) > limit {
			return "", ErrTooLarge
		}
	}
	return sb.String(), nil
}
