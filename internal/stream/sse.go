// Package stream encodes Server-Sent Events for the streaming endpoints.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Event types.
const (
	TypeStatus  = "status"
	TypeContent = "content"
	TypeDone    = "done"
	TypeError   = "error"
)

// ErrClosed is returned when writing after the terminal event.
var ErrClosed = errors.New("stream: terminal event already sent")

// Event is one SSE data frame.
type Event struct {
	Type       string   `json:"type"`
	Content    string   `json:"content,omitempty"`
	MVPID      string   `json:"mvp_id,omitempty"`
	HasCode    *bool    `json:"has_code,omitempty"`
	AnalysisID uint     `json:"analysis_id,omitempty"`
	MatchScore *float64 `json:"match_score,omitempty"`
	Engine     string   `json:"engine,omitempty"`
}

// Terminal reports whether the event ends a stream.
func (e Event) Terminal() bool {
	return e.Type == TypeDone || e.Type == TypeError
}

func Status(msg string) Event { return Event{Type: TypeStatus, Content: msg} }
func Content(chunk string) Event { return Event{Type: TypeContent, Content: chunk} }

// Error renders err as the terminal error event.
func Error(err error) Event {
	return Event{Type: TypeError, Content: "Error: " + err.Error()}
}

// MVPDone is the terminal event of a generation stream.
func MVPDone(id string, hasCode bool) Event {
	return Event{Type: TypeDone, MVPID: id, HasCode: &hasCode}
}

// AnalysisDone is the terminal event of an analysis stream.
func AnalysisDone(id uint, score float64, engine string) Event {
	return Event{Type: TypeDone, AnalysisID: id, MatchScore: &score, Engine: engine}
}

// Done is a bare terminal event.
func Done() Event { return Event{Type: TypeDone} }

type flusher interface {
	Flush() error
}

// Writer frames events as "data: <json>\n\n" and flushes after each one.
// At most one terminal event is written.
type Writer struct {
	w      io.Writer
	closed bool
	sent   int
}

// NewWriter wraps w. If w has a Flush() error method it is called after every event.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send writes ev. A write or flush error usually means the client went away.
func (s *Writer) Send(ev Event) error {
	if s.closed {
		return ErrClosed
	}
	var payload bytes.Buffer
	enc := json.NewEncoder(&payload)
	// Generated HTML travels verbatim.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return fmt.Errorf("stream: encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", bytes.TrimRight(payload.Bytes(), "\n")); err != nil {
		return err
	}
	if f, ok := s.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	s.sent++
	if ev.Terminal() {
		s.closed = true
	}
	return nil
}

// Closed reports whether a terminal event was sent.
func (s *Writer) Closed() bool { return s.closed }

// Sent is the number of events written.
func (s *Writer) Sent() int { return s.sent }

// Parse decodes a complete SSE body back into events.
func Parse(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return events, fmt.Errorf("stream: decode %q: %w", line, err)
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}

// ParseBytes is Parse over a byte slice.
func ParseBytes(b []byte) ([]Event, error) {
	return Parse(bytes.NewReader(b))
}
