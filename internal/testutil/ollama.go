package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeOllama is an httptest server speaking the streaming subset of the
// Ollama API. Zero-value responses stream nothing and finish immediately.
type FakeOllama struct {
	*httptest.Server

	mu           sync.Mutex
	chatChunks   []string
	genChunks    []string
	failStatus   int
	requests     []map[string]any
	requestPaths []string
}

// NewFakeOllama starts a fake server. Call Close when done.
func NewFakeOllama() *FakeOllama {
	f := &FakeOllama{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// SetChat configures the message chunks streamed by /api/chat.
func (f *FakeOllama) SetChat(chunks ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatChunks = chunks
}

// SetGenerate configures the response chunks streamed by /api/generate.
func (f *FakeOllama) SetGenerate(chunks ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genChunks = chunks
}

// FailWith makes every streaming call answer with status.
func (f *FakeOllama) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
}

// Requests returns the decoded JSON bodies received so far.
func (f *FakeOllama) Requests() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.requests...)
}

// Paths returns the request paths received so far.
func (f *FakeOllama) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requestPaths...)
}

func (f *FakeOllama) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/tags" {
		_, _ = io.WriteString(w, `{"models":[]}`)
		return
	}

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, body)
	f.requestPaths = append(f.requestPaths, r.URL.Path)
	status := f.failStatus
	chat := append([]string(nil), f.chatChunks...)
	gen := append([]string(nil), f.genChunks...)
	f.mu.Unlock()

	if status != 0 {
		http.Error(w, "upstream unavailable", status)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	emit := func(v any) {
		b, _ := json.Marshal(v)
		fmt.Fprintf(w, "%s\n", b)
		if flusher != nil {
			flusher.Flush()
		}
	}

	switch r.URL.Path {
	case "/api/chat":
		for _, c := range chat {
			emit(map[string]any{"message": map[string]string{"role": "assistant", "content": c}, "done": false})
		}
		emit(map[string]any{"message": map[string]string{"role": "assistant", "content": ""}, "done": true})
	case "/api/generate":
		for _, c := range gen {
			emit(map[string]any{"response": c, "done": false})
		}
		emit(map[string]any{"response": "", "done": true})
	default:
		http.NotFound(w, r)
	}
}
