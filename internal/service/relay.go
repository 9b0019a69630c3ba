package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"project0/internal/stream"
)

// Sink receives the events of one streaming response. *stream.Writer
// satisfies it.
type Sink interface {
	Send(ev stream.Event) error
}

// ErrClientGone means the browser stopped reading the stream.
var ErrClientGone = errors.New("client disconnected")

// relay forwards model chunks to sink as content events and returns the
// accumulated text. On a sink failure the upstream context is cancelled.
func relay(cancel context.CancelFunc, chunks <-chan string, errs <-chan error, sink Sink) (string, int, error) {
	var sb strings.Builder
	n := 0
	for chunk := range chunks {
		sb.WriteString(chunk)
		n++
		if err := sink.Send(stream.Content(chunk)); err != nil {
			cancel()
			// Drain so the producer goroutine can exit.
			for range chunks {
			}
			<-errs
			return sb.String(), n, fmt.Errorf("%w: %v", ErrClientGone, err)
		}
	}
	if err := <-errs; err != nil {
		return sb.String(), n, err
	}
	return sb.String(), n, nil
}

// finish sends the terminal event, ignoring a client that already left.
func finish(sink Sink, ev stream.Event) {
	_ = sink.Send(ev)
}
