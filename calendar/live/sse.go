package live

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("response writer does not support flushing")

// Writer writes messages as a server-sent event stream.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter prepares w for an event stream: it sets the SSE headers and
// writes the 200 status.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes m as one "data:" frame.
func (w *Writer) Send(m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

// KeepAlive writes a comment frame so idle proxies keep the stream open.
func (w *Writer) KeepAlive() error {
	if _, err := io.WriteString(w.w, ":keep-alive\n\n"); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

// StreamReader decodes messages from a server-sent event stream. Comment
// frames are skipped; malformed frames are logged and skipped.
type StreamReader struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
}

// NewStreamReader reads frames from r. A nil logger discards diagnostics.
func NewStreamReader(r io.Reader, logger *slog.Logger) *StreamReader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &StreamReader{scanner: scanner, logger: logger}
}

// Next returns the next valid message. It returns io.EOF at the end of the
// stream.
func (r *StreamReader) Next() (Message, error) {
	var data bytes.Buffer
	for r.scanner.Scan() {
		line := r.scanner.Text()

		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			m, err := Decode(data.Bytes())
			data.Reset()
			if err != nil {
				r.logger.Warn("discarding malformed live message", "error", err)
				continue
			}
			return m, nil
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := r.scanner.Err(); err != nil {
		return Message{}, err
	}
	return Message{}, io.EOF
}

// Pump reads r until it ends or ctx is done and publishes every valid
// message to bus. It returns nil at the end of the stream.
func Pump(ctx context.Context, r *StreamReader, bus *Bus) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		bus.Publish(m)
	}
}
