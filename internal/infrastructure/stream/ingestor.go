// Package stream decodes the line-oriented generation event stream into
// callbacks for partial output, status, error and completion.
package stream

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/grimoiredev/grimoire/internal/domain"
	"github.com/grimoiredev/grimoire/internal/ports"
)

// eventPrefix marks a parseable event line. Lines without it are ignored.
const eventPrefix = "data: "

// payload is the structured body of one event line.
type payload struct {
	Delta  string `json:"delta,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	Done   bool   `json:"done,omitempty"`
}

// Ingestor consumes an incremental text stream. A malformed data line is
// logged and skipped; a transport failure or explicit error line is fatal.
type Ingestor struct {
	Logger ports.Logger
	// readBuf sizes the per-chunk read; exposed for tests exercising
	// arbitrary chunk splits.
	readBuf int
}

// NewIngestor builds an ingestor.
func NewIngestor(log ports.Logger) *Ingestor {
	return &Ingestor{Logger: log, readBuf: 4096}
}

// Consume reads r to completion, dispatching decoded events to h. Exactly one
// terminal callback fires per invocation: an explicit error or done line, a
// synthesized done at clean EOF, or an error on transport failure. The
// returned error mirrors the terminal error callback, nil otherwise.
func (i *Ingestor) Consume(ctx context.Context, r io.Reader, h ports.StreamHandlers) error {
	size := i.readBuf
	if size <= 0 {
		size = 4096
	}
	chunk := make([]byte, size)
	var pending strings.Builder

	for {
		if err := ctx.Err(); err != nil {
			i.emitError(h, err.Error())
			return err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			pending.Write(chunk[:n])
			buffered := pending.String()
			lines := strings.Split(buffered, "\n")
			pending.Reset()
			// Hold back the trailing (possibly incomplete) line.
			pending.WriteString(lines[len(lines)-1])
			for _, line := range lines[:len(lines)-1] {
				terminal, consumeErr := i.dispatch(line, h)
				if terminal {
					return consumeErr
				}
			}
		}
		if err == io.EOF {
			// Flush any final unterminated line before synthesizing done.
			if line := pending.String(); line != "" {
				if terminal, consumeErr := i.dispatch(line, h); terminal {
					return consumeErr
				}
			}
			if h.OnDone != nil {
				h.OnDone()
			}
			return nil
		}
		if err != nil {
			i.emitError(h, err.Error())
			return err
		}
	}
}

// dispatch handles one complete line. It reports whether the line was
// terminal and, for error lines, the error to surface.
func (i *Ingestor) dispatch(line string, h ports.StreamHandlers) (bool, error) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, eventPrefix) {
		return false, nil
	}
	raw := strings.TrimSpace(line[len(eventPrefix):])
	if raw == "" {
		return false, nil
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		if i.Logger != nil {
			i.Logger.Warn("dropping malformed stream line", map[string]interface{}{
				"line":  raw,
				"error": err.Error(),
			})
		}
		return false, nil
	}

	switch {
	case p.Delta != "":
		if h.OnDelta != nil {
			h.OnDelta(p.Delta)
		}
	case p.Status == domain.StreamStatusStarted:
		if h.OnStatus != nil {
			h.OnStatus(p.Status)
		}
	case p.Error != "":
		i.emitError(h, p.Error)
		return true, &streamError{message: p.Error}
	case p.Done:
		if h.OnDone != nil {
			h.OnDone()
		}
		return true, nil
	}
	return false, nil
}

func (i *Ingestor) emitError(h ports.StreamHandlers, message string) {
	if h.OnError != nil {
		h.OnError(message)
	}
}

type streamError struct {
	message string
}

func (e *streamError) Error() string {
	return "stream: " + e.message
}
