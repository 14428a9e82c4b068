package lineproto

import (
	"io"
	"sync"
	"time"

	"github.com/homehub/devicehub/pkg/log"
)

// DefaultDelimiter is the delimiter used when none is configured, matching
// the wire protocol's default of a single carriage return.
const DefaultDelimiter = "\r"

// MaxLogLineDataSize is the maximum line length included verbatim in a log
// event; longer lines are truncated in the logged copy only.
const MaxLogLineDataSize = 4096

// LineWriter writes delimiter-terminated ASCII lines to an underlying
// writer.
type LineWriter struct {
	w         io.Writer
	delimiter string
	mu        sync.Mutex

	logger log.Logger
	connID string
}

// NewLineWriter creates a writer using DefaultDelimiter.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w, delimiter: DefaultDelimiter}
}

// SetDelimiter overrides the outbound delimiter (e.g. "\r\n" or a single
// binary sentinel byte).
func (lw *LineWriter) SetDelimiter(delimiter string) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.delimiter = delimiter
}

// SetLogger configures protocol logging. Pass nil to disable it.
func (lw *LineWriter) SetLogger(logger log.Logger, connID string) {
	lw.logger = logger
	lw.connID = connID
}

// WriteLine coerces data to ASCII, appends the outbound delimiter, and
// writes the result. Thread-safe: callers may write from multiple
// goroutines, though the sender layer above normally serializes this.
func (lw *LineWriter) WriteLine(data []byte) error {
	ascii := toASCII(data)

	lw.mu.Lock()
	defer lw.mu.Unlock()

	if _, err := lw.w.Write(ascii); err != nil {
		return err
	}
	if _, err := io.WriteString(lw.w, lw.delimiter); err != nil {
		return err
	}

	if lw.logger != nil {
		lw.logger.Log(lw.makeEvent(ascii))
	}
	return nil
}

func (lw *LineWriter) makeEvent(data []byte) log.Event {
	lineData := data
	truncated := false
	if len(lineData) > MaxLogLineDataSize {
		lineData = lineData[:MaxLogLineDataSize]
		truncated = true
	}
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: lw.connID,
		Direction:    log.DirectionOut,
		Category:     log.CategoryLine,
		Line: &log.LineEvent{
			Data:      lineData,
			Truncated: truncated,
		},
	}
}

// toASCII normalizes non-ASCII bytes out of data rather than emitting them,
// since every device protocol in scope is pure ASCII and stray multibyte
// sequences would desynchronize the device's own framing.
func toASCII(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b < 0x80 {
			out = append(out, b)
		}
	}
	return out
}
