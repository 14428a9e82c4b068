package lineproto

import (
	"bytes"
	"errors"
	"io"
	"time"

	"github.com/homehub/devicehub/pkg/log"
)

// DefaultMaxLineSize bounds how large an unterminated accumulation buffer is
// allowed to grow before a line is rejected as runaway.
const DefaultMaxLineSize = 65536

// ErrLineTooLong indicates the accumulated buffer exceeded the maximum
// line size (see SetMaxLineSize) without ever finding a delimiter.
var ErrLineTooLong = errors.New("lineproto: line exceeds maximum size")

// LineReader reassembles delimiter-terminated ASCII lines from an
// underlying reader, regardless of how the bytes are fragmented across
// individual Read calls.
type LineReader struct {
	r           io.Reader
	delimiter   []byte
	maxLineSize int

	buf     []byte
	readBuf []byte

	logger log.Logger
	connID string
}

// NewLineReader creates a reader using DefaultDelimiter and
// DefaultMaxLineSize.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:           r,
		delimiter:   []byte(DefaultDelimiter),
		maxLineSize: DefaultMaxLineSize,
		readBuf:     make([]byte, 4096),
	}
}

// SetDelimiter overrides the inbound delimiter.
func (lr *LineReader) SetDelimiter(delimiter string) {
	lr.delimiter = []byte(delimiter)
}

// SetMaxLineSize overrides the runaway-line guard.
func (lr *LineReader) SetMaxLineSize(size int) {
	lr.maxLineSize = size
}

// SetLogger configures protocol logging. Pass nil to disable it.
func (lr *LineReader) SetLogger(logger log.Logger, connID string) {
	lr.logger = logger
	lr.connID = connID
}

// ReadLine blocks until a complete, non-empty line is available, the
// underlying reader is exhausted, or it errors. Empty segments (two
// delimiters with nothing between them) are consumed and skipped rather
// than returned, matching devices that echo "\r\n" when only "\r" is
// expected.
func (lr *LineReader) ReadLine() ([]byte, error) {
	for {
		if idx := bytes.Index(lr.buf, lr.delimiter); idx >= 0 {
			line := lr.buf[:idx]
			rest := lr.buf[idx+len(lr.delimiter):]
			lr.buf = append([]byte(nil), rest...)

			if len(line) == 0 {
				continue
			}

			out := make([]byte, len(line))
			copy(out, line)
			if lr.logger != nil {
				lr.logger.Log(lr.makeEvent(out, false))
			}
			return out, nil
		}

		if len(lr.buf) > lr.maxLineSize {
			return nil, ErrLineTooLong
		}

		n, err := lr.r.Read(lr.readBuf)
		if n > 0 {
			lr.buf = append(lr.buf, lr.readBuf[:n]...)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

func (lr *LineReader) makeEvent(data []byte, truncated bool) log.Event {
	lineData := data
	if len(lineData) > MaxLogLineDataSize {
		lineData = lineData[:MaxLogLineDataSize]
		truncated = true
	}
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: lr.connID,
		Direction:    log.DirectionIn,
		Category:     log.CategoryLine,
		Line: &log.LineEvent{
			Data:      lineData,
			Truncated: truncated,
		},
	}
}
