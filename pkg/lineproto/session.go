package lineproto

import (
	"io"

	"github.com/homehub/devicehub/pkg/log"
)

// Session combines a LineReader and LineWriter over one bidirectional
// stream, with independently configurable inbound/outbound delimiters.
type Session struct {
	*LineReader
	*LineWriter
}

// New creates a Session over rw using DefaultDelimiter for both directions.
func New(rw io.ReadWriter) *Session {
	return &Session{
		LineReader: NewLineReader(rw),
		LineWriter: NewLineWriter(rw),
	}
}

// SetInboundDelimiter overrides the delimiter used to split incoming bytes
// into lines.
func (s *Session) SetInboundDelimiter(delimiter string) {
	s.LineReader.SetDelimiter(delimiter)
}

// SetOutboundDelimiter overrides the delimiter appended to outgoing lines.
func (s *Session) SetOutboundDelimiter(delimiter string) {
	s.LineWriter.SetDelimiter(delimiter)
}

// SetLogger configures protocol logging for both directions.
func (s *Session) SetLogger(logger log.Logger, connID string) {
	s.LineReader.SetLogger(logger, connID)
	s.LineWriter.SetLogger(logger, connID)
}
