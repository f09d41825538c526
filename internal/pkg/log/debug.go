// nolint:forbidigo // allow usage of the "zap" package
package log

import (
	"bufio"
	"bytes"
	"strings"
	"sync"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

// DebugLogger buffers all messages as JSON lines, it is used in tests.
type DebugLogger interface {
	Logger
	Truncate()
	AllMessages() string
	DebugMessages() string
	InfoMessages() string
	WarnMessages() string
	WarnAndErrorMessages() string
	ErrorMessages() string
	CompareJSONMessages(expected string) error
	AssertJSONMessages(t assert.TestingT, expected string, msgAndArgs ...any) bool
}

type debugLogger struct {
	*zapLogger
	buffer *syncBuffer
}

type syncBuffer struct {
	lock *sync.Mutex
	buf  *bytes.Buffer
}

func NewDebugLogger() DebugLogger {
	buffer := &syncBuffer{lock: &sync.Mutex{}, buf: &bytes.Buffer{}}
	encoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})
	core := zapcore.NewCore(encoder, zapcore.AddSync(buffer), DebugLevel)
	return &debugLogger{zapLogger: loggerFromZapCore(core), buffer: buffer}
}

func (l *debugLogger) Truncate() {
	l.buffer.lock.Lock()
	defer l.buffer.lock.Unlock()
	l.buffer.buf.Reset()
}

func (l *debugLogger) AllMessages() string {
	l.buffer.lock.Lock()
	defer l.buffer.lock.Unlock()
	return l.buffer.buf.String()
}

func (l *debugLogger) DebugMessages() string {
	return l.messagesWithLevel(DebugLevel)
}

func (l *debugLogger) InfoMessages() string {
	return l.messagesWithLevel(InfoLevel)
}

func (l *debugLogger) WarnMessages() string {
	return l.messagesWithLevel(WarnLevel)
}

func (l *debugLogger) WarnAndErrorMessages() string {
	return l.messagesWithLevel(WarnLevel, ErrorLevel)
}

func (l *debugLogger) ErrorMessages() string {
	return l.messagesWithLevel(ErrorLevel)
}

func (l *debugLogger) CompareJSONMessages(expected string) error {
	return CompareJSONMessages(expected, l.AllMessages())
}

func (l *debugLogger) AssertJSONMessages(t assert.TestingT, expected string, msgAndArgs ...any) bool {
	return AssertJSONMessages(t, expected, l.AllMessages(), msgAndArgs...)
}

func (l *debugLogger) messagesWithLevel(levels ...zapcore.Level) string {
	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(l.AllMessages()))
	for scanner.Scan() {
		line := scanner.Text()
		for _, level := range levels {
			if strings.HasPrefix(line, `{"level":"`+level.String()+`"`) {
				out.WriteString(line)
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}
