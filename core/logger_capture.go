package core

import "sync"

// LogRecord is one captured log call.
type LogRecord struct {
	Level Level
	Msg   string
	Attrs map[string]interface{}
}

// LogCapture collects records in memory. Tests use it to assert on swallowed errors.
type LogCapture struct {
	mu      sync.Mutex
	records []LogRecord
}

// NewCaptureLogger returns a logger at LevelTrace feeding the returned capture.
func NewCaptureLogger() (*Logger, *LogCapture) {
	c := &LogCapture{}
	return NewLogger(LevelTrace, c.handle), c
}

func (c *LogCapture) handle(level Level, msg string, attrs map[string]interface{}) {
	copied := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, LogRecord{Level: level, Msg: msg, Attrs: copied})
}

func (c *LogCapture) Records() []LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Find returns the first record with the given message.
func (c *LogCapture) Find(msg string) (LogRecord, bool) {
	for _, r := range c.Records() {
		if r.Msg == msg {
			return r, true
		}
	}
	return LogRecord{}, false
}
