package core

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// Level orders log severities. Records below the logger's minimum are dropped.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel maps a config string such as "debug" to a Level. Unknown values yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// HandlerFunc receives every record that passes the level filter.
type HandlerFunc func(level Level, msg string, attrs map[string]interface{})

var (
	loggerMu       sync.RWMutex
	loggerInstance = NewDevelopmentLogger(LevelInfo)
)

// SetLogger sets the global logger instance
func SetLogger(logger *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return loggerInstance
}

type Logger struct {
	handlerFunc HandlerFunc
	minLevel    Level
	attrs       map[string]interface{}
}

func NewLogger(minLevel Level, handler HandlerFunc) *Logger {
	return &Logger{
		handlerFunc: handler,
		minLevel:    minLevel,
		attrs:       make(map[string]interface{}),
	}
}

// NewDevelopmentLogger writes human-readable lines to stdout.
func NewDevelopmentLogger(minLevel Level) *Logger {
	return NewLogger(minLevel, func(level Level, msg string, attrs map[string]interface{}) {
		var b strings.Builder
		b.WriteString(time.Now().Format(time.RFC3339))
		b.WriteString(" [")
		b.WriteString(level.String())
		b.WriteString("] ")
		b.WriteString(msg)
		if len(attrs) > 0 {
			b.WriteString(" |")
			for _, k := range sortedKeys(attrs) {
				fmt.Fprintf(&b, " %s=%v", k, attrs[k])
			}
		}
		b.WriteByte('\n')
		fmt.Fprint(os.Stdout, b.String())
	})
}

// NewJSONLogger writes one JSON object per record to w.
func NewJSONLogger(minLevel Level, w io.Writer) *Logger {
	var mu sync.Mutex
	return NewLogger(minLevel, func(level Level, msg string, attrs map[string]interface{}) {
		record := make(map[string]interface{}, len(attrs)+3)
		for k, v := range attrs {
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			record[k] = v
		}
		record["time"] = time.Now().UTC().Format(time.RFC3339Nano)
		record["level"] = level.String()
		record["msg"] = msg

		line, err := sonic.Marshal(record)
		if err != nil {
			line = []byte(fmt.Sprintf(`{"level":%q,"msg":%q,"marshal_error":%q}`, level.String(), msg, err.Error()))
		}
		mu.Lock()
		defer mu.Unlock()
		w.Write(append(line, '\n'))
	})
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return NewLogger(LevelError+1, nil)
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if l == nil || l.handlerFunc == nil || level < l.minLevel {
		return
	}
	if len(args) > 0 {
		// slog-style key/value pairs become attributes, anything else is a format argument
		if isKeyValuePairs(args) {
			attrs := make(map[string]interface{}, len(l.attrs)+len(args)/2)
			for k, v := range l.attrs {
				attrs[k] = v
			}
			for i := 0; i < len(args)-1; i += 2 {
				key, _ := args[i].(string)
				attrs[key] = args[i+1]
			}
			l.handlerFunc(level, msg, attrs)
			return
		}
		msg = fmt.Sprintf(msg, args...)
	}
	l.handlerFunc(level, msg, l.attrs)
}

// isKeyValuePairs returns true if args look like slog-style key-value pairs:
// even count and every key (even index) is a string.
func isKeyValuePairs(args []interface{}) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (l *Logger) Trace(msg string, args ...interface{}) { l.log(LevelTrace, msg, args...) }

func (l *Logger) Tracef(format string, args ...interface{}) { l.log(LevelTrace, format, args...) }

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }

func (l *Logger) Info(msg string, args ...interface{}) { l.log(LevelInfo, msg, args...) }

func (l *Logger) Infof(format string, args ...interface{}) { l.log(LevelInfo, format, args...) }

func (l *Logger) Warn(msg string, args ...interface{}) { l.log(LevelWarn, msg, args...) }

func (l *Logger) Warnf(format string, args ...interface{}) { l.log(LevelWarn, format, args...) }

func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }

func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, format, args...) }

// With returns a child logger carrying attrs on every record.
func (l *Logger) With(attrs map[string]interface{}) *Logger {
	if l == nil {
		return nil
	}
	combinedAttrs := make(map[string]interface{}, len(l.attrs)+len(attrs))
	for k, v := range l.attrs {
		combinedAttrs[k] = v
	}
	for k, v := range attrs {
		combinedAttrs[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		minLevel:    l.minLevel,
		attrs:       combinedAttrs,
	}
}

// Sync is a no-op; handlers write synchronously.
func (l *Logger) Sync() error {
	return nil
}
