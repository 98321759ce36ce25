package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// DEBUG through WARN go to stdout, ERROR and FATAL to stderr. The writers
// are package variables so tests can capture output.
var (
	outMutex sync.Mutex
	stdout   io.Writer = os.Stdout
	stderr   io.Writer = os.Stderr
)

func (l *Logger) logf(level LogLevel, msg string, args ...interface{}) {
	fields := mergeFields(extractContextFields(l.ctx), l.fields, nil)
	l.writeLog(level, fmt.Sprintf(msg, args...), fields)
}

func (l *Logger) logWithFields(level LogLevel, msg string, fields ...LogField) {
	merged := mergeFields(extractContextFields(l.ctx), l.fields, fields)
	l.writeLog(level, msg, merged)
}

func (l *Logger) writeLog(level LogLevel, msg string, fields map[string]interface{}) {
	line := fmt.Sprintf("[%s] [%s] %s: %s", timestamp(), level, l.name, msg)

	if len(fields) > 0 {
		// keys are sorted so log lines stay greppable
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		line += " |"
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%v", k, fields[k])
		}
	}

	outMutex.Lock()
	defer outMutex.Unlock()
	if level >= ERROR {
		fmt.Fprintln(stderr, line)
		return
	}
	fmt.Fprintln(stdout, line)
}

// timestamp is RFC3339. LOG_TIMESTAMP overrides it for deterministic test
// output.
func timestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}
