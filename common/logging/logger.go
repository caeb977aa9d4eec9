package logging

import (
	"fmt"
	"os"
	"sync"
)

// Logger is a leveled printf-style logger carrying a set of labels.
type Logger interface {
	// With returns a child logger with an extra label. The parent is not modified.
	With(label, value string) Logger
	SetLabel(label, value string)

	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Notice(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	// Critical logs, flushes every output and terminates the process.
	Critical(format string, args ...interface{})
}

var _ Logger = (*logger)(nil)

type logger struct {
	mu        sync.RWMutex
	labels    labelMap
	threshold level
	out       output
}

// NewLogger returns an untagged logger.
func NewLogger() Logger {
	return NewLoggerTag("")
}

// NewLoggerTag returns a logger whose lines are tagged with tag.
func NewLoggerTag(tag string) Logger {
	return newLogger(tag, defaultThresholdLevel(), defaultOutput())
}

func newLogger(tag string, threshold level, out output) *logger {
	if !threshold.IsValid() {
		panic(fmt.Sprintf("invalid log threshold level (%d, %d), [%d]", firstLevel, lastLevel, threshold))
	}
	return &logger{
		labels:    labelMap{LabelTag: tag},
		threshold: threshold,
		out:       out,
	}
}

func (l *logger) With(label, value string) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &logger{
		labels:    l.labels.with(label, value),
		threshold: l.threshold,
		out:       l.out,
	}
}

func (l *logger) SetLabel(label, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.labels[label] = value
}

func (l *logger) Debug(format string, args ...interface{}) {
	l.print(debugLevel, format, args...)
}

func (l *logger) Info(format string, args ...interface{}) {
	l.print(infoLevel, format, args...)
}

func (l *logger) Notice(format string, args ...interface{}) {
	l.print(noticeLevel, format, args...)
}

func (l *logger) Warn(format string, args ...interface{}) {
	l.print(warnLevel, format, args...)
}

func (l *logger) Error(format string, args ...interface{}) {
	l.print(errorLevel, format, args...)
}

func (l *logger) Critical(format string, args ...interface{}) {
	l.print(criticalLevel, format, args...)
	Finalize()
	os.Exit(1)
}

// print is always called directly from a level method; callerSkip points at the user's frame.
func (l *logger) print(lv level, format string, args ...interface{}) {
	const callerSkip = 3
	if lv > l.threshold {
		return
	}
	l.mu.RLock()
	m := l.labels.with(labelPod, hostName)
	l.mu.RUnlock()

	if m[LabelTag] == "" {
		m[LabelTag] = hostName
	}
	if lv <= errorLevel {
		m.addDebugInfo(callerSkip)
	}
	l.out.write(lv, m, fmt.Sprintf(format, args...)+"\n")
}
