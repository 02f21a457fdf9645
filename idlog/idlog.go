// Package idlog captures recent log output for the status API.
package idlog

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const defaultCapacity = 200

// Log is a logrus hook retaining the most recent formatted entries.
type Log struct {
	mtx      sync.Mutex
	entries  []string
	capacity int
}

func New() *Log {
	return &Log{
		capacity: defaultCapacity,
	}
}

func (l *Log) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (l *Log) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.entries = append(l.entries, strings.TrimRight(line, "\n"))
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}

	return nil
}

// Entries returns a snapshot of the retained log lines, oldest first.
func (l *Log) Entries() []string {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	entries := make([]string, len(l.entries))
	copy(entries, l.entries)
	return entries
}
