package middleware

import (
	"sync"

	"github.com/ternarybob/lwfm/internal/models"
)

// LogStream fans persisted log records out to live subscribers (the
// websocket handler). Slow subscribers drop records rather than block the
// emit path.
type LogStream struct {
	mu   sync.Mutex
	subs map[chan *models.LogRecord]bool
}

// NewLogStream creates an empty broadcaster.
func NewLogStream() *LogStream {
	return &LogStream{subs: make(map[chan *models.LogRecord]bool)}
}

// Subscribe registers a listener channel.
func (s *LogStream) Subscribe() chan *models.LogRecord {
	ch := make(chan *models.LogRecord, 64)
	s.mu.Lock()
	s.subs[ch] = true
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel.
func (s *LogStream) Unsubscribe(ch chan *models.LogRecord) {
	s.mu.Lock()
	if s.subs[ch] {
		delete(s.subs, ch)
		close(ch)
	}
	s.mu.Unlock()
}

// Publish delivers a record to every subscriber without blocking.
func (s *LogStream) Publish(record *models.LogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- record:
		default:
		}
	}
}
