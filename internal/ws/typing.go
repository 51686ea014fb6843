package ws

import (
	"sync"
	"time"
)

type typingTimer struct {
	t *time.Timer
}

// TypingTracker holds one observer's view of who is typing to it. A subject is
// Typing while it has a pending timer; expiry or an explicit stop returns it to Idle.
// onChange runs under the tracker lock and must not block.
type TypingTracker struct {
	mu       sync.Mutex
	quiet    time.Duration
	timers   map[string]*typingTimer
	onChange func(subject string, isTyping bool)
	closed   bool
}

func NewTypingTracker(quiet time.Duration, onChange func(subject string, isTyping bool)) *TypingTracker {
	return &TypingTracker{
		quiet:    quiet,
		timers:   make(map[string]*typingTimer),
		onChange: onChange,
	}
}

// Observe applies a typing signal from subject.
func (t *TypingTracker) Observe(subject string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	current, typing := t.timers[subject]
	if isTyping {
		if typing {
			current.t.Stop()
		}
		tok := &typingTimer{}
		tok.t = time.AfterFunc(t.quiet, func() { t.expire(subject, tok) })
		t.timers[subject] = tok
		if !typing {
			t.onChange(subject, true)
		}
		return
	}

	if !typing {
		return
	}
	current.t.Stop()
	delete(t.timers, subject)
	t.onChange(subject, false)
}

func (t *TypingTracker) expire(subject string, tok *typingTimer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.timers[subject] != tok {
		return
	}
	delete(t.timers, subject)
	t.onChange(subject, false)
}

// IsTyping reports the current state for subject.
func (t *TypingTracker) IsTyping(subject string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[subject]
	return ok
}

// Close cancels every pending timer. Later signals are ignored.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for subject, tok := range t.timers {
		tok.t.Stop()
		delete(t.timers, subject)
	}
}
