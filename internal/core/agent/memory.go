package agent

import (
	"sync"
	"time"
)

// DefaultHistorySize is how many tactical decisions the agent remembers.
const DefaultHistorySize = 64

// Decision is one tactical transition as the agent saw it.
type Decision struct {
	From     string    `json:"from"`
	To       string    `json:"to"`
	Strategy string    `json:"strategy"`
	Tick     uint64    `json:"tick"`
	At       time.Time `json:"at"`
}

// History is a bounded ring of decisions; the oldest entry is overwritten
// once it is full.
type History struct {
	mu    sync.RWMutex
	buf   []Decision
	next  int
	count int
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]Decision, size)}
}

func (h *History) Append(d Decision) {
	h.mu.Lock()
	h.buf[h.next] = d
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
	h.mu.Unlock()
}

// Records returns a copy, oldest first.
func (h *History) Records() []Decision {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Decision, 0, h.count)
	start := (h.next - h.count + len(h.buf)) % len(h.buf)
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(start+i)%len(h.buf)])
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *History) Reset() {
	h.mu.Lock()
	h.next, h.count = 0, 0
	h.mu.Unlock()
}
