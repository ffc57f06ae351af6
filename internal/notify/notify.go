package notify

import "sync"

// Kind discriminates the notification slot.
type Kind int

const (
	None Kind = iota
	Error
	Info
)

func (k Kind) String() string {
	switch k {
	case Error:
		return "error"
	case Info:
		return "info"
	default:
		return "none"
	}
}

// Notice is the single transient message shown to the operator.
type Notice struct {
	Kind    Kind
	Message string
}

// Slot holds at most one Notice; setting a new one supersedes the previous.
type Slot struct {
	mu      sync.RWMutex
	current Notice
	version uint64
}

// Error replaces the slot with an error message.
func (s *Slot) Error(msg string) {
	s.set(Notice{Kind: Error, Message: msg})
}

// Info replaces the slot with an info message.
func (s *Slot) Info(msg string) {
	s.set(Notice{Kind: Info, Message: msg})
}

// Clear empties the slot.
func (s *Slot) Clear() {
	s.set(Notice{})
}

// Current returns the notice in the slot.
func (s *Slot) Current() Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version increments on every change, letting views detect updates cheaply.
func (s *Slot) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Slot) set(n Notice) {
	if n.Message == "" {
		n.Kind = None
	}
	s.mu.Lock()
	s.current = n
	s.version++
	s.mu.Unlock()
}
