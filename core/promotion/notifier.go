package promotion

import (
	"sync"
	"time"
)

const DefaultNoticeTTL = 5 * time.Second

type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeWarning
	NoticeError
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeSuccess:
		return "success"
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	}
	return "unknown"
}

// Notice is a transient notification. Details holds inspectable lines, e.g. per-student failures.
type Notice struct {
	ID       uint64
	Kind     NoticeKind
	Message  string
	Details  []string
	PostedAt time.Time
}

// Notifier shows one notice at a time. A new notice replaces the current one
// and every notice is dismissed after ttl unless dismissed earlier.
type Notifier struct {
	ttl time.Duration

	mu        sync.Mutex
	seq       uint64
	current   *Notice
	timer     *time.Timer
	listeners []func(Notice)
}

func NewNotifier(ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &Notifier{ttl: ttl}
}

// Subscribe registers fn to be called with every posted notice.
func (n *Notifier) Subscribe(fn func(Notice)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

func (n *Notifier) Post(kind NoticeKind, msg string, details ...string) Notice {
	n.mu.Lock()
	n.seq++
	notice := Notice{
		ID:       n.seq,
		Kind:     kind,
		Message:  msg,
		Details:  details,
		PostedAt: time.Now(),
	}
	n.current = &notice
	if n.timer != nil {
		n.timer.Stop()
	}
	id := notice.ID
	n.timer = time.AfterFunc(n.ttl, func() { n.expire(id) })
	listeners := make([]func(Notice), len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(notice)
	}
	return notice
}

// Current returns the visible notice, if any.
func (n *Notifier) Current() (Notice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Notice{}, false
	}
	return *n.current, true
}

func (n *Notifier) Dismiss() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = nil
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Notifier) expire(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil && n.current.ID == id {
		n.current = nil
		n.timer = nil
	}
}
