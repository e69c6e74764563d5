package sessions

import (
	"sync"

	"github.com/sfp-labs/fellowship-portal/internal/application"
	"github.com/sfp-labs/fellowship-portal/internal/metrics"
)

const maxPendingToasts = 10

// Toast is a transient notification for the applicant.
type Toast struct {
	Level   application.ToastLevel `json:"level"`
	Message string                 `json:"message"`
}

// Signals are the UI effects emitted by a controller between two reads.
type Signals struct {
	Toasts      []Toast `json:"toasts"`
	ScrollToTop bool    `json:"scroll_to_top"`
}

// notifier buffers controller signals until the API hands them to the client.
type notifier struct {
	mu     sync.Mutex
	toasts []Toast
	scroll bool
}

func (n *notifier) Toast(level application.ToastLevel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, Toast{Level: level, Message: message})
	if len(n.toasts) > maxPendingToasts {
		n.toasts = n.toasts[len(n.toasts)-maxPendingToasts:]
	}
}

func (n *notifier) ScrollToTop() {
	n.mu.Lock()
	n.scroll = true
	n.mu.Unlock()
}

// Status is read from the controller snapshot instead.
func (n *notifier) Status(string) {}

func (n *notifier) drain() Signals {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := Signals{Toasts: n.toasts, ScrollToTop: n.scroll}
	if s.Toasts == nil {
		s.Toasts = []Toast{}
	}
	n.toasts = nil
	n.scroll = false
	return s
}

type tracker struct{}

func (tracker) FormStarted() {
	metrics.FormsStarted.Inc()
}
