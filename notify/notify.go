// Package notify carries user-visible warnings and errors from the
// synchronizer and the console plumbing to whatever surface shows them.
package notify

import (
	"fmt"
	"sync"
)

// Severity is the level of a user notification
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Notifier receives user-visible notifications
type Notifier interface {
	Notify(severity Severity, message string)
}

// Func adapts a plain function to Notifier
type Func func(severity Severity, message string)

func (f Func) Notify(severity Severity, message string) {
	f(severity, message)
}

// Discard drops every notification
var Discard Notifier = Func(func(Severity, string) {})

// Notification is one recorded notification
type Notification struct {
	Severity Severity
	Message  string
}

// Recorder keeps every notification it receives
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(severity Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Severity: severity, Message: message})
}

// Notifications returns a copy of the recorded notifications
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}
