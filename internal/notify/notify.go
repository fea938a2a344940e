// Package notify abstracts the user-visible notification sink (the toast
// surface in a UI, the log in a headless client).
package notify

import "github.com/rs/zerolog/log"

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarn
	LevelError
)

// Notification is one user-visible message. Sticky notifications stay until
// the user acts (terminal connection failure).
type Notification struct {
	Level   Level
	Summary string
	Detail  string
	Sticky  bool
}

// Sink consumes notifications.
type Sink interface {
	Notify(n Notification)
}

// Func adapts a function to the Sink interface.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// LogSink writes notifications to the log, for headless use.
type LogSink struct{}

func (LogSink) Notify(n Notification) {
	ev := log.Info()
	switch n.Level {
	case LevelWarn:
		ev = log.Warn()
	case LevelError:
		ev = log.Error()
	}
	ev.Str("summary", n.Summary).Msg(n.Detail)
}
