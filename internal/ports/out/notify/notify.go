package notify

import "context"

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a transient user-facing notification.
type Notice struct {
	Level   Level
	Message string
}

// Notifier delivers notices to the presentation layer.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(context.Context, Notice) {}
