package engine

import (
	"strings"

	"axiom/engine/internal/errinfo"
	"axiom/engine/internal/tools"
)

type EventKind string

const (
	EventText     EventKind = "text"
	EventProgress EventKind = "progress"
	EventArtifact EventKind = "artifact"
	EventError    EventKind = "error"
)

// Event is one item of a turn's output stream.
type Event struct {
	Kind     EventKind
	Text     string
	Tool     string
	Artifact *tools.Artifact
	Err      *errinfo.ErrorInfo
}

// Reply is a whole turn folded into the shape the editor expects.
type Reply struct {
	Response   string
	Components []tools.Artifact
	Progress   []string
	Error      *errinfo.ErrorInfo
}

// Collect drains events until the channel closes.
func Collect(events <-chan Event) Reply {
	var (
		reply Reply
		text  []string
	)
	for ev := range events {
		switch ev.Kind {
		case EventText:
			if ev.Text != "" {
				text = append(text, ev.Text)
			}
		case EventProgress:
			reply.Progress = append(reply.Progress, ev.Text)
		case EventArtifact:
			if ev.Artifact != nil {
				reply.Components = append(reply.Components, *ev.Artifact)
			}
		case EventError:
			reply.Error = ev.Err
		}
	}
	reply.Response = strings.Join(text, "\n")
	if reply.Components == nil {
		reply.Components = []tools.Artifact{}
	}
	return reply
}
