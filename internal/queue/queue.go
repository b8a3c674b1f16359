package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emrgen/qda/internal/coding"
)

var CodingEventTopic = "qda.coding.events"

// EventQueue carries session events to consumers outside the process.
type EventQueue interface {
	// Publish appends an event to the queue.
	Publish(ctx context.Context, event coding.Event) error
	Close() error
}

// Message is the wire form of a coding event.
type Message struct {
	Kind         coding.EventKind `json:"kind"`
	ProjectID    string           `json:"project_id"`
	SourceID     string           `json:"source_id"`
	CodeIDs      []string         `json:"code_ids,omitempty"`
	SelectionIDs []string         `json:"selection_ids,omitempty"`
	PublishedAt  time.Time        `json:"published_at"`
}

func NewMessage(event coding.Event) Message {
	msg := Message{
		Kind:        event.Kind,
		ProjectID:   event.ProjectID,
		SourceID:    event.SourceID,
		PublishedAt: time.Now().UTC(),
	}
	for _, code := range event.Codes {
		msg.CodeIDs = append(msg.CodeIDs, code.ID)
	}
	for _, sel := range event.Selections {
		msg.SelectionIDs = append(msg.SelectionIDs, sel.ID)
	}
	return msg
}

func (m Message) MarshalBinary() ([]byte, error) {
	return json.Marshal(m)
}

// PublishTimeout bounds how long Sink waits for one event to be accepted.
var PublishTimeout = 5 * time.Second

// Sink forwards session events to a queue. Publish failures are logged and
// never reach the session.
func Sink(ctx context.Context, q EventQueue) coding.Observer {
	return coding.ObserverFunc(func(event coding.Event) {
		ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
		defer cancel()

		if err := q.Publish(ctx, event); err != nil {
			logrus.Warnf("failed to publish %s event of source %s: %v", event.Kind, event.SourceID, err)
		}
	})
}
