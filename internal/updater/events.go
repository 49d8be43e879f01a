package updater

import "sync"

// Event kinds emitted over a run's progress stream
const (
	EventInit     = "init"
	EventStep     = "step"
	EventComplete = "complete"
)

// Event is one progress message from a running pipeline
type Event struct {
	Kind    string
	Payload interface{}
}

// InitPayload is sent once, right after the run's log row is created
type InitPayload struct {
	LogID uint           `json:"logId"`
	Steps []InitStepInfo `json:"steps"`
}

// InitStepInfo is the reduced step view carried by the init event
type InitStepInfo struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// StepPayload is sent on every status transition of a step
type StepPayload struct {
	Index int         `json:"index"`
	Step  interface{} `json:"step"`
}

// CompletePayload is sent exactly once at the end of a run
type CompletePayload struct {
	Status   string `json:"status"`
	Duration int    `json:"duration"`
	Version  string `json:"version,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Broadcaster carries progress events from a single producer (the pipeline)
// to a single consumer (the transport writing framed events). The pipeline
// does not know whether the other end is SSE or a test.
type Broadcaster struct {
	ch        chan Event
	closeOnce sync.Once
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{ch: make(chan Event, 16)}
}

// Publish queues an event for the consumer
func (b *Broadcaster) Publish(kind string, payload interface{}) {
	b.ch <- Event{Kind: kind, Payload: payload}
}

// Events is the consumer side; it is closed when the run ends
func (b *Broadcaster) Events() <-chan Event {
	return b.ch
}

// Close ends the stream. Idempotent.
func (b *Broadcaster) Close() {
	b.closeOnce.Do(func() { close(b.ch) })
}
