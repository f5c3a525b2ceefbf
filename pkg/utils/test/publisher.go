package testutils

import (
	"context"
	"sync"

	"github.com/releaselens/releaselens/pkg/eventstream"
)

// CapturePublisher records published ingest events for assertions.
type CapturePublisher struct {
	mu     sync.Mutex
	events []*eventstream.IngestEvent

	// Err, when set, is returned from every publish
	Err error
}

func NewCapturePublisher() *CapturePublisher {
	return &CapturePublisher{}
}

func (p *CapturePublisher) PublishIngest(_ context.Context, event *eventstream.IngestEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *CapturePublisher) Close() error {
	return nil
}

// Events returns a snapshot of the captured events.
func (p *CapturePublisher) Events() []*eventstream.IngestEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*eventstream.IngestEvent, len(p.events))
	copy(out, p.events)
	return out
}

var _ eventstream.Publisher = (*CapturePublisher)(nil)
