package compliance

import (
	"context"
	"sync"

	"github.com/trezcool/neighborguard/core/notification"
)

// Dispatcher sends the messages of compliance events.
type Dispatcher struct {
	sender notification.Sender
}

func NewDispatcher(sender notification.Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// Dispatch runs events in order. The messages of one event are sent concurrently and all of them
// are attempted whatever the others' outcome. It returns the number of failed messages.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) (failed int) {
	for _, ev := range events {
		failed += d.dispatch(ctx, ev)
	}
	return failed
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) int {
	results := make([]bool, len(ev.Messages))
	var wg sync.WaitGroup
	for i, msg := range ev.Messages {
		wg.Add(1)
		go func(i int, msg Message) {
			defer wg.Done()
			results[i] = d.send(ctx, msg)
		}(i, msg)
	}
	wg.Wait()

	var failed int
	for _, ok := range results {
		if !ok {
			failed++
		}
	}
	return failed
}

func (d *Dispatcher) send(ctx context.Context, msg Message) bool {
	switch msg.Channel {
	case ChannelSMS:
		return d.sender.SendSMS(ctx, msg.To, msg.Body)
	default:
		return d.sender.SendEmail(ctx, msg.To, msg.Subject, msg.Body)
	}
}
