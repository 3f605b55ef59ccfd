package syncer

import "sync"

// Event is a host-environment visibility signal. The host (wallet UI)
// reports foreground/background transitions; each synchronizer decides
// on its own whether the signal warrants a refetch.
type Event int

const (
	Foreground Event = iota
	Background
)

// Notifier fans visibility events out to every subscribed synchronizer.
// Delivery is non-blocking: a subscriber that has not drained its
// channel keeps only the newest event, so a stale Background signal
// never shadows a Foreground that follows it.
type Notifier struct {
	mu   sync.Mutex
	subs []chan Event
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers a new listener channel.
func (n *Notifier) Subscribe() <-chan Event {
	ch := make(chan Event, 1)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}

// Notify delivers an event to all subscribers without blocking. A
// pending undelivered event is replaced so the newest one wins.
func (n *Notifier) Notify(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
