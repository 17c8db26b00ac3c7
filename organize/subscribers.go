package organize

import "sync"

// Subscriber is called once per successful (or failed) organize, in the
// order it was registered, carrying the height the work landed at (or
// would have landed at) and the outcome (spec.md §4.I "subscriber
// registry ... handlers invoked in registration order on every
// successful organize").
type Subscriber func(height uint32, err error)

// subscribers is the registry shared by HeaderOrganizer, BlockOrganizer
// and TransactionOrganizer.
type subscribers struct {
	mu   sync.Mutex
	subs []Subscriber
}

// Subscribe registers fn to be called on every future organize outcome.
func (s *subscribers) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// notify calls every registered subscriber, in registration order, with
// the outcome of one organize call. Subscribers are snapshotted first
// so a handler registering another subscriber mid-callback does not
// receive this same notification.
func (s *subscribers) notify(height uint32, err error) {
	s.mu.Lock()
	fns := append([]Subscriber(nil), s.subs...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(height, err)
	}
}
