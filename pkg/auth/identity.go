package auth

import "sync"

// IdentityState is the tagged authentication state delivered to
// subscribers: Authenticated carries the identity, Anonymous carries
// nothing.
type IdentityState struct {
	Authenticated bool
	UserID        string
	Email         string
}

// Authenticated builds the signed-in state
func Authenticated(userID, email string) IdentityState {
	return IdentityState{Authenticated: true, UserID: userID, Email: email}
}

// Anonymous builds the signed-out state
func Anonymous() IdentityState {
	return IdentityState{}
}

// IdentityBroadcaster delivers identity-state changes to registered
// subscribers. Registration returns an unsubscribe handle; a new
// subscriber immediately receives the current state, mirroring how
// hosted credential gateways notify on initial load.
type IdentityBroadcaster struct {
	mu      sync.Mutex
	nextID  int
	current IdentityState
	subs    map[int]func(IdentityState)
}

// NewIdentityBroadcaster creates a broadcaster in the anonymous state
func NewIdentityBroadcaster() *IdentityBroadcaster {
	return &IdentityBroadcaster{subs: make(map[int]func(IdentityState))}
}

// Subscribe registers a callback and returns its unsubscribe handle.
// The callback is invoked synchronously with the current state.
func (b *IdentityBroadcaster) Subscribe(fn func(IdentityState)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	state := b.current
	b.mu.Unlock()

	fn(state)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish records a new state and notifies every subscriber
func (b *IdentityBroadcaster) Publish(state IdentityState) {
	b.mu.Lock()
	b.current = state
	fns := make([]func(IdentityState), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Current returns the last published state
func (b *IdentityBroadcaster) Current() IdentityState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
