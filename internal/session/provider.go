// Package session turns an asynchronous identity provider into one
// authoritative answer to "who is signed in, and may they change anything?".
//
// A Provider offers two things: a one-shot lookup of the current session and
// a long-lived stream of change notifications (sign-in, sign-out, token
// refresh). The Gate reconciles the two. See gate.go for the ordering rules.
package session

import (
	"context"
	"sync"

	"github.com/sakif/halal-finder/internal/model"
)

// Unsubscribe releases a subscription. Calling it more than once is harmless.
type Unsubscribe func()

// Provider is the session collaborator.
type Provider interface {
	// GetCurrentSession returns the signed-in user, or nil when anonymous.
	// Implementations must return promptly once ctx is cancelled.
	GetCurrentSession(ctx context.Context) (*model.User, error)
	// Subscribe registers onChange for every later session change and
	// returns the handle that stops delivery.
	Subscribe(onChange func(*model.User)) Unsubscribe
}

// Broadcaster fans session changes out to subscribers. Deliveries are
// serialized, so every subscriber sees changes in publish order. The zero
// value is ready to use.
type Broadcaster struct {
	mu      sync.Mutex
	deliver sync.Mutex
	subs    map[int]func(*model.User)
	nextID  int
}

// Subscribe implements Provider.Subscribe.
func (b *Broadcaster) Subscribe(onChange func(*model.User)) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(*model.User))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = onChange

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers user (nil for signed out) to every current subscriber.
// Each subscriber receives its own copy.
func (b *Broadcaster) Publish(user *model.User) {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.mu.Lock()
	subs := make([]func(*model.User), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	for _, fn := range subs {
		fn(cloneUser(user))
	}
}

// Subscribers reports how many subscriptions are live.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// LocalProvider is an in-process Provider: the session lives in memory and
// changes when SignIn or SignOut is called. The CLI uses it when talking to a
// local database directly, and tests use it everywhere.
type LocalProvider struct {
	Broadcaster

	stateMu   sync.Mutex
	user      *model.User
	lookupErr error
}

// NewLocalProvider starts signed in as initial, or anonymous when nil.
func NewLocalProvider(initial *model.User) *LocalProvider {
	return &LocalProvider{user: cloneUser(initial)}
}

// GetCurrentSession implements Provider.
func (p *LocalProvider) GetCurrentSession(ctx context.Context) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.lookupErr != nil {
		return nil, p.lookupErr
	}
	return cloneUser(p.user), nil
}

// FailLookups makes GetCurrentSession return err (nil restores normal
// behaviour). Notifications are unaffected.
func (p *LocalProvider) FailLookups(err error) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	p.lookupErr = err
}

// SignIn replaces the session and notifies subscribers.
func (p *LocalProvider) SignIn(user *model.User) {
	p.stateMu.Lock()
	p.user = cloneUser(user)
	p.stateMu.Unlock()
	p.Publish(user)
}

// SignOut clears the session and notifies subscribers.
func (p *LocalProvider) SignOut() {
	p.stateMu.Lock()
	p.user = nil
	p.stateMu.Unlock()
	p.Publish(nil)
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
