package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/halal-finder/internal/model"
)

// Status is the gate's view of the session.
type Status string

const (
	StatusUnknown       Status = "unknown"   // Start not called yet, or closed
	StatusResolving     Status = "resolving" // initial lookup pending
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
)

// State is a snapshot of the gate.
type State struct {
	Status Status      `json:"status"`
	User   *model.User `json:"user,omitempty"`
	// Warning is set when the initial lookup failed and the gate degraded to
	// anonymous. Browsing still works; only mutation is blocked.
	Warning error `json:"-"`
}

// MutationAllowed reports whether this state permits gated actions.
func (s State) MutationAllowed() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}

// Gate reconciles a Provider's one-shot lookup and its notification stream.
//
// ORDERING:
// Start subscribes before it issues the lookup, so no change can slip between
// the two. The notification stream is the source of truth. Once any
// notification has been applied, a late lookup result is discarded, whichever
// order the two arrive in. There are no timestamps involved; the stream's own
// delivery order decides.
//
// Every state change bumps a version. Listeners are handed the state current
// at delivery time, one delivery per version at most, so a listener never sees
// an older state after a newer one.
//
// TEARDOWN:
// Close releases the subscription, cancels the lookup and drops the gate back
// to StatusUnknown. Anything that arrives afterwards is ignored, and no
// mutation is allowed on a closed gate.
type Gate struct {
	provider Provider
	logger   *slog.Logger

	mu          sync.Mutex
	state       State
	started     bool
	closed      bool
	notified    bool
	unsubscribe Unsubscribe
	cancel      context.CancelFunc
	listeners   map[int]func(State)
	nextID      int
	version     uint64 // bumped on every state change
	delivered   uint64 // last version handed to listeners

	emitMu sync.Mutex // serializes deliveries

	resolved     chan struct{}
	resolvedOnce sync.Once
	wg           sync.WaitGroup
}

// NewGate returns a gate in StatusUnknown. Nothing happens until Start.
func NewGate(provider Provider, logger *slog.Logger) *Gate {
	return &Gate{
		provider:  provider,
		logger:    logger,
		state:     State{Status: StatusUnknown},
		listeners: make(map[int]func(State)),
		resolved:  make(chan struct{}),
	}
}

// Start subscribes to session changes and issues the initial lookup in the
// background. It returns g.Close, so callers can write
//
//	defer gate.Start(ctx)()
//
// Calling Start again has no effect.
func (g *Gate) Start(ctx context.Context) (release func()) {
	g.mu.Lock()
	if g.started || g.closed {
		g.mu.Unlock()
		return g.Close
	}
	g.started = true
	g.setStateLocked(State{Status: StatusResolving})
	lookupCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.mu.Unlock()
	g.emit()

	// Subscribe first. A provider may deliver synchronously from inside
	// Subscribe, which handleChange copes with.
	unsub := g.provider.Subscribe(g.handleChange)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		unsub()
		return g.Close
	}
	g.unsubscribe = unsub
	g.wg.Add(1)
	g.mu.Unlock()

	go g.lookup(lookupCtx)
	return g.Close
}

func (g *Gate) lookup(ctx context.Context) {
	defer g.wg.Done()

	user, err := g.provider.GetCurrentSession(ctx)

	g.mu.Lock()
	if g.closed || g.notified {
		g.mu.Unlock()
		g.logger.Debug("session: discarding superseded initial lookup")
		return
	}
	if err != nil {
		g.setStateLocked(State{Status: StatusAnonymous, Warning: err})
	} else {
		g.setStateLocked(stateFor(user))
	}
	g.markResolved()
	g.mu.Unlock()

	if err != nil {
		g.logger.Warn("session: initial lookup failed, continuing anonymously",
			slog.String("error", err.Error()),
		)
	}
	g.emit()
}

func (g *Gate) handleChange(user *model.User) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.notified = true
	s := stateFor(user)
	g.setStateLocked(s)
	g.markResolved()
	g.mu.Unlock()

	g.logger.Debug("session: change notification", slog.String("status", string(s.Status)))
	g.emit()
}

// setStateLocked must be called with g.mu held.
func (g *Gate) setStateLocked(s State) {
	g.state = s
	g.version++
}

// markResolved must be called with g.mu held.
func (g *Gate) markResolved() {
	g.resolvedOnce.Do(func() { close(g.resolved) })
}

func stateFor(user *model.User) State {
	if user == nil {
		return State{Status: StatusAnonymous}
	}
	return State{Status: StatusAuthenticated, User: cloneUser(user)}
}

// Close releases the subscription exactly once and waits for the lookup
// goroutine to finish. Safe to call multiple times and from any goroutine
// other than a listener.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.state = State{Status: StatusUnknown}
	unsub, cancel := g.unsubscribe, g.cancel
	g.listeners = make(map[int]func(State))
	g.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	g.wg.Wait()
}

// State returns the current snapshot.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.state
	s.User = cloneUser(s.User)
	return s
}

// CurrentUser returns the authenticated user, or nil.
func (g *Gate) CurrentUser() *model.User {
	return g.State().User
}

// IsMutationAllowed is true iff the gate is Authenticated. It is false while
// unknown, resolving or closed, so a slow lookup never lets a mutation through
// with a nil user.
func (g *Gate) IsMutationAllowed() bool {
	return g.State().MutationAllowed()
}

// Resolved is closed once the gate first leaves StatusResolving.
func (g *Gate) Resolved() <-chan struct{} {
	return g.resolved
}

// OnChange registers cb for later state changes and returns a func that
// removes it. cb runs on the goroutine that caused the change, one delivery at
// a time. Changes that land while a delivery is running are coalesced, so cb
// may skip an intermediate state but never sees an older one after a newer.
// cb must not call Close or change the session.
func (g *Gate) OnChange(cb func(State)) (cancel func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = cb
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

// emit hands the current state to listeners unless that version was already
// delivered.
func (g *Gate) emit() {
	g.emitMu.Lock()
	defer g.emitMu.Unlock()

	g.mu.Lock()
	if g.closed || g.delivered == g.version {
		g.mu.Unlock()
		return
	}
	g.delivered = g.version
	s := g.state
	cbs := make([]func(State), 0, len(g.listeners))
	for _, cb := range g.listeners {
		cbs = append(cbs, cb)
	}
	g.mu.Unlock()

	for _, cb := range cbs {
		snapshot := s
		snapshot.User = cloneUser(s.User)
		cb(snapshot)
	}
}
