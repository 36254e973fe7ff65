package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sakif/halal-finder/internal/model"
)

// TestMain fails the package if any test leaves a goroutine behind, which is
// how we know Close really releases the lookup and the subscription.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

type lookupResult struct {
	user *model.User
	err  error
}

// blockingProvider lets a test decide exactly when the initial lookup
// returns, relative to notifications.
type blockingProvider struct {
	Broadcaster
	results chan lookupResult
}

func newBlockingProvider() *blockingProvider {
	return &blockingProvider{results: make(chan lookupResult, 1)}
}

func (p *blockingProvider) GetCurrentSession(ctx context.Context) (*model.User, error) {
	select {
	case r := <-p.results:
		return r.user, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var alice = &model.User{ID: "u1", Email: "alice@example.com"}

// waitFor polls until cond holds or the test deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, time.Millisecond)
}

// =========================================================================
// TESTS
// =========================================================================

func TestGate_UnknownBeforeStart(t *testing.T) {
	g := NewGate(newBlockingProvider(), testLogger())

	assert.Equal(t, StatusUnknown, g.State().Status)
	assert.False(t, g.IsMutationAllowed())
	assert.Nil(t, g.CurrentUser())
}

func TestGate_ResolvingUntilLookupReturns(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())
	defer g.Start(context.Background())()

	assert.Equal(t, StatusResolving, g.State().Status)
	assert.False(t, g.IsMutationAllowed(), "mutations must be refused while resolving")

	p.results <- lookupResult{user: alice}
	<-g.Resolved()

	assert.Equal(t, StatusAuthenticated, g.State().Status)
	assert.True(t, g.IsMutationAllowed())
	assert.Equal(t, "u1", g.CurrentUser().ID)
}

func TestGate_LookupAnonymous(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())
	defer g.Start(context.Background())()

	p.results <- lookupResult{}
	<-g.Resolved()

	assert.Equal(t, StatusAnonymous, g.State().Status)
	assert.False(t, g.IsMutationAllowed())
}

func TestGate_LookupFailureDegradesToAnonymous(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())
	defer g.Start(context.Background())()

	boom := errors.New("session endpoint unreachable")
	p.results <- lookupResult{err: boom}
	<-g.Resolved()

	s := g.State()
	assert.Equal(t, StatusAnonymous, s.Status)
	assert.ErrorIs(t, s.Warning, boom)
	assert.False(t, g.IsMutationAllowed())
}

func TestGate_SignInNotificationOverridesResolving(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())
	defer g.Start(context.Background())()

	p.Publish(alice)

	assert.Equal(t, StatusAuthenticated, g.State().Status)
	assert.True(t, g.IsMutationAllowed(), "sign-in must be honoured immediately")
	select {
	case <-g.Resolved():
	default:
		t.Fatal("Resolved() not closed after a notification")
	}
}

func TestGate_NotificationBeatsLateLookup(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())
	defer g.Start(context.Background())()

	// Sign-out arrives first, then the stale lookup says "alice".
	p.Publish(nil)
	p.results <- lookupResult{user: alice}

	// Give the lookup goroutine every chance to (wrongly) apply its result.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatusAnonymous, g.State().Status)
	assert.False(t, g.IsMutationAllowed())
}

func TestGate_NotificationAfterLookupWins(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())
	defer g.Start(context.Background())()

	p.results <- lookupResult{user: alice}
	<-g.Resolved()
	waitFor(t, g.IsMutationAllowed)

	p.Publish(nil)
	assert.False(t, g.IsMutationAllowed(), "sign-out must revoke immediately")
	assert.Nil(t, g.CurrentUser())
}

func TestGate_CloseReleasesSubscriptionAndIgnoresLateResults(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())
	release := g.Start(context.Background())
	require.Equal(t, 1, p.Subscribers())

	release()
	assert.Equal(t, 0, p.Subscribers(), "Close must unsubscribe")

	p.Publish(alice)
	assert.Equal(t, StatusUnknown, g.State().Status, "no change after Close")

	// Idempotent.
	release()
	g.Close()
}

func TestGate_CloseRevokesMutation(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())
	release := g.Start(context.Background())

	p.Publish(alice)
	require.True(t, g.IsMutationAllowed())

	release()
	p.Publish(nil)

	assert.Equal(t, StatusUnknown, g.State().Status)
	assert.False(t, g.IsMutationAllowed(), "a closed gate can no longer hear sign-out")
	assert.Nil(t, g.CurrentUser())
}

// warnHook runs fn whenever a Warn record is logged, which lets a test act in
// the gap between a state change and its delivery.
type warnHook struct {
	slog.Handler
	fn func()
}

func (h warnHook) Handle(ctx context.Context, r slog.Record) error {
	if r.Level == slog.LevelWarn {
		h.fn()
	}
	return h.Handler.Handle(ctx, r)
}

func TestGate_ListenersNeverSeeSupersededLookup(t *testing.T) {
	p := newBlockingProvider()
	logger := slog.New(warnHook{
		Handler: slog.NewTextHandler(io.Discard, nil),
		fn:      func() { p.Publish(alice) },
	})
	g := NewGate(p, logger)

	var mu sync.Mutex
	var seen []Status
	g.OnChange(func(s State) {
		mu.Lock()
		seen = append(seen, s.Status)
		mu.Unlock()
	})
	g.Start(context.Background())

	// The failed lookup logs a warning before delivering; the sign-in lands
	// right there.
	p.results <- lookupResult{err: errors.New("session endpoint unreachable")}
	waitFor(t, func() bool { return g.IsMutationAllowed() })
	g.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusResolving, StatusAuthenticated}, seen)
}

func TestGate_OnChange(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())

	var mu sync.Mutex
	var seen []Status
	cancel := g.OnChange(func(s State) {
		mu.Lock()
		seen = append(seen, s.Status)
		mu.Unlock()
	})
	defer g.Start(context.Background())()

	p.Publish(alice)
	p.Publish(nil)
	cancel()
	p.Publish(alice)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusResolving, StatusAuthenticated, StatusAnonymous}, seen)
}

func TestGate_StartTwiceIsNoop(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())
	release := g.Start(context.Background())
	defer release()

	g.Start(context.Background())
	assert.Equal(t, 1, p.Subscribers())
}

func TestGate_ParentContextCancelStopsLookup(t *testing.T) {
	p := newBlockingProvider()
	g := NewGate(p, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer g.Start(ctx)()

	cancel()
	<-g.Resolved()

	s := g.State()
	assert.Equal(t, StatusAnonymous, s.Status)
	assert.ErrorIs(t, s.Warning, context.Canceled)
}

func TestLocalProvider(t *testing.T) {
	p := NewLocalProvider(nil)
	g := NewGate(p, testLogger())
	defer g.Start(context.Background())()
	<-g.Resolved()
	waitFor(t, func() bool { return g.State().Status == StatusAnonymous })

	p.SignIn(alice)
	assert.True(t, g.IsMutationAllowed())

	u, err := p.GetCurrentSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	p.SignOut()
	assert.False(t, g.IsMutationAllowed())

	p.FailLookups(errors.New("down"))
	_, err = p.GetCurrentSession(context.Background())
	assert.Error(t, err)
}
