package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/projectquik/spherekit/internal/metrics"
	"github.com/projectquik/spherekit/pkg/browser"
	"github.com/projectquik/spherekit/pkg/client"
	"github.com/projectquik/spherekit/pkg/credstore"
	"github.com/projectquik/spherekit/pkg/logging"
	"github.com/projectquik/spherekit/pkg/oauth"
)

const (
	// DefaultRefreshMargin is how long before access token expiry the
	// silent refresh runs.
	DefaultRefreshMargin = 120 * time.Second

	backendTimeout         = 15 * time.Second
	backgroundRefreshLimit = 30 * time.Second

	defaultSignOutRetries = 2
	defaultSignOutBackoff = 250 * time.Millisecond
)

// Store persists the credential between runs. The credstore package
// provides file and memory implementations.
type Store interface {
	// LoadCredential returns nil, nil when nothing is stored.
	LoadCredential() (*oauth.Credential, error)
	StoreCredential(cred *oauth.Credential) error
	ClearCredential() error
}

// Backend is the part of the Sphere API the manager calls. *client.Client
// implements it.
type Backend interface {
	GetPlayer(ctx context.Context, ts oauth2.TokenSource, uid string) (*client.Player, error)
	SignOut(ctx context.Context, ts oauth2.TokenSource) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackend enables player lookup and backend sign-out notification.
func WithBackend(b Backend) Option {
	return func(m *Manager) {
		m.backend = b
	}
}

// WithRefreshMargin overrides DefaultRefreshMargin.
func WithRefreshMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// WithLoginTimeout sets the timeout SignIn uses when called with zero.
func WithLoginTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.loginTimeout = d
		}
	}
}

// WithScheduler replaces the timer source used for proactive refresh.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		m.scheduler = s
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithMetrics records outcomes on r. A nil recorder disables metrics.
func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) {
		m.metrics = r
	}
}

// WithErrorHandler is called with transient refresh failures. The manager
// does not retry those on its own; the handler may call Refresh later.
func WithErrorHandler(fn func(error)) Option {
	return func(m *Manager) {
		m.onError = fn
	}
}

// WithSignOutRetry bounds the retries of the backend sign-out notification.
func WithSignOutRetry(maxRetries uint64, base time.Duration) Option {
	return func(m *Manager) {
		m.signOutRetries = maxRetries
		if base > 0 {
			m.signOutBackoff = base
		}
	}
}

// Manager owns the signed-in identity of the process. It persists the
// credential, refreshes it ahead of expiry and notifies listeners of every
// transition.
//
// Initialize, SignIn, SignOut and every refresh are serialized. Reads
// (State, AccessToken, Credential) never block on them.
type Manager struct {
	flow    CodeFlow
	browser browser.Browser
	store   Store
	backend Backend

	margin         time.Duration
	loginTimeout   time.Duration
	scheduler      Scheduler
	now            func() time.Time
	metrics        *metrics.Recorder
	onError        func(error)
	signOutRetries uint64
	signOutBackoff time.Duration
	logger         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	opMu     sync.Mutex
	identity atomic.Pointer[identity]
	seq      uint64

	timerMu  sync.Mutex
	timer    Timer
	timerGen uint64

	listeners    listenerSet
	refreshGroup singleflight.Group

	errMu          sync.Mutex
	lastRefreshErr error
}

// NewManager creates a manager in the unknown state. Call Initialize to
// restore a persisted credential.
func NewManager(flow CodeFlow, br browser.Browser, store Store, opts ...Option) (*Manager, error) {
	var missing []string
	if flow == nil {
		missing = append(missing, "code flow")
	}
	if br == nil {
		missing = append(missing, "browser")
	}
	if store == nil {
		missing = append(missing, "store")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("auth manager requires %v", missing)
	}

	m := &Manager{
		flow:           flow,
		browser:        br,
		store:          store,
		margin:         DefaultRefreshMargin,
		loginTimeout:   DefaultLoginTimeout,
		scheduler:      realScheduler{},
		now:            time.Now,
		signOutRetries: defaultSignOutRetries,
		signOutBackoff: defaultSignOutBackoff,
		logger:         logging.Logger("Auth"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.identity.Store(&identity{reason: ReasonUnknown})
	return m, nil
}

// notification is a published state waiting to be delivered once the
// operation lock is released.
type notification struct {
	seq   uint64
	state State
	ok    bool
}

func (m *Manager) deliver(n notification) {
	if !n.ok || m.closed.Load() {
		return
	}
	m.listeners.notify(n.seq, n.state)
}

// swapLocked replaces the identity and returns the notification for it.
func (m *Manager) swapLocked(id *identity) notification {
	m.identity.Store(id)
	m.seq++
	return notification{seq: m.seq, state: id.state(), ok: true}
}

// clearLocked drops the credential: identity first, then the timer, then
// storage. The caller delivers the notification after unlocking, so storage
// is already clear when listeners run.
func (m *Manager) clearLocked(reason Reason) (notification, error) {
	n := m.swapLocked(&identity{reason: reason})
	m.cancelTimer()
	if err := m.store.ClearCredential(); err != nil {
		m.logger.Error("Could not clear stored credential", "error", err)
		return n, fmt.Errorf("failed to clear stored credential: %w", err)
	}
	return n, nil
}

// Initialize restores the persisted credential. It notifies listeners in
// every case and only fails after Close.
//
// A credential whose access token is within the refresh margin of expiry is
// refreshed once. If its refresh token is unusable the credential is
// discarded and the state becomes ReasonExpired.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}

	m.opMu.Lock()
	n := m.initializeLocked(ctx)
	m.opMu.Unlock()

	m.deliver(n)
	return nil
}

func (m *Manager) initializeLocked(ctx context.Context) notification {
	cred, err := m.store.LoadCredential()
	if err != nil {
		if errors.Is(err, credstore.ErrCorrupt) {
			m.logger.Warn("Discarding unreadable stored credential", "error", err)
			if cerr := m.store.ClearCredential(); cerr != nil {
				m.logger.Warn("Could not remove unreadable credential", "error", cerr)
			}
		} else {
			m.logger.Error("Could not load stored credential", "error", err)
		}
		cred = nil
	}

	if cred == nil {
		// Another process removed the credential this manager held.
		if m.identity.Load().cred != nil {
			m.logger.Info("Stored credential was removed, signed out")
			n := m.swapLocked(&identity{reason: ReasonSignedOut})
			m.cancelTimer()
			return n
		}
		m.logger.Info("No stored credential")
		return m.swapLocked(&identity{reason: ReasonNeverSignedIn})
	}

	now := m.now()
	if cred.Remaining(now) > m.margin {
		player := m.fetchPlayer(ctx, cred, nil)
		n := m.swapLocked(&identity{cred: cred, player: player, reason: ReasonSignedIn})
		m.armLocked(cred)
		m.logger.Info("Restored stored credential", "player", cred.PlayerID())
		return n
	}

	n, err := m.refreshLocked(ctx, cred, metrics.TriggerStartup)
	if err == nil || n.ok {
		return n
	}

	// Transient failure: keep the credential so a later Refresh can retry.
	reason := ReasonSignedIn
	if cred.IsExpiredAt(now) {
		reason = ReasonExpired
	}
	return m.swapLocked(&identity{cred: cred, reason: reason})
}

// SignIn runs the interactive flow unless a credential is already held, in
// which case it returns nil at once. A non-positive timeout uses the
// configured login timeout.
//
// On failure nothing changes and listeners are not notified. The error is a
// *SignInError for browser outcomes or the code exchange error otherwise.
func (m *Manager) SignIn(ctx context.Context, timeout time.Duration) error {
	if m.closed.Load() {
		return ErrClosed
	}

	m.opMu.Lock()
	n, err := m.signInLocked(ctx, timeout)
	m.opMu.Unlock()

	m.deliver(n)
	return err
}

func (m *Manager) signInLocked(ctx context.Context, timeout time.Duration) (notification, error) {
	if m.identity.Load().state().IsSignedIn {
		m.logger.Debug("Already signed in, skipping sign-in")
		return notification{}, nil
	}
	if timeout <= 0 {
		timeout = m.loginTimeout
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(m.ctx, func() { cancel(ErrClosed) })
	defer stop()

	start := m.now()
	cred, err := NewSession(m.flow, m.browser).Authenticate(ctx, timeout)
	m.metrics.SignIn(signInResult(err), m.now().Sub(start))
	if err != nil {
		if IsSignInCancelled(err) {
			m.logger.Info("Sign-in cancelled")
		} else {
			m.logger.Warn("Sign-in failed", "error", err)
		}
		return notification{}, err
	}

	player := m.fetchPlayer(ctx, cred, nil)
	if err := m.store.StoreCredential(cred); err != nil {
		m.logger.Error("Could not persist credential, it will not survive a restart", "error", err)
	}

	n := m.swapLocked(&identity{cred: cred, player: player, reason: ReasonSignedIn})
	m.setRefreshError(nil)
	m.armLocked(cred)
	m.logger.Info("Signed in", "player", cred.PlayerID())
	return n, nil
}

func signInResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrSignInCancelled):
		return metrics.ResultCancelled
	case errors.Is(err, ErrSignInTimeout):
		return metrics.ResultTimeout
	case oauth.IsAuthFailure(err):
		return metrics.ResultRejected
	default:
		return metrics.ResultFailed
	}
}

// Refresh exchanges the refresh token now, with the same outcome handling as
// a scheduled refresh. It returns ErrNotSignedIn without a credential.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refresh(ctx, metrics.TriggerManual, false)
}

func (m *Manager) refresh(ctx context.Context, trigger string, onlyIfExpired bool) error {
	if m.closed.Load() {
		return ErrClosed
	}

	m.opMu.Lock()
	cur := m.identity.Load()
	if cur.cred == nil {
		m.opMu.Unlock()
		return ErrNotSignedIn
	}
	if onlyIfExpired && !cur.cred.IsExpiredAt(m.now()) {
		m.opMu.Unlock()
		return nil
	}
	n, err := m.refreshLocked(ctx, cur.cred, trigger)
	m.opMu.Unlock()

	m.deliver(n)
	return err
}

// refreshLocked replaces current with a refreshed credential.
//
// An unusable refresh token or an AuthFailure clears the credential and
// returns a notification. A transient failure changes nothing, is not
// rescheduled and returns no notification. A success notifies only when the
// identity visible to listeners changed.
func (m *Manager) refreshLocked(ctx context.Context, current *oauth.Credential, trigger string) (notification, error) {
	prev := m.identity.Load()

	if !current.RefreshTokenUsableAt(m.now(), m.margin) {
		m.logger.Warn("Refresh token expired, interactive sign-in required")
		m.metrics.Refresh(trigger, metrics.ResultExpired)
		m.setRefreshError(ErrRefreshTokenExpired)
		n, _ := m.clearLocked(ReasonExpired)
		return n, ErrRefreshTokenExpired
	}

	next, err := NewSession(m.flow, m.browser).Refresh(ctx, current)
	if err != nil {
		m.setRefreshError(err)
		if oauth.IsAuthFailure(err) {
			m.logger.Warn("Refresh rejected, interactive sign-in required", "error", err)
			m.metrics.Refresh(trigger, metrics.ResultRejected)
			n, _ := m.clearLocked(ReasonRefreshRejected)
			return n, err
		}
		m.logger.Warn("Refresh failed, keeping current credential", "trigger", trigger, "error", err)
		m.metrics.Refresh(trigger, metrics.ResultTransient)
		m.reportError(err)
		return notification{}, err
	}

	next = next.InheritFrom(current)
	if err := m.store.StoreCredential(next); err != nil {
		m.logger.Error("Could not persist refreshed credential", "error", err)
	}

	var player *client.Player
	if prev.playerID() == next.PlayerID() {
		player = prev.player
	}
	player = m.fetchPlayer(ctx, next, player)

	m.setRefreshError(nil)
	m.metrics.Refresh(trigger, metrics.ResultSuccess)
	m.logger.Debug("Access token refreshed", "trigger", trigger)

	id := &identity{cred: next, player: player, reason: ReasonSignedIn}
	changed := prev.reason != ReasonSignedIn ||
		prev.playerID() != next.PlayerID() ||
		!reflect.DeepEqual(prev.player, player)

	var n notification
	if changed {
		n = m.swapLocked(id)
	} else {
		m.identity.Store(id)
	}
	m.armLocked(next)
	return n, nil
}

// fetchPlayer looks up the player behind cred. Failures are logged and
// fallback is returned; the credential stays valid either way.
func (m *Manager) fetchPlayer(ctx context.Context, cred *oauth.Credential, fallback *client.Player) *client.Player {
	if m.backend == nil {
		return fallback
	}
	uid := cred.PlayerID()
	if uid == "" {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	player, err := m.backend.GetPlayer(ctx, oauth2.StaticTokenSource(cred.Token()), uid)
	if err != nil {
		client.LogError(m.logger, "Could not fetch player", err)
		return fallback
	}
	return player
}

// SignOut notifies the backend on a best-effort basis, then drops the
// credential, the timer and the stored copy before notifying listeners.
// Only a failure to clear local storage is returned.
func (m *Manager) SignOut(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}

	m.opMu.Lock()
	prev := m.identity.Load()
	outcome := m.notifyBackendSignOut(ctx, prev.cred)
	n, err := m.clearLocked(ReasonSignedOut)
	if prev.cred == nil && prev.reason == ReasonSignedOut {
		n.ok = false
	}
	m.metrics.SignOut(outcome)
	m.opMu.Unlock()

	m.deliver(n)
	if err == nil {
		m.logger.Info("Signed out", "backend", outcome)
	}
	return err
}

func (m *Manager) notifyBackendSignOut(ctx context.Context, cred *oauth.Credential) string {
	if m.backend == nil || cred.IsExpiredAt(m.now()) {
		return metrics.BackendSkipped
	}

	ctx, cancel := context.WithTimeout(ctx, backendTimeout)
	defer cancel()

	ts := oauth2.StaticTokenSource(cred.Token())
	backoff := retry.WithMaxRetries(m.signOutRetries, retry.NewExponential(m.signOutBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := m.backend.SignOut(ctx, ts); err != nil {
			if client.IsTemporary(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		client.LogError(m.logger, "Backend sign-out failed, signing out locally", err)
		return metrics.BackendFailed
	}
	return metrics.BackendNotified
}

// armLocked replaces the refresh timer for cred. Without a known expiry
// there is nothing to schedule.
func (m *Manager) armLocked(cred *oauth.Credential) {
	if _, ok := cred.ExpiresAt(); !ok {
		m.logger.Warn("Credential has no expiry, silent refresh disabled")
		m.cancelTimer()
		return
	}
	delay := refreshDelay(cred.Remaining(m.now()), m.margin)

	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.closed.Load() {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timerGen++
	gen := m.timerGen
	m.timer = m.scheduler.AfterFunc(delay, func() { m.onTimer(gen) })
	m.logger.Debug("Scheduled token refresh", "in", delay)
}

func (m *Manager) cancelTimer() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
}

// onTimer runs a scheduled refresh. A fire from a timer that has since been
// replaced or cancelled does nothing.
func (m *Manager) onTimer(gen uint64) {
	if m.closed.Load() {
		return
	}

	m.opMu.Lock()
	m.timerMu.Lock()
	stale := gen != m.timerGen
	if !stale {
		m.timer = nil
	}
	m.timerMu.Unlock()

	cur := m.identity.Load()
	if stale || cur.cred == nil {
		m.opMu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, backgroundRefreshLimit)
	n, _ := m.refreshLocked(ctx, cur.cred, metrics.TriggerScheduled)
	cancel()
	m.opMu.Unlock()

	m.deliver(n)
}

func (m *Manager) setRefreshError(err error) {
	m.errMu.Lock()
	m.lastRefreshErr = err
	m.errMu.Unlock()
}

func (m *Manager) reportError(err error) {
	if m.onError != nil && !m.closed.Load() {
		m.onError(err)
	}
}

// LastRefreshError returns the error of the most recent failed refresh, or
// nil once a refresh or sign-in succeeds.
func (m *Manager) LastRefreshError() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastRefreshErr
}

// State returns the current identity state.
func (m *Manager) State() State {
	return m.identity.Load().state()
}

// Credential returns a copy of the held credential, or nil.
func (m *Manager) Credential() *oauth.Credential {
	return m.identity.Load().cred.Clone()
}

// AccessToken returns the access token while signed in with an unexpired
// credential.
func (m *Manager) AccessToken() (string, bool) {
	id := m.identity.Load()
	if id.reason != ReasonSignedIn || id.cred.IsExpiredAt(m.now()) {
		return "", false
	}
	return id.cred.AccessToken, true
}

// Token implements oauth2.TokenSource. An expired access token is refreshed
// on demand; concurrent callers share one refresh.
func (m *Manager) Token() (*oauth2.Token, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if id := m.identity.Load(); id.reason == ReasonSignedIn && !id.cred.IsExpiredAt(m.now()) {
		return id.cred.Token(), nil
	}

	_, err, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(m.ctx, backgroundRefreshLimit)
		defer cancel()
		return nil, m.refresh(ctx, metrics.TriggerOnDemand, true)
	})
	if err != nil {
		return nil, err
	}

	id := m.identity.Load()
	if id.cred.IsExpiredAt(m.now()) {
		return nil, ErrNotSignedIn
	}
	return id.cred.Token(), nil
}

// AddListener registers fn for every later transition. With
// fireImmediately, fn is also called with the current state before
// AddListener returns.
//
// Listeners run outside the manager's locks and may call back into it.
// Two transitions completing close together may notify from different
// goroutines; a state older than one already delivered is dropped.
func (m *Manager) AddListener(fn Listener, fireImmediately bool) Subscription {
	sub := m.listeners.add(fn)
	if fireImmediately {
		invoke(sub.id, fn, m.State())
	}
	return sub
}

// RemoveListener unregisters sub. Removing an unknown or already removed
// subscription is a no-op and returns false.
func (m *Manager) RemoveListener(sub Subscription) bool {
	return m.listeners.remove(sub)
}

// Close stops the refresh timer, aborts any sign-in or refresh in flight and
// drops all listeners. Further operations return ErrClosed.
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.cancel()
	m.cancelTimer()
	m.listeners.clear()
	m.logger.Debug("Auth manager closed")
	return nil
}
