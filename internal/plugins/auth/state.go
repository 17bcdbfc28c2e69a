package auth

import (
	"context"
	"sync"

	"github.com/keyxmakerx/edugate/internal/plugins/session"
)

// HomePath is where Logout navigates.
const HomePath = "/"

// Navigator performs a navigation to path. On the server it records a
// redirect for the handler to issue.
type Navigator func(path string)

// Snapshot is a consistent read of a State.
type Snapshot struct {
	Status          Status        `json:"status"`
	User            *session.User `json:"user"`
	IsLoading       bool          `json:"isLoading"`
	IsAuthenticated bool          `json:"isAuthenticated"`
}

// State is the auth state of one client, built per request by Provider.
// It moves Uninitialized → Loading → {Authenticated, Anonymous} on
// Hydrate, and login/register/logout move it from any state. Observers
// registered with Subscribe see every transition.
type State struct {
	service  *Service
	store    session.Store
	navigate Navigator

	saveMu    sync.Mutex
	mu        sync.Mutex
	status    Status
	user      *session.User
	inflight  int
	hydrated  bool
	observers map[int]func(Snapshot)
	nextObs   int
}

// NewState creates a state over store. service is bound to the same store.
func NewState(service *Service, store session.Store, navigate Navigator) *State {
	if navigate == nil {
		navigate = func(string) {}
	}
	return &State{
		service:   service.WithStore(store),
		store:     store,
		navigate:  navigate,
		observers: make(map[int]func(Snapshot)),
	}
}

// Hydrate resolves the initial state from the store. After one successful
// call it is a no-op, and it never overrides a login or logout that
// already happened. A store failure leaves the state Loading and is
// returned so the caller can retry.
func (s *State) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	if s.hydrated || (s.status != StatusUninitialized && s.status != StatusLoading) {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusLoading
	s.emitLocked()
	s.mu.Unlock()

	sess, err := s.store.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return err
	}
	s.hydrated = true
	if s.status != StatusLoading {
		// A login or logout finished while the store was read.
		return nil
	}
	if sess.User != nil {
		s.status = StatusAuthenticated
		s.user = sess.User
	} else {
		s.status = StatusAnonymous
		s.user = nil
	}
	s.emitLocked()
	return nil
}

// Login signs in through the service. The backend call outlives the
// caller's context, so a client that goes away does not cancel it.
// Overlapping calls are allowed: saves are serialized, and the last call
// to save is both what the store holds and what the State reports. On
// failure the status is unchanged and the backend error is returned as is.
func (s *State) Login(ctx context.Context, creds Credentials) (*session.User, error) {
	return s.authenticate(ctx, "auth.login", func(ctx context.Context) (*session.Session, error) {
		return s.service.login(ctx, creds)
	})
}

// Register creates an account with the same semantics as Login.
func (s *State) Register(ctx context.Context, in RegisterInput) (*session.User, error) {
	return s.authenticate(ctx, "auth.register", func(ctx context.Context) (*session.Session, error) {
		return s.service.register(ctx, in)
	})
}

func (s *State) authenticate(ctx context.Context, op string, call func(context.Context) (*session.Session, error)) (*session.User, error) {
	s.mu.Lock()
	s.inflight++
	s.emitLocked()
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	sess, err := call(ctx)

	// saveMu spans the save and the transition so both see the same order.
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err == nil {
		err = s.service.persist(ctx, op, sess)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if err == nil {
		s.status = StatusAuthenticated
		s.user = sess.User
		s.hydrated = true
	}
	s.emitLocked()
	if err != nil {
		return nil, err
	}
	return sess.User, nil
}

// Logout clears the session, moves to Anonymous and navigates home. The
// transition happens even when clearing the store fails.
func (s *State) Logout(ctx context.Context) error {
	s.saveMu.Lock()
	err := s.service.Logout(ctx)

	s.mu.Lock()
	s.status = StatusAnonymous
	s.user = nil
	s.hydrated = true
	s.emitLocked()
	s.mu.Unlock()
	s.saveMu.Unlock()

	s.navigate(HomePath)
	return err
}

// Refresh renews the access token of the stored session.
func (s *State) Refresh(ctx context.Context) (string, error) {
	return s.service.Refresh(ctx)
}

// Profile re-fetches the user from the backend and updates the cached user.
func (s *State) Profile(ctx context.Context) (*session.User, error) {
	user, err := s.service.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.status == StatusAuthenticated {
		s.user = user
		s.emitLocked()
	}
	s.mu.Unlock()
	return user, nil
}

// User returns the cached user, nil when anonymous.
func (s *State) User() *session.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// IsLoading reports whether hydration or a login/register is in progress.
func (s *State) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoadingLocked()
}

// IsAuthenticated is derived from the status and user, never stored.
func (s *State) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAuthenticatedLocked()
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every later transition. After the returned
// unsubscribe runs, fn is never called again.
func (s *State) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *State) isLoadingLocked() bool {
	return s.status == StatusLoading || s.inflight > 0
}

func (s *State) isAuthenticatedLocked() bool {
	return s.status == StatusAuthenticated && s.user != nil
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Status:          s.status,
		User:            s.user,
		IsLoading:       s.isLoadingLocked(),
		IsAuthenticated: s.isAuthenticatedLocked(),
	}
}

// emitLocked delivers the current snapshot to observers. Observers run
// under the lock, so they must not call back into the State.
func (s *State) emitLocked() {
	if len(s.observers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, fn := range s.observers {
		fn(snap)
	}
}
