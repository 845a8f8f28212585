// Package service runs device fact sessions and owns the preference store
// shared by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/devinfo/internal/adapters/iplookup"
	repository "github.com/okian/devinfo/internal/adapters/repository"
	"github.com/okian/devinfo/internal/domain/aggregator"
	"github.com/okian/devinfo/internal/domain/facts"
	"github.com/okian/devinfo/internal/domain/preference"
	"github.com/okian/devinfo/pkg/logger"
)

// Address sources understood by WithAddressSource.
const (
	AddressUpstream = "upstream"
	AddressRequest  = "request"
)

// Store kinds understood by WithPreferenceStore.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Service implements the dependencies of the HTTP API and the CLI.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  repository.PreferenceStore
	lookup *iplookup.Client

	// Configuration
	storeKind      string
	storePath      string
	addressSource  string
	collectTimeout time.Duration
	lookupOpts     []iplookup.Option

	// State
	started       bool
	ownsStore     bool
	sessions      map[string]context.CancelFunc
	running       sync.WaitGroup
	sessionsTotal atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPreferenceStore selects the store kind opened on Start. path is the
// SQLite file and is ignored for memory.
func WithPreferenceStore(kind, path string) Option {
	return func(s *Service) {
		if kind != "" {
			s.storeKind = kind
			s.storePath = path
		}
	}
}

// WithStore injects an already open store. The service does not close it.
func WithStore(store repository.PreferenceStore) Option {
	return func(s *Service) { s.store = store }
}

// WithLookupOptions configures the outbound address and location client.
func WithLookupOptions(opts ...iplookup.Option) Option {
	return func(s *Service) { s.lookupOpts = append(s.lookupOpts, opts...) }
}

// WithAddressSource sets how served sessions learn their address.
func WithAddressSource(src string) Option {
	return func(s *Service) {
		if src != "" {
			s.addressSource = src
		}
	}
}

// WithCollectTimeout bounds Collect.
func WithCollectTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.collectTimeout = d
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeKind:      StoreMemory,
		addressSource:  AddressUpstream,
		collectTimeout: 10 * time.Second,
		sessions:       make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the preference store and the lookup client.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	if s.store == nil {
		store, err := openStore(ctx, s.storeKind, s.storePath)
		if err != nil {
			return err
		}
		s.store = store
		s.ownsStore = true
	}
	s.lookup = iplookup.New(s.lookupOpts...)

	s.started = true
	s.logger.Info(ctx, "device info service started",
		logger.String("preferenceStore", s.storeKind),
		logger.String("addressSource", s.addressSource),
		logger.Duration("collectTimeout", s.collectTimeout),
	)
	return nil
}

func openStore(ctx context.Context, kind, path string) (repository.PreferenceStore, error) {
	switch kind {
	case StoreMemory:
		return repository.NewMemoryStore(), nil
	case StoreSQLite:
		store, err := repository.OpenSQLite(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, kind)
	}
}

// Stop cancels every running session, waits for them to finish and closes
// the store it opened.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancels := make([]context.CancelFunc, 0, len(s.sessions))
	for _, cancel := range s.sessions {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	s.logger.Info(context.Background(), "stopping device info service...", logger.Int("sessions", len(cancels)))
	for _, cancel := range cancels {
		cancel()
	}
	s.running.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing preference store failed", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}
	s.logger.Info(context.Background(), "device info service stopped")
}

// Source describes where a session's facts come from.
type Source struct {
	Environment  aggregator.Environment
	Capabilities aggregator.Capabilities
	// Request is the inbound request for served sessions. With the request
	// address source it supplies the address; otherwise it may be nil.
	Request *http.Request
}

// Result is the outcome of a one-shot collection.
type Result struct {
	SessionID string         `json:"session_id"`
	Facts     facts.Facts    `json:"facts"`
	Notices   []facts.Notice `json:"notices"`
	Settled   bool           `json:"settled"`
}

// Collect runs a session until every field settles or the collect timeout
// passes, and returns the final aggregate with every notice raised.
func (s *Service) Collect(ctx context.Context, src Source) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.collectTimeout)
	defer cancel()

	var res Result
	id, err := s.run(ctx, src, func(u aggregator.Update) bool {
		res.Facts = u.Facts
		res.Settled = u.Settled
		res.Notices = append(res.Notices, u.Notices...)
		return u.Settled
	})
	if err != nil {
		return Result{}, err
	}
	res.SessionID = id
	if res.Notices == nil {
		res.Notices = []facts.Notice{}
	}
	if !res.Settled {
		s.logger.Debug(ctx, "collection timed out before settling", logger.String("session", id))
	}
	return res, nil
}

// Stream runs a session until ctx ends, handing every update to fn. fn is
// called from one goroutine at a time.
func (s *Service) Stream(ctx context.Context, src Source, fn func(sessionID string, u aggregator.Update)) error {
	var id string
	_, err := s.runWithID(ctx, src, func(sid string) { id = sid }, func(u aggregator.Update) bool {
		fn(id, u)
		return false
	})
	return err
}

func (s *Service) run(ctx context.Context, src Source, onUpdate func(aggregator.Update) bool) (string, error) {
	return s.runWithID(ctx, src, nil, onUpdate)
}

// runWithID registers a session and reports its id to onID before the first
// update. The aggregator runs until ctx ends or onUpdate returns true and is
// always stopped before returning.
func (s *Service) runWithID(ctx context.Context, src Source, onID func(string), onUpdate func(aggregator.Update) bool) (string, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := uuid.NewString()
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return "", ErrNotStarted
	}
	s.sessions[id] = cancel
	s.running.Add(1)
	caps := s.capabilities(src)
	s.mu.Unlock()
	s.sessionsTotal.Add(1)

	defer func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		s.running.Done()
	}()

	if onID != nil {
		onID(id)
	}

	agg := aggregator.New(src.Environment, caps,
		aggregator.WithSessionID(id),
		aggregator.WithLogger(s.logger.Named("aggregator")),
	)
	finished := make(chan struct{})
	var once sync.Once
	err := agg.Start(runCtx, func(u aggregator.Update) {
		if onUpdate(u) {
			once.Do(func() { close(finished) })
		}
	})
	if err != nil {
		return "", fmt.Errorf("start session %s: %w", id, err)
	}

	select {
	case <-runCtx.Done():
	case <-finished:
	}
	agg.Stop()
	return id, nil
}

// capabilities completes src with the address and location sources. Caller holds mu.
func (s *Service) capabilities(src Source) aggregator.Capabilities {
	caps := src.Capabilities
	if caps.Address == nil {
		if s.addressSource == AddressRequest && src.Request != nil {
			caps.Address = iplookup.FromRequest(src.Request)
		} else {
			caps.Address = s.lookup
		}
	}
	if caps.Location == nil {
		caps.Location = s.lookup
	}
	return caps
}

// Preferences loads clientID's preference session.
func (s *Service) Preferences(ctx context.Context, clientID string) (*preference.Session, error) {
	s.mu.RLock()
	store, started := s.store, s.started
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}
	return preference.Load(ctx, store, clientID)
}

// SetDarkMode stores clientID's dark-mode preference.
func (s *Service) SetDarkMode(ctx context.Context, clientID string, on bool) error {
	p, err := s.Preferences(ctx, clientID)
	if err != nil {
		return err
	}
	if err := p.SetDarkMode(ctx, on); err != nil {
		return err
	}
	s.logger.Debug(ctx, "dark mode updated", logger.String("client", clientID), logger.Bool("darkMode", on))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"started":         s.started,
		"activeSessions":  len(s.sessions),
		"totalSessions":   s.sessionsTotal.Load(),
		"addressSource":   s.addressSource,
		"preferenceStore": s.storeKind,
		"collectTimeout":  s.collectTimeout.String(),
	}
}
