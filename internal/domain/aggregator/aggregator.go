// Package aggregator collects device facts from independent synchronous and
// asynchronous sources into one evolving view model.
//
// Each source owns its fields and resolves on its own goroutine. Results are
// funnelled through a single delivery goroutine, so the consumer sees updates
// one at a time and never after Stop returns.
package aggregator

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/okian/devinfo/internal/domain/facts"
	"github.com/okian/devinfo/internal/domain/uaparse"
	"github.com/okian/devinfo/pkg/logger"
	"github.com/okian/devinfo/pkg/metrics"
)

// Unknown is substituted for empty synchronous readings.
const Unknown = "Unknown"

// Update is delivered to the consumer each time one or more fields change.
type Update struct {
	// Facts is a snapshot of the whole aggregate. It is never mutated afterwards.
	Facts facts.Facts
	// Changed lists the fields that changed, in display order.
	Changed []facts.Field
	// Notices are informational failure reports for this update.
	Notices []facts.Notice
	// Settled is true once no field is unresolved.
	Settled bool
}

type lifecycle int

const (
	idle lifecycle = iota
	collecting
	stopped
)

// result is one source outcome on its way to the delivery goroutine.
type result struct {
	changes map[facts.Field]facts.Fact
	notices []facts.Notice
	// live marks subscription updates, which may replace a resolved value.
	live bool
	// forAddress is the address a location result was requested for.
	forAddress string
}

// Aggregator owns one session's aggregate.
type Aggregator struct {
	env       Environment
	caps      Capabilities
	logger    logger.Logger
	sessionID string

	mu      sync.Mutex
	state   lifecycle
	facts   facts.Facts
	unsubs  []Unsubscribe
	cancel  context.CancelFunc
	results chan result
	done    chan struct{}
}

// New creates an aggregator for env and caps.
func New(env Environment, caps Capabilities, opts ...Option) *Aggregator {
	a := &Aggregator{
		env:     env,
		caps:    caps,
		facts:   facts.NewFacts(),
		results: make(chan result),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Named("aggregator")
	}
	return a
}

// Start begins collection. onUpdate receives the initial snapshot, with every
// synchronous field resolved, and then one call per applied change. Calls are
// serialized on the aggregator's delivery goroutine; onUpdate must not call
// Stop itself (cancel ctx instead). Cancelling ctx is equivalent to Stop.
func (a *Aggregator) Start(ctx context.Context, onUpdate func(Update)) error {
	if onUpdate == nil {
		return ErrNilCallback
	}

	a.mu.Lock()
	switch a.state {
	case collecting:
		a.mu.Unlock()
		return ErrAlreadyStarted
	case stopped:
		a.mu.Unlock()
		return ErrStopped
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.state = collecting
	initial := a.collectSync()
	a.mu.Unlock()

	metrics.RecordSessionStarted()
	a.logger.Debug(runCtx, "collection started", logger.String("session", a.sessionID))

	go a.deliver(runCtx, onUpdate, initial)
	a.launch(runCtx)
	context.AfterFunc(runCtx, a.Stop)
	return nil
}

// Stop cancels all pending work and releases subscriptions. It is idempotent
// and returns only once no further onUpdate call can happen.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	prev := a.state
	a.state = stopped
	done := a.done
	if prev != collecting {
		a.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	cancel := a.cancel
	unsubs := a.unsubs
	a.unsubs = nil
	a.mu.Unlock()

	cancel()
	for _, u := range unsubs {
		u()
	}
	<-done

	metrics.RecordSessionStopped()
	a.logger.Debug(context.Background(), "collection stopped", logger.String("session", a.sessionID))
}

// Snapshot returns a copy of the current aggregate.
func (a *Aggregator) Snapshot() facts.Facts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.facts.Clone()
}

// collectSync resolves the synchronous fields and marks absent capabilities
// unavailable. Caller holds mu.
func (a *Aggregator) collectSync() Update {
	env := a.env
	ua := uaparse.Parse(env.UserAgent)
	pixelRatio := env.PixelRatio
	if pixelRatio <= 0 {
		pixelRatio = 1
	}

	set := map[facts.Field]facts.Fact{
		facts.FieldUserAgent:   facts.Resolve(orUnknown(env.UserAgent)),
		facts.FieldBrowser:     facts.Resolve(ua.Browser.Name),
		facts.FieldOS:          facts.Resolve(ua.OS.String()),
		facts.FieldDeviceClass: facts.Resolve(string(uaparse.Classify(ua, env.Viewport.Width, env.Viewport.Height))),
		facts.FieldViewport:    facts.Resolve(env.Viewport),
		facts.FieldPixelRatio:  facts.Resolve(pixelRatio),
		facts.FieldTimeZone:    facts.Resolve(orUnknown(env.TimeZone)),
		facts.FieldLocale:      facts.Resolve(orUnknown(env.Locale)),
		facts.FieldColorDepth:  facts.Resolve(env.ColorDepth),
	}

	absent := func(fields ...facts.Field) {
		for _, f := range fields {
			set[f] = facts.Missing()
		}
	}
	if a.caps.Battery == nil {
		absent(facts.FieldBattery)
	}
	if a.caps.Geolocation == nil {
		absent(facts.FieldGeolocation)
	}
	if a.caps.Connection == nil {
		absent(facts.FieldConnection)
	}
	if a.caps.Orientation == nil {
		absent(facts.FieldOrientation)
	}
	if a.caps.Hardware == nil {
		absent(facts.FieldDeviceMemory, facts.FieldCPUCores)
	}
	if a.caps.Address == nil {
		absent(facts.FieldAddress, facts.FieldLocation)
	}
	if a.caps.Location == nil {
		absent(facts.FieldLocation)
	}

	changed := make([]facts.Field, 0, len(set))
	for f, v := range set {
		a.facts[f] = v
		changed = append(changed, f)
		metrics.RecordFactOutcome(string(f), v.State.String())
	}
	sortFields(changed)
	return Update{Facts: a.facts.Clone(), Changed: changed, Settled: a.facts.Settled()}
}

// launch starts one goroutine per present capability.
func (a *Aggregator) launch(ctx context.Context) {
	if a.caps.Viewport != nil {
		ua := uaparse.Parse(a.env.UserAgent)
		a.subscribe(ctx, func() (Unsubscribe, error) {
			return a.caps.Viewport.WatchViewport(func(v facts.Viewport) {
				// The narrow-portrait phone rule depends on the viewport.
				a.emit(ctx, result{changes: map[facts.Field]facts.Fact{
					facts.FieldViewport:    facts.Resolve(v),
					facts.FieldDeviceClass: facts.Resolve(string(uaparse.Classify(ua, v.Width, v.Height))),
				}, live: true})
			})
		})
	}
	if a.caps.Battery != nil {
		go a.collectBattery(ctx)
	}
	if a.caps.Geolocation != nil {
		go a.collect(ctx, facts.FieldGeolocation, func(ctx context.Context) (any, error) {
			return a.caps.Geolocation.CurrentPosition(ctx)
		})
	}
	if a.caps.Connection != nil {
		go a.collect(ctx, facts.FieldConnection, func(ctx context.Context) (any, error) {
			return a.caps.Connection.Connection(ctx)
		})
	}
	if a.caps.Orientation != nil {
		go a.collectOrientation(ctx)
	}
	if a.caps.Hardware != nil {
		go a.collect(ctx, facts.FieldDeviceMemory, func(ctx context.Context) (any, error) {
			return a.caps.Hardware.DeviceMemory(ctx)
		})
		go a.collect(ctx, facts.FieldCPUCores, func(ctx context.Context) (any, error) {
			return a.caps.Hardware.LogicalCores(ctx)
		})
	}
	if a.caps.Address != nil {
		go a.lookup(ctx)
	}
}

// collect runs a one-shot source and emits its outcome for field.
func (a *Aggregator) collect(ctx context.Context, field facts.Field, read func(context.Context) (any, error)) {
	v, err := read(ctx)
	if err != nil {
		a.fail(ctx, err, field)
		return
	}
	a.emit(ctx, result{changes: map[facts.Field]facts.Fact{field: facts.Resolve(v)}})
}

func (a *Aggregator) collectBattery(ctx context.Context) {
	b, err := a.caps.Battery.Battery(ctx)
	if err != nil {
		a.fail(ctx, err, facts.FieldBattery)
		return
	}
	a.emit(ctx, result{changes: map[facts.Field]facts.Fact{facts.FieldBattery: facts.Resolve(b)}})

	if w, ok := a.caps.Battery.(BatteryWatcher); ok {
		a.subscribe(ctx, func() (Unsubscribe, error) {
			return w.WatchBattery(func(b facts.Battery) {
				a.emit(ctx, result{changes: map[facts.Field]facts.Fact{facts.FieldBattery: facts.Resolve(b)}, live: true})
			})
		})
	}
}

func (a *Aggregator) collectOrientation(ctx context.Context) {
	o, err := a.caps.Orientation.Orientation(ctx)
	if err != nil {
		a.fail(ctx, err, facts.FieldOrientation)
		return
	}
	a.emit(ctx, result{changes: map[facts.Field]facts.Fact{facts.FieldOrientation: facts.Resolve(o)}})

	if w, ok := a.caps.Orientation.(OrientationWatcher); ok {
		a.subscribe(ctx, func() (Unsubscribe, error) {
			return w.WatchOrientation(func(o string) {
				a.emit(ctx, result{changes: map[facts.Field]facts.Fact{facts.FieldOrientation: facts.Resolve(o)}, live: true})
			})
		})
	}
}

// lookup runs the address -> location chain. The location request is only
// issued after the address resolved and while the session is still alive.
func (a *Aggregator) lookup(ctx context.Context) {
	start := time.Now()
	addr, err := a.caps.Address.ResolveAddress(ctx)
	latency := float64(time.Since(start).Milliseconds())
	metrics.RecordLookupLatency("address", latency)
	a.logger.Debug(ctx, "address lookup finished", logger.String("session", a.sessionID), logger.Float64("latencyMs", latency))
	if err != nil {
		metrics.RecordLookupFailure("address")
		a.fail(ctx, err, facts.FieldAddress, facts.FieldLocation)
		return
	}
	a.emit(ctx, result{changes: map[facts.Field]facts.Fact{facts.FieldAddress: facts.Resolve(addr)}})

	if a.caps.Location == nil || ctx.Err() != nil {
		return
	}

	start = time.Now()
	loc, err := a.caps.Location.Locate(ctx, addr)
	latency = float64(time.Since(start).Milliseconds())
	metrics.RecordLookupLatency("location", latency)
	a.logger.Debug(ctx, "location lookup finished", logger.String("session", a.sessionID), logger.Float64("latencyMs", latency))
	if err != nil {
		metrics.RecordLookupFailure("location")
		a.failFor(ctx, err, addr, facts.FieldLocation)
		return
	}
	a.emit(ctx, result{
		changes:    map[facts.Field]facts.Fact{facts.FieldLocation: facts.Resolve(loc.String())},
		forAddress: addr,
	})
}

// subscribe registers a live subscription, releasing it at once if the
// session already stopped.
func (a *Aggregator) subscribe(ctx context.Context, open func() (Unsubscribe, error)) {
	unsub, err := open()
	if err != nil {
		a.logger.Debug(ctx, "subscription unavailable", logger.String("session", a.sessionID), logger.Error(err))
		return
	}
	if unsub == nil {
		return
	}
	a.mu.Lock()
	if a.state != collecting {
		a.mu.Unlock()
		unsub()
		return
	}
	a.unsubs = append(a.unsubs, unsub)
	a.mu.Unlock()
}

func (a *Aggregator) fail(ctx context.Context, err error, fields ...facts.Field) {
	a.failFor(ctx, err, "", fields...)
}

// failFor marks fields unavailable. Only the first field carries the notice so
// one failing source produces one notice.
func (a *Aggregator) failFor(ctx context.Context, err error, forAddress string, fields ...facts.Field) {
	kind := facts.Classify(err)
	if kind == facts.KindCancelled || ctx.Err() != nil {
		metrics.RecordUpdateDropped()
		return
	}
	r := result{changes: make(map[facts.Field]facts.Fact, len(fields)), forAddress: forAddress}
	for _, f := range fields {
		r.changes[f] = facts.Missing()
	}
	if kind.Surfaced() {
		r.notices = append(r.notices, facts.NewNotice(fields[0], err))
		a.logger.Info(ctx, "fact unavailable",
			logger.String("session", a.sessionID),
			logger.String("field", string(fields[0])),
			logger.String("kind", string(kind)),
			logger.Error(err),
		)
	}
	a.emit(ctx, r)
}

// emit hands r to the delivery goroutine, giving up when the session ends.
func (a *Aggregator) emit(ctx context.Context, r result) {
	select {
	case a.results <- r:
	case <-ctx.Done():
		metrics.RecordUpdateDropped()
	}
}

func (a *Aggregator) deliver(ctx context.Context, onUpdate func(Update), initial Update) {
	defer close(a.done)

	if ctx.Err() != nil {
		return
	}
	onUpdate(initial)

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-a.results:
			// A result can race cancellation in the select; cancellation wins.
			if ctx.Err() != nil {
				metrics.RecordUpdateDropped()
				return
			}
			if upd, ok := a.apply(r); ok {
				onUpdate(upd)
			}
		}
	}
}

// apply folds r into the aggregate under the field state machine and returns
// the update to deliver, if anything changed.
func (a *Aggregator) apply(r result) (Update, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != collecting {
		return Update{}, false
	}

	var changed []facts.Field
	for field, next := range r.changes {
		cur := a.facts.Get(field)
		if !allowed(cur, next, r.live) {
			continue
		}
		if r.forAddress != "" && field == facts.FieldLocation && !a.currentAddress(r.forAddress) {
			metrics.RecordUpdateDropped()
			continue
		}
		a.facts[field] = next
		changed = append(changed, field)
		if cur.State == facts.Unresolved {
			metrics.RecordFactOutcome(string(field), next.State.String())
		}
	}

	var notices []facts.Notice
	for _, n := range r.notices {
		if contains(changed, n.Field) {
			notices = append(notices, n)
			metrics.RecordNotice(string(n.Kind))
		}
	}

	if len(changed) == 0 {
		return Update{}, false
	}
	sortFields(changed)
	return Update{
		Facts:   a.facts.Clone(),
		Changed: changed,
		Notices: notices,
		Settled: a.facts.Settled(),
	}, true
}

// currentAddress reports whether addr is the resolved address. Caller holds mu.
func (a *Aggregator) currentAddress(addr string) bool {
	cur := a.facts.Get(facts.FieldAddress)
	return cur.State == facts.Resolved && cur.Value == addr
}

// allowed enforces unresolved -> resolved|unavailable. Live subscriptions may
// additionally replace a resolved value with a different resolved value.
func allowed(cur, next facts.Fact, live bool) bool {
	switch cur.State {
	case facts.Unresolved:
		return next.State != facts.Unresolved
	case facts.Resolved:
		return live && next.State == facts.Resolved && !reflect.DeepEqual(cur.Value, next.Value)
	default:
		return false
	}
}

var fieldOrder = func() map[facts.Field]int {
	m := make(map[facts.Field]int, len(facts.AllFields))
	for i, f := range facts.AllFields {
		m[f] = i
	}
	return m
}()

func sortFields(fields []facts.Field) {
	sort.Slice(fields, func(i, j int) bool { return fieldOrder[fields[i]] < fieldOrder[fields[j]] })
}

func contains(fields []facts.Field, f facts.Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
