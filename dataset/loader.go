// Package dataset streams time-indexed heliosphere parameters from a
// precomputed epoch dataset. A Loader fetches the metadata header and the
// epoch time array once, then loads per-epoch records on demand through a
// bounded LRU cache, deduplicating concurrent requests for the same epoch.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/internal/logging"
	"github.com/signalsfoundry/heliosphere-sim/internal/observability"
	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

var (
	// ErrDatasetUnavailable is returned by Initialize when the metadata or
	// the epoch array cannot be fetched. It is fatal to the session.
	ErrDatasetUnavailable = errors.New("dataset unavailable")
	// ErrEpochMissing marks a per-epoch resource that is absent. It is
	// recovered with fallback parameters and never returned by Load calls.
	ErrEpochMissing = errors.New("epoch missing")
	// ErrNotInitialized is returned when querying before Initialize succeeds.
	ErrNotInitialized = errors.New("dataset loader not initialized")
)

// DefaultCacheCapacity is the default number of epochs kept in the LRU.
const DefaultCacheCapacity = 16

// Metrics receives loader events. *observability.HelioCollector satisfies it.
type Metrics interface {
	ObserveEpochFetch(result string, d time.Duration)
	CacheEvent(event string)
}

// EpochState reports what the loader knows about one epoch index.
type EpochState int

const (
	// EpochNotLoaded means no load has completed for the index.
	EpochNotLoaded EpochState = iota
	// EpochResident means the epoch's parameters are cached.
	EpochResident
	// EpochFailed means the last load failed and a tombstone is cached.
	EpochFailed
)

func (s EpochState) String() string {
	switch s {
	case EpochResident:
		return "resident"
	case EpochFailed:
		return "failed"
	default:
		return "not-loaded"
	}
}

// cacheEntry is a loaded epoch or, when err is set, a tombstone.
type cacheEntry struct {
	params model.HeliosphereParameters
	err    error
}

// Result is delivered on the channel returned by Request.
type Result struct {
	Params model.HeliosphereParameters
	Err    error
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(l logging.Logger) Option {
	return func(ld *Loader) { ld.log = logging.OrNoop(l) }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(ld *Loader) { ld.metrics = m }
}

// WithCacheCapacity overrides DefaultCacheCapacity. Values below 2 are
// raised to 2 so both ends of a bracket fit.
func WithCacheCapacity(n int) Option {
	return func(ld *Loader) { ld.capacity = max(n, 2) }
}

// WithFallback overrides the parameters substituted for missing epochs.
func WithFallback(p model.HeliosphereParameters) Option {
	return func(ld *Loader) {
		ld.fallback = p.Clone()
		ld.fallback.Fallback = true
	}
}

// WithTracer overrides the tracer used for fetch spans.
func WithTracer(t trace.Tracer) Option {
	return func(ld *Loader) { ld.tracer = t }
}

// Loader resolves heliosphere parameters for arbitrary simulated times.
type Loader struct {
	src      Source
	log      logging.Logger
	metrics  Metrics
	tracer   trace.Tracer
	capacity int
	fallback model.HeliosphereParameters

	mu     sync.RWMutex
	meta   Meta
	epochs []units.Megayears
	cache  *lru.Cache[int, cacheEntry]

	flights singleflight.Group
	warned  sync.Map // int -> struct{}
}

// NewLoader constructs an uninitialized loader reading from src.
func NewLoader(src Source, opts ...Option) *Loader {
	ld := &Loader{
		src:      src,
		log:      logging.Noop(),
		capacity: DefaultCacheCapacity,
		fallback: model.PresentDayParameters(frames.DefaultInflowDirection()),
	}
	ld.fallback.Fallback = true
	for _, opt := range opts {
		opt(ld)
	}
	if ld.tracer == nil {
		ld.tracer = observability.Tracer()
	}
	return ld
}

// Initialize fetches the metadata header and the epoch time array. It may be
// called again to reload the dataset; the cache is reset on success.
func (l *Loader) Initialize(ctx context.Context) error {
	ctx, span := l.tracer.Start(ctx, "dataset.Initialize")
	defer span.End()

	raw, err := l.fetch(ctx, MetaPath)
	if err != nil {
		return l.unavailable(ctx, span, "fetch metadata", err)
	}
	meta, err := decodeMeta(raw)
	if err != nil {
		return l.unavailable(ctx, span, "metadata", err)
	}
	raw, err = l.fetch(ctx, meta.TimeAxis.EpochFile)
	if err != nil {
		return l.unavailable(ctx, span, "fetch epoch array", err)
	}
	epochs, err := decodeEpochs(raw)
	if err != nil {
		return l.unavailable(ctx, span, "epoch array", err)
	}
	if meta.TimeAxis.Count != 0 && meta.TimeAxis.Count != len(epochs) {
		l.log.Warn(ctx, "epoch count disagrees with metadata",
			logging.Int("meta_count", meta.TimeAxis.Count),
			logging.Int("array_count", len(epochs)),
		)
	}

	cache, err := lru.NewWithEvict(l.capacity, func(int, cacheEntry) {
		if l.metrics != nil {
			l.metrics.CacheEvent(observability.CacheEvict)
		}
	})
	if err != nil {
		return fmt.Errorf("create epoch cache: %w", err)
	}

	l.mu.Lock()
	l.meta = meta
	l.epochs = epochs
	l.cache = cache
	l.mu.Unlock()
	l.warned.Clear()

	span.SetAttributes(attribute.Int("dataset.epochs", len(epochs)))
	l.log.Info(ctx, "dataset initialized",
		logging.String("version", meta.Version),
		logging.Int("epochs", len(epochs)),
		logging.Float("t_min_myr", float64(epochs[0])),
		logging.Float("t_max_myr", float64(epochs[len(epochs)-1])),
	)
	return nil
}

func (l *Loader) unavailable(ctx context.Context, span trace.Span, what string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, what)
	l.log.Error(ctx, "dataset unavailable", logging.String("stage", what), logging.Err(err))
	return fmt.Errorf("%w: %s: %w", ErrDatasetUnavailable, what, err)
}

// Meta returns the metadata header.
func (l *Loader) Meta() (Meta, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cache == nil {
		return Meta{}, ErrNotInitialized
	}
	return l.meta, nil
}

// Epochs returns a copy of the epoch time array.
func (l *Loader) Epochs() ([]units.Megayears, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cache == nil {
		return nil, ErrNotInitialized
	}
	return append([]units.Megayears(nil), l.epochs...), nil
}

func (l *Loader) state() ([]units.Megayears, *lru.Cache[int, cacheEntry], error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.cache == nil {
		return nil, nil, ErrNotInitialized
	}
	return l.epochs, l.cache, nil
}

// FindEpochBracket returns the epochs around t. Times outside the dataset
// clamp to the boundary epoch with alpha 0.
func (l *Loader) FindEpochBracket(t units.Megayears) (lo, hi int, alpha float64, err error) {
	epochs, _, err := l.state()
	if err != nil {
		return 0, 0, 0, err
	}
	lo, hi, alpha = units.Bracket(epochs, t)
	return lo, hi, alpha, nil
}

// State reports whether epoch i is cached, tombstoned or not yet loaded.
// It does not affect LRU recency.
func (l *Loader) State(i int) EpochState {
	_, cache, err := l.state()
	if err != nil {
		return EpochNotLoaded
	}
	e, ok := cache.Peek(i)
	switch {
	case !ok:
		return EpochNotLoaded
	case e.err != nil:
		return EpochFailed
	default:
		return EpochResident
	}
}

// CacheLen returns the number of cached epochs, tombstones included.
func (l *Loader) CacheLen() int {
	_, cache, err := l.state()
	if err != nil {
		return 0
	}
	return cache.Len()
}

// CachedIndices returns the cached epoch indices from least to most
// recently used.
func (l *Loader) CachedIndices() []int {
	_, cache, err := l.state()
	if err != nil {
		return nil
	}
	return cache.Keys()
}

// LoadEpoch returns the parameters stored for epoch i. Concurrent calls for
// the same index share one fetch. A missing or undecodable epoch yields the
// fallback parameter set and a cached tombstone; the error return is
// reserved for an uninitialized loader, an out-of-range index, or ctx ending
// before the load completes. An in-flight fetch is never cancelled: its
// result still populates the cache.
func (l *Loader) LoadEpoch(ctx context.Context, i int) (model.HeliosphereParameters, error) {
	epochs, cache, err := l.state()
	if err != nil {
		return model.HeliosphereParameters{}, err
	}
	if i < 0 || i >= len(epochs) {
		return model.HeliosphereParameters{}, fmt.Errorf("epoch index %d out of range [0, %d)", i, len(epochs))
	}

	if e, ok := cache.Get(i); ok {
		l.cacheEvent(observability.CacheHit)
		return l.resolve(e), nil
	}
	l.cacheEvent(observability.CacheMiss)

	detached := context.WithoutCancel(ctx)
	ch := l.flights.DoChan(strconv.Itoa(i), func() (any, error) {
		if e, ok := cache.Peek(i); ok {
			return e, nil
		}
		e := l.loadEpoch(detached, i)
		cache.Add(i, e)
		return e, nil
	})

	select {
	case res := <-ch:
		return l.resolve(res.Val.(cacheEntry)), nil
	case <-ctx.Done():
		return model.HeliosphereParameters{}, ctx.Err()
	}
}

func (l *Loader) resolve(e cacheEntry) model.HeliosphereParameters {
	if e.err != nil {
		return l.fallback.Clone()
	}
	return e.params.Clone()
}

func (l *Loader) loadEpoch(ctx context.Context, i int) cacheEntry {
	path := EpochPath(i)
	start := time.Now()
	raw, err := l.fetch(ctx, path)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			l.observeFetch(observability.FetchMissing, start)
			err = fmt.Errorf("%w: index %d: %w", ErrEpochMissing, i, err)
		} else {
			l.observeFetch(observability.FetchError, start)
		}
		l.warnOnce(ctx, i, err)
		return cacheEntry{err: err}
	}

	params, renormalized, err := decodeEpoch(raw)
	if err != nil {
		l.observeFetch(observability.FetchError, start)
		l.warnOnce(ctx, i, err)
		return cacheEntry{err: err}
	}
	l.observeFetch(observability.FetchOK, start)
	if renormalized {
		l.log.Warn(ctx, "epoch nose vector was not unit length; renormalized",
			logging.Int("epoch", i))
	}
	return cacheEntry{params: params}
}

func (l *Loader) warnOnce(ctx context.Context, i int, err error) {
	if _, seen := l.warned.LoadOrStore(i, struct{}{}); seen {
		return
	}
	l.log.Warn(ctx, "epoch unavailable; substituting fallback parameters",
		logging.Int("epoch", i),
		logging.String("path", EpochPath(i)),
		logging.Err(err),
	)
}

func (l *Loader) fetch(ctx context.Context, path string) ([]byte, error) {
	ctx, span := l.tracer.Start(ctx, "dataset.fetch",
		trace.WithAttributes(attribute.String("dataset.path", path)))
	defer span.End()

	b, err := l.src.Fetch(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("dataset.bytes", len(b)))
	return b, nil
}

func (l *Loader) observeFetch(result string, start time.Time) {
	if l.metrics != nil {
		l.metrics.ObserveEpochFetch(result, time.Since(start))
	}
}

func (l *Loader) cacheEvent(event string) {
	if l.metrics != nil {
		l.metrics.CacheEvent(event)
	}
}

// LoadParametersAt returns the parameters at t, loading both bracketing
// epochs in parallel and interpolating between them. Exact hits and
// out-of-range times return the stored epoch unchanged.
func (l *Loader) LoadParametersAt(ctx context.Context, t units.Megayears) (model.HeliosphereParameters, error) {
	lo, hi, alpha, err := l.FindEpochBracket(t)
	if err != nil {
		return model.HeliosphereParameters{}, err
	}
	if lo == hi || alpha == 0 {
		return l.LoadEpoch(ctx, lo)
	}

	var a, b model.HeliosphereParameters
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = l.LoadEpoch(gctx, lo)
		return err
	})
	g.Go(func() error {
		var err error
		b, err = l.LoadEpoch(gctx, hi)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.HeliosphereParameters{}, err
	}
	return model.Interpolate(a, b, alpha), nil
}

// Resident returns the parameters at t without blocking when both
// bracketing epochs are already cached (tombstones count as cached).
func (l *Loader) Resident(t units.Megayears) (model.HeliosphereParameters, bool) {
	epochs, cache, err := l.state()
	if err != nil {
		return model.HeliosphereParameters{}, false
	}
	lo, hi, alpha := units.Bracket(epochs, t)
	a, ok := cache.Peek(lo)
	if !ok {
		return model.HeliosphereParameters{}, false
	}
	if lo == hi || alpha == 0 {
		return l.resolve(a), true
	}
	b, ok := cache.Peek(hi)
	if !ok {
		return model.HeliosphereParameters{}, false
	}
	return model.Interpolate(l.resolve(a), l.resolve(b), alpha), true
}

// Request starts LoadParametersAt in the background and returns a channel
// that receives exactly one Result. Cancelling ctx abandons the wait but not
// the underlying fetches.
func (l *Loader) Request(ctx context.Context, t units.Megayears) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		p, err := l.LoadParametersAt(ctx, t)
		out <- Result{Params: p, Err: err}
	}()
	return out
}

// Prefetch starts background loads for the lookahead epochs following t
// that are not yet cached and returns how many it started. Failures are
// swallowed.
func (l *Loader) Prefetch(ctx context.Context, t units.Megayears, lookahead int) int {
	epochs, cache, err := l.state()
	if err != nil || lookahead <= 0 {
		return 0
	}
	_, hi, _ := units.Bracket(epochs, t)
	ctx = context.WithoutCancel(ctx)
	started := 0
	for i := hi; i < len(epochs) && i < hi+lookahead; i++ {
		if cache.Contains(i) {
			continue
		}
		started++
		go func(i int) {
			_, _ = l.LoadEpoch(ctx, i)
		}(i)
	}
	return started
}
