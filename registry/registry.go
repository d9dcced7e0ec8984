// Package registry is the single owner of mutable simulation state: the
// clock, the AU-to-scene scale, the active frame, the heliosphere surface
// and the bodies, trajectories and particle batches drawn alongside it.
// A Registry is constructed explicitly and handed to its consumers; there
// is no package-level instance.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/heliosphere-sim/dataset"
	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/internal/logging"
	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/soa"
	"github.com/signalsfoundry/heliosphere-sim/surface"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

var (
	ErrBodyExists       = errors.New("body already exists")
	ErrBodyNotFound     = errors.New("body not found")
	ErrTrajectoryExists = errors.New("trajectory already exists")
	ErrBatchNotFound    = errors.New("particle batch not found")
	// ErrTrajectoryInvalid is model.ErrTrajectoryInvalid.
	ErrTrajectoryInvalid = model.ErrTrajectoryInvalid
)

// HeliosphereSurfaceID is the surface rebuilt from dataset parameters.
const HeliosphereSurfaceID = "heliosphere"

// PresentStellarTime is the Sun's present age since ZAMS.
const PresentStellarTime units.Megayears = 4600

// ParameterSource is the slice of dataset.Loader the registry ticks against.
type ParameterSource interface {
	Resident(t units.Megayears) (model.HeliosphereParameters, bool)
	Request(ctx context.Context, t units.Megayears) <-chan dataset.Result
	Prefetch(ctx context.Context, t units.Megayears, lookahead int) int
}

// MetricsRecorder receives entity counts after every mutation.
type MetricsRecorder interface {
	SetRegistryCounts(surfaces, bodies, trajectories, batches int)
}

// EventType indicates what kind of change happened.
type EventType int

const (
	// EventParametersUpdated fires when a new parameter set is applied and
	// the heliosphere surface is rebuilt.
	EventParametersUpdated EventType = iota
	// EventEntitiesChanged fires when a body, trajectory or batch is added
	// or removed.
	EventEntitiesChanged
)

// Event is delivered to subscribers outside the registry lock.
type Event struct {
	Type   EventType
	Params model.HeliosphereParameters
	ID     string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) { r.log = logging.OrNoop(l) }
}

// WithMetricsRecorder wires entity-count gauges.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithParameterSource attaches the dataset used by Advance.
func WithParameterSource(src ParameterSource) Option {
	return func(r *Registry) { r.source = src }
}

// WithPrefetch sets how many epochs Advance prefetches ahead.
func WithPrefetch(lookahead int) Option {
	return func(r *Registry) { r.prefetch = lookahead }
}

// WithScale sets the initial scene units per AU.
func WithScale(scale float64) Option {
	return func(r *Registry) { r.scale = scale }
}

// Rates maps host time to simulated time for Advance.
type Rates struct {
	// DaysPerSecond advances the Julian Date clock.
	DaysPerSecond float64
	// MegayearsPerSecond advances stellar time.
	MegayearsPerSecond float64
}

// WithRates sets the Advance rates.
func WithRates(rates Rates) Option {
	return func(r *Registry) { r.rates = rates }
}

type trajectoryEntry struct {
	traj  model.Trajectory
	store *soa.TrajectoryStore
}

// Registry holds the simulation state for one session.
type Registry struct {
	log      logging.Logger
	metrics  MetricsRecorder
	source   ParameterSource
	prefetch int

	mu      sync.RWMutex
	jd      units.JulianDate
	stellar units.Megayears
	scale   float64
	frame   frames.Frame
	rates   Rates

	params     model.HeliosphereParameters
	haveParams bool
	pending    <-chan dataset.Result
	// appliedAt is the stellar time of the set Advance last applied;
	// appliedOK is false after an external ApplyParameters or Reset.
	appliedAt units.Megayears
	appliedOK bool

	surfaces     map[string]*surface.Surface
	bodies       map[string]*model.Body
	tracks       map[string]*soa.TrajectoryStore
	trajectories map[string]*trajectoryEntry
	batches      map[string]*soa.ParticleBatch

	subs   map[int]func(Event)
	nextID int
}

// New constructs a registry at J2000 and the present stellar age, with
// scale 1 and the sun-centric frame active.
func New(opts ...Option) *Registry {
	r := &Registry{
		log:     logging.Noop(),
		jd:      units.J2000,
		stellar: PresentStellarTime,
		scale:   1,
		frame:   frames.SunCentric,
		rates:   Rates{DaysPerSecond: 1},
	}
	r.resetMaps()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) resetMaps() {
	r.surfaces = make(map[string]*surface.Surface)
	r.bodies = make(map[string]*model.Body)
	r.tracks = make(map[string]*soa.TrajectoryStore)
	r.trajectories = make(map[string]*trajectoryEntry)
	r.batches = make(map[string]*soa.ParticleBatch)
}

// Reset drops every entity and parameter set and restores the clock. It is
// intended for use between independent runs.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.resetMaps()
	r.params = model.HeliosphereParameters{}
	r.haveParams = false
	r.pending = nil
	r.appliedOK = false
	r.jd = units.J2000
	r.stellar = PresentStellarTime
	r.mu.Unlock()
	r.recordCounts()
}

// ---- Clock, scale and frame ----

// JulianDate returns the current calendar time.
func (r *Registry) JulianDate() units.JulianDate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jd
}

// SetJulianDate sets the calendar time.
func (r *Registry) SetJulianDate(jd units.JulianDate) {
	r.mu.Lock()
	r.jd = jd
	r.mu.Unlock()
}

// StellarTime returns the current time since ZAMS.
func (r *Registry) StellarTime() units.Megayears {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stellar
}

// SetStellarTime sets the time since ZAMS used for dataset lookups.
func (r *Registry) SetStellarTime(t units.Megayears) {
	r.mu.Lock()
	r.stellar = t
	r.mu.Unlock()
}

// Scale returns scene units per AU.
func (r *Registry) Scale() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scale
}

// SetScale sets scene units per AU. Non-positive values are rejected.
func (r *Registry) SetScale(scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("scene scale must be positive, got %v", scale)
	}
	r.mu.Lock()
	r.scale = scale
	r.mu.Unlock()
	return nil
}

// Frame returns the active coordinate frame.
func (r *Registry) Frame() frames.Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frame
}

// SetFrame selects the active coordinate frame.
func (r *Registry) SetFrame(f frames.Frame) {
	r.mu.Lock()
	r.frame = f
	r.mu.Unlock()
}

// HeeToScene scales a sun-centric position into scene units. It does not
// change frames.
func (r *Registry) HeeToScene(p units.Position) units.ScenePosition {
	s := r.Scale()
	return units.V3(p.X.ToScene(s), p.Y.ToScene(s), p.Z.ToScene(s))
}

// SceneToHee inverts HeeToScene.
func (r *Registry) SceneToHee(p units.ScenePosition) units.Position {
	s := r.Scale()
	return units.V3(units.AU(float64(p.X)/s), units.AU(float64(p.Y)/s), units.AU(float64(p.Z)/s))
}

// ToActiveFrame expresses a sun-centric position in the active frame, using
// the current inflow direction for the apex frame.
func (r *Registry) ToActiveFrame(p units.Position) units.Position {
	r.mu.RLock()
	frame, inflow := r.frame, r.inflowLocked()
	r.mu.RUnlock()
	return frames.Convert(p, frames.SunCentric, frame, inflow)
}

func (r *Registry) inflowLocked() units.Direction {
	if r.haveParams && !r.params.Inflow.IsZero() {
		return r.params.Inflow
	}
	return frames.DefaultInflowDirection()
}

// ---- Heliosphere parameters and surfaces ----

// Parameters returns the last applied parameter set.
func (r *Registry) Parameters() (model.HeliosphereParameters, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.params.Clone(), r.haveParams
}

// ApplyParameters installs p and rebuilds the heliosphere surface.
func (r *Registry) ApplyParameters(p model.HeliosphereParameters) {
	r.apply(p, 0, false)
}

func (r *Registry) apply(p model.HeliosphereParameters, at units.Megayears, fromTick bool) {
	p = p.Clone()
	r.mu.Lock()
	r.appliedAt, r.appliedOK = at, fromTick
	r.params = p
	r.haveParams = true
	r.surfaces[HeliosphereSurfaceID] = surface.New(p)
	subs := r.snapshotSubs()
	r.mu.Unlock()

	r.recordCounts()
	r.notify(subs, Event{Type: EventParametersUpdated, Params: p, ID: HeliosphereSurfaceID})
}

// Surface returns the surface registered under id.
func (r *Registry) Surface(id string) (*surface.Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.surfaces[id]
	return s, ok
}

// TickResult summarises one Advance.
type TickResult struct {
	JulianDate  units.JulianDate
	StellarTime units.Megayears
	// Updated is set when a new parameter set was applied this tick.
	Updated bool
	// Stale is set when the parameters for the current time were not
	// resident and the previous set was kept.
	Stale bool
	// LoadErr carries the error of a background load that resolved this
	// tick, if any.
	LoadErr error
}

// Advance moves the clocks forward by dt of host time and refreshes the
// heliosphere parameters without blocking. If the parameters for the new
// time are not resident, it starts one background load and keeps the last
// applied set until that load resolves on a later tick.
func (r *Registry) Advance(ctx context.Context, dt time.Duration) TickResult {
	secs := dt.Seconds()
	r.mu.Lock()
	r.jd = r.jd.Add(units.Days(secs * r.rates.DaysPerSecond))
	r.stellar += units.Megayears(secs * r.rates.MegayearsPerSecond)
	res := TickResult{JulianDate: r.jd, StellarTime: r.stellar}
	pending := r.pending
	r.mu.Unlock()

	if r.source == nil {
		return res
	}

	if pending != nil {
		select {
		case out := <-pending:
			r.mu.Lock()
			r.pending = nil
			r.mu.Unlock()
			if out.Err != nil {
				res.LoadErr = out.Err
				r.log.Warn(ctx, "background parameter load failed", logging.Err(out.Err))
			}
		default:
		}
	}

	// A set already applied for this stellar time is not rebuilt.
	r.mu.RLock()
	current := r.appliedOK && r.appliedAt == res.StellarTime
	r.mu.RUnlock()

	if !current {
		if p, ok := r.source.Resident(res.StellarTime); ok {
			r.apply(p, res.StellarTime, true)
			res.Updated = true
		} else {
			res.Stale = true
			r.mu.Lock()
			if r.pending == nil {
				r.pending = r.source.Request(ctx, res.StellarTime)
			}
			r.mu.Unlock()
		}
	}

	if r.prefetch > 0 {
		r.source.Prefetch(ctx, res.StellarTime, r.prefetch)
	}
	return res
}

// ---- Bodies ----

// AddBody registers b. Its track, if any, must be strictly increasing.
func (r *Registry) AddBody(b model.Body) error {
	if b.ID == "" {
		return fmt.Errorf("body ID must not be empty")
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("body %q: %w", b.ID, err)
	}
	var store *soa.TrajectoryStore
	if len(b.Track) > 0 {
		store = trackStore(b.Track)
	}
	b = copyBody(&b)

	r.mu.Lock()
	if _, exists := r.bodies[b.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyExists, b.ID)
	}
	r.bodies[b.ID] = &b
	if store != nil {
		r.tracks[b.ID] = store
	}
	subs := r.snapshotSubs()
	r.mu.Unlock()

	r.recordCounts()
	r.notify(subs, Event{Type: EventEntitiesChanged, ID: b.ID})
	return nil
}

// UpdateBody applies fn to the stored body under the registry lock. fn must
// not retain the pointer or change the ID. An update that fails validation
// leaves the body unchanged.
func (r *Registry) UpdateBody(id string, fn func(*model.Body)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bodies[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	next := copyBody(b)
	fn(&next)
	next.ID = id
	if err := next.Validate(); err != nil {
		return fmt.Errorf("body %q: %w", id, err)
	}
	*b = next
	if len(b.Track) > 0 {
		r.tracks[id] = trackStore(b.Track)
	} else {
		delete(r.tracks, id)
	}
	return nil
}

// RemoveBody deletes a body.
func (r *Registry) RemoveBody(id string) error {
	r.mu.Lock()
	if _, ok := r.bodies[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	delete(r.bodies, id)
	delete(r.tracks, id)
	subs := r.snapshotSubs()
	r.mu.Unlock()

	r.recordCounts()
	r.notify(subs, Event{Type: EventEntitiesChanged, ID: id})
	return nil
}

// Body returns a copy of the body registered under id.
func (r *Registry) Body(id string) (model.Body, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bodies[id]
	if !ok {
		return model.Body{}, false
	}
	return copyBody(b), true
}

// Bodies returns copies of every body sorted by ID.
func (r *Registry) Bodies() []model.Body {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Body, 0, len(r.bodies))
	for _, b := range r.bodies {
		out = append(out, copyBody(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BodyPosition returns the body's position at the current Julian Date.
func (r *Registry) BodyPosition(id string) (units.Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bodies[id]
	if !ok {
		return units.Position{}, false
	}
	if store, ok := r.tracks[id]; ok {
		return store.At(r.jd)
	}
	if b.Orbit != nil {
		return b.Orbit.PositionAt(r.jd), true
	}
	return b.Position, true
}

func copyBody(b *model.Body) model.Body {
	out := *b
	out.Track = append([]model.TrajectorySample(nil), b.Track...)
	if b.Orbit != nil {
		o := *b.Orbit
		out.Orbit = &o
	}
	return out
}

// ---- Trajectories ----

// AddTrajectory registers a spacecraft trajectory.
func (r *Registry) AddTrajectory(t model.Trajectory) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t.Samples = append([]model.TrajectorySample(nil), t.Samples...)
	entry := &trajectoryEntry{traj: t, store: trackStore(t.Samples)}

	r.mu.Lock()
	if _, exists := r.trajectories[t.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrTrajectoryExists, t.ID)
	}
	r.trajectories[t.ID] = entry
	subs := r.snapshotSubs()
	r.mu.Unlock()

	r.recordCounts()
	r.notify(subs, Event{Type: EventEntitiesChanged, ID: t.ID})
	return nil
}

// Trajectory returns a copy of the trajectory registered under id.
func (r *Registry) Trajectory(id string) (model.Trajectory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.trajectories[id]
	if !ok {
		return model.Trajectory{}, false
	}
	out := e.traj
	out.Samples = append([]model.TrajectorySample(nil), e.traj.Samples...)
	return out, true
}

// TrajectoryIDs returns the registered trajectory IDs in sorted order.
func (r *Registry) TrajectoryIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.trajectories))
	for id := range r.trajectories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetSpacecraftPosition interpolates trajectory id at the current Julian
// Date, clamping before the first and after the last sample.
func (r *Registry) GetSpacecraftPosition(id string) (units.Position, bool) {
	return r.GetSpacecraftPositionAt(id, r.JulianDate())
}

// GetSpacecraftPositionAt interpolates trajectory id at jd.
func (r *Registry) GetSpacecraftPositionAt(id string, jd units.JulianDate) (units.Position, bool) {
	r.mu.RLock()
	e, ok := r.trajectories[id]
	r.mu.RUnlock()
	if !ok {
		return units.Position{}, false
	}
	return e.store.At(jd)
}

func trackStore(samples []model.TrajectorySample) *soa.TrajectoryStore {
	times := make([]units.JulianDate, len(samples))
	positions := make([]units.Position, len(samples))
	for i, s := range samples {
		times[i], positions[i] = s.Time, s.Position
	}
	return soa.NewTrajectoryStore(times, positions)
}

// ---- Particle batches ----

// AddParticleBatch registers a CPU-side particle batch.
func (r *Registry) AddParticleBatch(id string, b *soa.ParticleBatch) error {
	if b == nil {
		return fmt.Errorf("particle batch %q is nil", id)
	}
	r.mu.Lock()
	if _, exists := r.batches[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("particle batch %q already exists", id)
	}
	r.batches[id] = b
	subs := r.snapshotSubs()
	r.mu.Unlock()

	r.recordCounts()
	r.notify(subs, Event{Type: EventEntitiesChanged, ID: id})
	return nil
}

// WithParticleBatch runs fn with exclusive access to batch id.
func (r *Registry) WithParticleBatch(id string, fn func(*soa.ParticleBatch) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrBatchNotFound, id)
	}
	return fn(b)
}

// ---- Subscribers and metrics ----

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs == nil {
		r.subs = make(map[int]func(Event))
	}
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *Registry) snapshotSubs() []func(Event) {
	ids := make([]int, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, r.subs[id])
	}
	return out
}

func (r *Registry) notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

// Counts returns the number of surfaces, bodies, trajectories and batches.
func (r *Registry) Counts() (surfaces, bodies, trajectories, batches int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.surfaces), len(r.bodies), len(r.trajectories), len(r.batches)
}

func (r *Registry) recordCounts() {
	if r.metrics == nil {
		return
	}
	r.metrics.SetRegistryCounts(r.Counts())
}
