package dataset

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/heliosphere-sim/internal/logging"
	"github.com/signalsfoundry/heliosphere-sim/internal/observability"
	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// fixture builds an in-memory dataset. Indices listed in missing get no
// per-epoch file.
func fixture(t *testing.T, times []units.Megayears, noses []units.AU, missing ...int) fstest.MapFS {
	t.Helper()
	fsys := fstest.MapFS{}

	meta, err := EncodeMeta(Meta{
		Version:  "1.0.0",
		Units:    Units{Distance: "AU", Velocity: "km/s", Time: "MyrSinceZAMS"},
		TimeAxis: TimeAxis{Count: len(times), Min: times[0], Max: times[len(times)-1], EpochFile: DefaultEpochsPath},
	})
	require.NoError(t, err)
	fsys[MetaPath] = &fstest.MapFile{Data: meta}

	epochs, err := EncodeEpochs(times)
	require.NoError(t, err)
	fsys[DefaultEpochsPath] = &fstest.MapFile{Data: epochs}

	skip := map[int]bool{}
	for _, i := range missing {
		skip[i] = true
	}
	for i, nose := range noses {
		if skip[i] {
			continue
		}
		p := model.PresentDayParameters(units.AxisX.Neg())
		p.HeliopauseNose = nose
		b, err := EncodeEpoch(p)
		require.NoError(t, err)
		fsys[EpochPath(i)] = &fstest.MapFile{Data: b}
	}
	return fsys
}

func scenarioA(t *testing.T, missing ...int) fstest.MapFS {
	return fixture(t, []units.Megayears{0, 100, 200}, []units.AU{100, 120, 90}, missing...)
}

func newInitialized(t *testing.T, src Source, opts ...Option) *Loader {
	t.Helper()
	ld := NewLoader(src, opts...)
	require.NoError(t, ld.Initialize(context.Background()))
	return ld
}

// countingSource counts fetches per path and can hold them on a gate.
type countingSource struct {
	inner Source
	gate  chan struct{}

	mu     sync.Mutex
	counts map[string]int
}

func (c *countingSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	c.mu.Lock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[path]++
	c.mu.Unlock()
	if c.gate != nil && strings.HasPrefix(path, "heliosphere/") {
		<-c.gate
	}
	return c.inner.Fetch(ctx, path)
}

func (c *countingSource) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[path]
}

// missCounter is a metrics sink that counts cache misses.
type missCounter struct {
	misses atomic.Int32
}

func (m *missCounter) ObserveEpochFetch(string, time.Duration) {}
func (m *missCounter) CacheEvent(event string) {
	if event == observability.CacheMiss {
		m.misses.Add(1)
	}
}

// warnCounter is a logger that counts Warn calls.
type warnCounter struct {
	warns atomic.Int32
}

func (w *warnCounter) Debug(context.Context, string, ...logging.Field) {}
func (w *warnCounter) Info(context.Context, string, ...logging.Field)  {}
func (w *warnCounter) Warn(context.Context, string, ...logging.Field)  { w.warns.Add(1) }
func (w *warnCounter) Error(context.Context, string, ...logging.Field) {}
func (w *warnCounter) With(...logging.Field) logging.Logger            { return w }

func TestLoadParametersAtInterpolatesLinearly(t *testing.T) {
	ld := newInitialized(t, NewFSSource(scenarioA(t)))

	p, err := ld.LoadParametersAt(context.Background(), 50)
	require.NoError(t, err)
	assert.InDelta(t, 110, float64(p.HeliopauseNose), 1e-9)
	assert.False(t, p.Fallback)

	p, err = ld.LoadParametersAt(context.Background(), 150)
	require.NoError(t, err)
	assert.InDelta(t, 105, float64(p.HeliopauseNose), 1e-9)
}

func TestLoadParametersAtClampsBeforeRange(t *testing.T) {
	ld := newInitialized(t, NewFSSource(scenarioA(t)))

	before, err := ld.LoadParametersAt(context.Background(), -10)
	require.NoError(t, err)
	first, err := ld.LoadEpoch(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, units.AU(100), before.HeliopauseNose)
	assert.Equal(t, first, before)

	after, err := ld.LoadParametersAt(context.Background(), 1e6)
	require.NoError(t, err)
	assert.Equal(t, units.AU(90), after.HeliopauseNose)
}

func TestConcurrentLoadsOfMissingEpochFetchOnce(t *testing.T) {
	src := &countingSource{inner: NewFSSource(scenarioA(t, 1)), gate: make(chan struct{})}
	warns := &warnCounter{}
	misses := &missCounter{}
	ld := newInitialized(t, src, WithLogger(warns), WithMetrics(misses))
	base := misses.misses.Load()

	var wg sync.WaitGroup
	results := make([]model.HeliosphereParameters, 3)
	errs := make([]error, 3)
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = ld.LoadEpoch(context.Background(), 1)
		}()
	}
	// Release the fetch only once every caller has missed the cache, so
	// none of them can be served by the finished entry instead of the
	// shared flight.
	require.Eventually(t, func() bool {
		return src.count(EpochPath(1)) == 1 && misses.misses.Load()-base == 3
	}, time.Second, time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, 1, src.count(EpochPath(1)))
	for i := range 3 {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Fallback, "caller %d did not get fallback parameters", i)
	}
	assert.Equal(t, EpochFailed, ld.State(1))

	// A tombstoned epoch is not fetched again and not warned about again.
	_, err := ld.LoadEpoch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, src.count(EpochPath(1)))
	assert.Equal(t, int32(1), warns.warns.Load())
}

func TestMissingEpochFallsBackDuringInterpolation(t *testing.T) {
	ld := newInitialized(t, NewFSSource(scenarioA(t, 2)))

	p, err := ld.LoadParametersAt(context.Background(), 150)
	require.NoError(t, err)
	assert.True(t, p.Fallback)
	want := units.Lerp[units.AU](120, 121.6, 0.5)
	assert.InDelta(t, float64(want), float64(p.HeliopauseNose), 1e-9)
}

func TestCacheIsBoundedAndKeepsMostRecent(t *testing.T) {
	n := 10
	times := make([]units.Megayears, n)
	noses := make([]units.AU, n)
	for i := range n {
		times[i] = units.Megayears(i * 10)
		noses[i] = units.AU(100 + i)
	}
	ld := newInitialized(t, NewFSSource(fixture(t, times, noses)), WithCacheCapacity(4))

	for i := range n {
		_, err := ld.LoadEpoch(context.Background(), i)
		require.NoError(t, err)
		require.LessOrEqual(t, ld.CacheLen(), 4)
	}
	assert.Equal(t, []int{6, 7, 8, 9}, ld.CachedIndices())

	// Touching 6 makes 7 the eviction candidate.
	_, err := ld.LoadEpoch(context.Background(), 6)
	require.NoError(t, err)
	_, err = ld.LoadEpoch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9, 6, 0}, ld.CachedIndices())
}

func TestFindEpochBracketProperty(t *testing.T) {
	times := []units.Megayears{0, 0.5, 3, 3.25, 10, 4000}
	ld := newInitialized(t, NewFSSource(fixture(t, times, make([]units.AU, len(times)))))

	rng := rand.New(rand.NewSource(1))
	for range 1000 {
		q := units.Megayears(rng.Float64() * 4000)
		lo, hi, alpha, err := ld.FindEpochBracket(q)
		require.NoError(t, err)
		require.LessOrEqual(t, lo, hi)
		require.GreaterOrEqual(t, alpha, 0.0)
		require.LessOrEqual(t, alpha, 1.0)
		require.LessOrEqual(t, times[lo], q)
		require.GreaterOrEqual(t, times[hi], q)
	}
}

func TestLoadParametersAtStoredEpochIsUnchanged(t *testing.T) {
	ld := newInitialized(t, NewFSSource(scenarioA(t)))
	for i, at := range []units.Megayears{0, 100, 200} {
		stored, err := ld.LoadEpoch(context.Background(), i)
		require.NoError(t, err)
		got, err := ld.LoadParametersAt(context.Background(), at)
		require.NoError(t, err)
		assert.Equal(t, stored, got, "epoch %d", i)
	}
}

func TestInterpolatedInflowIsUnitLength(t *testing.T) {
	fsys := scenarioA(t)
	noses := [][3]float64{{1, 0, 0}, {0, 1, 0}, {0.3, -0.4, 0.866}}
	for i, n := range noses {
		p := model.PresentDayParameters(units.AxisX)
		d, err := units.Normalize(n[0], n[1], n[2])
		require.NoError(t, err)
		p.Inflow = d.Neg()
		b, err := EncodeEpoch(p)
		require.NoError(t, err)
		fsys[EpochPath(i)] = &fstest.MapFile{Data: b}
	}
	ld := newInitialized(t, NewFSSource(fsys))

	for q := units.Megayears(0); q <= 200; q += 3.7 {
		p, err := ld.LoadParametersAt(context.Background(), q)
		require.NoError(t, err)
		assert.InDelta(t, 1, p.Inflow.Norm(), 1e-6, "t=%v", q)
	}
}

func TestNonUnitNoseVectorIsRenormalized(t *testing.T) {
	fsys := scenarioA(t)
	fsys[EpochPath(0)] = &fstest.MapFile{Data: []byte(`{
		"R_HP_nose": 100, "R_TS_over_HP": 0.8, "nose_vec": [0, 0, 2],
		"ISM_rho": 0.1, "ISM_T": 6300, "ISM_B": 0.3, "SW_Mdot": 1, "SW_v": 400,
		"morphology": "bubble", "shape_params": [0]}`)}
	warns := &warnCounter{}
	ld := newInitialized(t, NewFSSource(fsys), WithLogger(warns))

	p, err := ld.LoadEpoch(context.Background(), 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, p.Inflow.Z(), 1e-12)
	assert.Equal(t, model.MorphologyBubble, p.Morphology)
	assert.Equal(t, int32(1), warns.warns.Load())
}

func TestInitializeFailsWhenMetadataMissing(t *testing.T) {
	ld := NewLoader(NewFSSource(fstest.MapFS{}))

	_, err := ld.LoadParametersAt(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = ld.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInitializeFailsWhenEpochArrayMissing(t *testing.T) {
	fsys := scenarioA(t)
	delete(fsys, DefaultEpochsPath)
	err := NewLoader(NewFSSource(fsys)).Initialize(context.Background())
	assert.ErrorIs(t, err, ErrDatasetUnavailable)
}

func TestResidentAndRequest(t *testing.T) {
	ld := newInitialized(t, NewFSSource(scenarioA(t)))

	_, ok := ld.Resident(50)
	require.False(t, ok)

	res := <-ld.Request(context.Background(), 50)
	require.NoError(t, res.Err)
	assert.InDelta(t, 110, float64(res.Params.HeliopauseNose), 1e-9)

	p, ok := ld.Resident(50)
	require.True(t, ok)
	assert.Equal(t, res.Params, p)
}

func TestPrefetchLoadsLookahead(t *testing.T) {
	ld := newInitialized(t, NewFSSource(scenarioA(t, 2)))

	started := ld.Prefetch(context.Background(), 0, 5)
	assert.Equal(t, 3, started)
	require.Eventually(t, func() bool {
		return ld.State(0) == EpochResident && ld.State(1) == EpochResident && ld.State(2) == EpochFailed
	}, time.Second, time.Millisecond)

	assert.Equal(t, 0, ld.Prefetch(context.Background(), 0, 5))
}

func TestHTTPSourceMapsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(http.FS(scenarioA(t, 1))))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), EpochPath(1))
	assert.True(t, errors.Is(err, ErrNotFound), "err = %v", err)

	ld := newInitialized(t, src)
	p, err := ld.LoadParametersAt(context.Background(), 50)
	require.NoError(t, err)
	assert.True(t, p.Fallback)
	assert.InDelta(t, float64(units.Lerp[units.AU](100, 121.6, 0.5)), float64(p.HeliopauseNose), 1e-9)
}

func TestLoaderRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewHelioCollector(reg)
	require.NoError(t, err)
	ld := newInitialized(t, NewFSSource(scenarioA(t, 1)), WithMetrics(collector))

	_, err = ld.LoadEpoch(context.Background(), 0)
	require.NoError(t, err)
	_, err = ld.LoadEpoch(context.Background(), 0)
	require.NoError(t, err)
	_, err = ld.LoadEpoch(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.EpochFetches.WithLabelValues(observability.FetchOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.EpochFetches.WithLabelValues(observability.FetchMissing)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CacheEvents.WithLabelValues(observability.CacheHit)))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.CacheEvents.WithLabelValues(observability.CacheMiss)))
}

func TestLoadEpochRejectsOutOfRangeIndex(t *testing.T) {
	ld := newInitialized(t, NewFSSource(scenarioA(t)))
	_, err := ld.LoadEpoch(context.Background(), 3)
	assert.Error(t, err)
	_, err = ld.LoadEpoch(context.Background(), -1)
	assert.Error(t, err)
}
