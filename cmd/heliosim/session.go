package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/heliosphere-sim/dataset"
	"github.com/signalsfoundry/heliosphere-sim/internal/compute"
	"github.com/signalsfoundry/heliosphere-sim/internal/config"
	"github.com/signalsfoundry/heliosphere-sim/internal/logging"
	"github.com/signalsfoundry/heliosphere-sim/internal/observability"
	"github.com/signalsfoundry/heliosphere-sim/particles"
	"github.com/signalsfoundry/heliosphere-sim/registry"
	"github.com/signalsfoundry/heliosphere-sim/soa"
	"github.com/signalsfoundry/heliosphere-sim/starfield"
	"github.com/signalsfoundry/heliosphere-sim/surface"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

// windBatchID is the registry batch that mirrors the particle pool.
const windBatchID = "solar-wind"

// session is one assembled simulation.
type session struct {
	cfg       config.Config
	log       logging.Logger
	collector *observability.HelioCollector
	loader    *dataset.Loader
	reg       *registry.Registry
	particles *particles.System
	stars     *starfield.Field
}

// datasetSource picks the configured transport, falling back to an
// in-memory synthetic dataset.
func datasetSource(ctx context.Context, cfg config.Config, log logging.Logger) (dataset.Source, error) {
	switch {
	case cfg.Dataset.URL != "":
		log.Info(ctx, "using HTTP dataset", logging.String("url", cfg.Dataset.URL))
		return dataset.NewHTTPSource(cfg.Dataset.URL, nil)
	case cfg.Dataset.Dir != "":
		log.Info(ctx, "using dataset directory", logging.String("dir", cfg.Dataset.Dir))
		return dataset.NewDirSource(cfg.Dataset.Dir), nil
	default:
		log.Info(ctx, "no dataset configured, generating a synthetic one")
		return dataset.Generate(dataset.UniformEpochs(0, 10000, 101))
	}
}

// newSession wires loader, registry, particles and stars. withRender skips
// the particle and star setup when false.
func newSession(ctx context.Context, cfg config.Config, log logging.Logger, reg prometheus.Registerer, withRender bool) (*session, error) {
	collector, err := observability.NewHelioCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	src, err := datasetSource(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	loader := dataset.NewLoader(src,
		dataset.WithLogger(log),
		dataset.WithMetrics(collector),
		dataset.WithCacheCapacity(cfg.Dataset.CacheCapacity),
		dataset.WithTracer(observability.Tracer()),
	)
	if err := loader.Initialize(ctx); err != nil {
		return nil, err
	}

	stellar := units.Megayears(cfg.Simulation.StellarTime)
	r := registry.New(
		registry.WithLogger(log),
		registry.WithMetricsRecorder(collector),
		registry.WithParameterSource(loader),
		registry.WithPrefetch(cfg.Dataset.Prefetch),
		registry.WithScale(cfg.Scene.Scale),
		registry.WithRates(registry.Rates{
			DaysPerSecond:      cfg.Simulation.DaysPerSecond,
			MegayearsPerSecond: cfg.Simulation.MegayearsPerSecond,
		}),
	)
	r.SetStellarTime(stellar)
	if err := registry.RegisterDefaultMissions(r); err != nil {
		return nil, err
	}
	if err := registry.RegisterDefaultBodies(r); err != nil {
		return nil, err
	}

	p, err := loader.LoadParametersAt(ctx, stellar)
	if err != nil {
		return nil, fmt.Errorf("load initial parameters: %w", err)
	}
	r.ApplyParameters(p)

	s := &session{cfg: cfg, log: log, collector: collector, loader: loader, reg: r}
	if !withRender {
		return s, nil
	}

	if err := s.initParticles(); err != nil {
		return nil, err
	}
	if err := s.initStars(); err != nil {
		s.particles.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) initParticles() error {
	pcfg := particles.DefaultConfig()
	pcfg.TextureSize = s.cfg.Particles.TextureSize
	pcfg.Lifetime = float32(s.cfg.Particles.Lifetime)
	sys, err := particles.New(compute.NewDevice(), pcfg,
		particles.WithLogger(s.log),
		particles.WithStepRecorder(s.collector),
	)
	if err != nil {
		return err
	}
	surf, _ := s.reg.Surface(registry.HeliosphereSurfaceID)
	sys.Seed(surf)

	batch, err := soa.NewParticleBatch(sys.Capacity())
	if err != nil {
		sys.Close()
		return err
	}
	if err := s.reg.AddParticleBatch(windBatchID, batch); err != nil {
		sys.Close()
		return err
	}

	// New parameter sets move the emitting shell; particles in flight keep
	// their state and respawn on the new shell.
	s.reg.Subscribe(func(ev registry.Event) {
		if ev.Type == registry.EventParametersUpdated {
			sys.SetEmitter(surface.New(ev.Params))
		}
	})
	s.particles = sys
	return nil
}

func (s *session) initStars() error {
	var entries []starfield.Entry
	if path := s.cfg.Stars.Catalog; path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open star catalog: %w", err)
		}
		defer f.Close()
		if entries, err = starfield.LoadCatalog(f); err != nil {
			return err
		}
	} else {
		entries = append(starfield.BrightStars(), starfield.Synthetic(s.cfg.Stars.Count, 1)...)
	}
	field, err := starfield.New(entries, s.cfg.Stars.MagnitudeLimit, s.cfg.Stars.Count)
	if err != nil {
		return err
	}
	s.stars = field
	return nil
}

func (s *session) Close() {
	if s.particles != nil {
		s.particles.Close()
	}
}
