package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/heliosphere-sim/frames"
	"github.com/signalsfoundry/heliosphere-sim/internal/logging"
	"github.com/signalsfoundry/heliosphere-sim/internal/observability"
	"github.com/signalsfoundry/heliosphere-sim/overlays"
	"github.com/signalsfoundry/heliosphere-sim/particles"
	"github.com/signalsfoundry/heliosphere-sim/registry"
	"github.com/signalsfoundry/heliosphere-sim/soa"
	"github.com/signalsfoundry/heliosphere-sim/starfield"
	"github.com/signalsfoundry/heliosphere-sim/surface"
	"github.com/signalsfoundry/heliosphere-sim/timectrl"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

type runOptions struct {
	frames    int
	dt        time.Duration
	realTime  bool
	readEvery int
}

func runCmd(g *globalFlags) *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the frame loop headlessly and report what each subsystem produced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg, cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
			if err != nil {
				log.Warn(ctx, "tracing disabled", logging.Err(err))
			} else {
				defer observability.ShutdownWithTimeout(context.WithoutCancel(ctx), shutdown, log)
			}

			s, err := newSession(ctx, cfg, log, prometheus.DefaultRegisterer, true)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.run(ctx, o, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.frames, "frames", 600, "number of frames to produce")
	f.DurationVar(&o.dt, "dt", 16*time.Millisecond, "host time per frame")
	f.BoolVar(&o.realTime, "realtime", false, "pace frames with the wall clock")
	f.IntVar(&o.readEvery, "readback-every", 60, "copy particle state into the registry every N frames (0 disables)")
	return cmd
}

// frameStats accumulates what the loop saw.
type frameStats struct {
	frames  int
	updates int
	stale   int
	loadErr int
	drawn   int
	visible int
}

func (s *session) run(ctx context.Context, o runOptions, out io.Writer) error {
	mode := timectrl.Accelerated
	if o.realTime {
		mode = timectrl.RealTime
	}
	tc := timectrl.NewTimeController(time.Now(), o.dt, mode)

	var stats frameStats
	tc.AddRegistry(s.reg, func(f timectrl.Frame, res registry.TickResult) {
		stats.frames++
		if res.Updated {
			stats.updates++
		}
		if res.Stale {
			stats.stale++
		}
		if res.LoadErr != nil {
			stats.loadErr++
			s.log.Warn(ctx, "epoch load failed", logging.Int("frame", f.Index), logging.Err(res.LoadErr))
		}
	})

	var (
		display *particles.DisplayBuffer
		draw    *starfield.InstancedDraw
	)
	maxDist := units.AU(s.cfg.Scene.MaxRenderDistanceAU)
	secondsPerUnit := s.cfg.Simulation.DaysPerSecond * 86400
	tc.AddListener(func(ctx context.Context, f timectrl.Frame) error {
		if err := s.particles.Update(ctx, float32(f.Dt.Seconds())); err != nil {
			return err
		}
		var err error
		if display, err = s.particles.Display(ctx, s.reg.Scale(), display); err != nil {
			return err
		}
		draw = s.stars.Draw(s.reg.Scale(), maxDist, 1, draw)
		stats.drawn = len(draw.Colors) / 4
		if o.readEvery > 0 && f.Index%o.readEvery == 0 {
			p, _ := s.reg.Parameters()
			return s.reg.WithParticleBatch(windBatchID, func(b *soa.ParticleBatch) error {
				return s.particles.ReadBack(b, secondsPerUnit, p.ISMTemperature)
			})
		}
		return nil
	})

	// Real-time mode with a frame budget runs for frames*dt of wall time.
	if o.realTime {
		if err := tc.Run(ctx, time.Duration(o.frames)*o.dt); err != nil {
			return err
		}
	} else {
		for range o.frames {
			if _, err := tc.Step(ctx); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	if display != nil {
		for _, a := range display.Opacity {
			if a > 0 {
				stats.visible++
			}
		}
	}
	return s.report(ctx, stats, out)
}

func (s *session) report(ctx context.Context, stats frameStats, out io.Writer) error {
	p, _ := s.reg.Parameters()
	surf, _ := s.reg.Surface(registry.HeliosphereSurfaceID)
	hp, err := surf.GenerateMesh(64, 128, surface.Heliopause)
	if err != nil {
		return err
	}
	ts, err := surf.GenerateMesh(32, 64, surface.TerminationShock)
	if err != nil {
		return err
	}
	prims := overlays.Build(s.reg, s.cfg.Overlays, overlays.DefaultOptions())
	cycle := s.reg.SolarCycle()
	bg := starfield.BackgroundSphere(s.reg.Scale(), units.AU(s.cfg.Scene.MaxRenderDistanceAU), "")

	s.log.Info(ctx, "run complete",
		logging.Int("frames", stats.frames),
		logging.Int("parameter_updates", stats.updates),
		logging.Int("stale_frames", stats.stale),
		logging.Int("load_errors", stats.loadErr),
	)

	fmt.Fprintf(out, "date            %.1f (JD %.2f)\n", s.reg.JulianDate().DecimalYear(), float64(s.reg.JulianDate()))
	fmt.Fprintf(out, "stellar age     %.1f Myr\n", float64(s.reg.StellarTime()))
	fmt.Fprintf(out, "heliopause      %.1f AU nose, shock ratio %.2f, %s\n", float64(p.HeliopauseNose), float64(p.ShockRatio), p.Morphology)
	fmt.Fprintf(out, "meshes          heliopause %d triangles, termination shock %d triangles\n", hp.TriangleCount(), ts.TriangleCount())
	fmt.Fprintf(out, "particles       %d in pool, %d visible, mean age %.2f, %d steps\n",
		s.particles.Capacity(), stats.visible, s.particles.MeanAgeFraction(), s.particles.Steps())
	fmt.Fprintf(out, "stars           %d drawn in one call, background radius %.3g\n", stats.drawn, float64(bg.Radius))
	fmt.Fprintf(out, "overlays        %d rings, %d tracks, %d arrows, %d labels\n",
		len(prims.Rings), len(prims.Tracks), len(prims.Arrows), len(prims.Labels))
	if earth, ok := s.reg.BodyPosition(registry.Earth); ok {
		marker, _ := s.reg.EarthMarker()
		meridian, _ := marker.Sub(earth).Direction()
		lon, _ := frames.LonLat(meridian)
		fmt.Fprintf(out, "planets         %d orbits, earth %.3f AU, prime meridian at ecliptic %.1f°\n",
			len(prims.Orbits), float64(earth.Norm()), float64(lon))
	}
	fmt.Fprintf(out, "solar cycle     %s (phase %.2f)\n", cycle.Name, cycle.Phase)
	fmt.Fprintf(out, "frames          %d (%d updates, %d stale)\n", stats.frames, stats.updates, stats.stale)
	return nil
}
