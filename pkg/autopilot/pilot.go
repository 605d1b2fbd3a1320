package autopilot

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	kalman_filter "github.com/LdDl/kalman-filter"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/detection"
	"github.com/Preet3627/Saras-AI/pkg/drive"
	"github.com/Preet3627/Saras-AI/pkg/led"
	"github.com/Preet3627/Saras-AI/pkg/ranger"
	"github.com/Preet3627/Saras-AI/pkg/state"
	"github.com/Preet3627/Saras-AI/pkg/worker"
)

// Action names the rule that fired in a cycle.
type Action string

const (
	ActionIdle          Action = "idle"
	ActionStale         Action = "stale"
	ActionSafety        Action = "safety"
	ActionAvoidForward  Action = "avoid-forward"
	ActionAvoidPivot    Action = "avoid-pivot"
	ActionTrafficStop   Action = "traffic-stop"
	ActionTrafficCruise Action = "traffic-cruise"
	ActionFollowTurn    Action = "follow-turn"
	ActionFollowForward Action = "follow-forward"
	ActionFollowLost    Action = "follow-lost"
	ActionExplore       Action = "explore"
)

// Mover is the motor side of the pilot. The controller behind it logs
// failed writes, and the pilot re-issues its command every cycle, so
// routine moves ignore the returned error.
type Mover interface {
	Move(m drive.Maneuver, speed float64) error
	Stop() error
}

// TurnCommand is the follow P-controller: err*gain clamped to [-max, max].
func TurnCommand(err, gain, max float64) float64 {
	return math.Max(-max, math.Min(max, err*gain))
}

type explorePhase int

const (
	phaseForward explorePhase = iota
	phasePivot
	phasePause
)

// Pilot runs the autopilot control law.
type Pilot struct {
	config *Manager
	state  *state.State
	motors Mover
	ranger ranger.Sensor

	indicator led.Indicator
	queue     *worker.Queue

	sleep func(ctx context.Context, d time.Duration) bool
	rand  func() float64
	now   func() time.Time

	// active is true while the last cycle ran a non-Off mode.
	active bool
	mode   state.Mode
	last   Action

	explore struct {
		phase explorePhase
		until time.Time
		dir   drive.Maneuver
	}

	// target smooths the follow target centre; nil until it is seen.
	target *kalman_filter.Kalman2D

	// OnStep, if set, is called after every cycle.
	OnStep func(Action)
	// OnSafety, if set, is called after each hazard retreat.
	OnSafety func(state.Transition)

	logger *slog.Logger
}

// Option configures a Pilot.
type Option func(*Pilot)

// WithIndicator plays the alert animation on safety overrides.
func WithIndicator(ind led.Indicator, q *worker.Queue) Option {
	return func(p *Pilot) { p.indicator, p.queue = ind, q }
}

// WithSleep replaces the blocking wait used between and within maneuvers.
// fn returns false when the wait was cut short.
func WithSleep(fn func(ctx context.Context, d time.Duration) bool) Option {
	return func(p *Pilot) { p.sleep = fn }
}

// WithRand sets the source of uniform values in [0,1) for Explore.
func WithRand(fn func() float64) Option {
	return func(p *Pilot) { p.rand = fn }
}

// WithClock sets the time source used for staleness and Explore phases.
func WithClock(fn func() time.Time) Option {
	return func(p *Pilot) { p.now = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pilot) { p.logger = l }
}

// New creates a pilot.
func New(cfg *Manager, st *state.State, motors Mover, sensor ranger.Sensor, opts ...Option) *Pilot {
	p := &Pilot{
		config: cfg,
		state:  st,
		motors: motors,
		ranger: sensor,
		sleep:  sleepCtx,
		rand:   rand.Float64,
		now:    time.Now,
		logger: log.Component("autopilot"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run cycles until ctx is cancelled or the state stops running.
func (p *Pilot) Run(ctx context.Context) {
	p.logger.Info("autopilot loop started")
	defer p.logger.Info("autopilot loop stopped")

	for ctx.Err() == nil && p.state.Running() {
		action := p.Step(ctx)
		cfg := p.config.GetConfig()
		delay := cfg.LoopDelay
		if action == ActionIdle {
			delay = cfg.IdleDelay
		}
		if !p.sleep(ctx, delay) {
			return
		}
	}
}

// Step runs one cycle and reports which rule fired.
func (p *Pilot) Step(ctx context.Context) Action {
	action := p.step(ctx)
	if action != p.last {
		p.logger.Debug("autopilot action", "action", string(action), "previous", string(p.last))
		p.last = action
	}
	if p.OnStep != nil {
		p.OnStep(action)
	}
	return action
}

func (p *Pilot) step(ctx context.Context) Action {
	cfg := p.config.GetConfig()
	mode := p.state.Mode()

	if mode == state.Off {
		if p.active {
			// Leaving an active mode: release the wheels once, then
			// stay out of the way of manual commands.
			p.active = false
			p.motors.Stop()
		}
		return ActionIdle
	}
	if !p.active || mode != p.mode {
		p.explore.phase, p.explore.until = phaseForward, time.Time{}
		p.target = nil
	}
	p.active, p.mode = true, mode

	dets, fresh := p.detections(cfg)
	if !fresh && (cfg.RequireVision || mode != state.Avoid) {
		p.motors.Stop()
		return ActionStale
	}

	if hazard, ok := firstHazard(dets, cfg.HazardLabels); ok {
		p.retreat(ctx, cfg, hazard)
		return ActionSafety
	}

	switch mode {
	case state.Avoid:
		return p.avoid(ctx, cfg)
	case state.Traffic:
		return p.traffic(cfg, dets)
	case state.Follow:
		return p.follow(cfg, dets)
	case state.Explore:
		return p.exploreStep(cfg)
	}
	p.motors.Stop()
	return ActionIdle
}

func (p *Pilot) detections(cfg Config) ([]detection.Detection, bool) {
	dets, at, ok := p.state.Detections()
	if !ok {
		return nil, false
	}
	if cfg.StaleAfter > 0 && p.now().Sub(at) > cfg.StaleAfter {
		return nil, false
	}
	return dets, true
}

func firstHazard(dets []detection.Detection, hazards []string) (string, bool) {
	for _, d := range dets {
		for _, h := range hazards {
			if strings.EqualFold(d.Label, h) {
				return d.Label, true
			}
		}
	}
	return "", false
}

// retreat backs away from a hazard and hands control back to the operator.
func (p *Pilot) retreat(ctx context.Context, cfg Config, hazard string) {
	p.logger.Warn("hazard detected, retreating", "label", hazard)

	if p.indicator != nil && p.queue != nil {
		ind := p.indicator
		p.queue.Submit("led alert", func(ctx context.Context) {
			ind.PlayAnimation(ctx, led.Alert)
		})
	}

	if err := p.motors.Move(drive.Backward, cfg.RetreatSpeed); err != nil {
		p.logger.Warn("retreat move failed", "label", hazard, "error", err)
	}
	p.sleep(ctx, cfg.RetreatDuration)
	if err := p.motors.Stop(); err != nil {
		p.logger.Warn("retreat stop failed", "label", hazard, "error", err)
	}

	t := p.state.ForceMode(state.Off, state.SourceSafety, "hazard: "+hazard)
	p.active = false
	if p.OnSafety != nil {
		p.OnSafety(t)
	}
}

func (p *Pilot) avoid(ctx context.Context, cfg Config) Action {
	cm, ok := p.ranger.Distance()
	if !ok {
		p.motors.Stop()
		return ActionStale
	}
	if cm > cfg.AvoidClearance {
		p.motors.Move(drive.Forward, cfg.AvoidSpeed)
		return ActionAvoidForward
	}

	p.logger.Debug("obstacle ahead, pivoting", "distance_cm", cm)
	p.motors.Stop()
	if !p.sleep(ctx, cfg.AvoidPauseDuration) {
		return ActionAvoidPivot
	}
	p.motors.Move(drive.RotateLeft, cfg.PivotSpeed)
	p.sleep(ctx, cfg.PivotDuration)
	p.motors.Stop()
	return ActionAvoidPivot
}

func (p *Pilot) traffic(cfg Config, dets []detection.Detection) Action {
	if detection.HasAny(dets, cfg.StopLabel) {
		p.motors.Stop()
		return ActionTrafficStop
	}
	p.motors.Move(drive.Forward, cfg.CruiseSpeed)
	return ActionTrafficCruise
}

func (p *Pilot) follow(cfg Config, dets []detection.Detection) Action {
	target, ok := detection.Largest(detection.Filter(dets, cfg.FollowLabel))
	if !ok {
		p.target = nil
		p.motors.Stop()
		return ActionFollowLost
	}

	cx, cy := target.Center()
	if cfg.FollowSmoothing {
		cx = p.smoothTarget(cfg, cx, cy)
	} else {
		p.target = nil
	}
	width := p.state.FrameWidth()
	if width <= 0 {
		width = cfg.FrameWidth
	}
	turn := TurnCommand(cx-float64(width)/2, cfg.FollowGain, cfg.FollowMaxTurn)

	switch {
	case math.Abs(turn) <= cfg.FollowDeadband:
		p.motors.Move(drive.Forward, cfg.FollowSpeed)
		return ActionFollowForward
	case turn > 0:
		p.motors.Move(drive.RotateRight, turn)
	default:
		p.motors.Move(drive.RotateLeft, -turn)
	}
	return ActionFollowTurn
}

// smoothTarget feeds one observation to the target filter and returns the
// filtered x. The first observation seeds the filter unchanged.
func (p *Pilot) smoothTarget(cfg Config, x, y float64) float64 {
	if p.target == nil {
		p.target = kalman_filter.NewKalman2D(1, 0, 0, 2, cfg.FollowNoise, cfg.FollowNoise,
			kalman_filter.WithState2D(x, y))
		return x
	}
	p.target.Predict()
	if err := p.target.Update(x, y); err != nil {
		p.logger.Debug("target filter reset", "error", err)
		p.target = nil
		return x
	}
	sx, _ := p.target.GetState()
	return sx
}

// exploreStep advances the wander state machine by one cycle, so safety
// checks still run between phases.
func (p *Pilot) exploreStep(cfg Config) Action {
	now := p.now()
	e := &p.explore

	// An obstacle cuts the forward leg short when the ranger has a reading.
	if e.phase == phaseForward && !e.until.IsZero() {
		if cm, ok := p.ranger.Distance(); ok && cm <= cfg.AvoidClearance {
			e.until = now
		}
	}

	if e.until.IsZero() || !now.Before(e.until) {
		switch {
		case e.until.IsZero():
			e.phase = phaseForward
			e.until = now.Add(cfg.ExploreForward.Pick(p.rand()))
		case e.phase == phaseForward:
			e.phase = phasePivot
			e.dir = drive.RotateLeft
			if p.rand() < 0.5 {
				e.dir = drive.RotateRight
			}
			e.until = now.Add(cfg.ExplorePivot.Pick(p.rand()))
		case e.phase == phasePivot:
			e.phase = phasePause
			e.until = now.Add(cfg.ExplorePause)
		default:
			e.phase = phaseForward
			e.until = now.Add(cfg.ExploreForward.Pick(p.rand()))
		}
	}

	switch e.phase {
	case phaseForward:
		p.motors.Move(drive.Forward, cfg.ExploreSpeed)
	case phasePivot:
		p.motors.Move(e.dir, cfg.PivotSpeed)
	default:
		p.motors.Stop()
	}
	return ActionExplore
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
