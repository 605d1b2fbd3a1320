package autopilot

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/detection"
	"github.com/Preet3627/Saras-AI/pkg/drive"
	"github.com/Preet3627/Saras-AI/pkg/led"
	"github.com/Preet3627/Saras-AI/pkg/ranger"
	"github.com/Preet3627/Saras-AI/pkg/state"
	"github.com/Preet3627/Saras-AI/pkg/worker"
)

type move struct {
	m     drive.Maneuver
	speed float64
}

type fakeMotors struct {
	mu    sync.Mutex
	moves []move
	err   error
}

func (f *fakeMotors) Move(m drive.Maneuver, speed float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m == drive.Stop {
		speed = 0
	}
	f.moves = append(f.moves, move{m, speed})
	return f.err
}

func (f *fakeMotors) Stop() error { return f.Move(drive.Stop, 0) }

func (f *fakeMotors) all() []move {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]move(nil), f.moves...)
}

func (f *fakeMotors) last() move {
	all := f.all()
	if len(all) == 0 {
		return move{m: -1}
	}
	return all[len(all)-1]
}

func (f *fakeMotors) reset() {
	f.mu.Lock()
	f.moves = nil
	f.mu.Unlock()
}

type harness struct {
	pilot  *Pilot
	state  *state.State
	motors *fakeMotors
	ranger *ranger.Mock
	sleeps []time.Duration
	now    time.Time
	rolls  []float64
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		state:  state.New(),
		motors: &fakeMotors{},
		ranger: ranger.NewMock(100),
		now:    time.Now(),
	}
	h.pilot = New(NewManager(cfg), h.state, h.motors, h.ranger,
		WithLogger(log.Discard()),
		WithClock(func() time.Time { return h.now }),
		WithSleep(func(_ context.Context, d time.Duration) bool {
			h.sleeps = append(h.sleeps, d)
			return true
		}),
		WithRand(func() float64 {
			if len(h.rolls) == 0 {
				return 0
			}
			r := h.rolls[0]
			h.rolls = h.rolls[1:]
			return r
		}),
	)
	return h
}

func (h *harness) see(dets ...detection.Detection) {
	h.seeIn(0, dets...)
}

// seeIn publishes dets as found in a frame of the given width.
func (h *harness) seeIn(width int, dets ...detection.Detection) {
	h.now = time.Now()
	h.state.PublishDetections(dets, width)
}

func box(label string, x, y, w, hgt int) detection.Detection {
	return detection.Detection{Label: label, Box: image.Rect(x, y, x+w, y+hgt), Confidence: 0.9}
}

func TestTurnCommand(t *testing.T) {
	tests := []struct {
		name           string
		err, gain, max float64
		want           float64
	}{
		{"centred", 0, 0.25, 60, 0},
		{"small right", 40, 0.25, 60, 10},
		{"small left", -40, 0.25, 60, -10},
		{"clamp right", 1000, 0.25, 60, 60},
		{"clamp left", -1000, 0.25, 60, -60},
		{"exactly max", 240, 0.25, 60, 60},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TurnCommand(tc.err, tc.gain, tc.max); got != tc.want {
				t.Errorf("TurnCommand(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestStep_OffIsIdle(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	if a := h.pilot.Step(context.Background()); a != ActionIdle {
		t.Errorf("action = %s", a)
	}
	if len(h.motors.all()) != 0 {
		t.Error("Off mode must not touch the motors")
	}
}

func TestStep_LeavingModeStopsOnce(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.see()
	h.state.SetMode(state.Traffic, state.SourceClient)
	h.pilot.Step(context.Background())

	h.state.SetMode(state.Off, state.SourceClient)
	h.motors.reset()
	h.pilot.Step(context.Background())
	h.pilot.Step(context.Background())

	moves := h.motors.all()
	if len(moves) != 1 || moves[0].m != drive.Stop {
		t.Errorf("moves after switching off = %+v, want a single stop", moves)
	}
}

func TestStep_MissingDataStops(t *testing.T) {
	for _, mode := range []state.Mode{state.Avoid, state.Traffic, state.Follow, state.Explore} {
		t.Run(mode.String()+"/never published", func(t *testing.T) {
			h := newHarness(t, DefaultConfig())
			h.state.SetMode(mode, state.SourceClient)
			if a := h.pilot.Step(context.Background()); a != ActionStale {
				t.Errorf("action = %s", a)
			}
			if h.motors.last().m != drive.Stop {
				t.Errorf("last move = %+v", h.motors.last())
			}
		})

		t.Run(mode.String()+"/stale", func(t *testing.T) {
			h := newHarness(t, DefaultConfig())
			h.see(box("car", 300, 0, 40, 40))
			h.now = h.now.Add(2 * time.Second)
			h.state.SetMode(mode, state.SourceClient)
			if a := h.pilot.Step(context.Background()); a != ActionStale {
				t.Errorf("action = %s", a)
			}
			if h.motors.last().m != drive.Stop {
				t.Errorf("last move = %+v", h.motors.last())
			}
		})
	}
}

func TestStep_NoCamera(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireVision = false

	for _, mode := range []state.Mode{state.Traffic, state.Follow, state.Explore} {
		t.Run(mode.String(), func(t *testing.T) {
			h := newHarness(t, cfg)
			h.state.SetMode(mode, state.SourceClient)
			if a := h.pilot.Step(context.Background()); a != ActionStale {
				t.Errorf("action = %s, want stale", a)
			}
			for _, m := range h.motors.all() {
				if m.m != drive.Stop {
					t.Errorf("moved without detections: %+v", m)
				}
			}
		})
	}

	t.Run("avoid runs on range", func(t *testing.T) {
		h := newHarness(t, cfg)
		h.state.SetMode(state.Avoid, state.SourceClient)
		if a := h.pilot.Step(context.Background()); a != ActionAvoidForward {
			t.Errorf("action = %s, want avoid-forward", a)
		}
	})
}

func TestStep_RetreatSurvivesMotorErrors(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.motors.err = errors.New("serial write failed")
	h.state.SetMode(state.Follow, state.SourceClient)
	h.see(box("knife", 100, 0, 20, 20))

	if a := h.pilot.Step(context.Background()); a != ActionSafety {
		t.Fatalf("action = %s, want safety", a)
	}
	if h.state.Mode() != state.Off {
		t.Errorf("mode = %v, want off after a failed retreat", h.state.Mode())
	}
	if got := h.motors.last(); got.m != drive.Stop {
		t.Errorf("last move = %+v, want stop attempted", got)
	}
}

func TestStep_HazardOverridesEveryMode(t *testing.T) {
	for _, mode := range []state.Mode{state.Avoid, state.Traffic, state.Follow, state.Explore} {
		for _, hazard := range []string{"knife", "scissors"} {
			t.Run(mode.String()+"/"+hazard, func(t *testing.T) {
				h := newHarness(t, DefaultConfig())
				q := worker.New(4)
				ind := &led.Mock{}
				WithIndicator(ind, q)(h.pilot)

				var safety []state.Transition
				h.pilot.OnSafety = func(tr state.Transition) { safety = append(safety, tr) }

				h.state.SetMode(mode, state.SourceClient)
				h.see(box("car", 300, 0, 40, 40), box(hazard, 10, 10, 20, 20))

				if a := h.pilot.Step(context.Background()); a != ActionSafety {
					t.Fatalf("action = %s", a)
				}

				moves := h.motors.all()
				if len(moves) != 2 || moves[0] != (move{drive.Backward, 70}) || moves[1].m != drive.Stop {
					t.Errorf("moves = %+v, want backward 70 then stop", moves)
				}
				if len(h.sleeps) != 1 || h.sleeps[0] != time.Second {
					t.Errorf("sleeps = %v, want [1s]", h.sleeps)
				}
				if h.state.Mode() != state.Off {
					t.Errorf("mode = %s, want off", h.state.Mode())
				}
				last := h.state.Transitions(1)[0]
				if last.Source != state.SourceSafety || last.From != mode {
					t.Errorf("transition = %+v", last)
				}
				if len(safety) != 1 || safety[0].ID != last.ID {
					t.Error("OnSafety not called with the forced transition")
				}
				if q.Pending() != 1 {
					t.Errorf("alert animation not queued")
				}
			})
		}
	}
}

func TestStep_Avoid(t *testing.T) {
	t.Run("clear", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		h.see()
		h.ranger.Set(30)
		h.state.SetMode(state.Avoid, state.SourceClient)

		if a := h.pilot.Step(context.Background()); a != ActionAvoidForward {
			t.Errorf("action = %s", a)
		}
		if h.motors.last() != (move{drive.Forward, 40}) {
			t.Errorf("move = %+v", h.motors.last())
		}
	})

	t.Run("blocked", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		h.see()
		h.ranger.Set(25)
		h.state.SetMode(state.Avoid, state.SourceClient)

		if a := h.pilot.Step(context.Background()); a != ActionAvoidPivot {
			t.Errorf("action = %s", a)
		}
		want := []move{{drive.Stop, 0}, {drive.RotateLeft, 50}, {drive.Stop, 0}}
		got := h.motors.all()
		if len(got) != len(want) {
			t.Fatalf("moves = %+v", got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("move %d = %+v, want %+v", i, got[i], want[i])
			}
		}
		if len(h.sleeps) != 2 || h.sleeps[0] != 100*time.Millisecond || h.sleeps[1] != 500*time.Millisecond {
			t.Errorf("sleeps = %v", h.sleeps)
		}
	})

	t.Run("no reading", func(t *testing.T) {
		h := newHarness(t, DefaultConfig())
		h.see()
		h.ranger.Set(-1)
		h.state.SetMode(state.Avoid, state.SourceClient)

		if a := h.pilot.Step(context.Background()); a != ActionStale {
			t.Errorf("action = %s", a)
		}
		if h.motors.last().m != drive.Stop {
			t.Errorf("move = %+v", h.motors.last())
		}
	})
}

func TestStep_Traffic(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.state.SetMode(state.Traffic, state.SourceClient)

	h.see(box("car", 0, 0, 10, 10))
	if a := h.pilot.Step(context.Background()); a != ActionTrafficCruise {
		t.Errorf("action = %s", a)
	}
	if h.motors.last() != (move{drive.Forward, 30}) {
		t.Errorf("move = %+v", h.motors.last())
	}

	h.see(box("stop sign", 0, 0, 10, 10))
	if a := h.pilot.Step(context.Background()); a != ActionTrafficStop {
		t.Errorf("action = %s", a)
	}
	if h.motors.last().m != drive.Stop {
		t.Errorf("move = %+v", h.motors.last())
	}
}

func TestStep_Follow(t *testing.T) {
	tests := []struct {
		name   string
		dets   []detection.Detection
		action Action
		want   move
	}{
		{
			name:   "larger target wins",
			dets:   []detection.Detection{box("car", 0, 0, 10, 5), box("car", 600, 0, 10, 10)},
			action: ActionFollowTurn,
			want:   move{drive.RotateRight, 60},
		},
		{
			name:   "first wins ties",
			dets:   []detection.Detection{box("car", 0, 0, 10, 10), box("car", 600, 0, 10, 10)},
			action: ActionFollowTurn,
			want:   move{drive.RotateLeft, 60},
		},
		{
			name:   "centred drives forward",
			dets:   []detection.Detection{box("car", 300, 0, 40, 40)},
			action: ActionFollowForward,
			want:   move{drive.Forward, 35},
		},
		{
			name:   "proportional turn",
			dets:   []detection.Detection{box("car", 380, 0, 40, 40)},
			action: ActionFollowTurn,
			want:   move{drive.RotateRight, 20},
		},
		{
			name:   "other labels ignored",
			dets:   []detection.Detection{box("person", 300, 0, 40, 40)},
			action: ActionFollowLost,
			want:   move{drive.Stop, 0},
		},
		{
			name:   "nothing in view",
			dets:   nil,
			action: ActionFollowLost,
			want:   move{drive.Stop, 0},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, DefaultConfig())
			h.state.SetMode(state.Follow, state.SourceClient)
			h.see(tc.dets...)

			if a := h.pilot.Step(context.Background()); a != tc.action {
				t.Errorf("action = %s, want %s", a, tc.action)
			}
			if got := h.motors.last(); got != tc.want {
				t.Errorf("move = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestStep_FollowUsesReportedFrameWidth(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		det    detection.Detection
		action Action
		want   move
	}{
		{"low preset centred", 320, box("car", 140, 0, 40, 40), ActionFollowForward, move{drive.Forward, 35}},
		{"hd preset centred", 1280, box("car", 620, 0, 40, 40), ActionFollowForward, move{drive.Forward, 35}},
		{"low preset right of centre", 320, box("car", 260, 0, 40, 40), ActionFollowTurn, move{drive.RotateRight, 30}},
		{"unreported width falls back", 0, box("car", 300, 0, 40, 40), ActionFollowForward, move{drive.Forward, 35}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, DefaultConfig())
			h.state.SetMode(state.Follow, state.SourceClient)
			h.seeIn(tc.width, tc.det)

			if a := h.pilot.Step(context.Background()); a != tc.action {
				t.Errorf("action = %s, want %s", a, tc.action)
			}
			if got := h.motors.last(); got != tc.want {
				t.Errorf("move = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestStep_FollowSmoothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FollowSmoothing = true
	cfg.FollowGain = 0.1
	cfg.FollowNoise = 50
	h := newHarness(t, cfg)
	h.state.SetMode(state.Follow, state.SourceClient)

	// First sighting seeds the filter, so the raw law applies: (500-320)*0.1.
	h.see(box("car", 480, 0, 40, 40))
	h.pilot.Step(context.Background())
	if got := h.motors.last(); got != (move{drive.RotateRight, 18}) {
		t.Fatalf("first move = %+v, want raw turn", got)
	}

	// A jump to the far left is damped: the raw command would be a
	// 28-speed left pivot.
	h.see(box("car", 20, 0, 40, 40))
	h.pilot.Step(context.Background())
	got := h.motors.last()
	if got.m == drive.RotateLeft && got.speed >= 28 {
		t.Errorf("move = %+v, want a gentler command than the raw jump", got)
	}

	// Losing the target resets the filter; the next sighting is raw again.
	h.see()
	if a := h.pilot.Step(context.Background()); a != ActionFollowLost {
		t.Fatalf("action = %s, want lost", a)
	}
	h.see(box("car", 20, 0, 40, 40))
	h.pilot.Step(context.Background())
	if got := h.motors.last(); got != (move{drive.RotateLeft, 28}) {
		t.Errorf("move after reset = %+v, want raw turn", got)
	}
}

func TestStep_Explore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaleAfter = time.Hour
	h := newHarness(t, cfg)
	h.state.SetMode(state.Explore, state.SourceClient)
	h.see()
	start := h.now

	// forward for 1s + 0.5*2s = 2s
	h.rolls = []float64{0.5}
	h.pilot.Step(context.Background())
	if h.motors.last() != (move{drive.Forward, 40}) {
		t.Fatalf("first leg = %+v", h.motors.last())
	}

	h.now = start.Add(time.Second)
	h.pilot.Step(context.Background())
	if h.motors.last().m != drive.Forward {
		t.Errorf("still inside forward leg, got %+v", h.motors.last())
	}

	// pivot: direction roll 0.2 -> right, duration roll 0
	h.rolls = []float64{0.2, 0}
	h.now = start.Add(2 * time.Second)
	h.pilot.Step(context.Background())
	if h.motors.last() != (move{drive.RotateRight, 50}) {
		t.Errorf("pivot = %+v", h.motors.last())
	}

	h.now = h.now.Add(300 * time.Millisecond)
	h.pilot.Step(context.Background())
	if h.motors.last().m != drive.Stop {
		t.Errorf("pause = %+v", h.motors.last())
	}

	h.now = h.now.Add(500 * time.Millisecond)
	h.pilot.Step(context.Background())
	if h.motors.last().m != drive.Forward {
		t.Errorf("next leg = %+v", h.motors.last())
	}
}

func TestStep_ExploreObstacleEndsLeg(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaleAfter = time.Hour
	h := newHarness(t, cfg)
	h.state.SetMode(state.Explore, state.SourceClient)
	h.see()

	h.pilot.Step(context.Background())
	h.ranger.Set(10)
	h.rolls = []float64{0.9, 0}
	h.pilot.Step(context.Background())

	if h.motors.last() != (move{drive.RotateLeft, 50}) {
		t.Errorf("obstacle should trigger a pivot, got %+v", h.motors.last())
	}
}

func TestRun_StopsWithState(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.pilot.sleep = sleepCtx

	steps := make(chan Action, 100)
	h.pilot.OnStep = func(a Action) {
		select {
		case steps <- a:
		default:
		}
	}
	cfg := DefaultConfig()
	cfg.IdleDelay = time.Millisecond
	h.pilot.config.SetConfig(cfg)

	done := make(chan struct{})
	go func() {
		h.pilot.Run(context.Background())
		close(done)
	}()

	<-steps
	h.state.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after state stopped")
	}
}
