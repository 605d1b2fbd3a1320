// Package led plays short colour animations on the hat's RGB LED.
package led

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Animation names.
const (
	Startup = "startup"
	Wake    = "wake"
	Alert   = "alert"
	Off     = "off"
)

// ErrUnknownAnimation is returned for names outside the animation table.
var ErrUnknownAnimation = errors.New("led: unknown animation")

// Indicator plays a named animation. Implementations block until it ends.
type Indicator interface {
	PlayAnimation(ctx context.Context, name string) error
}

// Color is an on/off state for each channel.
type Color struct {
	R, G, B bool
}

// Named colours the hat can show.
var (
	Black  = Color{}
	Red    = Color{R: true}
	Green  = Color{G: true}
	Blue   = Color{B: true}
	Yellow = Color{R: true, G: true}
)

// Step holds a colour for a duration.
type Step struct {
	Color Color
	Hold  time.Duration
}

// Animations returns the step sequence for each named animation.
func Animations() map[string][]Step {
	startup := []Step{
		{Blue, 500 * time.Millisecond},
		{Red, 500 * time.Millisecond},
		{Yellow, 500 * time.Millisecond},
		{Green, 500 * time.Millisecond},
		{Black, 0},
	}

	var wake []Step
	for i := 0; i < 3; i++ {
		wake = append(wake, startup...)
	}

	var alert []Step
	for i := 0; i < 3; i++ {
		alert = append(alert, Step{Red, 250 * time.Millisecond}, Step{Black, 250 * time.Millisecond})
	}

	return map[string][]Step{
		Startup: startup,
		Wake:    wake,
		Alert:   alert,
		Off:     {{Black, 0}},
	}
}

// Names returns the animation names.
func Names() []string {
	return []string{Startup, Wake, Alert, Off}
}

// Setter is the board call that drives the LED channels.
type Setter interface {
	SetLED(r, g, b bool) error
}

// BoardLEDs animates the LED on the motor hat.
type BoardLEDs struct {
	board Setter
	// mu keeps two animations from interleaving.
	mu sync.Mutex

	// Sleep waits between steps; replaced in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewBoardLEDs creates an indicator over b.
func NewBoardLEDs(b Setter) *BoardLEDs {
	return &BoardLEDs{board: b, Sleep: sleep}
}

// PlayAnimation implements Indicator. Cancelling ctx turns the LED off and returns.
func (l *BoardLEDs) PlayAnimation(ctx context.Context, name string) error {
	steps, ok := Animations()[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAnimation, name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range steps {
		if err := l.board.SetLED(s.Color.R, s.Color.G, s.Color.B); err != nil {
			return fmt.Errorf("set led: %w", err)
		}
		if s.Hold <= 0 {
			continue
		}
		if err := l.Sleep(ctx, s.Hold); err != nil {
			l.board.SetLED(false, false, false)
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Mock records animation names.
type Mock struct {
	mu    sync.Mutex
	names []string
	Err   error
}

// PlayAnimation implements Indicator.
func (m *Mock) PlayAnimation(_ context.Context, name string) error {
	if _, ok := Animations()[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAnimation, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	return m.Err
}

// Played returns the animations played so far.
func (m *Mock) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}
