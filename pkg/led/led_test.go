package led

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeBoard struct {
	colors []Color
	err    error
}

func (f *fakeBoard) SetLED(r, g, b bool) error {
	f.colors = append(f.colors, Color{r, g, b})
	return f.err
}

func newLEDs(b *fakeBoard) (*BoardLEDs, *[]time.Duration) {
	var holds []time.Duration
	l := NewBoardLEDs(b)
	l.Sleep = func(_ context.Context, d time.Duration) error {
		holds = append(holds, d)
		return nil
	}
	return l, &holds
}

func TestPlayAnimation_Startup(t *testing.T) {
	b := &fakeBoard{}
	l, holds := newLEDs(b)

	if err := l.PlayAnimation(context.Background(), Startup); err != nil {
		t.Fatal(err)
	}

	want := []Color{Blue, Red, Yellow, Green, Black}
	if len(b.colors) != len(want) {
		t.Fatalf("colors = %v", b.colors)
	}
	for i := range want {
		if b.colors[i] != want[i] {
			t.Errorf("step %d = %v, want %v", i, b.colors[i], want[i])
		}
	}
	for _, h := range *holds {
		if h != 500*time.Millisecond {
			t.Errorf("hold = %v", h)
		}
	}
}

func TestPlayAnimation_Sequences(t *testing.T) {
	tests := []struct {
		name   string
		colors int
	}{
		{Wake, 15},
		{Alert, 6},
		{Off, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBoard{}
			l, _ := newLEDs(b)
			if err := l.PlayAnimation(context.Background(), tc.name); err != nil {
				t.Fatal(err)
			}
			if len(b.colors) != tc.colors {
				t.Errorf("steps = %d, want %d", len(b.colors), tc.colors)
			}
			if last := b.colors[len(b.colors)-1]; last != Black {
				t.Errorf("animation should end dark, got %v", last)
			}
		})
	}
}

func TestPlayAnimation_Unknown(t *testing.T) {
	l, _ := newLEDs(&fakeBoard{})
	if err := l.PlayAnimation(context.Background(), "disco"); !errors.Is(err, ErrUnknownAnimation) {
		t.Errorf("err = %v", err)
	}
}

func TestPlayAnimation_Cancelled(t *testing.T) {
	b := &fakeBoard{}
	l := NewBoardLEDs(b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.PlayAnimation(ctx, Startup); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if last := b.colors[len(b.colors)-1]; last != Black {
		t.Error("cancelled animation should switch the LED off")
	}
}

func TestPlayAnimation_BoardError(t *testing.T) {
	l, _ := newLEDs(&fakeBoard{err: errors.New("no reply")})
	if err := l.PlayAnimation(context.Background(), Off); err == nil {
		t.Error("expected board error")
	}
}

func TestMock(t *testing.T) {
	m := &Mock{}
	m.PlayAnimation(context.Background(), Alert)
	if err := m.PlayAnimation(context.Background(), "nope"); err == nil {
		t.Error("mock should reject unknown names")
	}
	if got := m.Played(); len(got) != 1 || got[0] != Alert {
		t.Errorf("played = %v", got)
	}
}
