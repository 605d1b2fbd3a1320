package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/control"
	"github.com/Preet3627/Saras-AI/pkg/drive"
	"github.com/Preet3627/Saras-AI/pkg/state"
)

type scriptedKeys struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (s *scriptedKeys) Key() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", false, s.err
	}
	if len(s.keys) == 0 {
		return "", false, nil
	}
	k := s.keys[0]
	s.keys = s.keys[1:]
	return k, true, nil
}

type irBoard struct{ key string }

func (b irBoard) IRKey() (string, bool, error) { return b.key, b.key != "", nil }

func newService() (*control.Service, *state.State, *drive.Mock) {
	st := state.New()
	wheels := &drive.Mock{}
	motors := drive.NewController(wheels, drive.WithLogger(log.Discard()))
	return control.New(st, motors, control.WithLogger(log.Discard())), st, wheels
}

func TestPoll_Maneuvers(t *testing.T) {
	tests := []struct {
		key  string
		want drive.Wheels
	}{
		{"UP", drive.Mix(drive.Forward, 50)},
		{"DOWN", drive.Mix(drive.Backward, 50)},
		{"LEFT", drive.Mix(drive.RotateLeft, 50)},
		{"RIGHT", drive.Mix(drive.RotateRight, 50)},
		{"C", drive.Mix(drive.StrafeLeft, 50)},
		{"D", drive.Mix(drive.StrafeRight, 50)},
		{"OK", drive.Wheels{}},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			svc, _, wheels := newService()
			l := New(DefaultConfig(), &scriptedKeys{keys: []string{tc.key}}, svc, WithLogger(log.Discard()))

			if wait := l.Poll(context.Background()); wait != 200*time.Millisecond {
				t.Errorf("wait = %v, want debounce", wait)
			}
			if got, _ := wheels.Last(); got != tc.want {
				t.Errorf("wheels = %+v, want %+v", got, tc.want)
			}
			if l.Handled() != 1 {
				t.Errorf("handled = %d", l.Handled())
			}
		})
	}
}

func TestPoll_Modes(t *testing.T) {
	keys := []string{"1", "2", "3", "4", "0"}
	want := []state.Mode{state.Avoid, state.Traffic, state.Follow, state.Explore, state.Off}

	svc, st, _ := newService()
	l := New(DefaultConfig(), &scriptedKeys{keys: keys}, svc, WithLogger(log.Discard()))
	for i := range keys {
		l.Poll(context.Background())
		if st.Mode() != want[i] {
			t.Errorf("after %q mode = %v, want %v", keys[i], st.Mode(), want[i])
		}
	}
	for _, tr := range st.Transitions(10) {
		if tr.Source != state.SourceRemote {
			t.Errorf("source = %q", tr.Source)
		}
	}
}

func TestPoll_NoKeyAndUnmapped(t *testing.T) {
	svc, _, wheels := newService()
	var seen []string
	l := New(DefaultConfig(), &scriptedKeys{keys: []string{"STAR"}}, svc, WithLogger(log.Discard()))
	l.OnKey = func(key string, handled bool) {
		if handled {
			t.Errorf("%q should not be handled", key)
		}
		seen = append(seen, key)
	}

	if wait := l.Poll(context.Background()); wait != 100*time.Millisecond {
		t.Errorf("unmapped wait = %v", wait)
	}
	if wait := l.Poll(context.Background()); wait != 100*time.Millisecond {
		t.Errorf("idle wait = %v", wait)
	}
	if len(seen) != 1 || len(wheels.Calls()) != 0 {
		t.Errorf("seen=%v calls=%d", seen, len(wheels.Calls()))
	}
}

func TestPoll_ErrorBacksOff(t *testing.T) {
	svc, _, _ := newService()
	l := New(DefaultConfig(), &scriptedKeys{err: errors.New("serial timeout")}, svc, WithLogger(log.Discard()))
	if wait := l.Poll(context.Background()); wait != 2*time.Second {
		t.Errorf("wait = %v, want backoff", wait)
	}
	l.Poll(context.Background())
	if l.Errors() != 2 {
		t.Errorf("errors = %d", l.Errors())
	}
}

func TestFromBoard(t *testing.T) {
	key, ok, err := FromBoard(irBoard{key: "UP"}).Key()
	if key != "UP" || !ok || err != nil {
		t.Errorf("got %q %v %v", key, ok, err)
	}
	if _, ok, _ := FromBoard(irBoard{}).Key(); ok {
		t.Error("empty board key should report no key")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	svc, _, wheels := newService()
	ctx, cancel := context.WithCancel(context.Background())

	var waits []time.Duration
	sleep := func(ctx context.Context, d time.Duration) bool {
		waits = append(waits, d)
		if len(waits) == 3 {
			cancel()
			return false
		}
		return true
	}
	l := New(DefaultConfig(), &scriptedKeys{keys: []string{"UP", "OK"}}, svc,
		WithSleep(sleep), WithLogger(log.Discard()))

	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	if len(waits) != 3 || waits[2] != 100*time.Millisecond {
		t.Errorf("waits = %v", waits)
	}
	if got, _ := wheels.Last(); !got.IsZero() {
		t.Errorf("last wheels = %+v", got)
	}
}
