package drive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
)

func TestController_LatestCallWins(t *testing.T) {
	mock := &Mock{}
	ctrl := NewController(mock, WithLogger(log.Discard()))

	ctrl.Move(Forward, 40)
	ctrl.Move(RotateLeft, 60)

	last, ok := mock.Last()
	if !ok {
		t.Fatal("no command sent")
	}
	if last != Mix(RotateLeft, 60) {
		t.Errorf("last wheels = %+v, want rotate_left 60", last)
	}
	if cur := ctrl.Current(); cur.Maneuver != RotateLeft || cur.Speed != 60 {
		t.Errorf("current = %+v", cur)
	}
	if n := len(mock.Calls()); n != 2 {
		t.Errorf("calls = %d, want 2 (no queueing or coalescing)", n)
	}
}

func TestController_StopAfterMotion(t *testing.T) {
	mock := &Mock{}
	ctrl := NewController(mock, WithLogger(log.Discard()))

	for _, m := range Maneuvers() {
		ctrl.Move(m, 80)
		if err := ctrl.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		last, _ := mock.Last()
		if !last.IsZero() {
			t.Errorf("after %s then stop: wheels = %+v", m, last)
		}
		if ctrl.Current().Speed != 0 {
			t.Errorf("stop speed = %v", ctrl.Current().Speed)
		}
	}
}

func TestController_ErrorsCounted(t *testing.T) {
	mock := &Mock{Err: errors.New("bus fault")}
	ctrl := NewController(mock, WithLogger(log.Discard()))

	var hookErrs int
	ctrl.OnCommand = func(cmd Command, err error) {
		if err != nil {
			hookErrs++
		}
	}

	for i := 0; i < 3; i++ {
		if err := ctrl.Move(Forward, 50); err == nil {
			t.Fatal("expected error")
		}
	}

	stats := ctrl.Stats()
	if stats.Errors != 3 || stats.Commands != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if hookErrs != 3 {
		t.Errorf("hook saw %d errors, want 3", hookErrs)
	}
}

func TestController_Halt(t *testing.T) {
	mock := &Mock{}
	ctrl := NewController(mock, WithLogger(log.Discard()))
	ctrl.Move(Forward, 50)

	if err := ctrl.Halt(); err != nil {
		t.Fatalf("Halt: %v", err)
	}
	last, _ := mock.Last()
	if !last.IsZero() {
		t.Errorf("halt wheels = %+v", last)
	}

	failing := &Mock{Err: errors.New("gone")}
	ctrl = NewController(failing, WithLogger(log.Discard()))
	if err := ctrl.Halt(); err == nil {
		t.Error("expected halt error when driver keeps failing")
	}
	if n := len(failing.Calls()); n != 3 {
		t.Errorf("halt attempts = %d, want 3", n)
	}
}

func TestController_HaltLatches(t *testing.T) {
	mock := &Mock{}
	ctrl := NewController(mock, WithLogger(log.Discard()))
	ctrl.Move(Forward, 40)

	if err := ctrl.Halt(); err != nil {
		t.Fatalf("Halt: %v", err)
	}
	if !ctrl.Halted() {
		t.Error("controller should report halted")
	}

	before := len(mock.Calls())
	if err := ctrl.Move(Forward, 40); !errors.Is(err, ErrHalted) {
		t.Errorf("Move after Halt = %v, want ErrHalted", err)
	}
	if err := ctrl.Stop(); !errors.Is(err, ErrHalted) {
		t.Errorf("Stop after Halt = %v, want ErrHalted", err)
	}
	if n := len(mock.Calls()); n != before {
		t.Errorf("driver written %d times after halt", n-before)
	}
	if last, _ := mock.Last(); !last.IsZero() {
		t.Errorf("wheels = %+v, want zero", last)
	}
	if cur := ctrl.Current(); cur.Maneuver != Stop {
		t.Errorf("current = %+v, want stop", cur)
	}

	// A second Halt still reaches the driver.
	if err := ctrl.Halt(); err != nil || len(mock.Calls()) != before+1 {
		t.Errorf("second Halt err=%v calls=%d", err, len(mock.Calls()))
	}
}

func TestController_KeepAlive(t *testing.T) {
	mock := &Mock{}
	ctrl := NewController(mock, WithKeepAlive(5*time.Millisecond), WithLogger(log.Discard()))
	ctrl.Move(Forward, 30)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ctrl.Run(ctx)

	calls := mock.Calls()
	if len(calls) < 3 {
		t.Fatalf("expected keep-alive resends, got %d calls", len(calls))
	}
	for _, w := range calls {
		if w != Mix(Forward, 30) {
			t.Errorf("resent %+v, want forward 30", w)
		}
	}
}

func TestController_KeepAliveSkipsStopped(t *testing.T) {
	mock := &Mock{}
	ctrl := NewController(mock, WithKeepAlive(5*time.Millisecond), WithLogger(log.Discard()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	ctrl.Run(ctx)

	if n := len(mock.Calls()); n != 0 {
		t.Errorf("idle controller sent %d commands", n)
	}
}

func TestController_Concurrent(t *testing.T) {
	mock := &Mock{}
	ctrl := NewController(mock, WithLogger(log.Discard()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctrl.Move(Maneuvers()[i%len(Maneuvers())], 50)
		}(i)
	}
	wg.Wait()

	last, _ := mock.Last()
	if cur := ctrl.Current(); cur.Wheels != last {
		t.Errorf("current %+v does not match last sent %+v", cur.Wheels, last)
	}
}

type intWheels struct {
	got [4]int
}

func (w *intWheels) SetWheels(fl, fr, rl, rr int) error {
	w.got = [4]int{fl, fr, rl, rr}
	return nil
}

func TestBoardDriver_Rounds(t *testing.T) {
	b := &intWheels{}
	BoardDriver{Board: b}.SetWheels(Wheels{FL: 12.6, FR: -12.6, RL: 0.4, RR: -0.5})
	if b.got != [4]int{13, -13, 0, -1} {
		t.Errorf("got %v", b.got)
	}
}

func TestHTTPDriver(t *testing.T) {
	var got Wheels
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/wheels" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewHTTPDriver(srv.URL + "/")
	if err := d.SetWheels(Mix(StrafeLeft, 20)); err != nil {
		t.Fatalf("SetWheels: %v", err)
	}
	if got != Mix(StrafeLeft, 20) {
		t.Errorf("server got %+v", got)
	}
}

func TestHTTPDriver_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := NewHTTPDriver(srv.URL).SetWheels(Wheels{}); err == nil {
		t.Error("expected error on 503")
	}
}
