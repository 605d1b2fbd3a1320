package drive

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Preet3627/Saras-AI/internal/httpc"
)

// Driver applies wheel speeds to hardware.
type Driver interface {
	SetWheels(w Wheels) error
}

// WheelSetter is the integer wheel interface exposed by the hat board.
type WheelSetter interface {
	SetWheels(fl, fr, rl, rr int) error
}

// BoardDriver adapts a WheelSetter to Driver by rounding speeds.
type BoardDriver struct {
	Board WheelSetter
}

// SetWheels implements Driver.
func (d BoardDriver) SetWheels(w Wheels) error {
	return d.Board.SetWheels(round(w.FL), round(w.FR), round(w.RL), round(w.RR))
}

func round(v float64) int {
	return int(math.Round(v))
}

// httpClient keeps motor calls from blocking the control loops for long.
var httpClient = httpc.NewClient(2 * time.Second)

// HTTPDriver drives a base that exposes POST /api/wheels.
type HTTPDriver struct {
	BaseURL string
}

// NewHTTPDriver creates a driver for the base at baseURL.
func NewHTTPDriver(baseURL string) *HTTPDriver {
	return &HTTPDriver{BaseURL: strings.TrimRight(baseURL, "/")}
}

// SetWheels implements Driver.
func (d *HTTPDriver) SetWheels(w Wheels) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := httpc.DoJSON(ctx, httpClient, http.MethodPost, d.BaseURL+"/api/wheels", w, nil); err != nil {
		return fmt.Errorf("wheels request failed: %w", err)
	}
	return nil
}

// Mock records every wheel command. Err, when set, is returned from SetWheels.
type Mock struct {
	mu    sync.Mutex
	calls []Wheels
	Err   error
}

// SetWheels implements Driver.
func (m *Mock) SetWheels(w Wheels) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, w)
	return m.Err
}

// Calls returns a copy of all recorded commands.
func (m *Mock) Calls() []Wheels {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Wheels(nil), m.calls...)
}

// Last returns the most recent command.
func (m *Mock) Last() (Wheels, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return Wheels{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

var (
	_ Driver = BoardDriver{}
	_ Driver = (*HTTPDriver)(nil)
	_ Driver = (*Mock)(nil)
)
