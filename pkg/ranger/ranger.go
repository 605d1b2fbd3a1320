// Package ranger reads the ultrasonic distance sensor.
package ranger

import (
	"log/slog"
	"sync"

	"github.com/Preet3627/Saras-AI/internal/log"
)

// Sensor returns a distance in centimetres, or ok=false when there is no reading.
type Sensor interface {
	Distance() (cm float64, ok bool)
}

// DistanceReader is the board call behind BoardSensor.
type DistanceReader interface {
	Distance() (float64, error)
}

// BoardSensor reads the ultrasonic sensor on the hat.
type BoardSensor struct {
	board  DistanceReader
	logger *slog.Logger
}

// NewBoardSensor wraps a board.
func NewBoardSensor(b DistanceReader) *BoardSensor {
	return &BoardSensor{board: b, logger: log.Component("ranger")}
}

// Distance implements Sensor. Read errors and non-positive echoes count as no data.
func (s *BoardSensor) Distance() (float64, bool) {
	cm, err := s.board.Distance()
	if err != nil {
		s.logger.Debug("distance read failed", "error", err)
		return 0, false
	}
	if cm <= 0 {
		s.logger.Debug("no echo", "raw", cm)
		return 0, false
	}
	return cm, true
}

// Mock replays scripted readings. A negative reading means no data.
// When the script is exhausted the last reading repeats.
type Mock struct {
	mu       sync.Mutex
	readings []float64
	calls    int
}

// NewMock creates a mock sensor with the given readings.
func NewMock(readings ...float64) *Mock {
	return &Mock{readings: readings}
}

// Set replaces the script with a single constant reading.
func (m *Mock) Set(cm float64) {
	m.mu.Lock()
	m.readings = []float64{cm}
	m.calls = 0
	m.mu.Unlock()
}

// Distance implements Sensor.
func (m *Mock) Distance() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.readings) == 0 {
		return 0, false
	}
	i := m.calls
	if i >= len(m.readings) {
		i = len(m.readings) - 1
	}
	m.calls++
	cm := m.readings[i]
	if cm < 0 {
		return 0, false
	}
	return cm, true
}

// Calls returns how many times Distance was called.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
