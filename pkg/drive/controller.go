package drive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
)

// ErrHalted is returned by Move after Halt. The motors stay stopped until
// the process exits.
var ErrHalted = errors.New("drive: motors halted")

// Command is a maneuver as applied to the wheels.
type Command struct {
	Maneuver Maneuver  `json:"maneuver"`
	Speed    float64   `json:"speed"`
	Wheels   Wheels    `json:"wheels"`
	At       time.Time `json:"at"`
}

// Stats are the controller's counters.
type Stats struct {
	Commands uint64  `json:"commands"`
	Errors   uint64  `json:"errors"`
	Current  Command `json:"current"`
}

// Controller is the single path to the motors.
// Manual commands, the autopilot and shutdown all go through Move, so the
// last call always reflects what the wheels were told to do.
type Controller struct {
	driver Driver

	// mu serializes driver writes so current matches the last command sent.
	mu      sync.Mutex
	current Command
	halted  bool

	keepAlive time.Duration

	commands      uint64
	errorCount    uint64
	lastErrorTime time.Time

	// OnCommand, if set, is called after every driver write.
	OnCommand func(cmd Command, err error)

	logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithKeepAlive re-sends the current command every d while Run is active.
// Use it for motor boards with a watchdog that stops idle wheels.
func WithKeepAlive(d time.Duration) Option {
	return func(c *Controller) { c.keepAlive = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller over driver.
func NewController(driver Driver, opts ...Option) *Controller {
	c := &Controller{
		driver: driver,
		logger: log.Component("drive"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Move applies a maneuver immediately, replacing the previous command.
func (c *Controller) Move(m Maneuver, speed float64) error {
	cmd := Command{Maneuver: m, Speed: speed, Wheels: Mix(m, speed), At: time.Now()}
	if m == Stop {
		cmd.Speed = 0
	}

	c.mu.Lock()
	if c.halted {
		c.mu.Unlock()
		return ErrHalted
	}
	err := c.send(cmd)
	hook := c.OnCommand
	c.mu.Unlock()

	if hook != nil {
		hook(cmd, err)
	}
	return err
}

// Stop zeroes the wheels.
func (c *Controller) Stop() error {
	return c.Move(Stop, 0)
}

// Halt is the shutdown fail-safe: it latches the controller so every
// later Move fails with ErrHalted, then retries the stop command a few
// times and returns the last error, if every attempt failed.
func (c *Controller) Halt() error {
	cmd := Command{Maneuver: Stop, Wheels: Mix(Stop, 0), At: time.Now()}

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		c.mu.Lock()
		c.halted = true
		err = c.send(cmd)
		hook := c.OnCommand
		c.mu.Unlock()

		if hook != nil {
			hook(cmd, err)
		}
		if err == nil {
			return nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	c.logger.Error("motor halt failed", "error", err)
	return err
}

// Halted reports whether Halt has been called.
func (c *Controller) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}

// Current returns the last command applied.
func (c *Controller) Current() Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Stats returns command and error counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Commands: c.commands, Errors: c.errorCount, Current: c.current}
}

// Run re-sends the current command at the keep-alive interval until ctx is done.
// Without a keep-alive interval it simply waits for ctx.
func (c *Controller) Run(ctx context.Context) {
	if c.keepAlive <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh()
		}
	}
}

func (c *Controller) refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted || c.current.Wheels.IsZero() {
		return
	}
	c.send(c.current)
}

// send must be called with mu held.
func (c *Controller) send(cmd Command) error {
	c.current = cmd
	c.commands++

	err := c.driver.SetWheels(cmd.Wheels)
	if err != nil {
		// Log at most once per 5 seconds; hot loops call Move at 10 Hz.
		c.errorCount++
		if c.lastErrorTime.IsZero() || time.Since(c.lastErrorTime) > 5*time.Second {
			c.logger.Warn("set wheels failed",
				"maneuver", cmd.Maneuver.String(),
				"error", err,
				"total_errors", c.errorCount)
			c.lastErrorTime = time.Now()
		}
	}
	return err
}
