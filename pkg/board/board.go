// Package board talks to the Raspbot expansion hat over a serial line.
//
// The hat firmware speaks a newline-terminated ASCII protocol. Every request
// gets exactly one reply line:
//
//	M fl fr rl rr   ->  OK          wheel speeds in [-100, 100]
//	D               ->  D <cm>      ultrasonic distance, <= 0 means no echo
//	I               ->  I <KEY>     last IR remote key, "I -" when none
//	L r g b         ->  OK          RGB LED channels, 0 or 1
//	(any)           ->  ERR <msg>   rejected by the firmware
package board

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/Preet3627/Saras-AI/internal/log"
)

// MaxSpeed is the largest wheel speed magnitude the firmware accepts.
const MaxSpeed = 100

// Sentinel errors.
var (
	ErrNoReply  = errors.New("board: no reply")
	ErrBadReply = errors.New("board: malformed reply")
	ErrClosed   = errors.New("board: closed")
)

// ReplyError is an ERR line returned by the firmware.
type ReplyError struct {
	Request string
	Message string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("board: %q rejected: %s", e.Request, e.Message)
}

// Port is the part of a serial port the board needs.
// serial.Port satisfies it; tests use an in-memory fake.
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// Config holds serial link settings.
type Config struct {
	Port     string        // Device path, e.g. /dev/ttyAMA0
	BaudRate int           // Line speed
	Timeout  time.Duration // Per-request reply deadline
}

// DefaultConfig returns the settings used by the stock hat firmware.
func DefaultConfig() Config {
	return Config{
		Port:     "/dev/ttyAMA0",
		BaudRate: 115200,
		Timeout:  200 * time.Millisecond,
	}
}

// Board serializes request/reply exchanges on one serial link.
type Board struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
	buf     []byte
	chunk   [128]byte
	closed  bool
	logger  *slog.Logger
}

// Open opens the serial device. Failing here is a hardware precondition
// failure and callers treat it as fatal.
func Open(cfg Config) (*Board, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("board: no serial port configured")
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultConfig().BaudRate
	}

	p, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("board: open %s: %w", cfg.Port, err)
	}
	return New(p, cfg.Timeout), nil
}

// New wraps an already open port.
func New(p Port, timeout time.Duration) *Board {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Board{
		port:    p,
		timeout: timeout,
		logger:  log.Component("board"),
	}
}

// Ports lists serial ports present on the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}

// SetWheels sets the four wheel speeds. Values are clamped to [-MaxSpeed, MaxSpeed].
func (b *Board) SetWheels(fl, fr, rl, rr int) error {
	req := fmt.Sprintf("M %d %d %d %d", clamp(fl), clamp(fr), clamp(rl), clamp(rr))
	return b.expectOK(req)
}

// Distance returns the raw ultrasonic reading in centimetres.
// Readings <= 0 mean the sensor saw no echo.
func (b *Board) Distance() (float64, error) {
	reply, err := b.exchange("D")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(reply)
	if len(fields) != 2 || fields[0] != "D" {
		return 0, fmt.Errorf("%w: %q", ErrBadReply, reply)
	}
	cm, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadReply, reply)
	}
	return cm, nil
}

// IRKey returns the last key received by the IR receiver, if any.
func (b *Board) IRKey() (string, bool, error) {
	reply, err := b.exchange("I")
	if err != nil {
		return "", false, err
	}
	fields := strings.Fields(reply)
	if len(fields) != 2 || fields[0] != "I" {
		return "", false, fmt.Errorf("%w: %q", ErrBadReply, reply)
	}
	if fields[1] == "-" {
		return "", false, nil
	}
	return strings.ToUpper(fields[1]), true, nil
}

// SetLED switches the RGB LED channels.
func (b *Board) SetLED(r, g, bl bool) error {
	return b.expectOK(fmt.Sprintf("L %d %d %d", bit(r), bit(g), bit(bl)))
}

// Close releases the serial port.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.port.Close()
}

func (b *Board) expectOK(req string) error {
	reply, err := b.exchange(req)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("%w: %q", ErrBadReply, reply)
	}
	return nil
}

// exchange writes one request line and reads one reply line.
func (b *Board) exchange(req string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrClosed
	}

	// Drop anything left over from a previous timed-out exchange.
	b.buf = b.buf[:0]
	if err := b.port.ResetInputBuffer(); err != nil {
		b.logger.Debug("reset input buffer failed", "error", err)
	}

	if _, err := io.WriteString(b.port, req+"\n"); err != nil {
		return "", fmt.Errorf("board: write %q: %w", req, err)
	}

	line, err := b.readLine()
	if err != nil {
		return "", fmt.Errorf("%w (request %q)", err, req)
	}
	if msg, ok := strings.CutPrefix(line, "ERR"); ok {
		return "", &ReplyError{Request: req, Message: strings.TrimSpace(msg)}
	}
	return line, nil
}

func (b *Board) readLine() (string, error) {
	if err := b.port.SetReadTimeout(b.timeout); err != nil {
		return "", fmt.Errorf("board: set read timeout: %w", err)
	}
	deadline := time.Now().Add(b.timeout)

	for {
		if i := bytes.IndexByte(b.buf, '\n'); i >= 0 {
			line := strings.TrimSpace(string(b.buf[:i]))
			b.buf = b.buf[i+1:]
			if line == "" {
				continue
			}
			return line, nil
		}
		if time.Now().After(deadline) {
			return "", ErrNoReply
		}

		n, err := b.port.Read(b.chunk[:])
		if err != nil {
			return "", fmt.Errorf("board: read: %w", err)
		}
		// serial ports return 0, nil when the read timeout expires
		if n == 0 {
			return "", ErrNoReply
		}
		b.buf = append(b.buf, b.chunk[:n]...)
	}
}

func clamp(v int) int {
	if v > MaxSpeed {
		return MaxSpeed
	}
	if v < -MaxSpeed {
		return -MaxSpeed
	}
	return v
}

func bit(on bool) int {
	if on {
		return 1
	}
	return 0
}
