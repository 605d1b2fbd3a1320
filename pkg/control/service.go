// Package control is the command boundary of the robot. The HTTP API, the
// IR remote and the wake-word listener all go through Service, which is the
// only writer of manual motor commands and the desired autopilot mode.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/assistant"
	"github.com/Preet3627/Saras-AI/pkg/camera"
	"github.com/Preet3627/Saras-AI/pkg/drive"
	"github.com/Preet3627/Saras-AI/pkg/led"
	"github.com/Preet3627/Saras-AI/pkg/memory"
	"github.com/Preet3627/Saras-AI/pkg/ranger"
	"github.com/Preet3627/Saras-AI/pkg/state"
	"github.com/Preet3627/Saras-AI/pkg/tts"
	"github.com/Preet3627/Saras-AI/pkg/worker"
)

// Command names accepted besides the maneuvers.
const (
	CmdMeasureDistance = "measure_distance"
	CmdDescribeScene   = "describe_scene"
	CmdAsk             = "ask"
	CmdPlayLED         = "play_led"
	CmdSpeak           = "speak"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	ErrUnknownCommand = errors.New("control: unknown command")
	ErrBadSpeed       = errors.New("control: speed must be between 0 and 100")
	ErrNoDistance     = errors.New("control: no distance reading")
	ErrEmptyText      = errors.New("control: text is required")
)

// Request is one client command.
type Request struct {
	Command string  `json:"command"`
	Text    string  `json:"text,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
	Source  string  `json:"-"`
}

// Result is the outcome of a Request.
type Result struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Command string `json:"command"`

	// Err is the rejection cause for error results.
	Err error `json:"-"`
}

// OK reports whether the command succeeded.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Motors is the motor side of the service. *drive.Controller implements it.
type Motors interface {
	Move(m drive.Maneuver, speed float64) error
	Stop() error
	Current() drive.Command
}

// FrameSource provides the latest camera frame.
type FrameSource interface {
	ReadFrame() (*camera.Frame, bool)
}

// Config holds the conversational texts.
type Config struct {
	Introduction  string
	IntroLanguage string
	ReplyLanguage string
	DefaultSpeed  float64
}

// DefaultConfig returns the stock replies.
func DefaultConfig() Config {
	return Config{
		Introduction:  "નમસ્તે, હું સરસ છું. હું એક રોબોટ છું અને તમારી મદદ કરવા માટે અહીં છું.",
		IntroLanguage: tts.LangGujarati,
		ReplyLanguage: tts.LangEnglish,
		DefaultSpeed:  drive.DefaultSpeed,
	}
}

// Service implements every client-facing operation.
type Service struct {
	cfg Config
	st  *state.State

	motors    Motors
	sensor    ranger.Sensor
	frames    FrameSource
	assistant *assistant.Assistant
	speaker   tts.Speaker
	leds      led.Indicator
	queue     *worker.Queue
	memory    *memory.Memory

	commands atomic.Uint64
	rejected atomic.Uint64

	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithConfig(cfg Config) Option         { return func(s *Service) { s.cfg = cfg } }
func WithSensor(r ranger.Sensor) Option    { return func(s *Service) { s.sensor = r } }
func WithFrames(f FrameSource) Option      { return func(s *Service) { s.frames = f } }
func WithSpeaker(sp tts.Speaker) Option    { return func(s *Service) { s.speaker = sp } }
func WithIndicator(i led.Indicator) Option { return func(s *Service) { s.leds = i } }
func WithMemory(m *memory.Memory) Option   { return func(s *Service) { s.memory = m } }
func WithLogger(l *slog.Logger) Option     { return func(s *Service) { s.logger = l } }

// WithAssistant sets the language model front end.
func WithAssistant(a *assistant.Assistant) Option {
	return func(s *Service) { s.assistant = a }
}

// WithQueue routes speech and LED side effects through q. Without a queue
// they run inline.
func WithQueue(q *worker.Queue) Option {
	return func(s *Service) { s.queue = q }
}

// New creates a Service over the shared state and the motors.
func New(st *state.State, motors Motors, opts ...Option) *Service {
	s := &Service{
		cfg:    DefaultConfig(),
		st:     st,
		motors: motors,
		logger: log.Component("control"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.assistant == nil {
		s.assistant = assistant.New(nil, assistant.WithAssistantLogger(s.logger))
	}
	return s
}

// Command executes one client command. Rejections are reported in the
// result and leave the robot unchanged.
func (s *Service) Command(ctx context.Context, req Request) Result {
	s.commands.Add(1)
	name := strings.ToLower(strings.TrimSpace(req.Command))
	res := Result{ID: uuid.NewString(), Status: StatusSuccess, Command: name}

	msg, err := s.dispatch(ctx, name, req)
	if err != nil {
		s.rejected.Add(1)
		res.Status = StatusError
		res.Message = err.Error()
		res.Err = err
		s.logger.Warn("command rejected", "command", name, "source", req.Source, "error", err)
		return res
	}
	res.Message = msg
	s.logger.Debug("command", "command", name, "source", req.Source, "message", msg)
	return res
}

func (s *Service) dispatch(ctx context.Context, name string, req Request) (string, error) {
	switch name {
	case CmdMeasureDistance:
		return s.measure()

	case CmdDescribeScene:
		desc := s.Describe(ctx)
		s.Speak(desc, s.cfg.ReplyLanguage)
		return desc, nil

	case CmdAsk:
		if strings.TrimSpace(req.Text) == "" {
			return "", ErrEmptyText
		}
		answer := s.assistant.Ask(ctx, req.Text)
		s.Speak(answer, s.cfg.ReplyLanguage)
		return answer, nil

	case CmdSpeak:
		if strings.TrimSpace(req.Text) == "" {
			return "", ErrEmptyText
		}
		s.Speak(req.Text, s.cfg.ReplyLanguage)
		return req.Text, nil

	case CmdPlayLED:
		name := strings.ToLower(strings.TrimSpace(req.Text))
		if err := s.PlayLED(name); err != nil {
			return "", err
		}
		return "Playing " + name + ".", nil
	}

	m, err := drive.ParseManeuver(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, req.Command)
	}
	return "", s.Drive(m, req.Speed)
}

// Drive applies a maneuver immediately. Zero speed means the default.
func (s *Service) Drive(m drive.Maneuver, speed float64) error {
	if speed < 0 || speed > 100 {
		return ErrBadSpeed
	}
	if speed == 0 {
		speed = s.cfg.DefaultSpeed
	}
	if m == drive.Stop {
		return s.motors.Stop()
	}
	return s.motors.Move(m, speed)
}

func (s *Service) measure() (string, error) {
	if s.sensor == nil {
		return "", ErrNoDistance
	}
	cm, ok := s.sensor.Distance()
	if !ok {
		return "", ErrNoDistance
	}
	return fmt.Sprintf("Distance: %.2f cm", cm), nil
}

// Describe asks the assistant about the latest frame.
func (s *Service) Describe(ctx context.Context) string {
	var frame *camera.Frame
	if s.frames != nil {
		frame, _ = s.frames.ReadFrame()
	}
	return s.assistant.DescribeScene(ctx, frame)
}

// SetMode parses text and switches the autopilot mode. Unknown names are
// rejected without a state change.
func (s *Service) SetMode(text, source string) (state.Transition, error) {
	m, err := state.ParseMode(text)
	if err != nil {
		s.rejected.Add(1)
		return state.Transition{}, err
	}
	t, err := s.st.SetMode(m, source)
	if err != nil {
		return t, err
	}
	if t.Changed() {
		s.logger.Info("mode changed", "from", t.From, "to", t.To, "source", source)
	}
	return t, nil
}

// Mode returns the current autopilot mode.
func (s *Service) Mode() state.Mode {
	return s.st.Mode()
}

// Transitions returns the last n mode changes.
func (s *Service) Transitions(n int) []state.Transition {
	return s.st.Transitions(n)
}

// ReplaceResponses swaps the custom table and persists it. It returns the
// number of distinct questions stored.
func (s *Service) ReplaceResponses(pairs []state.Pair) (int, error) {
	if err := s.st.ReplaceResponses(pairs); err != nil {
		s.rejected.Add(1)
		return 0, err
	}
	s.persist()
	return len(s.st.Responses()), nil
}

// Responses returns the custom table.
func (s *Service) Responses() []state.Pair {
	return s.st.Responses()
}

// SetWakeWord updates and persists the wake phrase.
func (s *Service) SetWakeWord(w string) (string, error) {
	w, err := s.st.SetWakeWord(w)
	if err != nil {
		s.rejected.Add(1)
		return "", err
	}
	s.persist()
	return w, nil
}

// WakeWord returns the current wake phrase.
func (s *Service) WakeWord() string {
	return s.st.WakeWord()
}

func (s *Service) persist() {
	if s.memory != nil {
		s.memory.Persist(s.st)
	}
}

// Speak says text through the queue. It is a no-op without a speaker.
func (s *Service) Speak(text, lang string) {
	if s.speaker == nil || strings.TrimSpace(text) == "" {
		return
	}
	s.submit("speak", func(ctx context.Context) {
		if err := s.speaker.Speak(ctx, text, lang); err != nil {
			s.logger.Warn("speak failed", "error", err)
		}
	})
}

// PlayLED validates name and plays it through the queue.
func (s *Service) PlayLED(name string) error {
	if _, ok := led.Animations()[name]; !ok {
		return fmt.Errorf("%w: %q", led.ErrUnknownAnimation, name)
	}
	if s.leds == nil {
		return nil
	}
	s.submit("led:"+name, func(ctx context.Context) {
		if err := s.leds.PlayAnimation(ctx, name); err != nil {
			s.logger.Warn("led animation failed", "animation", name, "error", err)
		}
	})
	return nil
}

func (s *Service) submit(name string, fn func(ctx context.Context)) {
	if s.queue == nil {
		fn(context.Background())
		return
	}
	s.queue.Submit(name, fn)
}

// Status is the robot-wide status report.
type Status struct {
	state.Snapshot
	Motor     drive.Command `json:"motor"`
	Distance  *float64      `json:"distance_cm"`
	Assistant bool          `json:"assistant"`
	Commands  uint64        `json:"commands"`
	Rejected  uint64        `json:"rejected"`
}

// Status takes a snapshot. The range sensor is queried outside the state lock.
func (s *Service) Status() Status {
	st := Status{
		Snapshot:  s.st.Snapshot(),
		Motor:     s.motors.Current(),
		Assistant: s.assistant.Available(),
		Commands:  s.commands.Load(),
		Rejected:  s.rejected.Load(),
	}
	if s.sensor != nil {
		if cm, ok := s.sensor.Distance(); ok {
			st.Distance = &cm
		}
	}
	return st
}

// Commands returns the number of commands received.
func (s *Service) Commands() uint64 { return s.commands.Load() }

// Rejected returns the number of rejected requests.
func (s *Service) Rejected() uint64 { return s.rejected.Load() }
