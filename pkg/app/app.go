package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/assistant"
	"github.com/Preet3627/Saras-AI/pkg/autopilot"
	"github.com/Preet3627/Saras-AI/pkg/board"
	"github.com/Preet3627/Saras-AI/pkg/camera"
	"github.com/Preet3627/Saras-AI/pkg/camera/webcam"
	"github.com/Preet3627/Saras-AI/pkg/control"
	"github.com/Preet3627/Saras-AI/pkg/detection"
	"github.com/Preet3627/Saras-AI/pkg/detection/yolo"
	"github.com/Preet3627/Saras-AI/pkg/drive"
	"github.com/Preet3627/Saras-AI/pkg/led"
	"github.com/Preet3627/Saras-AI/pkg/memory"
	"github.com/Preet3627/Saras-AI/pkg/metrics"
	"github.com/Preet3627/Saras-AI/pkg/perception"
	"github.com/Preet3627/Saras-AI/pkg/ranger"
	"github.com/Preet3627/Saras-AI/pkg/remote"
	"github.com/Preet3627/Saras-AI/pkg/state"
	"github.com/Preet3627/Saras-AI/pkg/stream"
	"github.com/Preet3627/Saras-AI/pkg/tts"
	"github.com/Preet3627/Saras-AI/pkg/wake"
	"github.com/Preet3627/Saras-AI/pkg/web"
	"github.com/Preet3627/Saras-AI/pkg/worker"
)

// Devices are the hardware endpoints the robot is built from.
// Init opens the real ones; tests pass mocks to build.
type Devices struct {
	Wheels drive.Driver
	Sensor ranger.Sensor
	Keys   remote.KeySource
	LEDs   led.Indicator

	// Camera and Detector are nil when the camera is disabled.
	Camera   camera.Source
	Detector detection.Detector

	// Utterances feeds the wake listener. Nil disables it.
	Utterances wake.Source

	// Closers are closed in reverse order on shutdown.
	Closers []io.Closer
}

// App owns every component and their lifecycle.
type App struct {
	config Config

	state   *state.State
	queue   *worker.Queue
	motors  *drive.Controller
	memory  *memory.Memory
	metrics *metrics.Metrics

	camera     *camera.Manager
	capture    *camera.Capture
	openCamera func(camera.Config) (camera.Source, error)

	perception *perception.Loop
	pilot      *autopilot.Pilot
	autopilot  *autopilot.Manager
	control    *control.Service
	remote     *remote.Listener
	wake       *wake.Listener
	stream     *stream.Broadcaster
	web        *web.Server

	leds    led.Indicator
	closers []io.Closer

	shutdown sync.Once
	logger   *slog.Logger
}

// New creates the application with the given configuration.
// Environment overrides are the caller's job; see Config.LoadEnvConfig.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &App{
		config: cfg,
		openCamera: func(c camera.Config) (camera.Source, error) {
			return webcam.Open(c)
		},
		logger: log.Component("app"),
	}, nil
}

// Init opens the hardware and builds every component.
// Call this after New and before Run.
func (a *App) Init() error {
	a.logger.Info("starting Saras", "port", a.config.Port, "serial", a.config.SerialPort, "camera", !a.config.NoCamera)

	dev, err := a.openDevices()
	if err != nil {
		return err
	}
	if err := a.build(dev); err != nil {
		if dev.Camera != nil {
			dev.Camera.Close()
		}
		closeAll(dev.Closers)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.leds.PlayAnimation(ctx, led.Startup); err != nil {
		a.logger.Warn("startup animation failed", "error", err)
	}
	return nil
}

func (a *App) openDevices() (Devices, error) {
	var dev Devices

	bcfg := board.DefaultConfig()
	bcfg.Port, bcfg.BaudRate = a.config.SerialPort, a.config.BaudRate
	b, err := board.Open(bcfg)
	if err != nil {
		return dev, fmt.Errorf("board init: %w", err)
	}
	dev.Closers = append(dev.Closers, b)

	dev.Wheels = drive.BoardDriver{Board: b}
	if a.config.DriveURL != "" {
		dev.Wheels = drive.NewHTTPDriver(a.config.DriveURL)
		a.logger.Info("driving through remote motor service", "url", a.config.DriveURL)
	}
	dev.Sensor = ranger.NewBoardSensor(b)
	dev.Keys = remote.FromBoard(b)
	dev.LEDs = led.NewBoardLEDs(b)

	if !a.config.NoCamera {
		ccfg := camera.DefaultConfig()
		ccfg.Device = a.config.CameraDevice
		cam, err := a.openCamera(ccfg)
		if err != nil {
			closeAll(dev.Closers)
			return dev, fmt.Errorf("camera init: %w", err)
		}
		dev.Camera = cam

		dcfg := detection.DefaultConfig()
		dcfg.ModelPath = a.config.ModelPath
		det, err := yolo.New(dcfg)
		if err != nil {
			cam.Close()
			closeAll(dev.Closers)
			return dev, fmt.Errorf("detector init: %w", err)
		}
		dev.Detector = det
		dev.Closers = append(dev.Closers, det)
	}

	if a.config.WakeStdin {
		dev.Utterances = wake.NewLineSource(os.Stdin)
	}
	return dev, nil
}

// build assembles the components around dev.
func (a *App) build(dev Devices) error {
	a.closers = dev.Closers
	a.leds = dev.LEDs
	a.state = state.New()
	a.metrics = metrics.New()

	a.memory = memory.NewWithFile(a.config.SettingsPath())
	if err := a.memory.Restore(a.state); err != nil {
		a.logger.Warn("saved settings not restored", "path", a.config.SettingsPath(), "error", err)
	}

	a.queue = worker.New(a.config.QueueSize)
	a.queue.OnDrop = func(string) { a.metrics.QueueDrops.Add(1) }

	a.motors = drive.NewController(dev.Wheels, drive.WithKeepAlive(a.config.KeepAlive))
	a.motors.OnCommand = func(_ drive.Command, err error) {
		if err != nil {
			a.metrics.MotorErrors.Add(1)
			return
		}
		a.metrics.MotorCommands.Add(1)
	}

	speaker, err := newSpeaker()
	if err != nil {
		return fmt.Errorf("speech init: %w", err)
	}

	asst := a.newAssistant()
	asst.OnResult = func(_ string, err error) {
		if err != nil {
			a.metrics.AssistantErrors.Add(1)
		}
	}

	// Typed as an interface so a disabled camera stays a nil source.
	var frames interface {
		ReadFrame() (*camera.Frame, bool)
	}
	if dev.Camera != nil {
		a.capture = camera.NewCapture(dev.Camera)
		a.capture.OnFrame = func(uint64) { a.metrics.FramesCaptured.Add(1) }
		a.capture.OnError = func(error) { a.metrics.CaptureErrors.Add(1) }
		frames = a.capture

		a.camera = camera.NewManager(camera.DefaultConfig())
		a.camera.OnConfigChange = a.reopenCamera

		a.perception = perception.New(perception.DefaultConfig(), a.capture, dev.Detector, a.state,
			perception.WithSpeaker(speaker, a.queue))
		a.perception.OnCycle = func(n int, err error) {
			if err != nil {
				a.metrics.DetectorErrors.Add(1)
				return
			}
			a.metrics.PerceptionCycles.Add(1)
			a.metrics.Detections.Add(uint64(n))
		}
		a.perception.OnGreet = func(string) { a.metrics.Greetings.Add(1) }
	}

	pcfg := autopilot.DefaultConfig()
	pcfg.RequireVision = dev.Camera != nil
	a.autopilot = autopilot.NewManager(pcfg)
	a.pilot = autopilot.New(a.autopilot, a.state, a.motors, dev.Sensor,
		autopilot.WithIndicator(dev.LEDs, a.queue))
	a.pilot.OnStep = func(autopilot.Action) { a.metrics.AutopilotCycles.Add(1) }
	a.pilot.OnSafety = func(state.Transition) { a.metrics.SafetyOverrides.Add(1) }

	a.control = control.New(a.state, a.motors,
		control.WithSensor(dev.Sensor),
		control.WithFrames(frames),
		control.WithSpeaker(speaker),
		control.WithIndicator(dev.LEDs),
		control.WithMemory(a.memory),
		control.WithAssistant(asst),
		control.WithQueue(a.queue),
	)

	a.remote = remote.New(remote.DefaultConfig(), dev.Keys, a.control)
	if dev.Utterances != nil {
		a.wake = wake.New(wake.DefaultConfig(), dev.Utterances, a.control)
	}

	scfg := stream.DefaultConfig()
	a.stream = stream.New(scfg, frames, a.state)
	a.stream.Hazards = func() []string { return a.autopilot.GetConfig().HazardLabels }
	if a.camera != nil {
		a.stream.Quality = func() int { return a.camera.GetConfig().Quality }
	}
	a.stream.OnFrame = func(int, int) { a.metrics.StreamFrames.Add(1) }

	wcfg := web.DefaultConfig()
	wcfg.Addr = a.config.Addr()
	a.web = web.New(wcfg, web.Deps{
		Control:   a.control,
		Autopilot: a.autopilot,
		Camera:    a.camera,
		Stream:    a.stream,
		Metrics:   a.metrics,
	})
	a.state.OnTransition(a.web.PublishTransition)

	a.metrics.AddGauge("stream_clients", "MJPEG and camera websocket viewers", func() float64 {
		return float64(a.stream.Clients())
	})
	a.metrics.AddGauge("status_clients", "Status websocket clients", func() float64 {
		return float64(a.web.StatusClients())
	})
	a.metrics.AddGauge("queue_pending", "Side-effect jobs waiting to run", func() float64 {
		return float64(a.queue.Pending())
	})
	return nil
}

// newSpeaker prefers espeak and always ends with the log speaker.
func newSpeaker() (tts.Speaker, error) {
	var speakers []tts.Speaker
	if es := tts.NewEspeak(); es.Available() {
		speakers = append(speakers, es)
	}
	speakers = append(speakers, tts.Log{Logger: log.Component("tts")})
	return tts.NewChain(speakers...)
}

// newAssistant returns a Gemini-backed assistant, or one that only
// apologizes when no key is configured.
func (a *App) newAssistant() *assistant.Assistant {
	var p assistant.Provider
	if a.config.APIKey != "" {
		g, err := assistant.NewGemini(assistant.WithAPIKey(a.config.APIKey))
		if err != nil {
			a.logger.Warn("assistant disabled", "error", err)
		} else {
			a.logger.Info("assistant enabled", "model", g.Model())
			p = g
		}
	} else {
		a.logger.Info("assistant disabled, no API key")
	}
	return assistant.New(p)
}

// reopenCamera applies a new camera config by swapping the capture source.
func (a *App) reopenCamera(cfg camera.Config) error {
	src, err := a.openCamera(cfg)
	if err != nil {
		return err
	}
	if err := a.capture.Replace(src); err != nil {
		a.logger.Warn("old camera close failed", "error", err)
	}
	a.logger.Info("camera reopened", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height)
	return nil
}

// Run starts every worker and blocks until ctx is cancelled or the
// HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.queue.Run(ctx)
	go a.motors.Run(ctx)

	if a.capture != nil {
		if err := a.capture.Start(ctx); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
	}
	// Loops that issue motor commands are waited for before Run returns,
	// so Shutdown's halt is the last write to the wheels.
	var loops sync.WaitGroup
	defer loops.Wait()
	defer cancel()

	if a.perception != nil {
		go a.perception.Run(ctx)
	}
	loops.Add(2)
	go func() {
		defer loops.Done()
		a.pilot.Run(ctx)
	}()
	go func() {
		defer loops.Done()
		a.remote.Run(ctx)
	}()
	if a.wake != nil {
		loops.Add(1)
		go func() {
			defer loops.Done()
			if err := a.wake.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("wake listener stopped", "error", err)
			}
		}()
	}
	go a.stream.Run(ctx)

	errc := make(chan error, 1)
	go func() { errc <- a.web.Run(ctx) }()

	a.logger.Info("Saras is running", "addr", a.config.Addr())

	select {
	case <-ctx.Done():
		<-errc
		return nil
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// Shutdown stops the robot: it leaves autopilot, halts the motors and
// releases the devices. Safe to call more than once.
func (a *App) Shutdown() {
	a.shutdown.Do(func() {
		a.logger.Info("shutting down")

		if a.state != nil {
			a.state.Stop()
			a.state.ForceMode(state.Off, state.SourceShutdown, "shutdown")
		}
		if a.motors != nil {
			if err := a.motors.Halt(); err != nil {
				a.logger.Warn("motor halt failed", "error", err)
			}
		}
		if a.leds != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			a.leds.PlayAnimation(ctx, led.Off)
			cancel()
		}
		if a.capture != nil {
			a.capture.Stop()
		}
		if a.memory != nil {
			a.memory.Close()
		}
		closeAll(a.closers)
	})
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
}

// State returns the shared state.
func (a *App) State() *state.State { return a.state }

// Control returns the control service.
func (a *App) Control() *control.Service { return a.control }

// Web returns the HTTP boundary.
func (a *App) Web() *web.Server { return a.web }
