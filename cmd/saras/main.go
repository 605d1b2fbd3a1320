// Saras - classroom robot service for the Raspbot.
// Drives the mecanum base, watches the camera and serves the control API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/app"
)

func main() {
	cfg := parseFlags()

	level := os.Getenv("LOG_LEVEL")
	if cfg.Debug {
		level = "debug"
	}
	log.Init(level)

	a, err := app.New(cfg)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := a.Init(); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		a.Shutdown()
		os.Exit(1)
	}
}

// parseFlags applies environment overrides, then command line flags.
// Flags given explicitly win over the environment.
func parseFlags() app.Config {
	cfg := app.DefaultConfig()
	cfg.LoadEnvConfig()

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	port := flag.String("port", cfg.Port, "HTTP listen port (SARAS_PORT)")
	serialPort := flag.String("serial", cfg.SerialPort, "Serial device of the motor hat (SARAS_SERIAL)")
	baud := flag.Int("baud", cfg.BaudRate, "Serial baud rate")
	cam := flag.Int("camera", cfg.CameraDevice, "Camera device index (SARAS_CAMERA)")
	model := flag.String("model", cfg.ModelPath, "YOLOv8 ONNX model path (SARAS_MODEL)")
	data := flag.String("data", cfg.DataDir, "Directory for saved settings (SARAS_DATA)")
	noCamera := flag.Bool("no-camera", false, "Run without camera and object detection")
	wakeStdin := flag.Bool("wake-stdin", false, "Read spoken utterances from stdin, one per line")
	driveURL := flag.String("drive-url", "", "Send wheel speeds to a remote motor service instead of the hat")
	flag.Parse()

	cfg.Debug, cfg.NoCamera, cfg.WakeStdin = *debug, *noCamera, *wakeStdin
	cfg.Port, cfg.SerialPort, cfg.BaudRate = *port, *serialPort, *baud
	cfg.CameraDevice, cfg.ModelPath, cfg.DataDir = *cam, *model, *data
	cfg.DriveURL = *driveURL
	return cfg
}
