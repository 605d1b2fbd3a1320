package web

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/Preet3627/Saras-AI/pkg/autopilot"
	"github.com/Preet3627/Saras-AI/pkg/camera"
	"github.com/Preet3627/Saras-AI/pkg/control"
	"github.com/Preet3627/Saras-AI/pkg/hub"
	"github.com/Preet3627/Saras-AI/pkg/state"
)

var errDisabled = errors.New("web: component disabled")

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  control.StatusError,
		"message": err.Error(),
	})
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	if status >= 500 {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return errorJSON(c, status, err)
}

func encodeEvent(e Event) (hub.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return hub.Message{}, err
	}
	return hub.NewJSONMessage(data), nil
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.deps.Control.Status())
}

// CommandRequest is the body of POST /api/command.
type CommandRequest struct {
	Command string  `json:"command"`
	Text    string  `json:"text"`
	Speed   float64 `json:"speed"`
}

func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
	}
	if strings.TrimSpace(req.Command) == "" {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("command is required"))
	}

	res := s.deps.Control.Command(c.UserContext(), control.Request{
		Command: req.Command,
		Text:    req.Text,
		Speed:   req.Speed,
		Source:  state.SourceClient,
	})
	if !res.OK() {
		return c.Status(fiber.StatusBadRequest).JSON(res)
	}
	return c.JSON(res)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleGetMode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"mode": s.deps.Control.Mode()})
}

func (s *Server) handleSetMode(c *fiber.Ctx) error {
	var req modeRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
	}
	t, err := s.deps.Control.SetMode(req.Mode, state.SourceClient)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(fiber.Map{
		"status":     control.StatusSuccess,
		"mode":       t.To,
		"transition": t,
	})
}

// handleAutonomous keeps the start/stop obstacle-avoidance toggle working.
func (s *Server) handleAutonomous(c *fiber.Ctx) error {
	var req modeRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
	}

	var target state.Mode
	var message string
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "start":
		target, message = state.Avoid, "Obstacle avoidance started."
	case "stop":
		target, message = state.Off, "Obstacle avoidance stopped."
	default:
		return errorJSON(c, fiber.StatusBadRequest, fmt.Errorf("mode must be start or stop, got %q", req.Mode))
	}

	t, err := s.deps.Control.SetMode(target.String(), state.SourceClient)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if !t.Changed() {
		return c.JSON(fiber.Map{"status": "ignored", "message": "Mode is already " + t.To.String()})
	}
	return c.JSON(fiber.Map{"status": control.StatusSuccess, "message": message, "mode": t.To})
}

func (s *Server) handleTransitions(c *fiber.Ctx) error {
	n := c.QueryInt("n", 20)
	if n <= 0 {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("n must be positive"))
	}
	return c.JSON(fiber.Map{"transitions": s.deps.Control.Transitions(n)})
}

type responsesBody struct {
	Responses []state.Pair `json:"responses"`
}

func (s *Server) handleGetResponses(c *fiber.Ctx) error {
	return c.JSON(responsesBody{Responses: s.deps.Control.Responses()})
}

func (s *Server) handlePutResponses(c *fiber.Ctx) error {
	var body responsesBody
	if err := c.BodyParser(&body); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
	}
	n, err := s.deps.Control.ReplaceResponses(body.Responses)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(fiber.Map{
		"status":  control.StatusSuccess,
		"message": fmt.Sprintf("Stored %d custom responses.", n),
		"count":   n,
	})
}

type wakeWordBody struct {
	WakeWord string `json:"wake_word"`
}

func (s *Server) handleGetWakeWord(c *fiber.Ctx) error {
	return c.JSON(wakeWordBody{WakeWord: s.deps.Control.WakeWord()})
}

func (s *Server) handleSetWakeWord(c *fiber.Ctx) error {
	var body wakeWordBody
	if err := c.BodyParser(&body); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
	}
	w, err := s.deps.Control.SetWakeWord(body.WakeWord)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(fiber.Map{"status": control.StatusSuccess, "wake_word": w})
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, errDisabled)
	}
	return c.JSON(s.deps.Camera.GetConfigJSON())
}

func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, errDisabled)
	}
	var update map[string]any
	if err := c.BodyParser(&update); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
	}
	if err := s.deps.Camera.UpdateConfig(update); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(s.deps.Camera.GetConfigJSON())
}

func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"presets": camera.PresetNames()})
}

func (s *Server) handleGetAutopilot(c *fiber.Ctx) error {
	return c.JSON(s.deps.Autopilot.GetConfigJSON())
}

func (s *Server) handleSetAutopilot(c *fiber.Ctx) error {
	var update map[string]any
	if err := c.BodyParser(&update); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
	}
	if err := s.deps.Autopilot.UpdateConfig(update); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(s.deps.Autopilot.GetConfigJSON())
}

func (s *Server) handleAutopilotPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"presets": autopilot.PresetNames()})
}

// handleVideoFeed streams annotated frames as multipart JPEG.
func (s *Server) handleVideoFeed(c *fiber.Ctx) error {
	if s.deps.Stream == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, errDisabled)
	}

	first, err := s.deps.Stream.Latest()
	if err != nil {
		return err
	}
	frames, unsubscribe := s.deps.Stream.Subscribe()

	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary=frame")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		if err := writePart(w, first); err != nil {
			return
		}
		for data := range frames {
			if err := writePart(w, data); err != nil {
				s.logger.Debug("mjpeg viewer gone", "error", err)
				return
			}
		}
	}))
	return nil
}

// writePart writes one multipart JPEG part and flushes it.
func writePart(w *bufio.Writer, jpeg []byte) error {
	if _, err := w.WriteString("--frame\r\nContent-Type: image/jpeg\r\n\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}
