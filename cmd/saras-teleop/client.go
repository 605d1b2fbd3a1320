package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Preet3627/Saras-AI/internal/httpc"
)

// result is the reply of /api/command and /api/mode.
type result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

// event is one /ws/status message. Only the fields shown on screen are decoded.
type event struct {
	Type   string `json:"type"`
	Status *struct {
		Mode     string   `json:"mode"`
		Distance *float64 `json:"distance_cm"`
		Running  bool     `json:"running"`
		Motor    struct {
			Maneuver string  `json:"maneuver"`
			Speed    float64 `json:"speed"`
		} `json:"motor"`
	} `json:"status"`
	Transition *struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Source string `json:"source"`
		Reason string `json:"reason"`
	} `json:"transition"`
}

// client talks to a running Saras service.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: httpc.NewClient(5 * time.Second),
	}
}

// command sends one control command. A rejected command is returned as an
// error carrying the service's message.
func (c *client) command(ctx context.Context, name string, speed float64) (result, error) {
	body := map[string]any{"command": name}
	if speed > 0 {
		body["speed"] = speed
	}
	return c.post(ctx, "/api/command", body)
}

// setMode switches the autopilot mode.
func (c *client) setMode(ctx context.Context, mode string) (result, error) {
	return c.post(ctx, "/api/mode", map[string]string{"mode": mode})
}

func (c *client) post(ctx context.Context, path string, in any) (result, error) {
	var out result
	err := httpc.DoJSON(ctx, c.http, http.MethodPost, c.base+path, in, &out)
	if err != nil && out.Message != "" {
		return out, errors.New(out.Message)
	}
	return out, err
}

// statusURL is the websocket address of the status feed.
func (c *client) statusURL() (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/status"
	return u.String(), nil
}

// watch streams status events into out until ctx ends, reconnecting after
// failures. Connection problems are reported on errs.
func (c *client) watch(ctx context.Context, out chan<- event, errs chan<- error) {
	addr, err := c.statusURL()
	if err != nil {
		errs <- err
		return
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	backoff := time.Second
	for ctx.Err() == nil {
		conn, _, err := dialer.DialContext(ctx, addr, nil)
		if err != nil {
			select {
			case errs <- fmt.Errorf("status feed: %w", err):
			default:
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 10*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		c.read(ctx, conn, out)
	}
}

func (c *client) read(ctx context.Context, conn *websocket.Conn, out chan<- event) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}
