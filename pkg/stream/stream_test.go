package stream

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/Preet3627/Saras-AI/internal/log"
	"github.com/Preet3627/Saras-AI/pkg/camera"
	"github.com/Preet3627/Saras-AI/pkg/detection"
	"github.com/Preet3627/Saras-AI/pkg/state"
)

type fixedFrames struct{ frame *camera.Frame }

func (f fixedFrames) ReadFrame() (*camera.Frame, bool) {
	if f.frame == nil {
		return nil, false
	}
	return f.frame.Clone(), true
}

func grayFrame(w, h int) *camera.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return &camera.Frame{Img: img, Seq: 1, At: time.Now()}
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	return img
}

func TestRender_ColorBarsWithoutFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 160, 120
	b := New(cfg, nil, nil, WithLogger(log.Discard()))

	data, err := b.Render()
	if err != nil {
		t.Fatal(err)
	}
	if got := decode(t, data).Bounds(); got.Dx() != 160 || got.Dy() != 120 {
		t.Errorf("bounds = %v", got)
	}
	again, _ := b.Render()
	if &again[0] != &data[0] {
		t.Error("colour bars should be rendered once")
	}
	if b.Rendered() != 0 {
		t.Errorf("rendered = %d", b.Rendered())
	}
}

func TestRender_DrawsDetectionsWithoutTouchingSource(t *testing.T) {
	frame := grayFrame(64, 48)
	st := state.New()
	st.PublishDetections([]detection.Detection{
		{Label: "knife", Box: image.Rect(10, 10, 40, 40), Confidence: 0.9},
	}, 64)

	b := New(DefaultConfig(), fixedFrames{frame}, st, WithLogger(log.Discard()))
	b.Hazards = func() []string { return []string{"knife"} }
	b.Quality = func() int { return 100 }

	data, err := b.Render()
	if err != nil {
		t.Fatal(err)
	}
	r, g, _, _ := decode(t, data).At(10, 25).RGBA()
	if r>>8 < 180 || g>>8 > 90 {
		t.Errorf("hazard box edge should be red, got r=%d g=%d", r>>8, g>>8)
	}
	if frame.Img.RGBAAt(10, 25) != (color.RGBA{128, 128, 128, 128}) {
		t.Error("source frame was modified")
	}
	if b.Rendered() != 1 {
		t.Errorf("rendered = %d", b.Rendered())
	}
}

func TestTick_SkipsWithoutClients(t *testing.T) {
	b := New(DefaultConfig(), fixedFrames{grayFrame(32, 24)}, nil, WithLogger(log.Discard()))
	if b.Tick() {
		t.Error("Tick should skip with no clients")
	}
	if b.Rendered() != 0 {
		t.Error("nothing should be rendered")
	}
}

func TestTick_FanOutAndSlowClient(t *testing.T) {
	b := New(DefaultConfig(), fixedFrames{grayFrame(32, 24)}, nil, WithLogger(log.Discard()))
	fast, unsubFast := b.Subscribe()
	slow, unsubSlow := b.Subscribe()
	defer unsubSlow()

	var sent int
	b.OnFrame = func(size, clients int) {
		sent++
		if clients != 2 || size == 0 {
			t.Errorf("OnFrame(%d, %d)", size, clients)
		}
	}

	for i := 0; i < 4; i++ {
		if !b.Tick() {
			t.Fatal("Tick should broadcast")
		}
		<-fast
	}

	if len(slow) != 2 {
		t.Errorf("slow buffer = %d, want 2", len(slow))
	}
	if b.Skipped() != 2 {
		t.Errorf("skipped = %d, want 2", b.Skipped())
	}
	if sent != 4 {
		t.Errorf("sent = %d", sent)
	}

	unsubFast()
	unsubFast()
	if _, ok := <-fast; ok {
		t.Error("fast channel should be closed")
	}
	if b.Clients() != 1 {
		t.Errorf("clients = %d", b.Clients())
	}
}

func TestLatest(t *testing.T) {
	b := New(DefaultConfig(), fixedFrames{grayFrame(32, 24)}, nil, WithLogger(log.Discard()))
	first, err := b.Latest()
	if err != nil || len(first) == 0 {
		t.Fatalf("Latest = %d bytes, %v", len(first), err)
	}

	ch, unsub := b.Subscribe()
	defer unsub()
	b.Tick()
	sent := <-ch
	latest, _ := b.Latest()
	if &latest[0] != &sent[0] {
		t.Error("Latest should return the last broadcast frame")
	}
}

func TestRun_ClosesSubscribersOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = time.Millisecond
	b := New(cfg, nil, nil, WithLogger(log.Discard()))
	ch, unsub := b.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	select {
	case data := <-ch:
		if len(data) == 0 {
			t.Error("empty frame")
		}
	case <-time.After(time.Second):
		t.Fatal("no frame broadcast")
	}

	cancel()
	<-done
	for range ch {
	}
	unsub()
	if b.Clients() != 0 {
		t.Errorf("clients = %d", b.Clients())
	}
}
