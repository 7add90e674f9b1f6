package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/inertial_viewer/internal/pipeline"
)

// Panel geometry matches a 128x64 SSD1306.
const (
	panelWidth  = 128
	panelHeight = 64
	lineHeight  = 13
)

// Panel keeps the latest snapshot and renders it as a small text panel of
// both streams. It is a pipeline.Sink.
type Panel struct {
	mu   sync.RWMutex
	snap pipeline.Snapshot
	have bool
}

// NewPanel returns an empty panel.
func NewPanel() *Panel {
	return &Panel{}
}

// Publish stores s without its histories.
func (p *Panel) Publish(s pipeline.Snapshot) {
	p.mu.Lock()
	p.snap, p.have = s.Compact(), true
	p.mu.Unlock()
}

// Render draws the current state.
func (p *Panel) Render() *image1bit.VerticalLSB {
	p.mu.RLock()
	snap, have := p.snap, p.have
	p.mu.RUnlock()
	return RenderPanel(snap, have)
}

// ServeHTTP writes the panel as a PNG.
func (p *Panel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Render()); err != nil {
		log.Printf("display: png encode error: %v", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// RenderPanel draws one 128x64 frame: a header line and two lines per stream.
func RenderPanel(s pipeline.Snapshot, have bool) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, panelWidth, panelHeight))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	line := func(n int, text string) {
		drawer.Dot = fixed.P(0, lineHeight*(n+1)-2)
		drawer.DrawString(text)
	}

	if !have {
		line(1, "Inertial Viewer")
		line(2, "Waiting...")
		return img
	}

	for i, text := range panelLines(s) {
		line(i, text)
	}
	return img
}

// panelLines formats the snapshot into at most five 18-column lines.
func panelLines(s pipeline.Snapshot) []string {
	lines := []string{fmt.Sprintf("#%d %s", s.Sequence, shortSource(s.Source))}
	lines = append(lines, streamLines("A", s.Platform)...)
	lines = append(lines, streamLines("B", s.Fused)...)
	return lines
}

func streamLines(tag string, st pipeline.StreamState) []string {
	rate := "  --"
	if st.Rate != nil {
		rate = fmt.Sprintf("%4.0f", *st.Rate)
	}
	if st.Latest == nil {
		return []string{fmt.Sprintf("%s %sHz", tag, rate), "  waiting"}
	}
	e := st.Latest.Euler
	return []string{
		fmt.Sprintf("%s %sHz Y%6.1f", tag, rate, e.Yaw),
		fmt.Sprintf(" R%6.1f P%6.1f", e.Roll, e.Pitch),
	}
}

func shortSource(name string) string {
	if len(name) > 12 {
		return name[:12]
	}
	return name
}

// RunDisplay mirrors the panel onto an SSD1306 OLED over I2C until ctx is
// done. An empty bus name opens the first available bus.
func RunDisplay(ctx context.Context, panel *Panel, busName string, interval time.Duration) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("display: failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return fmt.Errorf("display: failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("display: failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Printf("display: initialized on bus %q", busName)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := dev.Draw(dev.Bounds(), panel.Render(), image.Point{}); err != nil {
				log.Printf("display: error updating display: %v", err)
			}
		}
	}
}
