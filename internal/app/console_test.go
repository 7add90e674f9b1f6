package app

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_viewer/internal/orientation"
	"github.com/relabs-tech/inertial_viewer/internal/pipeline"
)

func TestConsoleSinkRateLimits(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(log.New(&buf, "", 0), time.Second)
	now := time.Unix(1000, 0)
	sink.now = func() time.Time { return now }

	snap := pipeline.Snapshot{
		Sequence: 7,
		Source:   "game_rotation",
		Platform: streamWith(2, orientation.Pose{Roll: 1.5}, 100),
	}

	sink.Publish(snap)
	now = now.Add(500 * time.Millisecond)
	sink.Publish(snap)
	now = now.Add(600 * time.Millisecond)
	sink.Publish(snap)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "viewer: #7 game_rotation")
	assert.Contains(t, lines[0], "[A] ROLL=  1.50")
	assert.Contains(t, lines[0], "100.0Hz")
	assert.Contains(t, lines[0], "[B] waiting --")
}

func TestConsoleMQTTLines(t *testing.T) {
	line, err := poseLine("[PLAT]")([]byte(`{"roll":1,"pitch":2,"yaw":3}`))
	require.NoError(t, err)
	assert.Equal(t, "[PLAT] ROLL=  1.00  PITCH=  2.00  YAW=  3.00", line)

	_, err = poseLine("[FUSE]")([]byte(`not json`))
	assert.Error(t, err)

	line, err = ratesLine([]byte(`{"session":"s","seq":9,"platform_hz":99.5,"fused_hz":null}`))
	require.NoError(t, err)
	assert.Equal(t, "[RATE] A=99.5Hz B=-- seq=9", line)
}
