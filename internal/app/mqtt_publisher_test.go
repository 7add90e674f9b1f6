package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_viewer/internal/orientation"
	"github.com/relabs-tech/inertial_viewer/internal/pipeline"
)

func streamWith(samples uint64, pose orientation.Pose, rate float64) pipeline.StreamState {
	a := orientation.NewAttitude(float64(samples)*0.01, orientation.FromEuler(pose))
	return pipeline.StreamState{Latest: &a, Samples: samples, Rate: &rate}
}

func TestMQTTPublisherPublishesNewPoses(t *testing.T) {
	client := &fakeClient{}
	pub := NewMQTTPublisher(client, PublisherTopics{
		PosePlatform: "viewer/pose/platform",
		PoseFused:    "viewer/pose/fused",
		Rates:        "viewer/rates",
	})

	pose := orientation.Pose{Roll: 10, Pitch: -5, Yaw: 30}
	snap := pipeline.Snapshot{
		Session:  "s1",
		Sequence: 1,
		Platform: streamWith(3, pose, 60),
		Fused:    pipeline.StreamState{},
	}
	pub.Publish(snap)
	snap.Sequence = 2
	pub.Publish(snap) // platform unchanged

	platform := client.messages("viewer/pose/platform")
	require.Len(t, platform, 1)
	assert.True(t, platform[0].retained)

	var got orientation.Pose
	require.NoError(t, json.Unmarshal(platform[0].payload, &got))
	assert.InDelta(t, 10, got.Roll, 1e-6)
	assert.InDelta(t, -5, got.Pitch, 1e-6)
	assert.InDelta(t, 30, got.Yaw, 1e-6)

	assert.Empty(t, client.messages("viewer/pose/fused"), "no fused sample yet")

	rates := client.messages("viewer/rates")
	require.Len(t, rates, 2)
	var rm RatesMessage
	require.NoError(t, json.Unmarshal(rates[1].payload, &rm))
	assert.Equal(t, "s1", rm.Session)
	assert.Equal(t, uint64(2), rm.Seq)
	require.NotNil(t, rm.Platform)
	assert.Equal(t, 60.0, *rm.Platform)
	assert.Nil(t, rm.Fused)
}

func TestMQTTPublisherNewSessionRepublishes(t *testing.T) {
	client := &fakeClient{}
	pub := NewMQTTPublisher(client, PublisherTopics{PoseFused: "fused"})

	pub.Publish(pipeline.Snapshot{Session: "a", Fused: streamWith(1, orientation.Pose{}, 100)})
	pub.Publish(pipeline.Snapshot{Session: "b", Fused: streamWith(1, orientation.Pose{}, 100)})
	pub.Publish(pipeline.Snapshot{Session: "b", Fused: streamWith(2, orientation.Pose{}, 100)})

	assert.Len(t, client.messages("fused"), 3)
	assert.Empty(t, client.messages(""), "empty topics are skipped")
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestMQTTPublisherLogsFailedPublish(t *testing.T) {
	buf := captureLog(t)
	client := &fakeClient{token: doneToken{err: errors.New("not connected")}}
	pub := NewMQTTPublisher(client, PublisherTopics{Rates: "viewer/rates"})

	pub.Publish(pipeline.Snapshot{Session: "s1", Sequence: 1})

	assert.Contains(t, buf.String(), "publish error (viewer/rates): not connected")
}

func TestMQTTPublisherDoesNotWaitOnInFlightPublish(t *testing.T) {
	buf := captureLog(t)
	client := &fakeClient{token: pendingToken{done: make(chan struct{})}}
	pub := NewMQTTPublisher(client, PublisherTopics{
		PosePlatform: "viewer/pose/platform",
		Rates:        "viewer/rates",
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for seq := uint64(1); seq <= 30; seq++ {
			pub.Publish(pipeline.Snapshot{Session: "s1", Sequence: seq, Platform: streamWith(seq, orientation.Pose{}, 60)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on an in-flight token")
	}
	assert.Len(t, client.messages("viewer/rates"), 30)
	assert.Len(t, client.messages("viewer/pose/platform"), 30)
	assert.Empty(t, buf.String())
}
