package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
)

type stubReader struct {
	readings []sensor.Reading
}

func (r stubReader) ReadAll(_ context.Context) []sensor.Reading {
	return r.readings
}

type recordingHistory struct {
	mu     sync.Mutex
	cycles [][]sensor.Reading
	err    error
}

func (h *recordingHistory) Record(_ context.Context, readings []sensor.Reading) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cycles = append(h.cycles, readings)
	return h.err
}

func (h *recordingHistory) Latest(_ context.Context, _ int) ([]Entry, error) {
	return nil, nil
}

func sampleReadings() []sensor.Reading {
	return []sensor.Reading{
		{
			SensorID:   "temp1",
			SensorType: "vcgen",
			Data:       map[string]any{"temperature": 51.0, "unit": "celsius"},
			Timestamp:  time.Now().Unix(),
			Status:     sensor.StatusSuccess,
		},
		{
			SensorID:   "broken1",
			SensorType: "dht11",
			Data:       map[string]any{"temperature": 999.0},
			Timestamp:  time.Now().Unix(),
			Status:     sensor.StatusError,
			Error:      "checksum mismatch",
		},
	}
}

func TestPublisher_PublishNow(t *testing.T) {
	var emitted [][]sensor.Reading
	history := &recordingHistory{}

	var metrics []string
	p := NewPublisher(
		stubReader{readings: sampleReadings()},
		func(readings []sensor.Reading) error {
			emitted = append(emitted, readings)
			return nil
		},
		WithHistory(history),
		WithMetrics(func(sensorID, field string, value float64, _ time.Time) {
			metrics = append(metrics, sensorID+"."+field)
		}),
	)

	p.PublishNow(context.Background())

	if len(emitted) != 1 || len(emitted[0]) != 2 {
		t.Fatalf("expected one emit of 2 readings, got %v", emitted)
	}
	if len(history.cycles) != 1 {
		t.Fatalf("expected one history record, got %d", len(history.cycles))
	}

	// Only numeric fields of successful readings are mirrored.
	if len(metrics) != 1 || metrics[0] != "temp1.temperature" {
		t.Errorf("unexpected metrics: %v", metrics)
	}
}

func TestPublisher_EmptyCycleStillEmits(t *testing.T) {
	var emitted [][]sensor.Reading
	history := &recordingHistory{}

	p := NewPublisher(stubReader{}, func(readings []sensor.Reading) error {
		emitted = append(emitted, readings)
		return nil
	}, WithHistory(history))

	p.PublishNow(context.Background())

	// An empty aggregate is still published, only the side channels skip.
	if len(emitted) != 1 || len(emitted[0]) != 0 {
		t.Fatalf("expected one empty emit, got %v", emitted)
	}
	if len(history.cycles) != 0 {
		t.Error("no enabled sensors means no history record")
	}
}

func TestPublisher_SideChannelFailuresDoNotStopEmit(t *testing.T) {
	emitCalls := 0
	history := &recordingHistory{err: errors.New("disk full")}

	p := NewPublisher(stubReader{readings: sampleReadings()}, func([]sensor.Reading) error {
		emitCalls++
		return nil
	}, WithHistory(history))

	p.PublishNow(context.Background())
	p.PublishNow(context.Background())

	if emitCalls != 2 {
		t.Errorf("history failure must not stop publishing, emits=%d", emitCalls)
	}
}

func TestPublisher_IntervalOption(t *testing.T) {
	p := NewPublisher(stubReader{}, func([]sensor.Reading) error { return nil })
	if p.Interval() != DefaultInterval {
		t.Errorf("expected default interval, got %v", p.Interval())
	}

	p = NewPublisher(stubReader{}, func([]sensor.Reading) error { return nil },
		WithInterval(5*time.Second))
	if p.Interval() != 5*time.Second {
		t.Errorf("expected 5s interval, got %v", p.Interval())
	}

	// Non-positive overrides are ignored.
	p = NewPublisher(stubReader{}, func([]sensor.Reading) error { return nil },
		WithInterval(-1))
	if p.Interval() != DefaultInterval {
		t.Errorf("negative interval must be ignored, got %v", p.Interval())
	}
}

func TestPublisher_RunStopsOnCancel(t *testing.T) {
	p := NewPublisher(stubReader{}, func([]sensor.Reading) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
