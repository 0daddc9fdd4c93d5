package telemetry

import (
	"context"
	"time"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
)

// DefaultInterval is the publish period when the configuration leaves it
// unset.
const DefaultInterval = 60 * time.Second

// tickPeriod is how often the loop wakes to check elapsed time and
// cancellation. Short relative to the interval so shutdown stays prompt.
const tickPeriod = 1 * time.Second

// Reader supplies the readings for one publish cycle.
type Reader interface {
	ReadAll(ctx context.Context) []sensor.Reading
}

// EmitFunc sends one cycle's aggregated readings to the device's outbound
// channel.
type EmitFunc func(readings []sensor.Reading) error

// MetricFunc mirrors a single numeric field to a time-series sink.
type MetricFunc func(sensorID, field string, value float64, ts time.Time)

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher periodically reads all enabled sensors and emits one aggregated
// payload per cycle. History and metric mirroring are optional side
// channels; their failures never stop the loop or block the emit.
type Publisher struct {
	reader   Reader
	emit     EmitFunc
	history  Repository
	metric   MetricFunc
	interval time.Duration
	logger   Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithInterval overrides the publish period.
func WithInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithHistory records every cycle's readings to local storage.
func WithHistory(repo Repository) Option {
	return func(p *Publisher) { p.history = repo }
}

// WithMetrics mirrors numeric fields to a time-series sink.
func WithMetrics(fn MetricFunc) Option {
	return func(p *Publisher) { p.metric = fn }
}

// WithLogger sets the publisher's logger.
func WithLogger(logger Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewPublisher creates a publisher over the given reader and emitter.
func NewPublisher(reader Reader, emit EmitFunc, opts ...Option) *Publisher {
	p := &Publisher{
		reader:   reader,
		emit:     emit,
		interval: DefaultInterval,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the configured publish period.
func (p *Publisher) Interval() time.Duration {
	return p.interval
}

// Run publishes until ctx is cancelled. The first cycle fires after one
// full interval, not immediately. An in-flight cycle completes before Run
// returns.
func (p *Publisher) Run(ctx context.Context) {
	p.logger.Info("telemetry publisher started", "interval", p.interval.String())

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("telemetry publisher stopped")
			return
		case now := <-ticker.C:
			if now.Sub(last) < p.interval {
				continue
			}
			last = now
			p.publishCycle(ctx)
		}
	}
}

// PublishNow runs a single cycle outside the periodic schedule.
func (p *Publisher) PublishNow(ctx context.Context) {
	p.publishCycle(ctx)
}

func (p *Publisher) publishCycle(ctx context.Context) {
	readings := p.reader.ReadAll(ctx)

	// The aggregate goes out even with no enabled sensors, count zero and
	// all; consumers treat it as a heartbeat.
	if err := p.emit(readings); err != nil {
		p.logger.Error("telemetry publish failed", "error", err)
	}
	if len(readings) == 0 {
		return
	}

	if p.history != nil {
		if err := p.history.Record(ctx, readings); err != nil {
			p.logger.Warn("telemetry history write failed", "error", err)
		}
	}

	if p.metric != nil {
		p.mirrorMetrics(readings)
	}
}

// mirrorMetrics forwards every numeric field of every successful reading.
func (p *Publisher) mirrorMetrics(readings []sensor.Reading) {
	for _, reading := range readings {
		if reading.Status != sensor.StatusSuccess {
			continue
		}
		ts := time.Unix(reading.Timestamp, 0).UTC()
		for field, value := range reading.Data {
			if num, ok := asFloat(value); ok {
				p.metric(reading.SensorID, field, num, ts)
			}
		}
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
