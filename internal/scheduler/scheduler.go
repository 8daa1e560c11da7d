// Package scheduler samples the registered telemetry sources periodically and
// hands every sample, wrapped in a sequenced message, to a callback. The
// scheduler does NOT publish anything itself.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalis-app/telemetry/internal/collector"
	"github.com/vitalis-app/telemetry/internal/config"
	"github.com/vitalis-app/telemetry/internal/models"
)

// MonitoringSetTopic carries the new statistics interval, in seconds,
// whenever it changes at runtime.
const MonitoringSetTopic = "on_stats_monitoring_set"

// Topic returns the topic samples of the named source are sent on.
func Topic(source string) string {
	return "on_" + source
}

// Scheduler manages periodic sampling.
type Scheduler struct {
	registry     *collector.Registry
	logger       *zap.Logger
	session      string
	timeout      time.Duration
	infoInterval time.Duration

	mu            sync.Mutex
	statsInterval time.Duration
	changed       chan struct{}

	// seq is only touched by the Start goroutine.
	seq       map[string]uint64
	onMessage func(models.Message)
}

// New creates a Scheduler for the sources in registry.
func New(registry *collector.Registry, cfg *config.Config, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		registry:      registry,
		logger:        logger,
		session:       uuid.NewString(),
		timeout:       cfg.Collection.Timeout.Duration,
		infoInterval:  cfg.Collection.InfoInterval.Duration,
		statsInterval: cfg.Collection.Interval.Duration,
		changed:       make(chan struct{}, 1),
		seq:           make(map[string]uint64),
	}
}

// OnMessage sets the callback that receives every message. It must be set
// before Start.
func (s *Scheduler) OnMessage(fn func(models.Message)) {
	s.onMessage = fn
}

// Session returns the identifier stamped on every message of this run.
func (s *Scheduler) Session() string { return s.session }

// Interval returns the current statistics interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsInterval
}

// SetInterval changes the statistics interval. Zero or a negative value
// disables periodic statistics. Safe to call from any goroutine.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	s.statsInterval = d
	s.mu.Unlock()

	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Start runs the sampling loop until ctx is cancelled. Enabled sources are
// sampled once immediately.
func (s *Scheduler) Start(ctx context.Context) {
	statsSources, infoSources := s.partition()

	stats := newTicker(s.Interval())
	info := newTicker(s.infoInterval)
	defer func() {
		stats.stop()
		info.stop()
	}()

	if stats.enabled() {
		s.sample(ctx, statsSources)
	}
	if info.enabled() {
		s.sample(ctx, infoSources)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stats.c():
			s.sample(ctx, statsSources)
		case <-info.c():
			s.sample(ctx, infoSources)
		case <-s.changed:
			d := s.Interval()
			stats.stop()
			stats = newTicker(d)
			s.logger.Info("Statistics interval changed", zap.Duration("interval", d))
			s.emit(MonitoringSetTopic, d.Seconds())
			if stats.enabled() {
				s.sample(ctx, statsSources)
			}
		}
	}
}

// partition splits the registered sources by the interval that drives them.
func (s *Scheduler) partition() (stats, info []string) {
	for _, src := range s.registry.Sources() {
		if src.Name() == collector.ProcessInfoName {
			info = append(info, src.Name())
		} else {
			stats = append(stats, src.Name())
		}
	}
	return stats, info
}

// sample takes one sample of each named source, each bounded by the
// configured timeout. Failed samples are logged and skipped.
func (s *Scheduler) sample(ctx context.Context, names []string) {
	for _, name := range names {
		sampleCtx, cancel := context.WithTimeout(ctx, s.timeout)
		data, err := s.registry.Collect(sampleCtx, name)
		cancel()
		if err != nil {
			s.logger.Warn("Sampling failed",
				zap.String("source", name),
				zap.String("class", collector.ErrorClass(err)),
				zap.Error(err))
			continue
		}
		if info, ok := data.(models.ProcessInfo); ok && info.DescriptorsErr != nil {
			s.logger.Debug("Descriptor count unavailable",
				zap.String("class", collector.ErrorClass(info.DescriptorsErr)),
				zap.Error(info.DescriptorsErr))
		}
		s.emit(Topic(name), data)
	}
}

func (s *Scheduler) emit(topic string, data interface{}) {
	s.seq[topic]++
	msg, err := models.NewMessage(topic, s.session, s.seq[topic], data)
	if err != nil {
		s.logger.Error("Failed to encode message", zap.String("topic", topic), zap.Error(err))
		return
	}
	s.logger.Debug("Sampled", zap.String("topic", topic), zap.Uint64("seq", msg.Seq))
	if s.onMessage != nil {
		s.onMessage(msg)
	}
}

// ticker is a time.Ticker that may be disabled; a disabled ticker never fires.
type ticker struct {
	t *time.Ticker
}

func newTicker(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	return ticker{t: time.NewTicker(d)}
}

func (t ticker) enabled() bool { return t.t != nil }

func (t ticker) c() <-chan time.Time {
	if t.t == nil {
		return nil
	}
	return t.t.C
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
