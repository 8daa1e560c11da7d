// Package sender publishes telemetry messages to an MQTT broker with retry
// logic. Messages that cannot be delivered are kept in the local buffer and
// flushed once the broker connection is (re)established.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vitalis-app/telemetry/internal/buffer"
	"github.com/vitalis-app/telemetry/internal/config"
	"github.com/vitalis-app/telemetry/internal/models"
)

const (
	// maxRetries is the maximum number of retry attempts before buffering locally.
	maxRetries = 3

	// baseRetryDelay is the base delay for exponential backoff between retries.
	baseRetryDelay = 2 * time.Second

	// publishTimeout bounds how long a single publish waits for the broker.
	publishTimeout = 10 * time.Second

	// connectTimeout bounds the initial connection attempt.
	connectTimeout = 10 * time.Second

	// disconnectQuiesce is how long Close waits for in-flight work, in milliseconds.
	disconnectQuiesce = 250

	// queueSize bounds the messages waiting for the publishing goroutine.
	queueSize = 256

	// maxIntervalSeconds is the first interval a time.Duration cannot hold.
	maxIntervalSeconds = float64(math.MaxInt64) / float64(time.Second)

	// ControlTopic receives statistics interval changes, in seconds.
	ControlTopic = "set_stats_monitoring"
)

var errPublishTimeout = errors.New("publish timed out")

// mqttClient is the subset of mqtt.Client the sender uses.
type mqttClient interface {
	Connect() mqtt.Token
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// Sender publishes messages to the broker and buffers them locally when the
// broker is unreachable.
type Sender struct {
	client     mqttClient
	cfg        config.BrokerConfig
	logger     *zap.Logger
	buf        *buffer.Buffer
	retryDelay func(attempt int) time.Duration
	queue      chan models.Message

	mu         sync.Mutex
	onInterval func(time.Duration)
	flushing   atomic.Bool
}

// New creates a Sender for the configured broker. The connection is not
// opened until Connect is called.
func New(cfg *config.Config, logger *zap.Logger, buf *buffer.Buffer) *Sender {
	s := newSender(cfg.Broker, logger, buf)

	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = "vitalis-telemetry-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker.URL).
		SetClientID(clientID).
		SetUsername(cfg.Broker.Username).
		SetPassword(cfg.Broker.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(mqtt.Client) { s.onConnected() }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("Broker connection lost", zap.Error(err))
		})

	s.client = mqtt.NewClient(opts)
	return s
}

func newSender(cfg config.BrokerConfig, logger *zap.Logger, buf *buffer.Buffer) *Sender {
	return &Sender{
		cfg:        cfg,
		logger:     logger,
		buf:        buf,
		retryDelay: backoff,
		queue:      make(chan models.Message, queueSize),
	}
}

// Topic joins the topic prefix and a message topic.
func Topic(prefix, name string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// OnIntervalRequest sets the handler for interval changes received on the
// control topic.
func (s *Sender) OnIntervalRequest(fn func(time.Duration)) {
	s.mu.Lock()
	s.onInterval = fn
	s.mu.Unlock()
}

// Connect starts the broker connection. If the broker is not reachable
// within the connect timeout, the client keeps retrying in the background
// and messages are buffered meanwhile.
func (s *Sender) Connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		s.logger.Warn("Broker not reachable yet, retrying in background",
			zap.String("url", s.cfg.URL))
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to broker %s: %w", s.cfg.URL, err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *Sender) Close() {
	s.client.Disconnect(disconnectQuiesce)
}

// Enqueue hands msg to the publishing goroutine without blocking. When the
// queue is full the message goes straight to the buffer.
func (s *Sender) Enqueue(msg models.Message) {
	select {
	case s.queue <- msg:
	default:
		s.logger.Warn("Publish queue full, buffering message", zap.String("topic", msg.Topic))
		s.bufferMessage(msg)
	}
}

// Run publishes queued messages until ctx is cancelled. Messages still
// queued at that point are buffered.
func (s *Sender) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case msg := <-s.queue:
			s.Send(msg)
		}
	}
}

func (s *Sender) drain() {
	for {
		select {
		case msg := <-s.queue:
			s.bufferMessage(msg)
		default:
			return
		}
	}
}

// Send publishes one message. On failure after all retries, or when the
// broker is not connected, the message is buffered locally for later
// transmission.
func (s *Sender) Send(msg models.Message) {
	if !s.client.IsConnectionOpen() {
		s.logger.Debug("Broker not connected, buffering message", zap.String("topic", msg.Topic))
		s.bufferMessage(msg)
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	topic := Topic(s.cfg.TopicPrefix, msg.Topic)

	// Retry loop with exponential backoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay(attempt)
			s.logger.Warn("Retrying publish",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			time.Sleep(delay)
		}

		err := s.publish(topic, payload)
		if err == nil {
			s.logger.Debug("Message published",
				zap.String("topic", topic),
				zap.Uint64("seq", msg.Seq))
			return
		}

		s.logger.Warn("Publish failed",
			zap.String("topic", topic),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	s.logger.Error("All retries exhausted, buffering message", zap.String("topic", topic))
	s.bufferMessage(msg)
}

// publish performs a single publish and waits for the broker.
func (s *Sender) publish(topic string, payload []byte) error {
	token := s.client.Publish(topic, byte(s.cfg.QoS), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	return token.Error()
}

// bufferMessage stores a failed message in the local file buffer.
func (s *Sender) bufferMessage(msg models.Message) {
	if s.buf == nil {
		s.logger.Warn("No buffer available, dropping message", zap.String("topic", msg.Topic))
		return
	}
	if err := s.buf.Store(msg); err != nil {
		s.logger.Error("Failed to buffer message", zap.Error(err))
	}
}

// FlushBuffer attempts to publish all previously buffered messages.
// Concurrent calls are collapsed into the one already running.
func (s *Sender) FlushBuffer() {
	if s.buf == nil || !s.flushing.CompareAndSwap(false, true) {
		return
	}
	defer s.flushing.Store(false)

	if s.buf.Count() == 0 {
		return
	}
	messages, err := s.buf.RetrieveAll()
	if err != nil {
		s.logger.Error("Failed to retrieve buffered messages", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}

	s.logger.Info("Flushing buffered messages", zap.Int("count", len(messages)))
	for _, msg := range messages {
		s.Send(msg)
	}
}

// onConnected runs on every (re)connect.
func (s *Sender) onConnected() {
	s.logger.Info("Connected to broker", zap.String("url", s.cfg.URL))
	go s.subscribeControl()
	go s.FlushBuffer()
}

func (s *Sender) subscribeControl() {
	topic := Topic(s.cfg.TopicPrefix, ControlTopic)
	token := s.client.Subscribe(topic, byte(s.cfg.QoS), func(_ mqtt.Client, m mqtt.Message) {
		s.handleControl(m.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		s.logger.Warn("Subscribe timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		s.logger.Error("Failed to subscribe", zap.String("topic", topic), zap.Error(err))
	}
}

// handleControl parses an interval in seconds and forwards it.
func (s *Sender) handleControl(payload []byte) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil || math.IsNaN(secs) || secs < 0 || secs >= maxIntervalSeconds {
		s.logger.Warn("Ignoring invalid interval request", zap.ByteString("payload", payload))
		return
	}

	s.mu.Lock()
	fn := s.onInterval
	s.mu.Unlock()
	if fn != nil {
		fn(time.Duration(secs * float64(time.Second)))
	}
}

// backoff returns the delay before the given retry attempt.
func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt-1))) * baseRetryDelay
}
