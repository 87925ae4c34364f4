package gemini

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ManagerOption configures optional Manager dependencies at construction
// time.
type ManagerOption func(*Manager)

// WithLogger attaches a zap logger used by every component the Manager
// owns.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithStatusServer attaches an HTTP status surface the Manager starts
// and closes alongside its connections.
func WithStatusServer(s *StatusServer) ManagerOption {
	return func(m *Manager) { m.status = s }
}

// Manager is the lifecycle manager described in spec §4.1: it constructs
// the Publisher and AsyncSubscriber against supplied transport factories,
// exposes start/restart/close, and honors configuration reload.
type Manager struct {
	app Application

	publishFactory   ConnFactory
	subscribeFactory ConnFactory

	logger  *zap.Logger
	metrics *Metrics
	status  *StatusServer

	cfg atomic.Pointer[CacheBusConfig]

	mu            sync.Mutex
	publishConn   PublishConn
	subscribeConn SubscribeConn
	publisher     *Publisher
	subscriber    *AsyncSubscriber
	translator    *Translator
	applier       *Applier
	instanceID    atomic.Pointer[string]
}

// NewManager constructs a Manager. It does not connect; call Start or
// Connect to do so.
func NewManager(app Application, publishFactory, subscribeFactory ConnFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		app:              app,
		publishFactory:   publishFactory,
		subscribeFactory: subscribeFactory,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}

	defaults := DefaultCacheBusConfig()
	m.cfg.Store(&defaults)

	empty := ""
	m.instanceID.Store(&empty)

	return m
}

// Configure re-reads the CacheMessageManager.* keys from v and atomically
// swaps the Manager's configuration. In-flight sends continue to use
// whichever configuration they already read (spec §5).
func (m *Manager) Configure(v *viper.Viper) error {
	cfg, err := LoadCacheBusConfig(v)
	if err != nil {
		return err
	}
	m.cfg.Store(&cfg)
	if m.publisher != nil {
		m.publisher.SetDeliveryMode(cfg.DeliveryMode)
	}
	return nil
}

func (m *Manager) config() CacheBusConfig {
	return *m.cfg.Load()
}

func (m *Manager) currentMaximumRelationSize() int {
	return m.config().MaximumRelationSize
}

func (m *Manager) clientID() string {
	return *m.instanceID.Load()
}

// Start calls Connect using the factories supplied at construction.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.Connect(ctx, m.publishFactory, m.subscribeFactory); err != nil {
		return err
	}
	if m.status != nil {
		if err := m.status.Start(); err != nil {
			return fmt.Errorf("gemini: status server: %w", err)
		}
	}
	return nil
}

// Connect is an idempotent restart (spec §4.1). Any existing publisher or
// subscriber is closed first. Failures at any step fail the whole
// operation and close whatever was opened during this call.
func (m *Manager) Connect(ctx context.Context, publishFactory, subscribeFactory ConnFactory) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publisher != nil {
		m.publisher.Close()
	}
	if m.subscriber != nil {
		m.subscriber.Close()
	}

	publishConn, err := publishFactory.Connect(ctx)
	if err != nil {
		return fmt.Errorf("gemini: connect publish side: %w", err)
	}
	defer func() {
		if err != nil {
			publishConn.Close()
		}
	}()

	pubConn, ok := publishConn.(PublishConn)
	if !ok {
		return fmt.Errorf("gemini: publish connection does not implement PublishConn")
	}

	instanceID := pubConn.ClientID()
	m.instanceID.Store(&instanceID)

	cfg := m.config()

	publisher := NewPublisher(pubConn, CacheTopicDestination, cfg.DeliveryMode, m.logger, m.metrics)
	m.logger.Info("publish connection established", zap.String("instance_id", instanceID))

	subscribeConn, err := subscribeFactory.Connect(ctx)
	if err != nil {
		return fmt.Errorf("gemini: connect subscribe side: %w", err)
	}
	defer func() {
		if err != nil {
			subscribeConn.Close()
		}
	}()

	subConn, ok := subscribeConn.(SubscribeConn)
	if !ok {
		return fmt.Errorf("gemini: subscribe connection does not implement SubscribeConn")
	}

	translator := NewTranslator(publisher, m.clientID, m, m.logger, m.metrics)
	applier := NewApplier(m.app.Store(), m.clientID, m, m.logger, m.metrics)

	subscriber := NewAsyncSubscriber(subConn, CacheTopicDestination, m.logger)
	if err = subscriber.Start(ctx, applier.Handle); err != nil {
		return fmt.Errorf("gemini: start subscriber: %w", err)
	}
	m.logger.Info("subscribe connection established", zap.String("instance_id", subConn.ClientID()))

	m.publishConn = pubConn
	m.subscribeConn = subConn
	m.publisher = publisher
	m.subscriber = subscriber
	m.translator = translator
	m.applier = applier

	if m.metrics != nil {
		m.metrics.Connected.Set(1)
	}

	return nil
}

// Translator returns the send-side listener the host store should
// register with, or nil if the Manager has not connected yet.
func (m *Manager) Translator() *Translator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.translator
}

// Close closes the publisher and subscriber. Safe to call if the Manager
// was never started.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("cache bus manager is closing")

	if m.status != nil {
		m.status.Close(context.Background())
	}

	var firstErr error
	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.subscriber != nil {
		if err := m.subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if m.metrics != nil {
		m.metrics.Connected.Set(0)
	}

	return firstErr
}

// newDefaultMetrics is a convenience for callers that want Prometheus
// instrumentation registered against the default global registry.
func newDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}
