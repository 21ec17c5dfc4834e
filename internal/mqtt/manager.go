package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/daybetter-bridge/internal/certs"
	"github.com/nerrad567/daybetter-bridge/internal/cloud"
	"github.com/nerrad567/daybetter-bridge/internal/infrastructure/config"
)

// Certificate sources, in priority order.
const (
	sourceDisk  = "disk"
	sourceStore = "store"
	sourceCloud = "cloud"
)

// MessageHandler is the callback signature for received device messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// They should not block for extended periods.
//
// Returns:
//   - bool: false if the message was dropped (malformed, unknown type)
type MessageHandler func(topic string, payload []byte) bool

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// BundleStore is the local cache of raw certificate bundles.
// Satisfied by store.Store.
type BundleStore interface {
	LoadBundle(ctx context.Context, accountID string) ([]byte, time.Time, error)
	SaveBundle(ctx context.Context, accountID string, bundle []byte) error
}

// CloudClient downloads certificate bundles from the vendor API.
// Satisfied by cloud.Client.
type CloudClient interface {
	FetchMQTTConfig(ctx context.Context) (cloud.MQTTConfig, error)
	DownloadBundle(ctx context.Context, url string) ([]byte, error)
}

// ConnectionRecorder receives connection state transitions for telemetry.
// Satisfied by influxdb.Client.
type ConnectionRecorder interface {
	WriteConnectionEvent(state string, attempt int)
}

// transport is the subset of the paho client the manager drives.
// Factored out so tests can run the full lifecycle without a broker.
type transport interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	IsConnected() bool
}

// Deps carries the manager's collaborators. Store, Cloud, Logger and
// Telemetry are optional; a nil Store or Cloud simply removes that
// certificate source from the fallback chain.
type Deps struct {
	Store     BundleStore
	Cloud     CloudClient
	Handler   MessageHandler
	Logger    Logger
	Telemetry ConnectionRecorder
}

// Manager owns one mutually-authenticated broker connection.
//
// It acquires certificates (disk files, then cached bundle, then cloud
// download), connects over TLS, subscribes to the account's device
// update topic, and supervises the connection: a background probe
// detects silent drops and a single bounded reconnect loop restores the
// link. Once the attempt budget is exhausted the manager stays
// disconnected until the process restarts.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Connect must complete before Publish is used.
type Manager struct {
	cfg       config.MQTTConfig
	accountID string

	store     BundleStore
	cloud     CloudClient
	handler   MessageHandler
	logger    Logger
	telemetry ConnectionRecorder

	// newTransport builds the underlying client; replaced in tests.
	newTransport func(opts *pahomqtt.ClientOptions) transport

	// client and clientID are set once during Connect, before any
	// supervisor goroutine starts, and never reassigned.
	client   transport
	clientID string

	state        atomic.Int32
	reconnecting atomic.Bool

	// shutdownMu orders supervisor goroutine starts against the shutdown
	// channel closing, so wg.Add never races the final wg.Wait.
	shutdownMu sync.Mutex
	shutdown   chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// New creates a Manager for the given account.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - accountID: Account owning the certificate bundle
//   - deps: Collaborators (see Deps)
//
// Returns:
//   - *Manager: Ready for Connect
func New(cfg config.MQTTConfig, accountID string, deps Deps) *Manager {
	return &Manager{
		cfg:       cfg,
		accountID: accountID,
		store:     deps.Store,
		cloud:     deps.Cloud,
		handler:   deps.Handler,
		logger:    deps.Logger,
		telemetry: deps.Telemetry,
		newTransport: func(opts *pahomqtt.ClientOptions) transport {
			return pahomqtt.NewClient(opts)
		},
		shutdown: make(chan struct{}),
	}
}

// State returns the current connection lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// ClientID returns the client ID from the certificate bundle.
// Empty until Connect succeeds.
func (m *Manager) ClientID() string {
	return m.clientID
}

// IsConnected reports whether the broker link is up.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected && m.client != nil && m.client.IsConnected()
}

// Connect acquires certificates, establishes the TLS connection, and
// starts connection supervision.
//
// Certificate sources are tried in priority order:
//  1. Materialised files already on disk (certs_dir)
//  2. Raw bundle cached in the local store
//  3. Fresh download from the vendor cloud (cached on success)
//
// Parameters:
//   - ctx: Context for the certificate acquisition phase
//
// Returns:
//   - error: ErrNoCertificates if no source yields usable credentials,
//     ErrConnectionFailed if the broker connection fails
func (m *Manager) Connect(ctx context.Context) error {
	m.setState(StateConnecting)
	m.recordEvent(StateConnecting, 0)

	fs, source, err := m.ensureCertificates(ctx)
	if err != nil {
		m.setState(StateDisconnected)
		return err
	}

	clientID, err := fs.ReadClientID()
	if err != nil {
		m.setState(StateDisconnected)
		return fmt.Errorf("%w: %w", ErrNoCertificates, err)
	}

	addr, err := fs.ReadBrokerAddress()
	if err != nil {
		m.setState(StateDisconnected)
		return fmt.Errorf("%w: %w", ErrNoCertificates, err)
	}

	host, port, err := splitBrokerAddress(addr)
	if err != nil {
		m.setState(StateDisconnected)
		return err
	}

	// Config override for test brokers
	if m.cfg.Host != "" {
		host = m.cfg.Host
	}
	if m.cfg.Port != 0 {
		port = m.cfg.Port
	}

	tlsConfig, err := certs.TLSConfig(fs)
	if err != nil {
		m.setState(StateDisconnected)
		return fmt.Errorf("%w: %w", ErrNoCertificates, err)
	}

	m.info("connecting to broker",
		"host", host,
		"port", port,
		"client_id", clientID,
		"cert_source", source,
	)

	opts := buildClientOptions(host, port, clientID, tlsConfig)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		m.handleConnectionLost(err)
	})

	m.clientID = clientID
	m.client = m.newTransport(opts)

	if err := m.connectTransport(); err != nil {
		m.setState(StateDisconnected)
		return err
	}

	if err := m.subscribeUpdates(); err != nil {
		m.client.Disconnect(defaultDisconnectQuiesce)
		m.setState(StateDisconnected)
		return err
	}

	m.setState(StateConnected)
	m.recordEvent(StateConnected, 0)
	m.info("connected", "client_id", clientID)

	m.wg.Add(1)
	go m.healthLoop()

	return nil
}

// connectTransport runs one connection attempt against the broker.
func (m *Manager) connectTransport() error {
	token := m.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// subscribeUpdates subscribes to the account's device update topic.
func (m *Manager) subscribeUpdates() error {
	topic := Topics{}.DeviceUpdates(m.clientID)
	token := m.client.Subscribe(topic, byte(m.cfg.QoS), m.pahoHandler())
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout subscribing to %s", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	m.debug("subscribed", "topic", topic)
	return nil
}

// ensureCertificates walks the certificate source chain and returns the
// first usable file set.
func (m *Manager) ensureCertificates(ctx context.Context) (certs.FileSet, string, error) {
	// 1. Files already materialised on disk
	if m.cfg.CertsDir != "" {
		if fs, err := certs.LookupFileSet(m.cfg.CertsDir); err == nil {
			return fs, sourceDisk, nil
		}
	}

	// 2. Bundle cached in the local store
	if m.store != nil {
		raw, fetchedAt, err := m.store.LoadBundle(ctx, m.accountID)
		if err == nil {
			fs, mErr := m.materialize(raw)
			if mErr == nil {
				m.debug("using cached bundle", "fetched_at", fetchedAt)
				return fs, sourceStore, nil
			}
			m.warn("cached bundle unusable, falling back to cloud", "error", mErr)
		}
	}

	// 3. Fresh download from the vendor cloud
	if m.cloud != nil {
		fs, err := m.downloadAndMaterialize(ctx)
		if err != nil {
			return certs.FileSet{}, "", err
		}
		return fs, sourceCloud, nil
	}

	return certs.FileSet{}, "", fmt.Errorf("%w: all sources exhausted", ErrNoCertificates)
}

// downloadAndMaterialize fetches a fresh bundle, caches it, and writes
// the credential files.
func (m *Manager) downloadAndMaterialize(ctx context.Context) (certs.FileSet, error) {
	mqttCfg, err := m.cloud.FetchMQTTConfig(ctx)
	if err != nil {
		return certs.FileSet{}, fmt.Errorf("%w: %w", ErrNoCertificates, err)
	}

	raw, err := m.cloud.DownloadBundle(ctx, mqttCfg.DeviceCertURL)
	if err != nil {
		return certs.FileSet{}, fmt.Errorf("%w: %w", ErrNoCertificates, err)
	}

	fs, err := m.materialize(raw)
	if err != nil {
		return certs.FileSet{}, err
	}

	// Cache for the next run; a failed write is not fatal.
	if m.store != nil {
		if err := m.store.SaveBundle(ctx, m.accountID, raw); err != nil {
			m.warn("failed to cache downloaded bundle", "error", err)
		}
	}

	m.info("downloaded fresh certificate bundle")
	return fs, nil
}

// materialize parses raw bundle bytes and writes the credential files.
func (m *Manager) materialize(raw []byte) (certs.FileSet, error) {
	bundle, err := certs.Parse(raw)
	if err != nil {
		return certs.FileSet{}, fmt.Errorf("%w: %w", ErrNoCertificates, err)
	}

	fs, err := certs.Materialize(bundle, m.cfg.CertsDir)
	if err != nil {
		return certs.FileSet{}, fmt.Errorf("%w: %w", ErrNoCertificates, err)
	}
	return fs, nil
}

// pahoHandler wraps the message handler with panic recovery.
func (m *Manager) pahoHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				m.error("message handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		if m.handler == nil {
			return
		}
		if !m.handler(msg.Topic(), msg.Payload()) {
			m.debug("message dropped", "topic", msg.Topic())
		}
	}
}

// handleConnectionLost reacts to an unexpected broker disconnect.
// During shutdown the loss is expected and ignored.
func (m *Manager) handleConnectionLost(err error) {
	if m.State() == StateShuttingDown {
		m.debug("connection closed during shutdown")
		return
	}

	m.warn("connection lost", "error", err)
	m.triggerReconnect()
}

// triggerReconnect starts the reconnect loop unless one is already
// running. At most one loop exists at any time.
func (m *Manager) triggerReconnect() {
	if !m.reconnecting.CompareAndSwap(false, true) {
		return
	}

	m.shutdownMu.Lock()
	select {
	case <-m.shutdown:
		m.shutdownMu.Unlock()
		m.reconnecting.Store(false)
		return
	default:
	}
	m.wg.Add(1)
	m.shutdownMu.Unlock()

	go m.reconnectLoop()
}

// reconnectLoop tries to restore the broker link with exponential
// backoff. It gives up permanently after the configured attempt budget.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()
	defer m.reconnecting.Store(false)

	maxAttempts := m.cfg.Reconnect.MaxAttempts
	maxDelay := m.cfg.GetReconnectMaxDelay()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if m.State() == StateShuttingDown {
			return
		}

		m.setState(StateReconnecting)
		m.recordEvent(StateReconnecting, attempt)

		delay := backoffDelay(attempt, maxDelay)
		m.info("reconnecting", "attempt", attempt, "max_attempts", maxAttempts, "delay", delay)

		select {
		case <-m.shutdown:
			return
		case <-time.After(delay):
		}

		if m.State() == StateShuttingDown {
			return
		}

		if err := m.connectTransport(); err != nil {
			m.warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		if err := m.subscribeUpdates(); err != nil {
			m.warn("resubscribe failed", "attempt", attempt, "error", err)
			m.client.Disconnect(defaultDisconnectQuiesce)
			continue
		}

		m.setState(StateConnected)
		m.recordEvent(StateConnected, attempt)
		m.info("reconnected", "attempt", attempt)
		return
	}

	// Budget exhausted: stay offline until the process restarts.
	m.setState(StateDisconnected)
	m.recordEvent(StateDisconnected, maxAttempts)
	m.error("reconnect attempts exhausted, staying offline until restart",
		"attempts", maxAttempts,
	)
}

// healthLoop periodically probes the connection and triggers a
// reconnect when the link dropped without a connection-lost callback.
func (m *Manager) healthLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.GetHealthCheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-m.shutdown:
			return
		case <-ticker.C:
			if m.State() == StateConnected && !m.client.IsConnected() {
				m.warn("health check found dead connection")
				m.triggerReconnect()
			}
		}
	}
}

// HealthCheck verifies the broker connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (m *Manager) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !m.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to
//   - payload: The message payload (typically JSON, max 1MB)
//   - retained: Whether the broker should retain the message
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (m *Manager) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	switch m.State() {
	case StateShuttingDown:
		return ErrShuttingDown
	case StateConnected:
	default:
		return ErrNotConnected
	}

	token := m.client.Publish(topic, byte(m.cfg.QoS), retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishControl sends a control command on this client's control topic.
//
// This is the publish path for device commands:
//
//	m.PublishControl([]byte(`{"deviceName":"lamp","type":1,"on":true}`))
func (m *Manager) PublishControl(payload []byte) error {
	if m.clientID == "" {
		return ErrNotConnected
	}
	return m.Publish(Topics{}.DeviceControl(m.clientID), payload, false)
}

// Disconnect shuts the manager down gracefully.
//
// The state moves to ShuttingDown before the network connection closes,
// so the connection-lost callback observed during teardown never
// triggers a reconnect. Safe to call more than once.
func (m *Manager) Disconnect() error {
	m.closeOnce.Do(func() {
		m.setState(StateShuttingDown)
		m.recordEvent(StateShuttingDown, 0)

		m.shutdownMu.Lock()
		close(m.shutdown)
		m.shutdownMu.Unlock()

		if m.client != nil && m.client.IsConnected() {
			m.client.Disconnect(defaultDisconnectQuiesce)
		}

		// Wait for the health and reconnect loops to exit.
		m.wg.Wait()

		m.setState(StateDisconnected)
		m.info("disconnected")
	})
	return nil
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

func (m *Manager) recordEvent(s State, attempt int) {
	if m.telemetry != nil {
		m.telemetry.WriteConnectionEvent(s.String(), attempt)
	}
}

func (m *Manager) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

func (m *Manager) info(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}

func (m *Manager) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

func (m *Manager) error(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Error(msg, args...)
	}
}
