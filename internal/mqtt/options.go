package mqtt

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a connection.
	// DayBetter brokers sit behind the vendor's cloud and can be slow to
	// complete the TLS handshake.
	defaultConnectTimeout = 60 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish and
	// subscribe acknowledgments.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// defaultBrokerPort is the mutual-TLS MQTT port used when the bundle's
	// broker address carries no explicit port.
	defaultBrokerPort = 8883

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// maxPayloadSize caps outgoing MQTT payloads (1MB).
	maxPayloadSize = 1 << 20
)

// splitBrokerAddress parses the broker address from a certificate bundle
// into host and port. Addresses without an explicit port default to 8883.
func splitBrokerAddress(addr string) (string, int, error) {
	if addr == "" {
		return "", 0, fmt.Errorf("%w: empty address", ErrBrokerAddress)
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port in the address; use the TLS default.
		return addr, defaultBrokerPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%w: bad port in %q", ErrBrokerAddress, addr)
	}
	return host, port, nil
}

// buildClientOptions creates paho MQTT options for a broker connection.
//
// This configures:
//   - Broker URL (always ssl://, DayBetter brokers require mutual TLS)
//   - Client ID from the certificate bundle
//   - Client certificate and CA pool
//   - Connection timeout and keepalive
//
// Automatic reconnection is deliberately disabled: the manager runs its
// own supervised reconnect loop with a bounded attempt budget.
func buildClientOptions(host string, port int, clientID string, tlsConfig *tls.Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(fmt.Sprintf("ssl://%s:%d", host, port))
	opts.SetClientID(clientID)
	opts.SetTLSConfig(tlsConfig)

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// Reconnection is owned by the manager, not the library
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	return opts
}

// backoffDelay returns the wait before the given reconnect attempt.
// Attempt n waits 2^n seconds, capped at maxDelay.
func backoffDelay(attempt int, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Cap the shift to avoid overflow on absurd attempt numbers.
	const maxShift = 30
	if attempt > maxShift {
		attempt = maxShift
	}

	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
