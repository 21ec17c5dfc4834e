package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected manager.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNoCertificates is returned when no certificate source (disk files,
	// cached bundle, cloud download) could produce usable credentials.
	ErrNoCertificates = errors.New("mqtt: no usable certificates")

	// ErrBrokerAddress is returned when the broker address from the bundle
	// cannot be parsed.
	ErrBrokerAddress = errors.New("mqtt: invalid broker address")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrShuttingDown is returned when an operation is attempted during shutdown.
	ErrShuttingDown = errors.New("mqtt: shutting down")
)
