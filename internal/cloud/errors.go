package cloud

import "errors"

// Domain errors for vendor API operations.
var (
	// ErrCertConfig is returned when the MQTT config endpoint fails or the
	// response is missing the certificate URL.
	ErrCertConfig = errors.New("cloud: fetching MQTT config failed")

	// ErrDownloadFailed is returned when the certificate bundle download fails.
	ErrDownloadFailed = errors.New("cloud: certificate bundle download failed")

	// ErrTokenMissing is returned when the client is constructed without an
	// account token.
	ErrTokenMissing = errors.New("cloud: account token is required")
)
