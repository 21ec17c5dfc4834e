package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Default timeouts and limits for vendor API calls.
const (
	defaultRequestTimeout = 15 * time.Second

	// maxBundleSize caps the certificate bundle download. Real bundles are
	// a few kilobytes; anything near this limit is a server fault.
	maxBundleSize = 1 << 20 // 1MB

	// certConfigPath is the MQTT config endpoint, relative to the base URL.
	certConfigPath = "/device/v1/mqtt/config"
)

// Client is a minimal DayBetter vendor API client.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// MQTTConfig is the useful subset of the MQTT config endpoint response.
type MQTTConfig struct {
	// DeviceCertURL is the short-lived download URL for the binary
	// certificate bundle.
	DeviceCertURL string
}

// configEnvelope mirrors the vendor's JSON response shape.
type configEnvelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		DeviceCertURL string `json:"deviceCertUrl"`
	} `json:"data"`
}

// New creates a vendor API client for the given account token.
//
// Parameters:
//   - baseURL: Vendor API base URL (no trailing slash required)
//   - token: Account token from the pairing flow
//
// Returns:
//   - *Client: Ready for use
//   - error: ErrTokenMissing if the token is empty
func New(baseURL, token string) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrTokenMissing
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}, nil
}

// FetchMQTTConfig requests the MQTT connection configuration for this
// account, including the certificate bundle URL.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - MQTTConfig: Parsed configuration
//   - error: ErrCertConfig on transport failure, non-200 status, or a
//     response without a deviceCertUrl
func (c *Client) FetchMQTTConfig(ctx context.Context) (MQTTConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+certConfigPath, strings.NewReader("{}"))
	if err != nil {
		return MQTTConfig{}, fmt.Errorf("%w: building request: %w", ErrCertConfig, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return MQTTConfig{}, fmt.Errorf("%w: %w", ErrCertConfig, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	if resp.StatusCode != http.StatusOK {
		return MQTTConfig{}, fmt.Errorf("%w: unexpected status %d", ErrCertConfig, resp.StatusCode)
	}

	var envelope configEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBundleSize)).Decode(&envelope); err != nil {
		return MQTTConfig{}, fmt.Errorf("%w: decoding response: %w", ErrCertConfig, err)
	}

	if envelope.Data.DeviceCertURL == "" {
		return MQTTConfig{}, fmt.Errorf("%w: response missing deviceCertUrl (code %d, message %q)",
			ErrCertConfig, envelope.Code, envelope.Message)
	}

	return MQTTConfig{DeviceCertURL: envelope.Data.DeviceCertURL}, nil
}

// DownloadBundle fetches the raw binary certificate bundle.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - url: Bundle URL from FetchMQTTConfig
//
// Returns:
//   - []byte: Raw bundle bytes, ready for certs.Parse
//   - error: ErrDownloadFailed on transport failure, non-200 status, or an
//     empty/oversized body
func (c *Client) DownloadBundle(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrDownloadFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrDownloadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrDownloadFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrDownloadFailed)
	}
	if len(data) > maxBundleSize {
		return nil, fmt.Errorf("%w: bundle exceeds %d bytes", ErrDownloadFailed, maxBundleSize)
	}

	return data, nil
}
