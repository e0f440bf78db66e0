package main

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrNotFound is returned by LookupDry when no response is stored
var ErrNotFound = errors.New("no response stored under that name")

// TLSConfig holds client TLS settings
type TLSConfig struct {
	Enabled    bool
	SkipVerify bool
	CACertFile string
}

type DroppyClient struct {
	BaseURL    string
	Path       string
	HTTPClient *http.Client
}

type DryRequest struct {
	Name     string `json:"name"`
	Response string `json:"response"`
}

func NewDroppyClient(baseURL, path string) *DroppyClient {
	if path == "" {
		path = defaultResourcePath
	}
	return &DroppyClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Path:    path,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func NewDroppyClientWithTLS(baseURL, path string, tlsConfig *TLSConfig) (*DroppyClient, error) {
	client := NewDroppyClient(baseURL, path)
	if tlsConfig == nil || !tlsConfig.Enabled {
		return client, nil
	}

	clientTLS := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: tlsConfig.SkipVerify, //nolint:gosec // opt-in flag
	}

	if tlsConfig.CACertFile != "" {
		caCert, err := os.ReadFile(tlsConfig.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates found in %s", tlsConfig.CACertFile)
		}
		clientTLS.RootCAs = pool
	}

	client.HTTPClient.Transport = &http.Transport{TLSClientConfig: clientTLS}
	return client, nil
}

func (c *DroppyClient) endpoint() string {
	return c.BaseURL + c.Path
}

// SubmitDry stores response under name
func (c *DroppyClient) SubmitDry(name, response string) error {
	jsonData, err := json.Marshal(DryRequest{Name: name, Response: response})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint(), bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	return nil
}

// LookupDry returns the response stored under name
func (c *DroppyClient) LookupDry(name string) (string, error) {
	target := c.endpoint() + "?" + url.Values{"name": {name}}.Encode()

	resp, err := c.HTTPClient.Get(target)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	return string(body), nil
}

// statusError turns a plain-text error response into an error
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("server error: %d %s", resp.StatusCode, message)
}
