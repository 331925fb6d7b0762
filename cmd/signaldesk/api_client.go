package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/NivraSD/SignalDesk-sub028/internal/controlplane"
)

// DefaultClientTimeout is the default timeout for API requests. It covers a
// full coordinated_analysis round trip.
const DefaultClientTimeout = 60 * time.Second

// apiClient is the shared HTTP client with timeout.
var apiClient = &http.Client{
	Timeout: DefaultClientTimeout,
}

// apiGet performs a GET request to the API.
func apiGet(path string) ([]byte, error) {
	resp, err := apiClient.Get(apiAddr + path)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	return readResponse(resp)
}

// apiPost performs a POST request with a raw JSON body.
func apiPost(path string, body []byte) ([]byte, error) {
	resp, err := apiClient.Post(apiAddr+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	return readResponse(resp)
}

func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var er controlplane.ErrorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Code != "" {
			return nil, fmt.Errorf("API error (%d %s): %s", resp.StatusCode, er.Error.Code, er.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// CheckHealth checks if the daemon is healthy and returns the health response.
// The parsed payload is returned alongside the error on non-200 responses.
func CheckHealth() (*controlplane.HealthResponse, error) {
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiAddr + "/health")
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var health controlplane.HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &health, fmt.Errorf("health check failed (status %d): %s", resp.StatusCode, string(body))
	}
	return &health, nil
}

func printJSON(data []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}
