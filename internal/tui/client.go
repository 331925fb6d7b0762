package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/NivraSD/SignalDesk-sub028/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the SignalDesk API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultClientTimeout},
	}
}

// Health is the part of GET /health the dashboard shows.
type Health struct {
	OK         bool   `json:"ok"`
	DB         string `json:"db"`
	Version    string `json:"version"`
	Dispatcher *struct {
		Active    int `json:"active"`
		GlobalMax int `json:"global_max"`
	} `json:"dispatcher,omitempty"`
}

// ListSignals fetches queued signals, newest first.
func (c *Client) ListSignals(status string, limit int) ([]models.Signal, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out struct {
		Signals []models.Signal `json:"signals"`
	}
	if err := c.get("/signals?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Signals, nil
}

// Acknowledge marks a pending signal handled.
func (c *Client) Acknowledge(id string) error {
	resp, err := c.httpClient.Post(c.baseURL+"/signals/"+url.PathEscape(id)+"/ack", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkResponse(resp)
}

// CheckHealth reports daemon health. A non-200 status still decodes the body.
func (c *Client) CheckHealth() (*Health, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) get(path string, v any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var er struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &er) == nil && er.Error.Code != "" {
		return fmt.Errorf("API error (%s): %s", er.Error.Code, er.Error.Message)
	}
	return fmt.Errorf("API error: %s", string(body))
}
