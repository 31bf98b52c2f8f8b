package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// WebDriver speaks the minimal subset of the W3C WebDriver protocol needed to
// obtain a browser from a Selenium grid and release it again.
type WebDriver struct {
	baseURL string
	client  *http.Client
}

func NewWebDriver(hubURL string, client *http.Client) *WebDriver {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebDriver{
		baseURL: strings.TrimRight(hubURL, "/"),
		client:  client,
	}
}

// RemoteSession is a browser held by the grid.
type RemoteSession struct {
	ID             string
	BrowserName    string
	BrowserVersion string

	// CDPURL is the devtools websocket advertised by the grid.
	CDPURL string
}

type capabilitiesRequest struct {
	Capabilities struct {
		AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
	} `json:"capabilities"`
}

type newSessionResponse struct {
	Value struct {
		SessionID    string `json:"sessionId"`
		Capabilities struct {
			BrowserName    string `json:"browserName"`
			BrowserVersion string `json:"browserVersion"`
			CDP            string `json:"se:cdp"`
		} `json:"capabilities"`
	} `json:"value"`
}

type statusResponse struct {
	Value struct {
		Ready   bool   `json:"ready"`
		Message string `json:"message"`
	} `json:"value"`
}

// Error is a WebDriver error payload.
type Error struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("webdriver: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// NewSession asks the grid for a Chrome browser started with args.
func (w *WebDriver) NewSession(ctx context.Context, args []string) (*RemoteSession, error) {
	var req capabilitiesRequest
	req.Capabilities.AlwaysMatch = map[string]interface{}{
		"browserName": "chrome",
		"goog:chromeOptions": map[string]interface{}{
			"args": args,
		},
	}

	var resp newSessionResponse
	if err := w.do(ctx, http.MethodPost, "/session", req, &resp); err != nil {
		return nil, err
	}
	if resp.Value.SessionID == "" {
		return nil, fmt.Errorf("webdriver: no session id in response")
	}
	if resp.Value.Capabilities.CDP == "" {
		return nil, fmt.Errorf("webdriver: session %s does not expose se:cdp", resp.Value.SessionID)
	}

	return &RemoteSession{
		ID:             resp.Value.SessionID,
		BrowserName:    resp.Value.Capabilities.BrowserName,
		BrowserVersion: resp.Value.Capabilities.BrowserVersion,
		CDPURL:         resp.Value.Capabilities.CDP,
	}, nil
}

// DeleteSession releases the browser back to the grid.
func (w *WebDriver) DeleteSession(ctx context.Context, id string) error {
	return w.do(ctx, http.MethodDelete, "/session/"+id, nil, nil)
}

// Status reports whether the grid can accept new sessions.
func (w *WebDriver) Status(ctx context.Context) (bool, string, error) {
	var resp statusResponse
	if err := w.do(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return false, "", err
	}
	return resp.Value.Ready, resp.Value.Message, nil
}

// ErrGridNotReady is returned when the grid reports it cannot accept sessions.
var ErrGridNotReady = errors.New("selenium grid is not ready")

// Start creates a session once the grid reports ready.
func (w *WebDriver) Start(ctx context.Context, args []string) (*RemoteSession, error) {
	ready, msg, err := w.Status(ctx)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, fmt.Errorf("%w: %s", ErrGridNotReady, msg)
	}
	return w.NewSession(ctx, args)
}

func (w *WebDriver) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webdriver %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var payload struct {
			Value Error `json:"value"`
		}
		wdErr := &payload.Value
		if err := json.Unmarshal(data, &payload); err != nil || wdErr.Code == "" {
			wdErr.Code = "unknown error"
			wdErr.Message = strings.TrimSpace(string(data))
		}
		wdErr.StatusCode = resp.StatusCode
		return wdErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
