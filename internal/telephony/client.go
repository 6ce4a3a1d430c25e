// Package telephony talks to the Twilio REST API and renders TwiML
// responses for the voice webhooks.
package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxgo-dev/voxgo/pkg/config"
)

const defaultBaseURL = "https://api.twilio.com/2010-04-01"

// Client is a Twilio REST API client.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Twilio client from configuration. Credentials are
// required; BaseURL defaults to the public Twilio API.
func NewClient(cfg config.TelephonyConfig) (*Client, error) {
	if cfg.AccountSID == "" {
		return nil, fmt.Errorf("telephony account SID is required")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("telephony auth token is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// CallResource is the platform's view of a call.
type CallResource struct {
	SID       string `json:"sid"`
	To        string `json:"to"`
	From      string `json:"from"`
	Status    string `json:"status"`
	Direction string `json:"direction"`
	Duration  string `json:"duration"`
}

// APIError is a Twilio REST error payload.
type APIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
}

// Dial places an outbound call whose answer webhook is callbackURL.
// Status callbacks go to the sibling /twilio/status path. Implements
// the call machine's Dialer.
func (c *Client) Dial(ctx context.Context, to, from, callbackURL string) (string, error) {
	data := url.Values{}
	data.Set("To", to)
	data.Set("From", from)
	data.Set("Url", callbackURL)
	if statusURL := siblingStatusURL(callbackURL); statusURL != "" {
		data.Set("StatusCallback", statusURL)
		for _, event := range []string{"initiated", "ringing", "answered", "completed"} {
			data.Add("StatusCallbackEvent", event)
		}
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	var call CallResource
	if err := c.post(ctx, endpoint, data, &call); err != nil {
		return "", err
	}
	return call.SID, nil
}

// GetCall retrieves a call resource by SID.
func (c *Client) GetCall(ctx context.Context, callSID string) (*CallResource, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var call CallResource
	if err := c.do(req, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

// Hangup ends an in-progress call.
func (c *Client) Hangup(ctx context.Context, callSID string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)

	data := url.Values{}
	data.Set("Status", "completed")
	return c.post(ctx, endpoint, data, nil)
}

// siblingStatusURL rewrites the voice webhook path to the status path.
func siblingStatusURL(callbackURL string) string {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, "/twilio/voice") + "/twilio/status"
	return u.String()
}

func (c *Client) post(ctx context.Context, endpoint string, data url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err != nil {
			return fmt.Errorf("twilio error: %s", string(body))
		}
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse twilio response: %w", err)
		}
	}
	return nil
}
