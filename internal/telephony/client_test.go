package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxgo-dev/voxgo/pkg/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.TelephonyConfig{
		AccountSID: "AC-test",
		AuthToken:  "token-test",
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.TelephonyConfig{AuthToken: "t"})
	assert.Error(t, err)

	_, err = NewClient(config.TelephonyConfig{AccountSID: "AC"})
	assert.Error(t, err)
}

func TestDial(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Accounts/AC-test/Calls.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC-test", user)
		assert.Equal(t, "token-test", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550200", r.PostFormValue("To"))
		assert.Equal(t, "+15550100", r.PostFormValue("From"))
		assert.Equal(t, "https://voxgo.example.com/twilio/voice", r.PostFormValue("Url"))
		assert.Equal(t, "https://voxgo.example.com/twilio/status", r.PostFormValue("StatusCallback"))
		assert.Equal(t, []string{"initiated", "ringing", "answered", "completed"}, r.PostForm["StatusCallbackEvent"])

		_ = json.NewEncoder(w).Encode(CallResource{SID: "CA789", Status: "queued"})
	})

	sid, err := c.Dial(context.Background(), "+15550200", "+15550100", "https://voxgo.example.com/twilio/voice")
	require.NoError(t, err)
	assert.Equal(t, "CA789", sid)
}

func TestDialAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(APIError{Code: 21211, Message: "Invalid 'To' Phone Number", Status: 400})
	})

	_, err := c.Dial(context.Background(), "bogus", "+15550100", "https://voxgo.example.com/twilio/voice")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 21211, apiErr.Code)
}

func TestGetCall(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Accounts/AC-test/Calls/CA123.json", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(CallResource{SID: "CA123", Status: "in-progress", Duration: "17"})
	})

	res, err := c.GetCall(context.Background(), "CA123")
	require.NoError(t, err)
	assert.Equal(t, "in-progress", res.Status)
}

func TestHangup(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "completed", r.PostFormValue("Status"))
		_ = json.NewEncoder(w).Encode(CallResource{SID: "CA123", Status: "completed"})
	})

	require.NoError(t, c.Hangup(context.Background(), "CA123"))
}

func TestSiblingStatusURL(t *testing.T) {
	assert.Equal(t,
		"https://voxgo.example.com/twilio/status",
		siblingStatusURL("https://voxgo.example.com/twilio/voice"))
	assert.Equal(t,
		"https://voxgo.example.com/app/twilio/status",
		siblingStatusURL("https://voxgo.example.com/app/twilio/voice"))
}
