package clients_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/clients"
)

func TestNewRejectsBadURL(t *testing.T) {
	t.Parallel()

	_, err := clients.New("ftp://example.com", nil)
	require.Error(t, err)
	_, err = clients.New("://bad", nil)
	require.Error(t, err)
}

func TestLogUsage(t *testing.T) {
	t.Parallel()

	var (
		gotKey  string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/usage", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotKey = r.Header.Get(clients.IdempotencyHeader)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"logId":42}`))
	}))
	defer srv.Close()

	c, err := clients.New(srv.URL+"/api/", srv.Client())
	require.NoError(t, err)

	resp, err := c.LogUsage(context.Background(), "key-1", clients.UsageRequest{
		DeviceID:        "d1",
		ServiceName:     "ChatGPT",
		DurationSeconds: 120,
		RequestCount:    3,
		Metadata:        map[string]any{"source": "desktop-monitor"},
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, int64(42), resp.LogID)
	require.Equal(t, "key-1", gotKey)
	require.Equal(t, "d1", gotBody["deviceId"])
	require.Equal(t, "ChatGPT", gotBody["serviceName"])
	require.EqualValues(t, 120, gotBody["durationSeconds"])
	require.EqualValues(t, 3, gotBody["requestCount"])
	require.NotContains(t, gotBody, "userId")
}

func TestRegisterDeviceSendsNullUser(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Contains(t, body, "userId")
		require.Nil(t, body["userId"])
		_, _ = w.Write([]byte(`{"success":true,"deviceId":"d1","userId":null}`))
	}))
	defer srv.Close()

	c, err := clients.New(srv.URL, srv.Client())
	require.NoError(t, err)
	resp, err := c.RegisterDevice(context.Background(), clients.RegisterDeviceRequest{ID: "d1", Name: "laptop-1", Type: "laptop"})
	require.NoError(t, err)
	require.Equal(t, "d1", resp.DeviceID)
	require.Nil(t, resp.UserID)
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"device_not_found"}`))
	}))
	defer srv.Close()

	c, err := clients.New(srv.URL, srv.Client())
	require.NoError(t, err)

	err = c.LinkUser(context.Background(), "d/1", "u1")
	var statusErr *clients.StatusError
	require.True(t, xerrors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	require.Equal(t, "device_not_found", statusErr.Code)
	require.True(t, statusErr.Permanent())
	require.True(t, clients.IsDeviceNotFound(err))
	require.False(t, clients.IsDeviceNotFound(&clients.StatusError{StatusCode: http.StatusNotFound, Code: "user_not_found"}))
	require.False(t, clients.IsDeviceNotFound(xerrors.New("connection refused")))

	require.False(t, (&clients.StatusError{StatusCode: http.StatusTooManyRequests}).Permanent())
	require.False(t, (&clients.StatusError{StatusCode: http.StatusBadGateway}).Permanent())
}
