package knmi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/knmi-forecast/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStation     = "279"
	contentTypeText = "text/plain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Fetch_Success(t *testing.T) {
	const body = "# header\n  279,20231130,   55\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, testStation, r.URL.Query().Get("stns"))
		assert.Equal(t, "20221130", r.URL.Query().Get("start"))
		assert.Equal(t, "20231130", r.URL.Query().Get("end"))
		w.Header().Set("Content-Type", contentTypeText)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	end := time.Date(2023, time.November, 30, 0, 0, 0, 0, time.UTC)
	c := NewClient(srv.URL, testStation, end, discardLogger())

	got, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestClient_DateRange_DefaultsToToday(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.February, 29, 17, 45, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	c := NewClient(DefaultBaseURL, testStation, time.Time{}, discardLogger())
	start, end := c.DateRange()

	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, DefaultBaseURL+"?end=20240229&start=20230301&stns=279", c.URL())
}

func TestClient_Fetch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testStation, time.Date(2023, time.November, 30, 0, 0, 0, 0, time.UTC), discardLogger())

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "maintenance")
}

func TestClient_Fetch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, testStation, time.Date(2023, time.November, 30, 0, 0, 0, 0, time.UTC), discardLogger())

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestClient_Fetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testStation, time.Date(2023, time.November, 30, 0, 0, 0, 0, time.UTC), discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}
