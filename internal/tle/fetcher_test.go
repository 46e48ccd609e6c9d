package tle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	issTLE      = "ISS (ZARYA)\n1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005\n2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09\n"
	starlinkTLE = "STARLINK-1007\n1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995\n2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05\n"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcherSuccess(t *testing.T) {
	srv := serve(t, http.StatusOK, issTLE)

	data, err := NewFetcher(srv.URL, testLogger).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, issTLE, string(data))
}

func TestFetcherHTTPError(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, "")

	_, err := NewFetcher(srv.URL, testLogger).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

// Oversized responses must fail instead of being buffered without bound.
func TestFetcherBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk := strings.Repeat("A", 1<<20)
		for range 52 {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	_, err := NewFetcher(srv.URL, testLogger).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestFetcherExtraURLs(t *testing.T) {
	primary := serve(t, http.StatusOK, strings.TrimSuffix(starlinkTLE, "\n"))
	extra := serve(t, http.StatusOK, issTLE)

	data, err := NewFetcher(primary.URL, testLogger, extra.URL).Fetch(context.Background())
	require.NoError(t, err)

	entries, err := Parse(strings.NewReader(string(data)), testLogger)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 44713, entries[0].NORADID)
	assert.Equal(t, 25544, entries[1].NORADID)
}

func TestFetcherExtraURLFailure(t *testing.T) {
	primary := serve(t, http.StatusOK, starlinkTLE)
	failing := serve(t, http.StatusBadGateway, "")

	data, err := NewFetcher(primary.URL, testLogger, failing.URL).Fetch(context.Background())
	require.NoError(t, err)

	entries, err := Parse(strings.NewReader(string(data)), testLogger)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 44713, entries[0].NORADID)
}

func TestFetchAndCache(t *testing.T) {
	srv := serve(t, http.StatusOK, issTLE+starlinkTLE)
	c := NewCache(t.TempDir(), 2)

	ds, err := FetchAndCache(context.Background(), NewFetcher(srv.URL, testLogger), c, testLogger)
	require.NoError(t, err)
	assert.Len(t, ds.Satellites, 2)
	assert.Equal(t, srv.URL, ds.Source)

	cached, err := LoadCached(c, testLogger)
	require.NoError(t, err)
	assert.Equal(t, ds.Satellites, cached.Satellites)
}
