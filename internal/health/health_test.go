package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/star/conjscreen/internal/tle"
)

func TestReadyz(t *testing.T) {
	store := tle.NewStore()
	probe := Readyz(store)

	w := httptest.NewRecorder()
	probe(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	store.Set(&tle.TLEDataset{Source: "test", FetchedAt: time.Now()})

	w = httptest.NewRecorder()
	probe(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready\n", w.Body.String())
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
