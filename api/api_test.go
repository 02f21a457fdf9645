package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-onion-land/onionidd/iddb"
	"github.com/the-onion-land/onionidd/idlog"
)

type fakeTracker struct {
	services []*iddb.Service
	err      error
}

func (t *fakeTracker) Services() ([]*iddb.Service, error) {
	return t.services, t.err
}

func testService() *iddb.Service {
	return &iddb.Service{
		Address:     "fiwn42eha2tpdfhf",
		Version:     2,
		PermanentID: "2d2b6f4840e9a6f194e5",
		TimePeriod:  5,
		DescriptorIDs: []iddb.DescriptorID{
			{Replica: 0, Deviation: 0, ID: "mmmtzzvnciaavc3qmrcpgzualdwoyzrv"},
		},
		ValidUntil: time.Unix(518400, 0).UTC(),
	}
}

func TestGetServices(t *testing.T) {
	api := New(&Config{Tracker: &fakeTracker{services: []*iddb.Service{testService()}}})

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/services", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var res []serviceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("got %d services, want 1", len(res))
	}
	if res[0].Address != "fiwn42eha2tpdfhf" || len(res[0].DescriptorIDs) != 1 {
		t.Fatalf("got service %+v", res[0])
	}
}

func TestGetServicesEmpty(t *testing.T) {
	api := New(&Config{Tracker: &fakeTracker{}})

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/services", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Fatalf("got body %q, want empty array", body)
	}
}

func TestGetServicesError(t *testing.T) {
	api := New(&Config{Tracker: &fakeTracker{err: errors.New("db gone")}})

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/services", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestGetService(t *testing.T) {
	api := New(&Config{Tracker: &fakeTracker{services: []*iddb.Service{testService()}}})

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/services/fiwn42eha2tpdfhf", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var res serviceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if res.TimePeriod != 5 {
		t.Fatalf("got time period %d, want 5", res.TimePeriod)
	}
}

func TestGetServiceNotFound(t *testing.T) {
	api := New(&Config{Tracker: &fakeTracker{}})

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/services/nosuchaddressxxx", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetLog(t *testing.T) {
	idLog := idlog.New()
	api := New(&Config{Tracker: &fakeTracker{}, IdLog: idLog})

	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/log", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}

	var res getLogResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if res.Entries == nil {
		t.Fatal("entries must not be null")
	}
}
