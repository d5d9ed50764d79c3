package in_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	remoteadapter "tether/internal/modules/remote/adapter/in"
	remotedto "tether/internal/modules/remote/dto"
)

func TestHTTPRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	documents := newDocuments(t)
	reg := prometheus.NewRegistry()
	remoteadapter.NewServerMetrics(reg).Requests.WithLabelValues("probe", "OK").Inc()
	router := remoteadapter.NewHTTPRouter(documents, reg)

	_, err := documents.Put(context.Background(), remotedto.PutInput{Document: remotedto.Document{
		Key:  remotedto.Key{OwnerID: "o", Collection: "sessions", ID: "s1"},
		Data: json.RawMessage(`{"id":"s1","startTime":"2026-03-02T20:00:00Z","goalDuration":1800000000000,"notes":"private"}`),
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "tether_remote_requests_total") {
			t.Fatalf("metrics response %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("open sessions", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/owners/o/sessions/open", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Sessions []remotedto.PublicSession `json:"sessions"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Sessions) != 1 || body.Sessions[0].GoalDuration != 30*time.Minute {
			t.Fatalf("unexpected body %+v", body)
		}
		if strings.Contains(rec.Body.String(), "notes") {
			t.Fatalf("private fields leaked: %s", rec.Body.String())
		}
	})
}
