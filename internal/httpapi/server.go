package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/exchangewatch/internal/domain"
	"github.com/hamed0406/exchangewatch/internal/httpapi/middleware"
	"github.com/hamed0406/exchangewatch/internal/repo"
)

type Server struct {
	Logger     *zap.Logger
	Records    repo.HealthRecordStore
	Catalog    repo.EndpointCatalog
	Keys       middleware.Keys
	RatePerMin int
	Burst      int
}

func NewServer(l *zap.Logger, records repo.HealthRecordStore, catalog repo.EndpointCatalog) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{
		Logger:     l,
		Records:    records,
		Catalog:    catalog,
		RatePerMin: 120,
		Burst:      60,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.RateLimit(s.RatePerMin, s.Burst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAny(s.Keys))
		r.Get("/api/checks/{tenant}", s.handleListChecks)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(s.Keys))
		r.Post("/api/endpoints", s.handleAddEndpoint)
		r.Post("/api/payloads", s.handlePutPayload)
	})

	return r
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	tenant := domain.TenantID(chi.URLParam(r, "tenant"))
	if tenant == "" {
		writeError(w, http.StatusBadRequest, "tenant is required")
		return
	}
	recs, err := s.Records.ListByTenant(r.Context(), tenant)
	if err != nil {
		s.Logger.Error("list_checks_failed", zap.String("tenant", string(tenant)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// boolish decodes a JSON bool or the strings "true"/"false". Existing
// registration clients send flags both ways.
type boolish bool

func (b *boolish) UnmarshalJSON(data []byte) error {
	switch {
	case len(data) == 0:
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("boolish: %q", s)
		}
		*b = boolish(v)
		return nil
	default:
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = boolish(v)
		return nil
	}
}

type addEndpointBody struct {
	URL           string  `json:"url"`
	Method        string  `json:"method"`
	TenantScoped  boolish `json:"tenant_scoped"`
	TokenRequired boolish `json:"token_required"`
	Probe         string  `json:"probe"`
}

func (s *Server) handleAddEndpoint(w http.ResponseWriter, r *http.Request) {
	var body addEndpointBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}

	ep := domain.EndpointDefinition{
		URL:           body.URL,
		Method:        strings.ToUpper(strings.TrimSpace(body.Method)),
		TenantScoped:  bool(body.TenantScoped),
		TokenRequired: bool(body.TokenRequired),
		Probe:         domain.ProbeKind(body.Probe),
	}
	if ep.Method == "" {
		ep.Method = http.MethodGet
	}
	if ep.Probe == "" {
		ep.Probe = domain.ProbeRequest
	}
	if ep.Probe != domain.ProbeRequest && ep.Probe != domain.ProbeTradeRoundTrip {
		writeError(w, http.StatusBadRequest, "unknown probe kind")
		return
	}

	if err := s.Catalog.AddEndpoint(r.Context(), ep); err != nil {
		s.Logger.Error("add_endpoint_failed", zap.String("url", ep.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}

	s.Logger.Info("endpoint_registered",
		zap.String("url", ep.URL),
		zap.String("method", ep.Method),
		zap.String("probe", string(ep.Probe)),
	)
	writeJSON(w, http.StatusCreated, ep)
}

type putPayloadBody struct {
	TenantID string `json:"tenant_id"`
	URL      string `json:"url"`
	Payload  any    `json:"payload"`
}

func (s *Server) handlePutPayload(w http.ResponseWriter, r *http.Request) {
	var body putPayloadBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TenantID == "" || body.URL == "" {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	tenant := domain.TenantID(body.TenantID)
	if err := s.Catalog.PutPayload(r.Context(), tenant, body.URL, body.Payload); err != nil {
		s.Logger.Error("put_payload_failed",
			zap.String("tenant", body.TenantID),
			zap.String("url", body.URL),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "could not store")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
