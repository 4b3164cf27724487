package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/solardesk/solardesk/internal/service"
	"github.com/solardesk/solardesk/internal/timeline"
)

// Server is the HTTP boundary over the CRM services and the timeline engine.
type Server struct {
	leads     service.LeadService
	catalog   service.CatalogService
	documents service.DocumentService
	engine    *timeline.Engine
	override  *timeline.OverrideAuthority

	jwtSecret []byte
	log       zerolog.Logger
}

// New assembles the server.
func New(
	leads service.LeadService,
	catalog service.CatalogService,
	documents service.DocumentService,
	engine *timeline.Engine,
	override *timeline.OverrideAuthority,
	jwtSecret []byte,
	log zerolog.Logger,
) *Server {
	return &Server{
		leads:     leads,
		catalog:   catalog,
		documents: documents,
		engine:    engine,
		override:  override,
		jwtSecret: jwtSecret,
		log:       log.With().Str("component", "http").Logger(),
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/leads", s.handleCreateLead).Methods(http.MethodPost)
	api.HandleFunc("/leads", s.handleListLeads).Methods(http.MethodGet)
	api.HandleFunc("/leads/{id}", s.handleGetLead).Methods(http.MethodGet)
	api.HandleFunc("/leads/{id}", s.handleUpdateLead).Methods(http.MethodPatch)
	api.HandleFunc("/leads/{id}/installer", s.handleAssignInstaller).Methods(http.MethodPost)
	api.HandleFunc("/leads/{id}/customer-account", s.handleLinkCustomer).Methods(http.MethodPost)
	api.HandleFunc("/leads/{id}/cancel", s.handleCancelLead).Methods(http.MethodPost)
	api.HandleFunc("/leads/{id}/activity", s.handleLeadActivity).Methods(http.MethodGet)

	api.HandleFunc("/leads/{id}/steps/{stepID}/transition", s.handleTransition).Methods(http.MethodPost)
	api.HandleFunc("/leads/{id}/override", s.handleOverride).Methods(http.MethodPost)

	api.HandleFunc("/leads/{id}/documents", s.handleRegisterDocument).Methods(http.MethodPost)
	api.HandleFunc("/leads/{id}/documents", s.handleListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/review", s.handleReviewDocument).Methods(http.MethodPost)

	api.HandleFunc("/catalog", s.handleListCatalog).Methods(http.MethodGet)
	api.HandleFunc("/catalog", s.handleCreateTemplate).Methods(http.MethodPost)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status/100*100)).Inc()

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
