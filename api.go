package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"stellar-hierarchy/hierarchy"
)

type API struct {
	sim     *Simulation
	storage *Storage
	system  *System
	hub     *Hub
	metrics *MetricsCollector
	limiter *IPRateLimiter
	router  *mux.Router
}

// NewAPI creates a new API server. storage, hub and metrics may be nil; the
// routes that need them answer 503.
func NewAPI(system *System, sim *Simulation, storage *Storage, hub *Hub, metrics *MetricsCollector) *API {
	api := &API{
		system:  system,
		sim:     sim,
		storage: storage,
		hub:     hub,
		metrics: metrics,
		limiter: NewIPRateLimiter(rate.Every(time.Second), 5),
		router:  mux.NewRouter(),
	}

	api.setupRoutes()
	return api
}

func (api *API) setupRoutes() {
	api.router.HandleFunc("/api/system", api.getSystemInfo).Methods("GET")
	api.router.HandleFunc("/api/bodies", api.getBodies).Methods("GET")
	api.router.HandleFunc("/api/bodies/{id}", api.getBody).Methods("GET")
	api.router.HandleFunc("/api/bodies/{id}/physics", api.updatePhysics).Methods("PUT")
	api.router.HandleFunc("/api/hierarchy", api.getHierarchy).Methods("GET")
	api.router.HandleFunc("/api/changes", api.getChanges).Methods("GET")
	api.router.HandleFunc("/api/stats", api.getStats).Methods("GET")
	api.router.HandleFunc("/api/version", api.getVersion).Methods("GET")

	// Mutations that run the engine are throttled per client
	mutating := api.router.PathPrefix("/api").Subrouter()
	mutating.Use(api.limiter.Middleware)
	mutating.HandleFunc("/destroy", api.destroyBodies).Methods("POST")
	mutating.HandleFunc("/sweep", api.sweep).Methods("POST")

	api.router.HandleFunc("/health", api.healthCheck).Methods("GET")
	if api.metrics != nil {
		api.router.Handle("/metrics", api.metrics.Handler()).Methods("GET")
	}
	if api.hub != nil {
		api.router.HandleFunc("/ws", api.hub.ServeWs)
	}
}

// Start starts the API server
func (api *API) Start(address string) error {
	log.Printf("Starting API server on %s", address)
	return http.ListenAndServe(address, api.router)
}

func (api *API) getSystemInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, api.system)
}

// getBodies lists bodies, optionally filtered by ?kind= and ?status=
func (api *API) getBodies(w http.ResponseWriter, r *http.Request) {
	bodies := api.sim.Bodies()

	query := r.URL.Query()
	if kind := query.Get("kind"); kind != "" {
		want := hierarchy.ParseKind(kind)
		filtered := bodies[:0]
		for _, b := range bodies {
			if b.Kind == want {
				filtered = append(filtered, b)
			}
		}
		bodies = filtered
	}
	if status := query.Get("status"); status != "" {
		want, err := hierarchy.ParseStatus(status)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filtered := bodies[:0]
		for _, b := range bodies {
			if b.Status == want {
				filtered = append(filtered, b)
			}
		}
		bodies = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"bodies": bodies,
		"count":  len(bodies),
	})
}

func (api *API) getBody(w http.ResponseWriter, r *http.Request) {
	id := hierarchy.ParseBodyID(mux.Vars(r)["id"])
	body, ok := api.sim.Body(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Body not found")
		return
	}
	respondJSON(w, http.StatusOK, body)
}

// updatePhysics accepts a physics snapshot from an external integrator
func (api *API) updatePhysics(w http.ResponseWriter, r *http.Request) {
	var snap hierarchy.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if snap.MassKg <= 0 {
		respondError(w, http.StatusBadRequest, "mass_kg must be positive")
		return
	}

	id := hierarchy.ParseBodyID(mux.Vars(r)["id"])
	if err := api.sim.UpdatePhysics(id, snap); err != nil {
		if errors.Is(err, hierarchy.ErrUnknownBody) {
			respondError(w, http.StatusNotFound, "Body not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// destroyBodies marks a batch destroyed and returns the resulting changes
func (api *API) destroyBodies(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs    []string `json:"ids"`
		Status string   `json:"status"` // "destroyed" (default) or "annihilated"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		respondError(w, http.StatusBadRequest, "ids are required")
		return
	}

	status := hierarchy.StatusDestroyed
	if req.Status != "" {
		parsed, err := hierarchy.ParseStatus(req.Status)
		if err != nil || parsed == hierarchy.StatusActive {
			respondError(w, http.StatusBadRequest, "status must be destroyed or annihilated")
			return
		}
		status = parsed
	}

	ids := make([]hierarchy.BodyID, 0, len(req.IDs))
	for _, s := range req.IDs {
		ids = append(ids, hierarchy.ParseBodyID(s))
	}

	changes, err := api.sim.Destroy(ids, status)
	switch {
	case errors.Is(err, hierarchy.ErrUnknownBody):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, hierarchy.ErrStatusRegression):
		respondError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, hierarchy.ErrNoActiveStar):
		// The destruction happened; the hierarchy is frozen
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"changes": changes,
			"error":   err.Error(),
		})
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"changes": changes})
}

func (api *API) sweep(w http.ResponseWriter, r *http.Request) {
	changes := api.sim.Sweep()
	respondJSON(w, http.StatusOK, map[string]interface{}{"changes": changes})
}

func (api *API) getHierarchy(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"system_id": api.system.ID,
		"name":      api.system.Name,
		"roots":     api.sim.Tree(),
	})
}

// getChanges returns persisted changes, newest first (?limit=, ?body=)
func (api *API) getChanges(w http.ResponseWriter, r *http.Request) {
	if api.storage == nil {
		respondError(w, http.StatusServiceUnavailable, "No change log storage configured")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > 1000 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	bodyID := ""
	if b := r.URL.Query().Get("body"); b != "" {
		bodyID = hierarchy.ParseBodyID(b).String()
	}

	changes, err := api.storage.RecentChanges(limit, bodyID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"changes": changes,
		"count":   len(changes),
	})
}

func (api *API) getStats(w http.ResponseWriter, r *http.Request) {
	stats := api.sim.Stats()
	if api.storage != nil {
		stored, err := api.storage.GetStats()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for k, v := range stored {
			stats[k] = v
		}
	}
	respondJSON(w, http.StatusOK, stats)
}

func (api *API) getVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, GetVersionInfo(api.sim.EngineConfig()))
}

// healthCheck returns the health status of the host
func (api *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

// Helper functions for JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
