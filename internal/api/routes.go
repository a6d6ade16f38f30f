// Package api provides HTTP handlers for the SpotVox server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/spotvox/server/internal/cache"
	"github.com/spotvox/server/internal/service"
	"github.com/spotvox/server/pkg/geom"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *DatasetRegistry
	CORSOrigins []string
	Cache       *cache.Manager
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global datasets endpoint (not dataset-scoped)
	r.Get("/api/datasets", datasetsHandler(cfg.Registry))

	// Cache statistics
	if cfg.Cache != nil {
		r.Get("/api/stats", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(cfg.Cache.Stats())
		})
	}

	// Dataset-scoped routes: /d/{dataset}/...
	r.Route("/d/{dataset}", func(r chi.Router) {
		r.Use(datasetMiddleware(cfg.Registry))

		r.Route("/api", func(r chi.Router) {
			r.Get("/metadata", datasetMetadataHandler)
			r.Get("/genes", datasetGenesHandler)
			r.Post("/region", datasetRegionHandler)
			r.Get("/region/{key}/slice/{plane}", datasetSliceHandler(cfg.Cache))
			r.Get("/region/{key}/preview/{plane}.png", datasetPreviewHandler)
		})
	})

	return r
}

// Context key for dataset service
type ctxKey string

const datasetServiceKey ctxKey = "datasetService"

// datasetMiddleware resolves the dataset from URL and injects the region service into context.
func datasetMiddleware(registry *DatasetRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			datasetID := chi.URLParam(r, "dataset")
			svc := registry.Get(datasetID)
			if svc == nil {
				http.Error(w, "dataset not found: "+datasetID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), datasetServiceKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getDatasetService(r *http.Request) *service.RegionService {
	if svc, ok := r.Context().Value(datasetServiceKey).(*service.RegionService); ok {
		return svc
	}
	return nil
}

// datasetsHandler returns the list of available datasets.
func datasetsHandler(registry *DatasetRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"default":  registry.DefaultDatasetID(),
			"datasets": registry.Datasets(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

func datasetMetadataHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(svc.Metadata())
}

func datasetGenesHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"genes": svc.Genes(),
	})
}

// regionRequest is the body of POST /d/{dataset}/api/region.
type regionRequest struct {
	geom.SelectionBounds
	Plane    int     `json:"plane"`
	MinScore float64 `json:"min_score"`
}

func datasetRegionHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	var req regionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := svc.BuildRegion(r.Context(), req.SelectionBounds, req.Plane, req.MinScore)
	if err != nil {
		switch {
		case errors.Is(err, geom.ErrEmptyRegion):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, service.ErrRegionTooLarge):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, service.ErrBuildSuperseded):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("[api] region build failed: %v", err)
			http.Error(w, "region build failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func datasetSliceHandler(mgr *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := getDatasetService(r)
		if svc == nil {
			http.Error(w, "dataset service not found", http.StatusInternalServerError)
			return
		}

		key := chi.URLParam(r, "key")
		plane, err := strconv.Atoi(chi.URLParam(r, "plane"))
		if err != nil {
			http.Error(w, "invalid plane: "+chi.URLParam(r, "plane"), http.StatusBadRequest)
			return
		}

		ckey := cache.SliceKey(key, plane)
		if mgr != nil {
			if data, ok := mgr.GetResponse(ckey); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Write(data)
				return
			}
		}

		part, err := svc.Slice(key, plane)
		if err != nil {
			if errors.Is(err, service.ErrUnknownRegion) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			log.Printf("[api] slice failed: %v", err)
			http.Error(w, "slice failed", http.StatusInternalServerError)
			return
		}

		data, err := json.Marshal(part)
		if err != nil {
			http.Error(w, "encode slice", http.StatusInternalServerError)
			return
		}
		if mgr != nil {
			if err := mgr.SetResponse(ckey, data); err != nil {
				log.Printf("[api] slice cache write failed: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func datasetPreviewHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	key := chi.URLParam(r, "key")
	plane, err := strconv.Atoi(chi.URLParam(r, "plane"))
	if err != nil {
		http.Error(w, "invalid plane: "+chi.URLParam(r, "plane"), http.StatusBadRequest)
		return
	}

	data, err := svc.Preview(key, plane)
	if err != nil {
		if errors.Is(err, service.ErrUnknownRegion) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Printf("[api] preview failed: %v", err)
		http.Error(w, "preview failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
