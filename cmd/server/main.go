// Package main is the entry point for the SpotVox server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spotvox/server/internal/api"
	"github.com/spotvox/server/internal/cache"
	"github.com/spotvox/server/internal/config"
	"github.com/spotvox/server/internal/data/arrowds"
	"github.com/spotvox/server/internal/render"
	"github.com/spotvox/server/internal/service"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting SpotVox server on port %d", cfg.Server.Port)

	// Initialize cache manager (shared across all datasets)
	cacheManager, err := cache.NewManager(cache.Config{
		ResponseCacheSizeMB: cfg.Cache.ResponseSizeMB,
		ResponseTTL:         time.Duration(cfg.Cache.ResponseTTLMinutes) * time.Minute,
		BuildCacheSize:      cfg.Cache.BuildCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Initialize preview renderer (shared across all datasets)
	previewRenderer := render.NewPreviewRenderer(render.Config{
		PixelsPerVoxel: cfg.Render.PixelsPerVoxel,
	})

	var voxelSize [3]float64
	if len(cfg.Voxel.VoxelSize) == 3 {
		copy(voxelSize[:], cfg.Voxel.VoxelSize)
	}

	// Initialize dataset registry
	datasetIDs := cfg.Data.DatasetIDs()
	registry := api.NewDatasetRegistry(cfg.Data.DefaultDataset, datasetIDs)

	log.Printf("Initializing %d dataset(s), default: %s", len(datasetIDs), cfg.Data.DefaultDataset)

	for _, datasetID := range datasetIDs {
		dsCfg := cfg.Data.Datasets[datasetID]

		ds, err := arrowds.Open(datasetID, arrowds.Config{
			SpotsDir:      dsCfg.SpotsDir,
			CellsDir:      dsCfg.CellsDir,
			BoundariesDir: dsCfg.BoundariesDir,
		})
		if err != nil {
			log.Fatalf("Failed to open dataset %q: %v", datasetID, err)
		}

		md := ds.Metadata()
		log.Printf("  [%s] Loaded from: %s", datasetID, dsCfg.SpotsDir)
		log.Printf("    Spots: %d, Cells: %d, Boundaries: %d, Planes: %d, Genes: %d",
			md.NSpots, md.NCells, md.NBoundaries, md.TotalPlanes, len(md.Genes))

		regionService := service.NewRegionService(service.RegionServiceConfig{
			Dataset:         ds,
			VoxelSize:       voxelSize,
			TotalPlanes:     cfg.Voxel.TotalPlanes,
			MaxRegionPixels: cfg.Voxel.MaxRegionPixels,
			Cache:           cacheManager,
			Renderer:        previewRenderer,
		})
		registry.Register(datasetID, regionService)
	}

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		Cache:       cacheManager,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
