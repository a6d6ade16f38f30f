package api

import (
	"github.com/spotvox/server/internal/service"
)

// DatasetInfo contains information about a dataset for the API response.
type DatasetInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DatasetRegistry holds region services for all configured datasets.
type DatasetRegistry struct {
	services       map[string]*service.RegionService
	defaultDataset string
	datasetOrder   []string
}

// NewDatasetRegistry creates a new dataset registry.
func NewDatasetRegistry(defaultDataset string, order []string) *DatasetRegistry {
	return &DatasetRegistry{
		services:       make(map[string]*service.RegionService),
		defaultDataset: defaultDataset,
		datasetOrder:   order,
	}
}

// Register adds a region service for a dataset.
func (r *DatasetRegistry) Register(datasetID string, svc *service.RegionService) {
	r.services[datasetID] = svc
}

// Get returns the region service for a dataset, or nil if not found.
func (r *DatasetRegistry) Get(datasetID string) *service.RegionService {
	return r.services[datasetID]
}

// DefaultDatasetID returns the default dataset ID.
func (r *DatasetRegistry) DefaultDatasetID() string {
	return r.defaultDataset
}

// DatasetIDs returns all dataset IDs in config order.
func (r *DatasetRegistry) DatasetIDs() []string {
	return r.datasetOrder
}

// Datasets returns dataset info for all registered datasets.
func (r *DatasetRegistry) Datasets() []DatasetInfo {
	infos := make([]DatasetInfo, 0, len(r.datasetOrder))
	for _, id := range r.datasetOrder {
		// Use the config ID as the display name (user-defined in server.yaml)
		infos = append(infos, DatasetInfo{
			ID:   id,
			Name: id,
		})
	}
	return infos
}
