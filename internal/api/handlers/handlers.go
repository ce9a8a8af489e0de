package handlers

import (
	"github.com/Git-Robbed/smells-phishy/internal/domain/services"
	"github.com/Git-Robbed/smells-phishy/internal/infrastructure/cache"
	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health *HealthHandler
	Scan   *ScanHandler
}

// Dependencies holds dependencies for handlers
type Dependencies struct {
	Scanner      *services.Scanner
	Cache        *cache.RedisCache
	Logger       *logger.Logger
	Version      string
	MaxBatchSize int
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health: NewHealthHandler(deps.Cache, deps.Version, deps.Logger),
		Scan:   NewScanHandler(deps.Scanner, deps.MaxBatchSize, deps.Logger),
	}
}
