package intel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

// Finding is the outcome of querying one reputation source for one URL
type Finding struct {
	Checker    string   `json:"checker"`
	URL        string   `json:"url"`
	Listed     bool     `json:"listed"`
	Malicious  bool     `json:"malicious"`
	Confidence float64  `json:"confidence"`
	Score      int      `json:"score"` // 0-100 contribution to the scan score
	Categories []string `json:"categories,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	Cached     bool     `json:"cached,omitempty"`
}

// Checker defines the interface for threat intelligence reputation checkers
type Checker interface {
	// Slug returns the unique identifier for this checker
	Slug() string

	// Name returns the human-readable name of this checker
	Name() string

	// Enabled returns whether this checker is configured and enabled
	Enabled() bool

	// Check queries the reputation source for a single URL
	Check(ctx context.Context, rawURL string) (*Finding, error)
}

// CheckerConfig holds configuration for a checker
type CheckerConfig struct {
	Enabled bool          `json:"enabled"`
	APIURL  string        `json:"api_url,omitempty"`
	APIKey  string        `json:"api_key,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// DefaultConfig returns default checker configuration
func DefaultConfig() CheckerConfig {
	return CheckerConfig{
		Enabled: true,
		Timeout: 10 * time.Second,
	}
}

// BaseChecker provides common functionality for checkers
type BaseChecker struct {
	slug   string
	name   string
	config CheckerConfig
}

// NewBaseChecker creates a new base checker
func NewBaseChecker(slug, name string, cfg CheckerConfig) *BaseChecker {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &BaseChecker{
		slug:   slug,
		name:   name,
		config: cfg,
	}
}

// Slug returns the unique identifier for this checker
func (c *BaseChecker) Slug() string {
	return c.slug
}

// Name returns the human-readable name of this checker
func (c *BaseChecker) Name() string {
	return c.name
}

// Enabled returns whether this checker is enabled
func (c *BaseChecker) Enabled() bool {
	return c.config.Enabled
}

// Config returns the current configuration
func (c *BaseChecker) Config() CheckerConfig {
	return c.config
}

// Registry holds checkers in query order
type Registry struct {
	order    []string
	checkers map[string]Checker
	mu       sync.RWMutex
	logger   *logger.Logger
}

// NewRegistry creates a new checker registry
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		checkers: make(map[string]Checker),
		logger:   log.WithComponent("intel-registry"),
	}
}

// Register registers a checker; registration order is query order
func (r *Registry) Register(checker Checker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slug := checker.Slug()
	if _, exists := r.checkers[slug]; exists {
		return fmt.Errorf("checker already registered: %s", slug)
	}

	r.checkers[slug] = checker
	r.order = append(r.order, slug)
	r.logger.Info().
		Str("slug", slug).
		Str("name", checker.Name()).
		Bool("enabled", checker.Enabled()).
		Msg("registered checker")

	return nil
}

// Get returns a checker by slug
func (r *Registry) Get(slug string) (Checker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checkers[slug]
	return c, ok
}

// ListEnabled returns enabled checkers in registration order
func (r *Registry) ListEnabled() []Checker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Checker, 0, len(r.order))
	for _, slug := range r.order {
		if c := r.checkers[slug]; c.Enabled() {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of registered checkers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checkers)
}

// CountEnabled returns the number of enabled checkers
func (r *Registry) CountEnabled() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, c := range r.checkers {
		if c.Enabled() {
			count++
		}
	}
	return count
}

// HashURL returns a stable cache key component for a URL
func HashURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:16])
}
