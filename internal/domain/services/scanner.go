package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Git-Robbed/smells-phishy/internal/ai"
	"github.com/Git-Robbed/smells-phishy/internal/config"
	"github.com/Git-Robbed/smells-phishy/internal/domain/models"
	"github.com/Git-Robbed/smells-phishy/internal/intel"
	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

const (
	skipReasonDisabled     = "ai_disabled"
	skipReasonRequested    = "skip_requested"
	skipReasonShortCircuit = "short_circuit"
	skipReasonQuota        = "quota_exhausted"
	skipReasonError        = "ai_error"

	batchConcurrency = 5
)

// AIClassifier is the contextual analysis pass
type AIClassifier interface {
	Classify(ctx context.Context, in ai.Input) (*models.AIAnalysis, error)
}

// QuotaGate meters AI invocations
type QuotaGate interface {
	Consume(ctx context.Context) (allowed bool, remaining int64)
	Status(ctx context.Context) models.QuotaStatus
}

// FindingCache stores intel lookup results keyed by checker and URL hash
type FindingCache interface {
	GetCachedIntelFinding(ctx context.Context, checker, urlHash string, dest any) error
	CacheIntelFinding(ctx context.Context, checker, urlHash string, data any, ttl time.Duration) error
}

// ScannerStats tracks aggregate scan counters in memory
type ScannerStats struct {
	TotalScans      int64          `json:"total_scans"`
	VerdictCounts   map[string]int `json:"verdict_counts"`
	AICallCount     int64          `json:"ai_call_count"`
	AISkipCount     int64          `json:"ai_skip_count"`
	ShortCircuits   int64          `json:"short_circuits"`
	AverageScore    float64        `json:"average_score"`

	totalScorePoints int64
}

// Scanner runs the full classification pipeline for email content
type Scanner struct {
	sanitizer  *Sanitizer
	extractor  *Extractor
	registry   *intel.Registry
	classifier AIClassifier
	quota      QuotaGate
	cache      FindingCache
	config     config.ScanConfig
	aiEnabled  bool
	logger     *logger.Logger

	statsMu sync.Mutex
	stats   ScannerStats
}

// NewScanner wires the pipeline together. classifier and quota may be nil
// when AI analysis is disabled; cache may be nil when Redis is unavailable.
func NewScanner(
	sanitizer *Sanitizer,
	extractor *Extractor,
	registry *intel.Registry,
	classifier AIClassifier,
	quota QuotaGate,
	c FindingCache,
	cfg config.ScanConfig,
	aiEnabled bool,
	log *logger.Logger,
) *Scanner {
	return &Scanner{
		sanitizer:  sanitizer,
		extractor:  extractor,
		registry:   registry,
		classifier: classifier,
		quota:      quota,
		cache:      c,
		config:     cfg,
		aiEnabled:  aiEnabled && classifier != nil,
		logger:     log.WithComponent("scanner"),
		stats: ScannerStats{
			VerdictCounts: make(map[string]int),
		},
	}
}

// Scan classifies one email
func (s *Scanner) Scan(ctx context.Context, req models.ScanRequest) *models.ScanResult {
	startTime := time.Now()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	log := s.logger.WithScanID(req.ID.String())
	log.Debug().Int("content_bytes", len(req.Content)).Msg("starting scan")

	result := &models.ScanResult{
		ID:        req.ID,
		ScannedAt: startTime,
	}

	content, removed := s.sanitizer.Sanitize(req.Content)
	if removed > 0 {
		result.Signals = append(result.Signals, fmt.Sprintf("removed %d bytes of encoded content", removed))
	}

	result.URLs = s.extractor.Extract(content)

	intelScore, findings, shortCircuit := s.runIntel(ctx, log, result.URLs)
	result.IntelFindings = findings
	result.ShortCircuit = shortCircuit
	for _, f := range findings {
		if f.Listed {
			result.Signals = append(result.Signals, fmt.Sprintf("%s: %s", f.Checker, f.Detail))
		}
	}

	switch {
	case shortCircuit:
		result.AISkipped = true
		result.AISkipReason = skipReasonShortCircuit
		result.Confidence = 1.0
		result.Explanation = "A threat intelligence source flagged a link in this email as malicious with high confidence."
	case req.SkipAI:
		result.AISkipped = true
		result.AISkipReason = skipReasonRequested
	case !s.aiEnabled:
		result.AISkipped = true
		result.AISkipReason = skipReasonDisabled
	default:
		s.runAI(ctx, log, result, ai.Input{
			Subject:  req.Subject,
			Sender:   req.Sender,
			Content:  content,
			URLs:     result.URLs,
			Findings: findings,
		})
	}

	result.Score = combineScores(intelScore, result.AI)
	result.Verdict = models.VerdictFromScore(result.Score)
	if result.Confidence == 0 {
		result.Confidence = confidenceFor(result, findings)
	}
	if result.Explanation == "" {
		result.Explanation = defaultExplanation(result.Verdict)
	}
	result.Duration = time.Since(startTime)

	s.recordStats(result)

	log.Info().
		Str("verdict", string(result.Verdict)).
		Int("score", result.Score).
		Bool("short_circuit", result.ShortCircuit).
		Bool("ai_skipped", result.AISkipped).
		Dur("duration", result.Duration).
		Msg("scan completed")

	return result
}

// ScanBatch classifies up to MaxBatchSize emails concurrently
func (s *Scanner) ScanBatch(ctx context.Context, req models.ScanBatchRequest) *models.ScanBatchResult {
	results := make([]*models.ScanResult, len(req.Emails))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, email := range req.Emails {
		i, email := i, email
		g.Go(func() error {
			results[i] = s.Scan(gctx, email)
			return nil
		})
	}

	// workers never return errors; each result carries its own
	_ = g.Wait()

	return &models.ScanBatchResult{
		Results:    results,
		TotalCount: len(results),
		ScannedAt:  time.Now(),
	}
}

// CheckURL runs the intel layer only for a single URL
func (s *Scanner) CheckURL(ctx context.Context, rawURL string) (*models.URLCheckResult, error) {
	info := s.extractor.analyze(rawURL)
	if info.Host == "" {
		return nil, fmt.Errorf("unparseable URL: %q", rawURL)
	}

	score, findings, shortCircuit := s.runIntel(ctx, s.logger, []models.URLInfo{info})

	return &models.URLCheckResult{
		URL:          rawURL,
		Info:         info,
		Findings:     findings,
		Score:        score,
		Verdict:      models.VerdictFromScore(score),
		ShortCircuit: shortCircuit,
		CheckedAt:    time.Now(),
	}, nil
}

// Quota reports the AI quota status
func (s *Scanner) Quota(ctx context.Context) models.QuotaStatus {
	if s.quota == nil {
		return models.QuotaStatus{}
	}
	return s.quota.Status(ctx)
}

// Stats returns a snapshot of the in-memory counters
func (s *Scanner) Stats() ScannerStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	snapshot := s.stats
	snapshot.VerdictCounts = make(map[string]int, len(s.stats.VerdictCounts))
	for k, v := range s.stats.VerdictCounts {
		snapshot.VerdictCounts[k] = v
	}
	return snapshot
}

// runIntel queries each enabled checker in order for every extracted URL.
// Returns early when a checker reports malicious with confidence at or above
// the short-circuit threshold.
func (s *Scanner) runIntel(ctx context.Context, log *logger.Logger, urls []models.URLInfo) (int, []intel.Finding, bool) {
	score := 0
	var findings []intel.Finding

	for _, u := range urls {
		if structural := StructuralScore(u); structural > score {
			score = structural
		}

		urlHash := intel.HashURL(u.Normalized)

		for _, checker := range s.registry.ListEnabled() {
			finding, err := s.checkOne(ctx, checker, u.Normalized, urlHash)
			if err != nil {
				log.Warn().Err(err).Str("checker", checker.Slug()).Str("url", u.Normalized).Msg("intel check failed")
				continue
			}
			if finding == nil {
				continue
			}

			if finding.Listed {
				findings = append(findings, *finding)
			}
			if finding.Score > score {
				score = finding.Score
			}

			if finding.Malicious && finding.Confidence >= s.config.ShortCircuitConfidence {
				log.Info().
					Str("checker", checker.Slug()).
					Str("url", u.Normalized).
					Float64("confidence", finding.Confidence).
					Msg("short-circuiting on high-confidence intel hit")
				return 100, findings, true
			}
		}
	}

	if score > 100 {
		score = 100
	}
	return score, findings, false
}

// checkOne consults the Redis finding cache before hitting the checker
func (s *Scanner) checkOne(ctx context.Context, checker intel.Checker, rawURL, urlHash string) (*intel.Finding, error) {
	if s.cache != nil {
		var cached intel.Finding
		if err := s.cache.GetCachedIntelFinding(ctx, checker.Slug(), urlHash, &cached); err == nil {
			cached.Cached = true
			return &cached, nil
		}
	}

	finding, err := checker.Check(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if finding != nil && s.cache != nil {
		if err := s.cache.CacheIntelFinding(ctx, checker.Slug(), urlHash, finding, s.config.IntelCacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("checker", checker.Slug()).Msg("failed to cache intel finding")
		}
	}

	return finding, nil
}

// runAI consumes quota and invokes the classifier, degrading to intel-only
// on quota exhaustion or provider failure
func (s *Scanner) runAI(ctx context.Context, log *logger.Logger, result *models.ScanResult, in ai.Input) {
	if s.quota != nil {
		allowed, remaining := s.quota.Consume(ctx)
		if !allowed {
			result.AISkipped = true
			result.AISkipReason = skipReasonQuota
			return
		}
		log.Debug().Int64("quota_remaining", remaining).Msg("AI quota consumed")
	}

	analysis, err := s.classifier.Classify(ctx, in)
	if err != nil {
		log.Warn().Err(err).Msg("AI classification failed, degrading to intel-only verdict")
		result.AISkipped = true
		result.AISkipReason = skipReasonError
		result.Error = err.Error()
		return
	}

	result.AI = analysis
	result.Confidence = analysis.Confidence
	result.Signals = append(result.Signals, analysis.Signals...)
	result.Explanation = analysis.Explanation
}

// combineScores takes the worst of the intel and AI scores
func combineScores(intelScore int, analysis *models.AIAnalysis) int {
	score := intelScore
	if analysis != nil && analysis.Score > score {
		score = analysis.Score
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func confidenceFor(result *models.ScanResult, findings []intel.Finding) float64 {
	best := 0.0
	for _, f := range findings {
		if f.Confidence > best {
			best = f.Confidence
		}
	}
	if best == 0 {
		// nothing listed and no AI pass; a clean result is a weak signal
		if result.AISkipped {
			return 0.5
		}
	}
	return best
}

func defaultExplanation(v models.Verdict) string {
	switch v {
	case models.VerdictDanger:
		return "This email contains links or content known to be malicious."
	case models.VerdictSuspicious:
		return "This email shows characteristics commonly seen in phishing attempts."
	default:
		return "No known threats were found in this email."
	}
}

func (s *Scanner) recordStats(result *models.ScanResult) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.stats.TotalScans++
	s.stats.VerdictCounts[string(result.Verdict)]++
	s.stats.totalScorePoints += int64(result.Score)
	s.stats.AverageScore = float64(s.stats.totalScorePoints) / float64(s.stats.TotalScans)

	if result.ShortCircuit {
		s.stats.ShortCircuits++
	}
	if result.AISkipped {
		s.stats.AISkipCount++
	} else if result.AI != nil {
		s.stats.AICallCount++
	}
}
