// Package intent scores free-form chat messages against registered intent
// definitions and extracts typed entities. Classification is best-effort by
// design: internal faults degrade to a fallback result instead of failing the
// message pipeline.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/awoulbe/chatflow/internal/logging"
	"github.com/awoulbe/chatflow/pkg/domain"
	"github.com/awoulbe/chatflow/pkg/observability"
	"github.com/awoulbe/chatflow/pkg/registry"
)

const (
	// keywordGroupWeight is the score contribution per keyword in a fully
	// matched group.
	keywordGroupWeight = 0.2
	// exampleBonus rewards an exact match against a registered example phrase.
	exampleBonus = 0.5
	// priorityWeight converts an intent priority into a score multiplier:
	// final = score * (1 + priority*priorityWeight).
	priorityWeight = 0.1
	// patternScoreCap bounds a single pattern match contribution.
	patternScoreCap = 0.9
	// fallbackConfidence is reported when no intent matches.
	fallbackConfidence = 0.3
)

// compiledIntent pairs a definition with its pre-compiled patterns.
type compiledIntent struct {
	def      domain.IntentDefinition
	patterns []*regexp.Regexp
}

// Classifier scores messages against a fixed intent set. It is safe for
// concurrent use; the intent set is immutable after construction.
type Classifier struct {
	intents    []compiledIntent
	extractors *registry.ExtractorRegistry

	cache           *lru.LRU[string, *domain.Classification]
	extractEntities bool
	maxAlternatives int

	metrics *observability.Metrics
	logger  *slog.Logger
}

// Option configures the Classifier.
type Option func(*Classifier)

// WithCache bounds and enables the classification cache. A size of zero
// disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Classifier) {
		if size > 0 {
			c.cache = lru.NewLRU[string, *domain.Classification](size, nil, ttl)
		} else {
			c.cache = nil
		}
	}
}

// WithEntityExtraction toggles entity extraction.
func WithEntityExtraction(enabled bool) Option {
	return func(c *Classifier) { c.extractEntities = enabled }
}

// WithExtractors injects the pluggable extractor registry.
func WithExtractors(reg *registry.ExtractorRegistry) Option {
	return func(c *Classifier) { c.extractors = reg }
}

// WithMaxAlternatives caps the alternatives list (default 3).
func WithMaxAlternatives(n int) Option {
	return func(c *Classifier) { c.maxAlternatives = n }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) { c.logger = logger }
}

// NewClassifier validates and compiles the intent set. Definition problems
// (empty name, no matching material, bad regex) are fatal here, never at
// classification time.
func NewClassifier(intents []domain.IntentDefinition, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		extractEntities: true,
		maxAlternatives: 3,
	}
	// Default: bounded cache, one hour TTL.
	c.cache = lru.NewLRU[string, *domain.Classification](1024, nil, time.Hour)
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}

	for _, def := range intents {
		if def.Name == "" {
			return nil, &domain.DefinitionError{Kind: "intent", ID: def.Name, Reason: "name is required"}
		}
		if len(def.KeywordGroups) == 0 && len(def.Patterns) == 0 && len(def.Examples) == 0 {
			return nil, &domain.DefinitionError{
				Kind: "intent", ID: def.Name,
				Reason: "at least one keyword group, pattern or example is required",
			}
		}
		ci := compiledIntent{def: def}
		for _, p := range def.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, &domain.DefinitionError{
					Kind: "intent", ID: def.Name,
					Reason: fmt.Sprintf("invalid pattern %q: %v", p, err),
				}
			}
			ci.patterns = append(ci.patterns, re)
		}
		c.intents = append(c.intents, ci)
	}
	return c, nil
}

// Intents returns the registered definitions.
func (c *Classifier) Intents() []domain.IntentDefinition {
	defs := make([]domain.IntentDefinition, len(c.intents))
	for i, ci := range c.intents {
		defs[i] = ci.def
	}
	return defs
}

// Classify scores the message and extracts entities. Internal faults never
// propagate: the result degrades to the fallback intent with confidence 0.
func (c *Classifier) Classify(ctx context.Context, message, userID string) (result *domain.Classification) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("classification panicked", "user_id", userID, "panic", r)
			result = &domain.Classification{
				Primary:        fallbackIntent(0),
				Confidence:     0,
				Method:         domain.MethodFallback,
				ProcessingTime: time.Since(start),
			}
		}
	}()

	normalized := Normalize(message)
	cacheKey := normalized
	if userID != "" {
		cacheKey = normalized + "|" + userID
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			c.metrics.ObserveCacheHit()
			c.metrics.ObserveClassification(domain.MethodCache, time.Since(start))
			hit := *cached
			hit.Method = domain.MethodCache
			hit.ProcessingTime = time.Since(start)
			return &hit
		}
	}

	keywordBest := c.scoreKeywords(normalized)
	patternBest := c.scorePatterns(normalized)

	result = c.selectPrimary(keywordBest, patternBest)

	if c.extractEntities {
		result.Entities = c.extract(ctx, message)
	}

	result.ProcessingTime = time.Since(start)
	c.metrics.ObserveClassification(result.Method, result.ProcessingTime)

	if c.cache != nil {
		c.cache.Add(cacheKey, result)
	}
	return result
}

// scored is an intent candidate produced by one scorer.
type scored struct {
	intent domain.Intent
	method string
}

// scoreKeywords applies the keyword scorer over all intents and returns the
// best candidate, or nil when nothing fires.
func (c *Classifier) scoreKeywords(normalized string) *scored {
	var best *scored
	for _, ci := range c.intents {
		score := 0.0
		for _, group := range ci.def.KeywordGroups {
			if len(group) == 0 {
				continue
			}
			all := true
			for _, kw := range group {
				if !strings.Contains(normalized, strings.ToLower(kw)) {
					all = false
					break
				}
			}
			if all {
				score += keywordGroupWeight * float64(len(group))
			}
		}
		for _, example := range ci.def.Examples {
			if normalized == Normalize(example) {
				score += exampleBonus
				break
			}
		}
		if score <= 0 {
			continue
		}
		score *= 1 + float64(ci.def.Priority)*priorityWeight
		if score > 1.0 {
			score = 1.0
		}
		if best == nil || score > best.intent.Confidence {
			best = &scored{
				intent: domain.Intent{
					Name:       ci.def.Name,
					Category:   ci.def.Category,
					WorkflowID: ci.def.WorkflowID,
					Confidence: score,
				},
				method: domain.MethodKeyword,
			}
		}
	}
	return best
}

// scorePatterns applies the regex scorer: a match contributes
// min(matchLength/messageLength, cap), weighted by priority; the best pattern
// per intent wins.
func (c *Classifier) scorePatterns(normalized string) *scored {
	if len(normalized) == 0 {
		return nil
	}
	var best *scored
	for _, ci := range c.intents {
		intentBest := 0.0
		for _, re := range ci.patterns {
			match := re.FindString(normalized)
			if match == "" {
				continue
			}
			score := float64(len(match)) / float64(len(normalized))
			if score > patternScoreCap {
				score = patternScoreCap
			}
			score *= 1 + float64(ci.def.Priority)*priorityWeight
			if score > intentBest {
				intentBest = score
			}
		}
		if intentBest <= 0 {
			continue
		}
		if best == nil || intentBest > best.intent.Confidence {
			best = &scored{
				intent: domain.Intent{
					Name:       ci.def.Name,
					Category:   ci.def.Category,
					WorkflowID: ci.def.WorkflowID,
					Confidence: intentBest,
				},
				method: domain.MethodPattern,
			}
		}
	}
	return best
}

// selectPrimary picks the higher-confidence candidate as primary and keeps
// the other as the alternative. Without any candidate the fixed fallback
// intent is reported at low confidence.
func (c *Classifier) selectPrimary(keyword, pattern *scored) *domain.Classification {
	switch {
	case keyword == nil && pattern == nil:
		return &domain.Classification{
			Primary:    fallbackIntent(fallbackConfidence),
			Confidence: fallbackConfidence,
			Method:     domain.MethodFallback,
		}
	case pattern == nil:
		return &domain.Classification{
			Primary:    keyword.intent,
			Confidence: keyword.intent.Confidence,
			Method:     keyword.method,
		}
	case keyword == nil:
		return &domain.Classification{
			Primary:    pattern.intent,
			Confidence: pattern.intent.Confidence,
			Method:     pattern.method,
		}
	}

	primary, alt := keyword, pattern
	if pattern.intent.Confidence > keyword.intent.Confidence {
		primary, alt = pattern, keyword
	}
	result := &domain.Classification{
		Primary:    primary.intent,
		Confidence: primary.intent.Confidence,
		Method:     primary.method,
	}
	if c.maxAlternatives > 0 && alt.intent.Name != primary.intent.Name {
		result.Alternatives = []domain.Intent{alt.intent}
	}
	if len(result.Alternatives) > c.maxAlternatives {
		result.Alternatives = result.Alternatives[:c.maxAlternatives]
	}
	return result
}

// extract runs registered extractors then the built-ins. Each extractor
// failure is logged and skipped; extraction as a whole never aborts.
func (c *Classifier) extract(ctx context.Context, message string) []domain.Entity {
	var entities []domain.Entity

	if c.extractors != nil {
		for _, reg := range c.extractors.All() {
			found, err := reg.Extractor.Extract(ctx, message)
			if err != nil {
				c.logger.Warn("entity extractor failed", "type", reg.Type, "err", err)
				continue
			}
			entities = append(entities, found...)
		}
	}

	entities = append(entities, extractBuiltins(message)...)
	return entities
}

func fallbackIntent(confidence float64) domain.Intent {
	return domain.Intent{Name: domain.FallbackIntentName, Confidence: confidence}
}

var strippable = regexp.MustCompile(`[^0-9A-Za-zÀ-ÖØ-öø-ÿ\s]`)
var whitespace = regexp.MustCompile(`\s+`)

// Normalize lowers the message and reduces it to letters, digits, whitespace
// and Latin accents, collapsing internal runs of whitespace.
func Normalize(message string) string {
	s := strings.TrimSpace(message)
	s = strippable.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}
