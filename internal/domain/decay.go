package domain

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultExpiryDays applies to categories outside the known set.
const DefaultExpiryDays = 180

var defaultExpiryWindows = map[KnowledgeType]float64{
	KnowledgeTypeMarketData: 90,
	KnowledgeTypeCompetitor: 60,
	KnowledgeTypePainPoint:  730,
	KnowledgeTypeTrend:      180,
	KnowledgeTypeRegulation: 365,
	KnowledgeTypeTechnology: 120,
}

// DecayPolicy holds the per-category expiry windows used for linear decay.
type DecayPolicy struct {
	DefaultDays float64                   `yaml:"default_days"`
	Windows     map[KnowledgeType]float64 `yaml:"windows"`
}

// DefaultDecayPolicy returns the built-in expiry table.
func DefaultDecayPolicy() DecayPolicy {
	windows := make(map[KnowledgeType]float64, len(defaultExpiryWindows))
	for k, v := range defaultExpiryWindows {
		windows[k] = v
	}
	return DecayPolicy{DefaultDays: DefaultExpiryDays, Windows: windows}
}

// LoadDecayPolicy reads a YAML override file on top of the default table.
// Only the windows present in the file are replaced.
func LoadDecayPolicy(path string) (DecayPolicy, error) {
	policy := DefaultDecayPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("failed to read decay policy: %w", err)
	}

	var override DecayPolicy
	if err := yaml.Unmarshal(data, &override); err != nil {
		return policy, fmt.Errorf("failed to parse decay policy: %w", err)
	}

	if override.DefaultDays < 0 {
		return policy, fmt.Errorf("decay policy default_days must be positive")
	}
	if override.DefaultDays > 0 {
		policy.DefaultDays = override.DefaultDays
	}

	for t, days := range override.Windows {
		if days <= 0 {
			return policy, fmt.Errorf("decay policy window for %s must be positive", t)
		}
		policy.Windows[t] = days
	}

	return policy, nil
}

// ExpiryDays returns the expiry window for t, falling back to the default window.
func (p DecayPolicy) ExpiryDays(t KnowledgeType) float64 {
	if days, ok := p.Windows[t]; ok && days > 0 {
		return days
	}
	if p.DefaultDays > 0 {
		return p.DefaultDays
	}
	return DefaultExpiryDays
}

// Freshness is 1 at verification time and falls linearly to 0 at the end of the
// expiry window. Verification times in the future score 1.
func (p DecayPolicy) Freshness(t KnowledgeType, lastVerifiedAt, now time.Time) float64 {
	elapsedDays := now.Sub(lastVerifiedAt).Hours() / 24
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	return Clamp01(1 - elapsedDays/p.ExpiryDays(t))
}

// EffectiveConfidence scores an entry at the given instant.
func (p DecayPolicy) EffectiveConfidence(e *KnowledgeEntry, now time.Time) (freshness, effective float64) {
	freshness = p.Freshness(e.KnowledgeType, e.LastVerifiedAt, now)
	return freshness, Clamp01(e.Confidence) * freshness
}

var defaultPolicy = DecayPolicy{DefaultDays: DefaultExpiryDays, Windows: defaultExpiryWindows}

// ExpiryDays returns the default expiry window for t.
func ExpiryDays(t KnowledgeType) float64 {
	return defaultPolicy.ExpiryDays(t)
}

// Freshness applies the default decay table.
func Freshness(t KnowledgeType, lastVerifiedAt, now time.Time) float64 {
	return defaultPolicy.Freshness(t, lastVerifiedAt, now)
}

// EffectiveConfidence multiplies raw confidence by freshness.
func EffectiveConfidence(confidence, freshness float64) float64 {
	return Clamp01(confidence) * Clamp01(freshness)
}

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
