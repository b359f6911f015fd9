package config

import "sync"

type MatcherConfig struct {
	Threshold        float64
	PreviewThreshold float64
	MinMargin        float64
}

var (
	matcherConfig *MatcherConfig
	matcherOnce   sync.Once
)

func LoadMatcherConfig() *MatcherConfig {
	matcherOnce.Do(func() {
		matcherConfig = &MatcherConfig{
			Threshold:        mustFloat("MATCH_THRESHOLD", 90),
			PreviewThreshold: mustFloat("MATCH_PREVIEW_THRESHOLD", 70),
			MinMargin:        mustFloat("MATCH_MIN_MARGIN", 0),
		}
	})
	return matcherConfig
}
