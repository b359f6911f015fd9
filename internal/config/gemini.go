package config

import (
	"os"
	"sync"
	"time"
)

type GeminiConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	EmbeddingModel    string
	EnableEmbeddings  bool
	InputCostPerMTok  float64
	OutputCostPerMTok float64
	CircuitCooldown   time.Duration
}

var (
	geminiConfig *GeminiConfig
	geminiOnce   sync.Once
)

func LoadGeminiConfig() *GeminiConfig {
	geminiOnce.Do(func() {
		geminiConfig = &GeminiConfig{
			APIKey:            os.Getenv("GEMINI_API_KEY"),
			BaseURL:           os.Getenv("GEMINI_BASE_URL"),
			Model:             getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbeddingModel:    getEnv("GEMINI_EMBEDDING_MODEL", "gemini-embedding-001"),
			EnableEmbeddings:  mustBool("GEMINI_ENABLE_EMBEDDINGS", false),
			InputCostPerMTok:  mustFloat("GEMINI_INPUT_COST_PER_MTOK", 0.3),
			OutputCostPerMTok: mustFloat("GEMINI_OUTPUT_COST_PER_MTOK", 2.5),
			CircuitCooldown:   mustDuration("GEMINI_CIRCUIT_COOLDOWN", 30*time.Second),
		}
	})
	return geminiConfig
}
