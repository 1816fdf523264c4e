package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// ProviderConfig describes one OpenAI-compatible completion endpoint in
// the fallback chain.
type ProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
}

type Config struct {
	// HTTP surface.
	HTTPPort string

	// LLM fallback chain, cheap-fast first.
	ProviderChain []ProviderConfig
	LLMTimeoutS   int
	DocBudgetS    int
	DocCostBudget float64

	// Embeddings endpoint.
	EmbeddingsAPIURL string
	EmbeddingsAPIKey string
	EmbeddingsModel  string

	// Vision model used for scanned pages and low-confidence OCR.
	VisionModel string

	// Vector store.
	WeaviateHost   string
	WeaviateScheme string

	// Pipeline tuning.
	WorkerConcurrency   int
	IngestQueueSize     int
	EnableCritic        bool
	EnableGating        bool
	SigmaMin            float64
	FuzzyThreshold      float64
	ChunkTargetTokens   int
	ChunkMaxTokens      int
	RecencyTauDays      float64
	MaxContentChars     int
	MaxChunkChars       int
	MaxImageExtractions int
	EnrichmentVersion   string

	// Controlled vocabulary and export vault.
	VocabularyPath string
	VaultPath      string
	ExportAutoLink string // "first" or "all"

	// Local stores and tools.
	DBPath        string
	TesseractPath string
}

func getEnv(key, defaultValue string, printEnv bool) string {
	logger := log.Default()
	value := os.Getenv(key)
	if printEnv {
		logger.Info("Env", "key", key, "value", value)
	}
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int, printEnv bool) int {
	raw := getEnv(key, "", printEnv)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64, printEnv bool) float64 {
	raw := getEnv(key, "", printEnv)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool, printEnv bool) bool {
	raw := getEnv(key, "", printEnv)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

// parseProviderChain turns "groq,openai" into provider configs read from
// GROQ_API_URL / GROQ_API_KEY / GROQ_MODEL and so on. Entries with no
// configured URL are skipped so a partial chain still works.
func parseProviderChain(raw string, printEnv bool) []ProviderConfig {
	var chain []ProviderConfig
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		prefix := strings.ToUpper(name)
		baseURL := getEnv(prefix+"_API_URL", "", printEnv)
		if baseURL == "" {
			continue
		}
		chain = append(chain, ProviderConfig{
			Name:    name,
			BaseURL: baseURL,
			APIKey:  getEnv(prefix+"_API_KEY", "", printEnv),
			Model:   getEnv(prefix+"_MODEL", "", printEnv),
		})
	}
	return chain
}

func LoadConfig(printEnv bool) (*Config, error) {
	_ = godotenv.Load()

	conf := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8787", printEnv),

		ProviderChain: parseProviderChain(getEnv("LLM_PROVIDER_CHAIN", "groq,openai", printEnv), printEnv),
		LLMTimeoutS:   getEnvInt("LLM_TIMEOUT_S", 30, printEnv),
		DocBudgetS:    getEnvInt("DOC_BUDGET_S", 300, printEnv),
		DocCostBudget: getEnvFloat("DOC_COST_BUDGET_USD", 0.50, printEnv),

		EmbeddingsAPIURL: getEnv("EMBEDDINGS_API_URL", "https://api.openai.com/v1", printEnv),
		EmbeddingsAPIKey: getEnv("EMBEDDINGS_API_KEY", "", printEnv),
		EmbeddingsModel:  getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small", printEnv),

		VisionModel: getEnv("VISION_MODEL", "gpt-4o-mini", printEnv),

		WeaviateHost:   getEnv("WEAVIATE_HOST", "localhost:8080", printEnv),
		WeaviateScheme: getEnv("WEAVIATE_SCHEME", "http", printEnv),

		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 4, printEnv),
		IngestQueueSize:     getEnvInt("INGEST_QUEUE_SIZE", 64, printEnv),
		EnableCritic:        getEnvBool("ENABLE_CRITIC", false, printEnv),
		EnableGating:        getEnvBool("ENABLE_GATING", true, printEnv),
		SigmaMin:            getEnvFloat("SIGMA_MIN", 0.2, printEnv),
		FuzzyThreshold:      getEnvFloat("DUPLICATE_FUZZY_THRESHOLD", 0.92, printEnv),
		ChunkTargetTokens:   getEnvInt("CHUNK_TARGET_TOKENS", 500, printEnv),
		ChunkMaxTokens:      getEnvInt("CHUNK_MAX_TOKENS", 800, printEnv),
		RecencyTauDays:      getEnvFloat("RECENCY_TAU_DAYS", 180, printEnv),
		MaxContentChars:     getEnvInt("MAX_CONTENT_CHARS", 8000, printEnv),
		MaxChunkChars:       getEnvInt("MAX_CHUNK_CHARS", 200000, printEnv),
		MaxImageExtractions: getEnvInt("MAX_IMAGE_EXTRACTIONS", 2, printEnv),
		EnrichmentVersion:   getEnv("ENRICHMENT_VERSION", "2", printEnv),

		VocabularyPath: getEnv("VOCABULARY_PATH", "./vocabulary.yaml", printEnv),
		VaultPath:      getEnv("EXPORT_VAULT_PATH", "./vault", printEnv),
		ExportAutoLink: getEnv("EXPORT_AUTO_LINK", "first", printEnv),

		DBPath:        getEnv("DB_PATH", "./output/sqlite/inkwell.db", printEnv),
		TesseractPath: getEnv("TESSERACT_PATH", "tesseract", printEnv),
	}

	return conf, nil
}
