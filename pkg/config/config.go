package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Extractor modes understood by the pipeline.
const (
	ExtractorRules    = "rules"
	ExtractorSemantic = "semantic"
)

// Config holds all application configuration
type Config struct {
	Input      InputConfig
	Output     OutputConfig
	Extractor  ExtractorConfig
	Gemini     GeminiConfig
	Classify   ClassifyConfig
	Enrich     EnrichConfig
	Database   DatabaseConfig
	Mail       MailConfig
	Watch      WatchConfig
	Validation ValidationConfig
}

type InputConfig struct {
	PDFPath     string
	PageRange   string
	Institution string
}

type OutputConfig struct {
	Dir               string
	CSVName           string
	JSONName          string
	ClassifiedCSVName string

	// ArchiveDir keeps a copy of each run's outputs when set. Empty
	// disables archiving.
	ArchiveDir string
}

type ExtractorConfig struct {
	Mode string
}

type GeminiConfig struct {
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// Enabled reports whether the semantic paths may be used at all.
func (c GeminiConfig) Enabled() bool { return c.APIKey != "" }

type ClassifyConfig struct {
	CachePath string
}

type EnrichConfig struct {
	Enabled           bool
	CachePath         string
	RequestsPerMinute int
}

type DatabaseConfig struct {
	URL string
}

// Enabled reports whether run history persistence is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

type MailConfig struct {
	ResendAPIKey string
	From         string
	To           string
}

type WatchConfig struct {
	Schedule       string
	MetricsEnabled bool
	MetricsPort    int
}

type ValidationConfig struct {
	ExpectedRecords  int
	ExpectedSections map[string]int
	ExpectedGross    float64
	GrossTolerance   float64
}

// Load reads configuration from the environment, after loading a .env
// file when one is present in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Input: InputConfig{
			PDFPath:     getEnv("INPUT_PDF", "input/bradesco-ativos.pdf"),
			PageRange:   getEnv("PAGE_RANGE", ""),
			Institution: getEnv("INSTITUTION", "Bradesco"),
		},
		Output: OutputConfig{
			Dir:               getEnv("OUTPUT_DIR", "output"),
			CSVName:           getEnv("OUTPUT_CSV", "investimentos.csv"),
			JSONName:          getEnv("OUTPUT_JSON", "investimentos.json"),
			ClassifiedCSVName: getEnv("OUTPUT_CLASSIFIED_CSV", "investimentos_classificados.csv"),
			ArchiveDir:        getEnv("OUTPUT_ARCHIVE", ""),
		},
		Extractor: ExtractorConfig{
			Mode: getEnv("EXTRACTOR", ExtractorRules),
		},
		Gemini: GeminiConfig{
			APIKey:         getEnv("GEMINI_API_KEY", ""),
			Model:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			TimeoutSeconds: getEnvAsInt("GEMINI_TIMEOUT_SECONDS", 120),
		},
		Classify: ClassifyConfig{
			CachePath: getEnv("CLASSIFY_CACHE", "output/.classification_cache.json"),
		},
		Enrich: EnrichConfig{
			Enabled:           getEnvAsBool("CNPJ_ENRICH", false),
			CachePath:         getEnv("CNPJ_CACHE", "output/.cnpj_cache.json"),
			RequestsPerMinute: getEnvAsInt("CNPJ_REQUESTS_PER_MINUTE", 3),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Mail: MailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			From:         getEnv("MAIL_FROM", "extrator <onboarding@resend.dev>"),
			To:           getEnv("MAIL_TO", ""),
		},
		Watch: WatchConfig{
			Schedule:       getEnv("WATCH_SCHEDULE", "0 7 * * *"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Validation: ValidationConfig{
			ExpectedRecords: getEnvAsInt("EXPECTED_RECORDS", 0),
			ExpectedGross:   getEnvAsFloat("EXPECTED_GROSS_TOTAL", 0),
			GrossTolerance:  getEnvAsFloat("EXPECTED_GROSS_TOLERANCE", 1000),
		},
	}

	if cfg.Extractor.Mode != ExtractorRules && cfg.Extractor.Mode != ExtractorSemantic {
		return nil, fmt.Errorf("invalid EXTRACTOR %q (want %q or %q)", cfg.Extractor.Mode, ExtractorRules, ExtractorSemantic)
	}

	sections, err := parseSectionCounts(getEnv("EXPECTED_SECTIONS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid EXPECTED_SECTIONS: %w", err)
	}
	cfg.Validation.ExpectedSections = sections

	return cfg, nil
}

// parseSectionCounts reads "pos_fixado=19,pre_fixado=3" into a count per
// section key. Empty input means no per-section expectations.
func parseSectionCounts(value string) (map[string]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	counts := make(map[string]int)
	for _, part := range strings.Split(value, ",") {
		key, raw, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("%q is not section=count", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%q is not a valid count", raw)
		}
		counts[strings.TrimSpace(key)] = n
	}
	return counts, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
