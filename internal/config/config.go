package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the copyless API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Lexical   LexicalConfig   `yaml:"lexical"`
	Semantic  SemanticConfig  `yaml:"semantic"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Check     CheckConfig     `yaml:"check"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CorpusConfig holds reference corpus settings.
type CorpusConfig struct {
	Path        string `yaml:"path"`
	Granularity string `yaml:"granularity"` // paragraph (blank-line blocks) or sentence
}

// LexicalConfig holds MinHash/LSH index settings.
type LexicalConfig struct {
	Permutations int     `yaml:"permutations"` // MinHash signature length
	Threshold    float64 `yaml:"threshold"`    // Jaccard similarity cut-off for candidates
	ShingleSize  int     `yaml:"shingle_size"` // words per shingle
	TopK         int     `yaml:"top_k"`
}

// SemanticConfig holds embedding index settings.
type SemanticConfig struct {
	TopK       int     `yaml:"top_k"`
	ScoreCurve string  `yaml:"score_curve"` // inverse, exponential, linear
	CurveScale float64 `yaml:"curve_scale"` // decay rate (exponential) or max distance (linear)
}

// ScoringConfig holds score fusion settings. The two weights must sum to 1.0.
type ScoringConfig struct {
	WeightLexical  float64 `yaml:"weight_lexical"`
	WeightSemantic float64 `yaml:"weight_semantic"`
	Aggregate      string  `yaml:"aggregate"` // max or mean_top_n
	TopN           int     `yaml:"top_n"`     // matches considered by mean_top_n
}

// CheckConfig holds request validation settings.
type CheckConfig struct {
	MinInputChars int `yaml:"min_input_chars"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// CacheConfig holds the optional embedding cache store settings.
// Empty addrs disables the cache.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// weightSumTolerance is the float tolerance for the weight-sum invariant.
const weightSumTolerance = 1e-9

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Corpus.Granularity == "" {
		c.Corpus.Granularity = "paragraph"
	}
	if c.Lexical.Permutations <= 0 {
		c.Lexical.Permutations = 128
	}
	if c.Lexical.Threshold <= 0 {
		c.Lexical.Threshold = 0.5
	}
	if c.Lexical.ShingleSize <= 0 {
		c.Lexical.ShingleSize = 3
	}
	if c.Lexical.TopK <= 0 {
		c.Lexical.TopK = 5
	}
	if c.Semantic.TopK <= 0 {
		c.Semantic.TopK = 5
	}
	if c.Semantic.ScoreCurve == "" {
		c.Semantic.ScoreCurve = "inverse"
	}
	if c.Semantic.CurveScale <= 0 {
		c.Semantic.CurveScale = 1.0
	}
	if c.Scoring.WeightLexical == 0 && c.Scoring.WeightSemantic == 0 {
		c.Scoring.WeightLexical = 0.6
		c.Scoring.WeightSemantic = 0.4
	}
	if c.Scoring.Aggregate == "" {
		c.Scoring.Aggregate = "max"
	}
	if c.Scoring.TopN <= 0 {
		c.Scoring.TopN = 5
	}
	if c.Check.MinInputChars <= 0 {
		c.Check.MinInputChars = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness. Violations fail startup;
// nothing here is re-checked at request time.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Corpus.Path == "" {
		return fmt.Errorf("corpus.path is required")
	}
	switch c.Corpus.Granularity {
	case "paragraph", "sentence":
	default:
		return fmt.Errorf("corpus.granularity must be \"paragraph\" or \"sentence\", got %q", c.Corpus.Granularity)
	}
	if c.Lexical.Threshold <= 0 || c.Lexical.Threshold >= 1 {
		return fmt.Errorf("lexical.threshold must be in (0, 1), got %v", c.Lexical.Threshold)
	}
	if sum := c.Scoring.WeightLexical + c.Scoring.WeightSemantic; math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("scoring.weight_lexical + scoring.weight_semantic must sum to 1.0, got %v", sum)
	}
	if c.Scoring.WeightLexical < 0 || c.Scoring.WeightSemantic < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	switch c.Scoring.Aggregate {
	case "max", "mean_top_n":
	default:
		return fmt.Errorf("scoring.aggregate must be \"max\" or \"mean_top_n\", got %q", c.Scoring.Aggregate)
	}
	switch c.Semantic.ScoreCurve {
	case "inverse", "exponential", "linear":
	default:
		return fmt.Errorf(
			"semantic.score_curve must be \"inverse\", \"exponential\" or \"linear\", got %q",
			c.Semantic.ScoreCurve,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
