package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Service struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}
type Services struct {
	Transcribe Service `yaml:"transcribe"`
	Sentiment  Service `yaml:"sentiment"`
}
type Transcription struct {
	MediaFormat  string `yaml:"media_format"`
	LanguageCode string `yaml:"language_code"`
	MaxSpeakers  int    `yaml:"max_speakers"`
	Bucket       string `yaml:"bucket"`
}
type Sentiment struct {
	MaxChunkSize int    `yaml:"max_chunk_size"`
	LanguageCode string `yaml:"language_code"`
	// speaker label -> role ("agent" | "customer")
	Roles map[string]string `yaml:"roles"`
}
type LLM struct {
	Provider          string `yaml:"provider"` // "openai" | "mock"
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	ChatModel         string `yaml:"chat_model"`
	EmbeddingModel    string `yaml:"embedding_model"`
	SummaryMaxTokens  int    `yaml:"summary_max_tokens"`
	InsightsMaxTokens int    `yaml:"insights_max_tokens"`
	// nil means unset; 0 is a valid temperature.
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"top_p"`
}
type Polling struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	TimeoutSeconds  int `yaml:"timeout_seconds"`
}
type Store struct {
	Backend     string `yaml:"backend"` // "memory" | "file" | "postgres"
	PostgresURL string `yaml:"postgres_url"`
	Table       string `yaml:"table"`
}
type Search struct {
	Backend        string `yaml:"backend"` // "" | "memory" | "pgvector" | "milvus"
	PostgresURL    string `yaml:"postgres_url"`
	Table          string `yaml:"table"`
	MilvusAddr     string `yaml:"milvus_addr"`
	MilvusUsername string `yaml:"milvus_username"`
	MilvusPassword string `yaml:"milvus_password"`
	MilvusAPIKey   string `yaml:"milvus_api_key"`
	Collection     string `yaml:"collection"`
	Dim            int    `yaml:"dim"`
}
type Objects struct {
	Root   string `yaml:"root"`
	Prefix string `yaml:"prefix"`
}
type Root struct {
	Pipeline struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
		LogLvl  string `yaml:"log_level"`
	} `yaml:"pipeline"`
	Services      Services      `yaml:"services"`
	Transcription Transcription `yaml:"transcription"`
	Sentiment     Sentiment     `yaml:"sentiment"`
	LLM           LLM           `yaml:"llm"`
	Polling       Polling       `yaml:"polling"`
	Store         Store         `yaml:"store"`
	Search        Search        `yaml:"search"`
	Objects       Objects       `yaml:"objects"`
	Paths         struct {
		Data    string `yaml:"data"`
		Outputs string `yaml:"outputs"`
	} `yaml:"paths"`
}

// Load reads the YAML config at path, or the first of the CONFIG_ENV guesses
// when path is empty, then layers CALLPIPE_* environment overrides and
// defaults on top. Missing guessed files are not an error.
func Load(path string) (*Root, error) {
	var cfg Root
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	} else {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess := []string{
			filepath.Join("config", env, "config.yaml"),
			filepath.Join("config", "config.yaml"),
		}
		for _, p := range guess {
			err := decodeFile(p, &cfg)
			if err == nil {
				break
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}
	applyEnv(&cfg)
	cfg.applyDefaults()
	return &cfg, cfg.Validate()
}

func decodeFile(path string, cfg *Root) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides file values with CALLPIPE_<SECTION>_<KEY> variables.
func applyEnv(c *Root) {
	v := viper.New()
	v.SetEnvPrefix("CALLPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "CALLPIPE_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("store.postgres_url", "CALLPIPE_STORE_POSTGRES_URL", "DATABASE_URL")

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	str("pipeline.log_level", &c.Pipeline.LogLvl)
	str("services.transcribe.url", &c.Services.Transcribe.URL)
	str("services.sentiment.url", &c.Services.Sentiment.URL)
	str("transcription.bucket", &c.Transcription.Bucket)
	str("llm.provider", &c.LLM.Provider)
	str("llm.api_key", &c.LLM.APIKey)
	str("llm.base_url", &c.LLM.BaseURL)
	str("llm.chat_model", &c.LLM.ChatModel)
	str("llm.embedding_model", &c.LLM.EmbeddingModel)
	num("polling.interval_seconds", &c.Polling.IntervalSeconds)
	num("polling.timeout_seconds", &c.Polling.TimeoutSeconds)
	str("store.backend", &c.Store.Backend)
	str("store.postgres_url", &c.Store.PostgresURL)
	str("search.backend", &c.Search.Backend)
	str("search.postgres_url", &c.Search.PostgresURL)
	str("search.milvus_addr", &c.Search.MilvusAddr)
	str("search.milvus_username", &c.Search.MilvusUsername)
	str("search.milvus_password", &c.Search.MilvusPassword)
	str("search.milvus_api_key", &c.Search.MilvusAPIKey)
	str("objects.root", &c.Objects.Root)
	str("paths.outputs", &c.Paths.Outputs)
}

func (c *Root) applyDefaults() {
	def := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	defInt := func(dst *int, v int) {
		if *dst <= 0 {
			*dst = v
		}
	}

	def(&c.Pipeline.Name, "call-pipeline")
	def(&c.Pipeline.LogLvl, "info")
	defInt(&c.Services.Transcribe.TimeoutSeconds, 60)
	defInt(&c.Services.Sentiment.TimeoutSeconds, 30)
	def(&c.Transcription.MediaFormat, "mp3")
	def(&c.Transcription.LanguageCode, "en-US")
	defInt(&c.Transcription.MaxSpeakers, 2)
	defInt(&c.Sentiment.MaxChunkSize, 4800)
	def(&c.Sentiment.LanguageCode, "en")
	if c.Sentiment.Roles == nil {
		c.Sentiment.Roles = map[string]string{"spk_0": "agent", "spk_1": "customer"}
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "mock"
		if c.LLM.APIKey != "" {
			c.LLM.Provider = "openai"
		}
	}
	def(&c.LLM.ChatModel, "gpt-4o-mini")
	def(&c.LLM.EmbeddingModel, "text-embedding-3-small")
	defInt(&c.LLM.SummaryMaxTokens, 300)
	defInt(&c.LLM.InsightsMaxTokens, 400)
	defFloat := func(dst **float32, v float32) {
		if *dst == nil {
			*dst = &v
		}
	}
	defFloat(&c.LLM.Temperature, 0.3)
	defFloat(&c.LLM.TopP, 0.9)
	defInt(&c.Polling.IntervalSeconds, 10)
	defInt(&c.Polling.TimeoutSeconds, 3600)
	def(&c.Store.Backend, "file")
	def(&c.Store.Table, "call_analyses")
	def(&c.Search.Table, "call_embeddings")
	def(&c.Search.Collection, "call_summaries")
	def(&c.Search.MilvusAddr, "localhost:19530")
	defInt(&c.Search.Dim, 1536)
	if c.Search.PostgresURL == "" {
		c.Search.PostgresURL = c.Store.PostgresURL
	}
	def(&c.Paths.Data, "data")
	def(&c.Paths.Outputs, "outputs")
	def(&c.Objects.Root, filepath.Join(c.Paths.Data, "objects"))
	def(&c.Objects.Prefix, "calls/")
}

func (c *Root) Validate() error {
	var errs []string
	switch c.Store.Backend {
	case "memory", "file":
	case "postgres":
		if strings.TrimSpace(c.Store.PostgresURL) == "" {
			errs = append(errs, "store.postgres_url is required for the postgres backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store.backend %q", c.Store.Backend))
	}
	switch c.Search.Backend {
	case "", "none", "memory", "milvus":
	case "pgvector":
		if strings.TrimSpace(c.Search.PostgresURL) == "" {
			errs = append(errs, "search.postgres_url is required for the pgvector backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown search.backend %q", c.Search.Backend))
	}
	switch c.LLM.Provider {
	case "mock":
	case "openai":
		if strings.TrimSpace(c.LLM.APIKey) == "" {
			errs = append(errs, "llm.api_key is required for the openai provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider))
	}
	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Sprintf("llm.temperature %v out of range [0, 2]", *t))
	}
	if p := c.LLM.TopP; p != nil && (*p < 0 || *p > 1) {
		errs = append(errs, fmt.Sprintf("llm.top_p %v out of range [0, 1]", *p))
	}
	for spk, role := range c.Sentiment.Roles {
		if role != "agent" && role != "customer" {
			errs = append(errs, fmt.Sprintf("sentiment.roles.%s: unknown role %q", spk, role))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (p Polling) Interval() time.Duration { return DurSeconds(p.IntervalSeconds) }
func (p Polling) Timeout() time.Duration  { return DurSeconds(p.TimeoutSeconds) }
