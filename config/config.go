package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Service struct {
	URL string `mapstructure:"url"`
}
type Services struct {
	ASR            Service `mapstructure:"asr"`
	Diarization    Service `mapstructure:"diarization"`
	Embedding      Service `mapstructure:"embedding"`
	Classifier     Service `mapstructure:"classifier"`
	Clustering     Service `mapstructure:"clustering"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}
type Conflict struct {
	Threshold           float64  `mapstructure:"threshold"`
	SimilarityThreshold float64  `mapstructure:"similarity_threshold"`
	ClusterNum          int      `mapstructure:"cluster_num"`
	SimilarityGate      bool     `mapstructure:"similarity_gate"`
	PairTimeoutMs       int      `mapstructure:"pair_timeout_ms"`
	Keywords            []string `mapstructure:"keywords"`
	EmbeddingDim        int      `mapstructure:"embedding_dim"`
	MaxIter             int      `mapstructure:"max_iter"`
}
type Root struct {
	Pipeline struct {
		Name      string `mapstructure:"name"`
		Version   string `mapstructure:"version"`
		LogLvl    string `mapstructure:"log_level"`
		LogFormat string `mapstructure:"log_format"`
		Workers   int    `mapstructure:"workers"`
	} `mapstructure:"pipeline"`
	Services Services `mapstructure:"services"`
	Conflict Conflict `mapstructure:"conflict"`
	Paths    struct {
		Outputs  string `mapstructure:"outputs"`
		Database string `mapstructure:"database"`
	} `mapstructure:"paths"`
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	// File is the config file that was read, empty when running on defaults.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "meeting-conflicts")
	v.SetDefault("pipeline.version", "0.1.0")
	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("pipeline.log_format", "text")
	v.SetDefault("pipeline.workers", 0)
	for _, svc := range []string{"asr", "diarization", "embedding", "classifier", "clustering"} {
		v.SetDefault("services."+svc+".url", "")
	}
	v.SetDefault("services.timeout_seconds", 60)
	v.SetDefault("conflict.threshold", 0.8)
	v.SetDefault("conflict.similarity_threshold", 0.7)
	v.SetDefault("conflict.cluster_num", 3)
	v.SetDefault("conflict.similarity_gate", false)
	v.SetDefault("conflict.pair_timeout_ms", 30000)
	v.SetDefault("conflict.keywords", []string{})
	v.SetDefault("conflict.embedding_dim", 256)
	v.SetDefault("conflict.max_iter", 100)
	v.SetDefault("paths.outputs", "output")
	v.SetDefault("paths.database", filepath.Join("output", "runs.db"))
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
}

// Load reads path when given, otherwise the first existing file of
// config/<CONFIG_ENV>/config.yaml and src/shared/config.yaml. Without any file
// the defaults apply. MEETING_* environment variables override file values.
func Load(path string) (*Root, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix("MEETING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess := []string{
			filepath.Join("config", env, "config.yaml"),
			filepath.Join("src", "shared", "config.yaml"),
		}
		for _, p := range guess {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *Root) Validate() error {
	var errs []error
	if r.Conflict.Threshold < 0 || r.Conflict.Threshold > 1 {
		errs = append(errs, fmt.Errorf("conflict.threshold %v outside [0,1]", r.Conflict.Threshold))
	}
	if r.Conflict.SimilarityThreshold < -1 || r.Conflict.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("conflict.similarity_threshold %v outside [-1,1]", r.Conflict.SimilarityThreshold))
	}
	if r.Conflict.ClusterNum < 1 {
		errs = append(errs, fmt.Errorf("conflict.cluster_num must be >= 1, got %d", r.Conflict.ClusterNum))
	}
	if r.Conflict.PairTimeoutMs < 0 {
		errs = append(errs, errors.New("conflict.pair_timeout_ms must be >= 0"))
	}
	if r.Pipeline.Workers < 0 {
		errs = append(errs, errors.New("pipeline.workers must be >= 0"))
	}
	return errors.Join(errs...)
}

func (r *Root) PairTimeout() time.Duration {
	return time.Duration(r.Conflict.PairTimeoutMs) * time.Millisecond
}

func (r *Root) ServiceTimeout() time.Duration { return DurSeconds(r.Services.TimeoutSeconds) }

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
