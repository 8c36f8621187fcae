package cmd

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/notify"
)

const (
	app = "cv-matcher"
)

type Config struct {
	ExcludeFile string            `mapstructure:"exclude-file"`
	Vectorizer  *VectorizerConfig `mapstructure:"vectorizer"`
	Gemini      *GeminiConfig     `mapstructure:"gemini"`
	Index       *IndexConfig      `mapstructure:"index"`
	Qdrant      *QdrantConfig     `mapstructure:"qdrant"`
	Matching    *MatchingConfig   `mapstructure:"matching"`
	Skills      *SkillsConfig     `mapstructure:"skills"`
	Storage     *StorageConfig    `mapstructure:"storage"`
	Notify      *NotifyConfig     `mapstructure:"notify"`
}

type VectorizerConfig struct {
	// Provider is "hashing" (default) or "gemini".
	Provider  string `mapstructure:"provider"`
	Dimension int    `mapstructure:"dimension"`
	CacheSize int    `mapstructure:"cache-size"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	APIKey     string `mapstructure:"api-key"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type IndexConfig struct {
	// Backend is "memory" (default) or "qdrant".
	Backend string `mapstructure:"backend"`
}

type QdrantConfig struct {
	URL              string `mapstructure:"url"`
	APIKeyFile       string `mapstructure:"api-key-file"`
	APIKey           string `mapstructure:"api-key"`
	CollectionPrefix string `mapstructure:"collection-prefix"`
}

type MatchingConfig struct {
	Workers            int      `mapstructure:"workers"`
	MinMatchPercentage float64  `mapstructure:"min-match-percentage"`
	SkipFilters        []string `mapstructure:"skip-filters"`
}

type SkillsConfig struct {
	Keywords []string          `mapstructure:"keywords"`
	Synonyms map[string]string `mapstructure:"synonyms"`
}

type StorageConfig struct {
	DSN string `mapstructure:"dsn"`
}

type NotifyConfig struct {
	Enabled bool                 `mapstructure:"enabled"`
	SMTP    *notify.SMTPConfig   `mapstructure:"smtp"`
	Twilio  *notify.TwilioConfig `mapstructure:"twilio"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-matcher ranks parsed CVs against job postings and explains every match",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"storage.dsn":         "CV_MATCHER_DSN",
		"gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"qdrant.url":          "QDRANT_URL",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// .env is optional; only a malformed one is fatal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config every setting has a default.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}
	config.defaults()

	return config, nil
}

func (c *Config) defaults() {
	if c.Vectorizer == nil {
		c.Vectorizer = &VectorizerConfig{}
	}
	if c.Gemini == nil {
		c.Gemini = &GeminiConfig{}
	}
	if c.Index == nil {
		c.Index = &IndexConfig{}
	}
	if c.Qdrant == nil {
		c.Qdrant = &QdrantConfig{}
	}
	if c.Matching == nil {
		c.Matching = &MatchingConfig{}
	}
	if c.Skills == nil {
		c.Skills = &SkillsConfig{}
	}
	if c.Storage == nil {
		c.Storage = &StorageConfig{}
	}
	if c.Notify == nil {
		c.Notify = &NotifyConfig{}
	}
}

func (c *Config) engineConfig() matching.Config {
	return matching.Config{
		Workers:     c.Matching.Workers,
		Synonyms:    c.Skills.Synonyms,
		ExcludeFile: c.ExcludeFile,
		SkipFilters: c.Matching.SkipFilters,
	}
}
