package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/cvparse"
	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/index"
	"github.com/spigell/cv-matcher/internal/notify"
	"github.com/spigell/cv-matcher/internal/secrets"
	"github.com/spigell/cv-matcher/internal/storage"
	"github.com/spigell/cv-matcher/internal/talent"
	"github.com/spigell/cv-matcher/internal/utils"
	"github.com/spigell/cv-matcher/internal/vectorizer"
	"github.com/spigell/cv-matcher/internal/vectorizer/gemini"
)

func newVectorizer(ctx context.Context, cfg *Config, logger *zap.Logger) (vectorizer.Vectorizer, error) {
	var backend vectorizer.Vectorizer

	switch provider := strings.ToLower(strings.TrimSpace(cfg.Vectorizer.Provider)); provider {
	case "", "hashing":
		backend = vectorizer.NewHashing(cfg.Vectorizer.Dimension)
	case "gemini":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  cfg.Gemini.APIKeyFile,
			Value: cfg.Gemini.APIKey,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
		}

		embedder, err := gemini.NewEmbedder(ctx, apiKey, cfg.Gemini.Model, cfg.Vectorizer.Dimension, cfg.Gemini.MaxRetries,
			logger.With(zap.String("provider", "gemini"), zap.String("model", cfg.Gemini.Model)))
		if err != nil {
			return nil, err
		}
		backend = embedder
	default:
		return nil, fmt.Errorf("unsupported vectorizer provider: %s", cfg.Vectorizer.Provider)
	}

	cached, err := vectorizer.NewCached(backend, cfg.Vectorizer.CacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func newIndexBuilder(cfg *Config, logger *zap.Logger) (index.Builder, error) {
	switch backend := strings.ToLower(strings.TrimSpace(cfg.Index.Backend)); backend {
	case "", "memory":
		return index.NewMemoryBuilder(), nil
	case "qdrant":
		if cfg.Qdrant.URL == "" {
			return nil, errors.New("qdrant.url is required for the qdrant index backend")
		}

		apiKey, err := secrets.Optional(secrets.Source{
			Name:  "qdrant api key",
			File:  cfg.Qdrant.APIKeyFile,
			Value: cfg.Qdrant.APIKey,
			Env:   "QDRANT_API_KEY",
		})
		if err != nil {
			return nil, err
		}

		return index.NewQdrantBuilder(cfg.Qdrant.URL, apiKey, cfg.Qdrant.CollectionPrefix, logger.With(zap.String("index", "qdrant")))
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Index.Backend)
	}
}

// newStore opens postgres when a DSN is configured and falls back to a
// process-local store otherwise.
func newStore(cfg *Config, debug bool, logger *zap.Logger) (storage.Store, error) {
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		logger.Warn("storage.dsn is not set, results will not outlive the process")
		return storage.NewMemory(), nil
	}
	return storage.OpenGorm(cfg.Storage.DSN, debug, logger.With(zap.String("storage", "postgres")))
}

func newNotifier(cfg *NotifyConfig, logger *zap.Logger) (*notify.Service, error) {
	var (
		email notify.EmailSender
		sms   notify.SMSSender
	)

	if cfg.SMTP != nil && cfg.SMTP.Host != "" {
		password, err := secrets.Optional(secrets.Source{
			Name:  "smtp password",
			File:  cfg.SMTP.PasswordFile,
			Value: cfg.SMTP.Password,
			Env:   "SMTP_PASSWORD",
		})
		if err != nil {
			return nil, err
		}
		sender, err := notify.NewSMTP(*cfg.SMTP, password)
		if err != nil {
			return nil, err
		}
		email = sender
	}

	if cfg.Twilio != nil && cfg.Twilio.AccountSID != "" {
		token, err := secrets.Load(secrets.Source{
			Name:  "twilio token",
			File:  cfg.Twilio.TokenFile,
			Value: cfg.Twilio.Token,
			Env:   "TWILIO_AUTH_TOKEN",
		})
		if err != nil {
			return nil, err
		}
		sender, err := notify.NewTwilio(*cfg.Twilio, token, logger)
		if err != nil {
			return nil, err
		}
		sms = sender
	}

	if email == nil && sms == nil {
		return nil, errors.New("notify is enabled but neither smtp nor twilio is configured")
	}

	return notify.New(email, sms, logger), nil
}

// loadJobFile reads a job posting from a yaml or json file. Keys follow the
// mapstructure tags of talent.JobQuery; an absent threshold keeps minMatch.
func loadJobFile(path string, minMatch float64) (*talent.JobQuery, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading job file: %w", err)
	}

	job := &talent.JobQuery{Parameters: talent.DefaultParameters()}
	if minMatch > 0 {
		job.Parameters.MinMatchPercentage = minMatch
	}

	if err := decode(v.AllSettings(), job); err != nil {
		return nil, fmt.Errorf("decoding job file: %w", err)
	}

	if job.ID == "" {
		job.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if strings.TrimSpace(job.Text()) == "" {
		return nil, fmt.Errorf("job %s has no title, description or requirements", job.ID)
	}
	return job, nil
}

func decode(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// parseDir converts and parses every supported CV in dir. A candidate's ID is
// its file name without extension so that re-ingesting a file replaces the record.
func parseDir(ctx context.Context, dir string, parser *cvparse.Parser, logger *zap.Logger) ([]talent.CandidateRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading cv directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && document.Supported(filepath.Ext(e.Name())) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	records := make([]talent.CandidateRecord, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(dir, name)
		text, err := document.ConvertFile(path)
		if err != nil {
			logger.Warn("skipping cv", zap.String("file", path), zap.Error(err))
			continue
		}

		rec := parser.Parse(text)
		rec.ID = strings.TrimSuffix(name, filepath.Ext(name))
		records = append(records, rec)

		logger.Debug("parsed cv",
			zap.String("candidate_id", rec.ID),
			zap.String("name", rec.Name),
			zap.Strings("skills", rec.Skills),
			zap.String("profile_preview", utils.TruncateForLog(rec.ProfileText, 120)),
		)
	}

	logger.Info("parsed cv directory", zap.String("dir", dir), zap.Int("count", len(records)), zap.Int("files", len(names)))
	return records, nil
}
