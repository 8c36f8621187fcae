package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/cvparse"
	"github.com/spigell/cv-matcher/internal/storage"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <cv-dir>",
	Short: "Parse pdf/docx CVs and store them as candidates",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger, config := setup()

		store, err := newStore(config, viper.GetBool("debug"), logger)
		if err != nil {
			logger.Fatal("opening storage", zap.Error(err))
		}
		defer store.Close()

		if err := ingestDir(cmd.Context(), store, args[0], cvparse.New(config.Skills.Keywords), logger); err != nil {
			logger.Fatal("ingesting cv directory", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func ingestDir(ctx context.Context, store storage.Store, dir string, parser *cvparse.Parser, logger *zap.Logger) error {
	records, err := parseDir(ctx, dir, parser, logger)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if _, err := store.StoreCandidate(ctx, rec); err != nil {
			return fmt.Errorf("storing candidate %s: %w", rec.ID, err)
		}
	}

	logger.Info("candidates stored", zap.Int("count", len(records)))
	return nil
}
