package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/talent"
)

var paramsCmd = &cobra.Command{
	Use:   "params <job-id>",
	Short: "Update the match parameters of a stored job",
	Long: "Update the match parameters of a stored job. Only later match runs see the change; " +
		"stored batches keep the parameters they were produced with.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger, config := setup()
		ctx := cmd.Context()

		store, err := newStore(config, viper.GetBool("debug"), logger)
		if err != nil {
			logger.Fatal("opening storage", zap.Error(err))
		}
		defer store.Close()

		job, err := store.FetchJob(ctx, args[0])
		if err != nil {
			logger.Fatal("fetching job", zap.Error(err))
		}

		params := job.Parameters.Clone()
		flags := cmd.Flags()
		if flags.Changed("min-match") {
			params.MinMatchPercentage, _ = flags.GetFloat64("min-match")
		}
		if flags.Changed("required") {
			params.RequiredSkills, _ = flags.GetStringSlice("required")
		}
		if flags.Changed("preferred") {
			params.PreferredSkills, _ = flags.GetStringSlice("preferred")
		}

		if params.MinMatchPercentage < 0 || params.MinMatchPercentage > 100 {
			logger.Fatal("min-match must be within [0, 100]", zap.Float64("min-match", params.MinMatchPercentage))
		}

		modified, err := store.UpdateParameters(ctx, job.ID, params)
		if err != nil {
			logger.Fatal("updating parameters", zap.Error(err))
		}
		if !modified {
			logger.Info("parameters unchanged", zap.String("job_id", job.ID), zap.Int("version", job.Parameters.Version))
			return
		}

		updated, err := store.FetchJob(ctx, job.ID)
		if err != nil {
			logger.Fatal("fetching job", zap.Error(err))
		}
		fmt.Printf("job %s parameters now at version %d\n", updated.ID, updated.Parameters.Version)
	},
}

func init() {
	rootCmd.AddCommand(paramsCmd)

	paramsCmd.Flags().Float64("min-match", talent.DefaultMinMatchPercentage, "minimum match percentage")
	paramsCmd.Flags().StringSlice("required", nil, "required skills (comma separated)")
	paramsCmd.Flags().StringSlice("preferred", nil, "preferred skills (comma separated)")
}
