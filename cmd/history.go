package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/talent"
)

var historyCmd = &cobra.Command{
	Use:   "history <job-id>",
	Short: "List the stored match batches of a job",
	Long:  "List the stored match batches of a job, newest first, with the parameter version each batch ran with.",
	Args:  cobra.ExactArgs(1),
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

		batches, err := store.ListBatches(ctx, job.ID)
		if err != nil {
			logger.Fatal("listing batches", zap.Error(err))
		}

		limit, _ := cmd.Flags().GetInt("limit")
		details, _ := cmd.Flags().GetBool("details")
		printHistory(os.Stdout, job, batches, limit, details)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 0, "show at most this many batches (0 shows all)")
	historyCmd.Flags().Bool("details", false, "print the ranked and excluded candidates of every batch")
}

func printHistory(w io.Writer, job *talent.JobQuery, batches []talent.Batch, limit int, details bool) {
	fmt.Fprintf(w, "job %s (%s), parameters at version %d, %d stored batches\n",
		job.ID, job.Title, job.Parameters.Version, len(batches))

	if limit > 0 && len(batches) > limit {
		batches = batches[:limit]
	}

	for i := range batches {
		b := &batches[i]
		best := "-"
		if b.Len() > 0 {
			best = fmt.Sprintf("%s %.2f%%", b.Results[0].CandidateID, b.Results[0].MatchPercentage)
		}
		fmt.Fprintf(w, "%s  %s  v%d  min %.1f%%  ranked %d  excluded %d  best %s\n",
			b.ID, b.CreatedAt.UTC().Format(time.RFC3339), b.Parameters.Version, b.Parameters.MinMatchPercentage,
			b.Len(), len(b.Excluded), best)

		if details {
			printBatch(w, b)
		}
	}
}
