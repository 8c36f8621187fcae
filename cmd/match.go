package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/cvparse"
	"github.com/spigell/cv-matcher/internal/export"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/storage"
	"github.com/spigell/cv-matcher/internal/talent"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var notifyPrompt = promptui.Select{
	Label: "Notify matched candidates?",
	Items: []string{PromptYes, PromptNo},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank the candidate pool against a job posting",
	Run: func(cmd *cobra.Command, _ []string) {
		runMatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("job-file", "", "yaml or json file with the job posting")
	matchCmd.Flags().String("job-id", "", "id of a stored job posting")
	matchCmd.Flags().String("cv-dir", "", "directory with pdf/docx CVs parsed into the pool before matching")
	matchCmd.Flags().StringP("output", "o", "", "write the batch to an xlsx file")
	matchCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before notifying candidates")
	matchCmd.Flags().StringP("exclude-file", "e", "", "json file with candidates to leave out of the run")

	viper.BindPFlag("exclude-file", matchCmd.Flags().Lookup("exclude-file"))
}

func runMatch(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl, config := setup()
	zl.Info("starting the cv-matcher", zap.String("version", version))

	jobFile, _ := cmd.Flags().GetString("job-file")
	jobID, _ := cmd.Flags().GetString("job-id")
	cvDir, _ := cmd.Flags().GetString("cv-dir")
	output, _ := cmd.Flags().GetString("output")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	if (jobFile == "") == (jobID == "") {
		zl.Fatal("exactly one of --job-file and --job-id is required")
	}

	store, err := newStore(config, viper.GetBool("debug"), zl)
	if err != nil {
		zl.Fatal("opening storage", zap.Error(err))
	}
	defer store.Close()

	job, err := resolveJob(ctx, store, jobFile, jobID, config.Matching.MinMatchPercentage, zl)
	if err != nil {
		zl.Fatal("loading job", zap.Error(err))
	}

	if cvDir != "" {
		if err := ingestDir(ctx, store, cvDir, cvparse.New(config.Skills.Keywords), zl); err != nil {
			zl.Fatal("ingesting cv directory", zap.Error(err))
		}
	}

	candidates, err := store.FetchAllCandidates(ctx)
	if err != nil {
		zl.Fatal("fetching candidates", zap.Error(err))
	}
	zl.Info("candidate pool loaded", zap.Int("count", len(candidates)))

	vec, err := newVectorizer(ctx, config, zl)
	if err != nil {
		zl.Fatal("creating vectorizer", zap.Error(err))
	}

	builder, err := newIndexBuilder(config, zl)
	if err != nil {
		zl.Fatal("creating index builder", zap.Error(err))
	}

	engine := matching.New(config.engineConfig(), vec, builder, zl)
	defer engine.Close()

	batch, err := engine.Match(ctx, job, candidates)
	if err != nil {
		zl.Fatal("matching failed", zap.Error(err))
	}

	batchID, err := store.StoreMatchBatch(ctx, batch)
	if err != nil {
		zl.Fatal("storing match batch", zap.Error(err))
	}
	zl.Info("match batch stored",
		logger.Batch(batchID),
		zap.Int("ranked", batch.Len()),
		zap.Int("excluded", len(batch.Excluded)),
	)

	printBatch(os.Stdout, batch)

	if output != "" {
		path, err := export.WriteBatch(batch, job, candidateNames(candidates), output)
		if err != nil {
			zl.Fatal("exporting batch", zap.Error(err))
		}
		zl.Info("batch exported", zap.String("path", path))
	}

	if !config.Notify.Enabled || batch.Len() == 0 {
		return
	}

	if !autoApprove {
		_, action, err := notifyPrompt.Run()
		if err != nil {
			zl.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			zl.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	notifier, err := newNotifier(config.Notify, zl)
	if err != nil {
		zl.Fatal("creating notifier", zap.Error(err))
	}

	contacts := make(map[string]talent.CandidateRecord, len(candidates))
	for _, c := range candidates {
		contacts[c.ID] = c
	}

	var failed int
	for _, d := range notifier.NotifyBatch(ctx, batch, contacts) {
		if len(d.Errors) > 0 {
			failed++
		}
	}
	zl.Info("notifications sent", zap.Int("candidates", batch.Len()), zap.Int("failed", failed))
}

func setup() (*zap.Logger, *Config) {
	zl, err := logger.New(app, viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}
	return zl, config
}

// resolveJob loads the job from a file and stores it, or fetches it by id.
func resolveJob(ctx context.Context, store storage.Store, file, id string, minMatch float64, logger *zap.Logger) (*talent.JobQuery, error) {
	if file == "" {
		job, err := store.FetchJob(ctx, id)
		if errors.Is(err, talent.ErrNotFound) {
			return nil, fmt.Errorf("job %s is not stored, add it with --job-file first", id)
		}
		return job, err
	}

	job, err := loadJobFile(file, minMatch)
	if err != nil {
		return nil, err
	}

	// The file is authoritative; a changed parameter set bumps the stored version.
	stored, err := store.FetchJob(ctx, job.ID)
	switch {
	case errors.Is(err, talent.ErrNotFound):
		if _, err := store.StoreJob(ctx, *job); err != nil {
			return nil, err
		}
		return job, nil
	case err != nil:
		return nil, err
	}

	params := job.Parameters
	job.Parameters = stored.Parameters
	if _, err := store.StoreJob(ctx, *job); err != nil {
		return nil, err
	}
	modified, err := store.UpdateParameters(ctx, job.ID, params)
	if err != nil {
		return nil, err
	}
	if modified {
		// parameters set earlier with the params command are lost here
		logger.Warn("job file overrides stored parameters",
			zap.String("job_id", job.ID),
			zap.String("file", file),
			zap.Int("stored_version", stored.Parameters.Version),
			zap.Float64("stored_min_match", stored.Parameters.MinMatchPercentage),
			zap.Float64("file_min_match", params.MinMatchPercentage),
			zap.Strings("stored_required", stored.Parameters.RequiredSkills),
			zap.Strings("file_required", params.RequiredSkills),
		)
	}
	return store.FetchJob(ctx, job.ID)
}

func candidateNames(candidates []talent.CandidateRecord) map[string]string {
	out := make(map[string]string, len(candidates))
	for _, c := range candidates {
		out[c.ID] = c.Name
	}
	return out
}

func printBatch(w io.Writer, batch *talent.Batch) {
	fmt.Fprintf(w, "batch %s for job %s (%d ranked, %d excluded)\n", batch.ID, batch.JobID, batch.Len(), len(batch.Excluded))
	for i, r := range batch.Results {
		fmt.Fprintf(w, "%3d. %-24s %6.2f%%  %s\n", i+1, r.CandidateID, r.MatchPercentage, r.Explanation)
	}
	for _, e := range batch.Excluded {
		fmt.Fprintf(w, "  excluded %s at %s: %s\n", e.CandidateID, e.Stage, e.Reason)
	}
}
