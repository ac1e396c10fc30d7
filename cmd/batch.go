// cmd/batch.go - Batch processing command
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/wgs_correction/internal/batch"
	"github.com/valpere/wgs_correction/internal/output"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Correct many datasets concurrently",
	Long: `Correct many Shapefile and GeoJSON datasets to WGS84.

Tasks come either from a directory scan, mirroring the directory layout below
the output directory, or from a YAML manifest listing input/output pairs. Every
task runs as an independent correction; a failing task does not stop the others
unless --fail-on-error is set.

Manifest format:
  kind: gd
  concurrency: 8
  jobs:
    - input: data/roads.shp
      output: out/roads.shp
    - input: data/poi.geojson
      output: out/poi.geojson
      kind: bd

Examples:
  # Correct every dataset below a directory
  wgs-correction batch --kind gd --input-dir ./amap --output-dir ./wgs84

  # Only shapefiles, eight at a time
  wgs-correction batch --input-dir ./amap --output-dir ./wgs84 --pattern "*.shp" --concurrency 8

  # Run a manifest, stop on the first failure and keep a report
  wgs-correction batch --manifest jobs.yaml --fail-on-error --report run.yaml`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Task source flags
	batchCmd.Flags().String("input-dir", "", "directory scanned for datasets")
	batchCmd.Flags().String("output-dir", "./output", "directory receiving corrected datasets")
	batchCmd.Flags().String("manifest", "", "YAML manifest listing input/output pairs")
	batchCmd.Flags().String("pattern", "*.shp,*.geojson,*.json", "comma separated file name patterns for --input-dir")

	// Processing flags
	batchCmd.Flags().Int("concurrency", 4, "number of datasets corrected at once")
	batchCmd.Flags().Duration("timeout", 30*time.Minute, "timeout for the whole batch")
	batchCmd.Flags().Bool("fail-on-error", false, "stop processing on first error")

	// Progress flags
	batchCmd.Flags().Bool("progress", true, "show progress indicator")
	batchCmd.Flags().String("report", "", "write a JSON or YAML job report to this file (- for stdout)")

	batchCmd.MarkFlagsMutuallyExclusive("input-dir", "manifest")

	viper.BindPFlag("batch.concurrency", batchCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("batch.timeout", batchCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("batch.fail_on_error", batchCmd.Flags().Lookup("fail-on-error"))
	viper.BindPFlag("batch.pattern", batchCmd.Flags().Lookup("pattern"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	inputDir, _ := cmd.Flags().GetString("input-dir")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	manifestPath, _ := cmd.Flags().GetString("manifest")
	showProgress, _ := cmd.Flags().GetBool("progress")
	reportPath, _ := cmd.Flags().GetString("report")

	jobConfig := &batch.JobConfig{
		Concurrency: cfg.Batch.Concurrency,
		Timeout:     cfg.Batch.Timeout,
		FailOnError: cfg.Batch.FailOnError,
		Dataset:     datasetOptions(cfg),
	}

	var tasks []*batch.Task
	switch {
	case manifestPath != "":
		manifest, err := batch.LoadManifest(manifestPath)
		if err != nil {
			return err
		}
		if tasks, err = manifest.Tasks(cfg.Correction.Kind); err != nil {
			return err
		}
		// manifest settings win over flags and config
		if manifest.Concurrency > 0 {
			jobConfig.Concurrency = manifest.Concurrency
		}
		if manifest.FailOnError != nil {
			jobConfig.FailOnError = *manifest.FailOnError
		}
	case inputDir != "":
		tasks, err = batch.Discover(inputDir, outputDir, cfg.Batch.Patterns(), cfg.Correction.Kind)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --input-dir or --manifest must be specified")
	}

	if len(tasks) == 0 {
		return fmt.Errorf("no datasets to process")
	}

	if cfg.Logging.Verbose {
		fmt.Fprintf(os.Stderr, "Processing %d datasets with concurrency %d\n", len(tasks), jobConfig.Concurrency)
	}

	var reporter batch.ProgressReporter
	if showProgress {
		reporter = NewConsoleProgressReporter()
	}

	coordinator := batch.NewCoordinator(batch.NewBatchProcessor(reporter, log))
	defer coordinator.Shutdown()

	job := batch.NewJob(generateJobID(), tasks, jobConfig)
	if err := coordinator.SubmitJob(job); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		coordinator.CancelJob(job.ID)
	}()

	waitErr := coordinator.Wait(context.Background(), job.ID)
	if reportPath != "" {
		if err := output.WriteReport(reportPath, job.Report(), cfg.Output.Pretty); err != nil {
			log.Error().Err(err).Str("report", reportPath).Msg("Failed to write job report")
		}
	}
	if waitErr != nil {
		return fmt.Errorf("batch processing failed: %w", waitErr)
	}

	if cfg.Logging.Verbose || showProgress {
		fmt.Fprintf(os.Stderr, "\nBatch processing completed successfully!\n")
		fmt.Fprintf(os.Stderr, "Processed: %d datasets\n", job.Progress.ProcessedTasks)
		fmt.Fprintf(os.Stderr, "Features: %d written, %d without geometry dropped\n",
			job.Progress.FeaturesWritten, job.Progress.SkippedNull)
		fmt.Fprintf(os.Stderr, "Duration: %v\n", time.Since(job.Progress.StartTime))
		fmt.Fprintf(os.Stderr, "Throughput: %.2f datasets/second\n", job.Progress.Throughput)
	}

	return nil
}

// generateJobID creates a unique job ID
func generateJobID() string {
	return fmt.Sprintf("batch-%d", time.Now().Unix())
}

// ConsoleProgressReporter implements progress reporting to console
type ConsoleProgressReporter struct {
	mutex      sync.Mutex
	lastUpdate time.Time
}

// NewConsoleProgressReporter creates a new console progress reporter
func NewConsoleProgressReporter() *ConsoleProgressReporter {
	return &ConsoleProgressReporter{}
}

// ReportProgress reports job progress to console
func (r *ConsoleProgressReporter) ReportProgress(job *batch.Job) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if time.Since(r.lastUpdate) < time.Second && job.Progress.ProcessedTasks < job.Progress.TotalTasks {
		return nil // Rate limit updates
	}

	progress := job.Progress.CalculateProgress()
	fmt.Fprintf(os.Stderr, "\rProgress: %.1f%% (%d/%d datasets, %d failed, %.2f datasets/sec)",
		progress, job.Progress.ProcessedTasks, job.Progress.TotalTasks,
		job.Progress.FailedTasks, job.Progress.Throughput)

	r.lastUpdate = time.Now()
	return nil
}

// ReportTaskComplete reports a finished dataset
func (r *ConsoleProgressReporter) ReportTaskComplete(job *batch.Job, task *batch.Task) error {
	if task.Error != nil {
		fmt.Fprintf(os.Stderr, "\rFailed %s: %v\n", task.Input, task.Error)
	}
	return r.ReportProgress(job)
}

// ReportJobComplete reports job completion
func (r *ConsoleProgressReporter) ReportJobComplete(job *batch.Job) error {
	fmt.Fprintf(os.Stderr, "\rCompleted: 100%% (%d datasets processed)\n", job.Progress.ProcessedTasks)
	return nil
}

// ReportJobFailed reports job failure
func (r *ConsoleProgressReporter) ReportJobFailed(job *batch.Job, err error) error {
	fmt.Fprintf(os.Stderr, "\rFailed: %d of %d datasets\n", job.Progress.FailedTasks, job.Progress.TotalTasks)
	return nil
}
