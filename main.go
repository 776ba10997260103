package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"brandguard/internal/app"
	"brandguard/internal/artifacts"
	"brandguard/internal/config"
	"brandguard/internal/mentions"
	"brandguard/internal/model"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "brandguard",
	Short: "Brand sentiment dashboard and prediction API",
	Long: `brandguard serves the sentiment dashboard with an in-process model.
Use the web-tier and app-tier binaries to split the API and the model across
an SQS request/response queue pair.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard and API with a local model",
	RunE:  runServe,
}

var (
	trainData      string
	trainReport    string
	trainHoldout   float64
	trainSeed      uint64
	trainMinDF     int
	trainMaxFeat   int
	trainNgramMax  int
	trainSublinear bool
	trainAlpha     float64
	evaluateData   string
	evaluateFormat string
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit a TF-IDF + naive Bayes model on a labelled mentions CSV",
	RunE:  runTrain,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the configured model against a labelled mentions CSV",
	RunE:  runEvaluate,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yml or ./config/config.yml)")

	trainCmd.Flags().StringVar(&trainData, "data", "", "labelled CSV (defaults to data.mentions)")
	trainCmd.Flags().StringVar(&trainReport, "report", "", "write the holdout evaluation as YAML to this path")
	trainCmd.Flags().Float64Var(&trainHoldout, "holdout", 0.2, "fraction of rows kept back for evaluation")
	trainCmd.Flags().Uint64Var(&trainSeed, "seed", 42, "shuffle seed for the holdout split")
	trainCmd.Flags().IntVar(&trainMinDF, "min-df", 1, "ignore terms in fewer documents")
	trainCmd.Flags().IntVar(&trainMaxFeat, "max-features", 0, "keep only the most frequent terms (0 keeps all)")
	trainCmd.Flags().IntVar(&trainNgramMax, "ngram-max", 1, "largest n-gram size")
	trainCmd.Flags().BoolVar(&trainSublinear, "sublinear-tf", false, "use 1+ln(tf)")
	trainCmd.Flags().Float64Var(&trainAlpha, "alpha", 1.0, "naive Bayes smoothing")

	evaluateCmd.Flags().StringVar(&evaluateData, "data", "", "labelled CSV (defaults to data.mentions)")
	evaluateCmd.Flags().StringVar(&evaluateFormat, "format", "yaml", "output format: yaml or json")

	rootCmd.AddCommand(serveCmd, trainCmd, evaluateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := app.Setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := loadPipeline(ctx, cfg)
	if err != nil {
		logger.Error("failed to load model", zap.Error(err))
		return err
	}
	logger.Info("model loaded", zap.Int("features", pipeline.Vectorizer.Features()))

	srv, closer, err := app.NewWebServer(ctx, cfg, model.NewLocalPredictor(pipeline), logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return err
	}
	defer closer.Close()

	return app.Serve(ctx, ":"+cfg.HTTP.Port, srv.Handler(), logger)
}

func loadPipeline(ctx context.Context, cfg *config.Config) (*model.Pipeline, error) {
	sess, err := app.AWSSession(cfg)
	if err != nil {
		return nil, err
	}
	return app.LoadPipeline(ctx, cfg, artifacts.NewFetcher(s3.New(sess)))
}

func loadLabelled(cfg *config.Config, path string) ([]string, []model.Label, error) {
	if path == "" {
		path = cfg.Data.Mentions
	}
	table, err := mentions.LoadFile(path, cfg.Data.Columns)
	if err != nil {
		return nil, nil, err
	}
	docs, labels := table.Labelled()
	if len(docs) == 0 {
		return nil, nil, fmt.Errorf("%s: no rows with a known sentiment label", path)
	}
	return docs, labels, nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, logger, err := app.Setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if trainHoldout < 0 || trainHoldout >= 1 {
		return fmt.Errorf("--holdout must be within [0, 1)")
	}

	docs, labels, err := loadLabelled(cfg, trainData)
	if err != nil {
		return err
	}

	// Shuffle once so the holdout is not just the tail of the file.
	rng := rand.New(rand.NewPCG(trainSeed, trainSeed))
	rng.Shuffle(len(docs), func(i, j int) {
		docs[i], docs[j] = docs[j], docs[i]
		labels[i], labels[j] = labels[j], labels[i]
	})
	cut := len(docs) - int(float64(len(docs))*trainHoldout)

	opts := model.DefaultTrainOptions()
	opts.MinDF = trainMinDF
	opts.MaxFeatures = trainMaxFeat
	opts.NgramRange = [2]int{1, max(trainNgramMax, 1)}
	opts.SublinearTF = trainSublinear
	opts.Alpha = trainAlpha

	pipeline, err := model.Train(docs[:cut], labels[:cut], opts)
	if err != nil {
		return err
	}
	if err := pipeline.SaveFiles(cfg.Model.Vectorizer, cfg.Model.Classifier); err != nil {
		return err
	}
	logger.Info("model trained",
		zap.Int("documents", cut),
		zap.Int("features", pipeline.Vectorizer.Features()),
		zap.String("vectorizer", cfg.Model.Vectorizer),
		zap.String("classifier", cfg.Model.Classifier))

	if cut == len(docs) {
		return nil
	}
	report, err := model.Evaluate(pipeline, docs[cut:], labels[cut:])
	if err != nil {
		return err
	}
	logger.Info("holdout evaluation",
		zap.Int("documents", report.Total),
		zap.Float64("accuracy", report.Accuracy))

	if trainReport == "" {
		return nil
	}
	f, err := os.Create(trainReport)
	if err != nil {
		return err
	}
	if err := writeReport(f, report, "yaml"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := app.Setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pipeline, err := loadPipeline(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	docs, labels, err := loadLabelled(cfg, evaluateData)
	if err != nil {
		return err
	}
	report, err := model.Evaluate(pipeline, docs, labels)
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), report, evaluateFormat)
}

func writeReport(w io.Writer, report model.Report, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
