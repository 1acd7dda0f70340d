package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/assessment-reports/internal/config"
	"github.com/cuongbtq/assessment-reports/internal/generation"
	"github.com/cuongbtq/assessment-reports/internal/jobs"
	"github.com/cuongbtq/assessment-reports/internal/objectstore"
	"github.com/cuongbtq/assessment-reports/internal/orchestrator"
	"github.com/cuongbtq/assessment-reports/internal/render"
	"github.com/cuongbtq/assessment-reports/internal/report"
)

// ErrAllReportsFailed is returned by run when no report was produced.
var ErrAllReportsFailed = errors.New("all reports failed")

// manifestEntry describes one report of a local run
type manifestEntry struct {
	Name            string         `json:"name"`
	Status          string         `json:"status"`
	OutputPath      string         `json:"output_path,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	Error           string         `json:"error,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	DurationSeconds float64        `json:"duration_seconds"`
}

// manifest is written next to the reports of a local run
type manifest struct {
	RunID     string                   `json:"run_id"`
	Input     string                   `json:"input"`
	CreatedAt time.Time                `json:"created_at"`
	Status    string                   `json:"status"`
	Reports   map[string]manifestEntry `json:"reports"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate every report for an assessment on this machine",
		Long: `run normalizes the assessment file, produces the executive, technical and
compliance reports in parallel and stores the PDFs under the output directory.
A manifest_<run_id>.json file summarizes the run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, _ := cmd.Flags().GetString(flagInput)
			out, _ := cmd.Flags().GetString(flagOut)
			offline, _ := cmd.Flags().GetBool(flagOffline)

			appLogger, err := newLogger(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer appLogger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m, err := runLocal(ctx, appLogger.Logger, input, out, offline)
			if err != nil {
				return err
			}

			prettyJSON, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return fmt.Errorf("error formatting manifest: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(prettyJSON))

			if m.Status == string(jobs.StatusFailed) {
				return ErrAllReportsFailed
			}
			return nil
		},
	}

	cmd.Flags().StringP(flagInput, "i", "", "Path to the assessment JSON file")
	cmd.Flags().StringP(flagOut, "o", "reports", "Directory receiving the reports and manifest")
	cmd.Flags().Bool(flagOffline, false, "Skip the generation service and use fallback content")
	_ = cmd.MarkFlagRequired(flagInput)

	return cmd
}

// runLocal executes one run and writes its manifest into out.
func runLocal(ctx context.Context, logger *slog.Logger, input, out string, offline bool) (*manifest, error) {
	raw, err := readSubmission(input)
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.ApplyEnv()

	var gen report.Generator
	if !offline && !cfg.Generation.Disabled {
		client, err := generation.NewBedrockClient(ctx, generation.Config{
			Region:  cfg.Generation.Region,
			ModelID: cfg.Generation.ModelID,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize generation client: %w", err)
		}
		logger.Debug("Using generation model", slog.String("model_id", client.ModelID()))
		gen = client
	}

	store, err := objectstore.NewLocalStore(out)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	orch := orchestrator.New(
		report.NewProducers(gen, cfg.Generation, cfg.Reports, logger),
		render.NewPDFRenderer(cfg.Reports.Branding, logger),
		store,
		orchestrator.Config{
			WorkDir:   filepath.Join(out, "work"),
			Prefix:    cfg.Storage.Prefix,
			KeepLocal: true,
			Logger:    logger,
		},
	)

	logger.Info("Starting local run",
		slog.String("run_id", runID),
		slog.String("input", input),
		slog.Bool("offline", offline),
	)

	outcome, err := orch.Run(ctx, runID, raw)
	if err != nil {
		return nil, err
	}

	m := buildManifest(runID, input, outcome, store)
	path := filepath.Join(out, fmt.Sprintf("manifest_%s.json", runID))
	if err := writeManifest(path, m); err != nil {
		return nil, err
	}

	logger.Info("Local run finished",
		slog.String("status", m.Status),
		slog.String("manifest", path),
	)
	return m, nil
}

func readSubmission(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("input is not a JSON object: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("input is not a JSON object")
	}
	return raw, nil
}

func buildManifest(runID, input string, outcome *orchestrator.Outcome, store *objectstore.LocalStore) *manifest {
	m := &manifest{
		RunID:     runID,
		Input:     input,
		CreatedAt: time.Now().UTC(),
		Status:    string(outcome.Status),
		Reports:   make(map[string]manifestEntry, len(report.Kinds)),
	}

	for _, kind := range report.Kinds {
		r, ok := outcome.Results[kind]
		if !ok {
			continue
		}

		outputPath := r.LocalPath
		if r.Artifact != nil {
			outputPath = store.Path(r.Artifact.Key)
		}

		m.Reports[string(kind)] = manifestEntry{
			Name:            kind.Title(),
			Status:          string(r.Status),
			OutputPath:      outputPath,
			Details:         r.Details,
			Error:           r.ErrorMessage(),
			StartedAt:       r.StartedAt,
			FinishedAt:      r.FinishedAt,
			DurationSeconds: r.Duration().Seconds(),
		}
	}
	return m
}

func writeManifest(path string, m *manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
