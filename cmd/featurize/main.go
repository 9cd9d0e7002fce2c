// Command featurize prints the feature vector the classifier sees for a
// window of samples, and can bootstrap artifacts for a new model version.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/motion-classifier/internal/analysis"
	"github.com/ZanzyTHEbar/motion-classifier/internal/types"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("featurize failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "featurize",
		Usage:     "extract the ordered feature vector from a window of motion samples",
		UsageText: "featurize [options] [-i samples.json]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "JSON array of samples or {\"data\": [...]}; stdin when empty or -",
			},
			&cli.IntFlag{
				Name:    "window",
				Aliases: []string{"w"},
				Value:   analysis.DefaultWindowSize,
				Usage:   "samples per window",
			},
			&cli.BoolFlag{
				Name:  "schema",
				Usage: "print the ordered feature names and exit",
			},
			&cli.StringFlag{
				Name:  "identity-scaler",
				Usage: "write a pass-through scaler artifact under `DIR` and exit",
			},
			&cli.StringFlag{
				Name:  "model-dir",
				Usage: "score the window with the artifacts under `DIR`",
			},
			&cli.StringFlag{
				Name:  "model-version",
				Usage: "artifact version subdirectory for -model-dir and -identity-scaler",
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	out := c.App.Writer
	version := c.String("model-version")

	if c.Bool("schema") {
		return writeJSON(out, map[string]interface{}{
			"features": analysis.FeatureSchema(),
			"count":    analysis.FeatureCount,
		})
	}

	if dir := c.String("identity-scaler"); dir != "" {
		store := analysis.NewArtifactStore(dir)
		if err := store.SaveScaler(version, analysis.IdentityScaler(analysis.FeatureSchema())); err != nil {
			return fmt.Errorf("failed to write scaler: %w", err)
		}
		_, err := fmt.Fprintf(out, "wrote identity scaler for %d features to %s\n", analysis.FeatureCount, dir)
		return err
	}

	var scoring *analysis.ScoringContext
	if dir := c.String("model-dir"); dir != "" {
		sc, err := analysis.NewArtifactStore(dir).LoadScoringContext(version)
		if err != nil {
			return fmt.Errorf("failed to load artifacts: %w", err)
		}
		scoring = sc
	}

	analyzer, err := analysis.NewAnalyzer(c.Int("window"), scoring)
	if err != nil {
		return err
	}

	records, err := readRecords(c.String("input"), c.App.Reader)
	if err != nil {
		return err
	}

	fv, err := analyzer.ExtractFromRecords(records)
	if err != nil {
		return err
	}
	if scoring == nil {
		return writeJSON(out, fv)
	}

	res, err := scoring.Score(fv)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]interface{}{
		"features":              fv,
		"predicted_label":       res.Label,
		"predicted_probability": res.Probability,
		"model_version":         scoring.Version(),
	})
}

// readRecords accepts either a bare array or the /predict request body
func readRecords(path string, stdin io.Reader) ([]types.SensorRecord, error) {
	var raw []byte
	var err error
	if path == "" || path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var req types.PredictRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		return req.Data, nil
	}

	var records []types.SensorRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("invalid samples: %w", err)
	}
	return records, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
