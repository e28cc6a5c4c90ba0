package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"clipforge/internal/compose"
)

// manifestEntry is one request in a batch manifest file.
type manifestEntry struct {
	VoiceURI   string `json:"voice_uri"`
	VisualsURI string `json:"visuals_uri"`
	Script     string `json:"script"`
	ProductID  string `json:"product_id"`
	Title      string `json:"title"`
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <manifest.json>",
		Short: "Compose every request in a JSON manifest over the worker pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, err := ctx.buildPipeline()
			if err != nil {
				return err
			}

			requests, err := loadManifest(args[0])
			if err != nil {
				return err
			}

			// One batch per scratch directory at a time; a second
			// invocation would fight the first for disk and encoder
			// capacity.
			lock := flock.New(filepath.Join(pipe.cfg.Paths.ScratchDir, "batch.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire batch lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another batch is already running against %s", pipe.cfg.Paths.ScratchDir)
			}
			defer lock.Unlock()

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go pipe.tracker.MonitorStalls(runCtx)

			results := pipe.composer.ComposeBatch(runCtx, requests)
			printBatchResults(cmd, results)

			failed := 0
			for _, result := range results {
				if !result.Success {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d compositions failed", failed, len(results))
			}
			return nil
		},
	}
	return cmd
}

func loadManifest(path string) ([]compose.ComposeRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest %s contains no requests", path)
	}

	requests := make([]compose.ComposeRequest, 0, len(entries))
	for i, entry := range entries {
		req := compose.ComposeRequest{
			VoiceURI:   entry.VoiceURI,
			VisualsURI: entry.VisualsURI,
			Script:     entry.Script,
			Product:    compose.ProductContext{ID: entry.ProductID, Title: entry.Title},
		}
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i+1, err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func printBatchResults(cmd *cobra.Command, results []compose.CompositionResult) {
	out := cmd.OutOrStdout()

	if isTerminal(os.Stdout) {
		rows := make([][]string, 0, len(results))
		for i, result := range results {
			status := "ok"
			detail := result.VideoURI
			if !result.Success {
				status = "failed"
				detail = errorSummary(result.Err)
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", i+1),
				result.JobID,
				status,
				fmt.Sprintf("%d", result.Attempts),
				fmt.Sprintf("%dms", result.ElapsedMillis),
				detail,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"#", "JOB", "STATUS", "ATTEMPTS", "ELAPSED", "RESULT"},
			rows,
			[]bool{true, false, false, true, true, false},
		))
		return
	}

	for i, result := range results {
		if result.Success {
			fmt.Fprintf(out, "%d\t%s\tok\t%s\n", i+1, result.JobID, result.VideoURI)
		} else {
			fmt.Fprintf(out, "%d\t%s\tfailed\t%s\n", i+1, result.JobID, errorSummary(result.Err))
		}
	}
}

func errorSummary(err error) string {
	if err == nil {
		return ""
	}
	summary := err.Error()
	if idx := strings.IndexByte(summary, '\n'); idx >= 0 {
		summary = summary[:idx]
	}
	return summary
}
