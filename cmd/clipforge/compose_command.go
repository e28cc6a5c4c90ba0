package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"clipforge/internal/compose"
	"clipforge/internal/progress"
)

func newComposeCommand(ctx *commandContext) *cobra.Command {
	var voiceURI string
	var visualsURI string
	var script string
	var productID string
	var title string

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose one video from a voice and a visuals source",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, err := ctx.buildPipeline()
			if err != nil {
				return err
			}

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go pipe.tracker.MonitorStalls(runCtx)

			req := compose.ComposeRequest{
				VoiceURI:   voiceURI,
				VisualsURI: visualsURI,
				Script:     script,
				Product:    compose.ProductContext{ID: productID, Title: title},
			}
			req.JobID = compose.NewJobID(req.Product)
			stopProgress := streamProgress(runCtx, pipe.tracker, req.JobID)
			defer stopProgress()

			result := pipe.composer.ComposeWithRetry(runCtx, req)
			stopProgress()

			out := cmd.OutOrStdout()
			if !result.Success {
				fmt.Fprintf(out, "Job %s failed after %d attempt(s) in %dms\n",
					result.JobID, result.Attempts, result.ElapsedMillis)
				return result.Err
			}
			fmt.Fprintf(out, "Job %s completed in %dms (%d attempt(s))\n",
				result.JobID, result.ElapsedMillis, result.Attempts)
			fmt.Fprintf(out, "Video:     %s\n", result.VideoURI)
			fmt.Fprintf(out, "Thumbnail: %s\n", result.ThumbnailURI)
			return nil
		},
	}

	cmd.Flags().StringVar(&voiceURI, "voice", "", "Voice source URL (required)")
	cmd.Flags().StringVar(&visualsURI, "visuals", "", "Visuals source URL (required)")
	cmd.Flags().StringVar(&script, "script", "", "Script text for the composition")
	cmd.Flags().StringVar(&productID, "product-id", "", "Product identifier used for job naming")
	cmd.Flags().StringVar(&title, "title", "", "Product title used for thumbnail overlay")
	_ = cmd.MarkFlagRequired("voice")
	_ = cmd.MarkFlagRequired("visuals")
	return cmd
}

// streamProgress mirrors one job's tracker events onto stderr while it
// is a terminal. The subscription channel closes when the job goes
// terminal; the returned stop function is safe to call twice.
func streamProgress(ctx context.Context, tracker *progress.Tracker, jobID string) func() {
	if !isTerminal(os.Stderr) {
		return func() {}
	}
	events, cancel := tracker.Subscribe(jobID)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "\r%-12s %5.1f%% (overall %5.1f%%)   ",
					evt.Stage, evt.StagePercent, evt.OverallPercent)
				if evt.Stage.IsTerminal() {
					fmt.Fprintln(os.Stderr)
				}
			}
		}
	}()
	var once bool
	return func() {
		if once {
			return
		}
		once = true
		cancel()
		<-done
	}
}
