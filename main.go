// Package main provides the one-shot command line driver: it turns a single
// recorded dream into a transcript, a prompt package and a video job.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maauso/dreamvisualizer-api/internal/bootstrap"
	"github.com/maauso/dreamvisualizer-api/internal/config"
	"github.com/maauso/dreamvisualizer-api/internal/pipeline"
	"github.com/maauso/dreamvisualizer-api/internal/speech"
	"github.com/maauso/dreamvisualizer-api/internal/video"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type cliOptions struct {
	envFile    string
	imagePath  string
	transcript string
	duration   int
	aspect     string
	format     string
}

func newRootCmd() *cobra.Command {
	var opts cliOptions

	cmd := &cobra.Command{
		Use:          "dreamvisualizer <audio> [language]",
		Short:        "Turn a recorded dream into a generated video",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			language := ""
			if len(args) > 1 {
				language = args[1]
			}
			return runOnce(cmd.Context(), cmd.OutOrStdout(), args[0], language, opts)
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().StringVar(&opts.imagePath, "image", "", "optional reference image for prompt engineering")
	cmd.Flags().StringVar(&opts.transcript, "transcript", "", "use this text instead of transcribing the audio")
	cmd.Flags().IntVar(&opts.duration, "duration", video.DefaultDurationSeconds, "target video duration in seconds")
	cmd.Flags().StringVar(&opts.aspect, "aspect-ratio", video.DefaultAspectRatio, "target aspect ratio")
	cmd.Flags().StringVar(&opts.format, "format", video.DefaultFormat, "preferred output file extension")

	return cmd
}

func runOnce(ctx context.Context, out io.Writer, audioPath, language string, opts cliOptions) error {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", opts.envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	outcome, err := deps.Pipeline.Run(ctx, pipeline.Request{
		Audio:              speech.Request{AudioPath: audioPath, Language: language},
		TranscriptOverride: opts.transcript,
		ImagePath:          opts.imagePath,
		Options: video.Options{
			DurationSeconds: opts.duration,
			AspectRatio:     opts.aspect,
			Format:          opts.format,
		}.WithDefaults(),
	})
	if err != nil {
		return err
	}

	return printOutcome(out, outcome)
}

// printOutcome writes a human readable summary of a run.
func printOutcome(w io.Writer, o *pipeline.Outcome) error {
	var text, soraPrompt string
	if o.Transcript != nil {
		text = o.Transcript.Text
	}
	if o.Prompt != nil {
		soraPrompt = o.Prompt.SoraPrompt
	}

	if _, err := fmt.Fprintf(w, "Transcription:\n%s\n\nEngineered Sora prompt:\n%s\n\n", text, soraPrompt); err != nil {
		return err
	}
	if o.Video == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "Video job submitted: %s\nStatus: %s\n", o.Video.ID, o.Video.Status); err != nil {
		return err
	}
	if o.Video.Outcome != "" && o.Video.Outcome != video.OutcomeTerminal {
		if _, err := fmt.Fprintf(w, "Outcome: %s\n", o.Video.Outcome); err != nil {
			return err
		}
	}
	if o.Video.DownloadRef != "" {
		if _, err := fmt.Fprintf(w, "Download (when ready): %s\n", o.Video.DownloadRef); err != nil {
			return err
		}
	}
	if o.Video.MirrorURL != "" {
		if _, err := fmt.Fprintf(w, "Mirror: %s\n", o.Video.MirrorURL); err != nil {
			return err
		}
	}
	return nil
}
