// Command stmrender turns an STM scan transcript into an image.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/user/stm_scan_go/internal/config"
	"github.com/user/stm_scan_go/internal/pipeline"
	"github.com/user/stm_scan_go/internal/scan"
	"github.com/user/stm_scan_go/internal/storage"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitMalformed = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	flags := config.NewFlagSet("stmrender")
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: stmrender [flags] <transcript>\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitMalformed
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return exitMalformed
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return exitCode(err)
	}
	if cfg.Verbose {
		log = log.Level(zerolog.DebugLevel)
	}

	req, err := buildRequest(cfg, flags.Arg(0), stdout)
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return exitCode(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &pipeline.Runner{
		Sink:  storage.NewSink(stdout, cfg.S3),
		Stdin: stdin,
		Log:   log,
	}
	res, err := runner.Run(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("path", req.Input).Msg("Render failed")
		return exitCode(err)
	}
	rows, cols := res.Transcript.Frame.Dims()
	log.Debug().Str("output", res.Output).Int("rows", rows).Int("cols", cols).Msg("Done")
	return exitOK
}

func buildRequest(cfg *config.Config, input string, stdout io.Writer) (pipeline.Request, error) {
	opts, err := cfg.ParserOptions()
	if err != nil {
		return pipeline.Request{}, err
	}
	rc, err := cfg.RenderConfig()
	if err != nil {
		return pipeline.Request{}, err
	}
	req := pipeline.Request{
		Input:              input,
		Output:             cfg.Output,
		Parse:              opts,
		Render:             rc,
		Scale:              cfg.Scale,
		Annotate:           cfg.Annotate,
		Report:             cfg.Report,
		Geometry:           cfg.Geometry(),
		StabilityThreshold: cfg.StabilityThreshold,
		PreviewWidth:       cfg.PreviewWidth,
	}
	if cfg.Preview {
		if req.Output == storage.Stdout {
			return pipeline.Request{}, scan.Malformedf("--preview cannot share stdout with the image")
		}
		req.Preview = stdout
	}
	return req, nil
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, scan.ErrMalformedInput):
		return exitMalformed
	default:
		return exitFailure
	}
}
