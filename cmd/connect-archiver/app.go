package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/connect-archiver"
	"github.com/alanbriolat/connect-archiver/internal/boltdb"
	"github.com/alanbriolat/connect-archiver/internal/config"
	"github.com/alanbriolat/connect-archiver/internal/publish"
	"github.com/alanbriolat/connect-archiver/internal/session"
	"github.com/alanbriolat/connect-archiver/reconstruct"
	"github.com/alanbriolat/connect-archiver/transcode"
)

// usageError is a mistake in how the command was invoked, rather than a failure doing the work.
type usageError struct {
	error
}

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

func newApp(ctx context.Context, logger *zap.Logger, level zap.AtomicLevel) *cli.App {
	return &cli.App{
		Name:      "connect-archiver",
		Usage:     "rebuild a playable MP4 from a Connect web-conferencing recording",
		ArgsUsage: "[URL]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "process every recording listed in the CSV `PATH` (URL[,filename] per line)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "save the recording as `NAME` (.mp4 is added if missing); single URL only",
			},
			&cli.StringFlag{
				Name:  "cookies",
				Usage: "session cookies as a `STRING` (\"name=value; ...\") or the path of a file containing them",
			},
			&cli.StringFlag{
				Name:  "quality",
				Usage: "encoding quality `LEVEL`: " + strings.Join(transcode.QualityNames(), ", ") + " (default from config, else medium)",
			},
			&cli.StringFlag{
				Name:  "target",
				Usage: "save recordings to `DIR` (default from config, else the current directory)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "read configuration from `PATH` (default ~/.config/connect-archiver/config.toml if present)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Action: func(c *cli.Context) error {
			opts, err := parseOptions(c)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c, level)
			if err != nil {
				return err
			}
			return run(ctx, logger, cfg, opts, c.App.Writer)
		},
		Commands: []*cli.Command{
			{
				Name:  "history",
				Usage: "list previously processed recordings",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "forget",
						Usage: "remove the record for `URL`, so it is processed again even if its output exists",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c, level)
					if err != nil {
						return err
					}
					if url := c.String("forget"); url != "" {
						return forgetHistory(cfg, url, c.App.Writer)
					}
					return showHistory(cfg, c.App.Writer)
				},
			},
			{
				Name:      "sample-config",
				Usage:     "write a sample configuration file",
				ArgsUsage: "[PATH]",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						var err error
						if path, err = config.DefaultConfigPath(); err != nil {
							return err
						}
					}
					if _, err := os.Stat(path); err == nil {
						return fmt.Errorf("%s already exists", path)
					}
					if err := config.CreateSample(path); err != nil {
						return err
					}
					zap.S().Infof("Wrote sample configuration to %s", path)
					return nil
				},
			},
		},
		HideHelpCommand: true,
		ExitErrHandler:  func(*cli.Context, error) {},
	}
}

type options struct {
	url       string
	batchFile string
	output    string
}

func parseOptions(c *cli.Context) (options, error) {
	opts := options{
		url:       strings.TrimSpace(c.Args().First()),
		batchFile: c.String("file"),
		output:    c.String("output"),
	}
	switch {
	case c.Args().Len() > 1:
		return opts, usagef("expected a single URL, got %d arguments", c.Args().Len())
	case opts.url == "" && opts.batchFile == "":
		return opts, usagef("a recording URL or --file is required")
	case opts.url != "" && opts.batchFile != "":
		return opts, usagef("a recording URL and --file cannot be used together")
	case opts.output != "" && opts.batchFile != "":
		return opts, usagef("--output only applies to a single URL; give filenames in the batch file instead")
	}
	return opts, nil
}

// loadConfig reads the configuration file and applies command line overrides.
func loadConfig(c *cli.Context, level zap.AtomicLevel) (*config.Config, error) {
	cfg, path, exists, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("target") {
		if cfg.Paths.TargetDir, err = config.ExpandPath(c.String("target")); err != nil {
			return nil, err
		}
	}
	if c.IsSet("cookies") {
		cfg.Session.Cookies = c.String("cookies")
	}
	if c.IsSet("quality") {
		cfg.Transcode.Quality = c.String("quality")
	}
	if err := cfg.Validate(); err != nil {
		return nil, usageError{err}
	}

	if c.Bool("verbose") {
		level.SetLevel(zap.DebugLevel)
	} else {
		var configured zapcore.Level
		if err := configured.UnmarshalText([]byte(cfg.Logging.Level)); err == nil {
			level.SetLevel(configured)
		}
	}
	if exists {
		zap.S().Debugf("loaded configuration from %s", path)
	}
	return cfg, nil
}

func run(ctx context.Context, logger *zap.Logger, cfg *config.Config, opts options, out io.Writer) error {
	log := logger.Sugar()
	quality, err := transcode.ParseQuality(cfg.Transcode.Quality)
	if err != nil {
		return usageError{err}
	}

	version, err := transcode.Preflight(ctx, cfg.Transcode.FFmpegBinary)
	if err != nil {
		return fmt.Errorf("%w; install ffmpeg or set transcode.ffmpeg_binary", err)
	}
	log.Debugf("using %s", version)

	if err := os.MkdirAll(cfg.Paths.TargetDir, 0755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	sess, err := session.New(session.Config{
		Cookies:         cfg.Session.Cookies,
		CookieDomain:    cfg.Session.CookieDomain,
		UserAgent:       cfg.Session.UserAgent,
		ProbeTimeout:    cfg.Timeouts.Probe(),
		AccountTimeout:  cfg.Timeouts.Account(),
		TransferTimeout: cfg.Timeouts.Transfer(),
		HeaderTimeout:   cfg.Timeouts.Header(),
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	var reconstructOpts []reconstruct.Option
	if db, err := boltdb.New(cfg.HistoryPath()); err != nil {
		log.Warnf("Job history unavailable, previously completed recordings won't be skipped: %v", err)
	} else {
		defer db.Close()
		reconstructOpts = append(reconstructOpts, reconstruct.WithHistory(db))
	}
	publisher, err := publish.New(cfg.Publish, logger)
	if err != nil {
		return err
	}
	if publisher != nil {
		reconstructOpts = append(reconstructOpts, reconstruct.WithPublisher(publisher))
	}

	var progress connect_archiver.ProgressFunc
	if isTerminal(os.Stderr) {
		progress = newProgressBar(os.Stderr).Update
	}
	r := reconstruct.NewFromSession(
		reconstruct.Config{TargetDir: cfg.Paths.TargetDir, Quality: quality, Logger: logger},
		sess,
		transcode.NewFFmpeg(cfg.Transcode.FFmpegBinary, logger),
		progress,
		reconstructOpts...,
	)

	if opts.batchFile != "" {
		return runBatch(ctx, logger, r, opts.batchFile, out)
	}
	job, err := r.Run(ctx, reconstruct.JobRequest{URL: opts.url, OutputName: opts.output})
	if err != nil {
		return fmt.Errorf("%s: %w", reconstruct.Category(err), err)
	}
	if job.State == reconstruct.StateDone {
		fmt.Fprintln(out, job.Destination)
	}
	return nil
}

func runBatch(ctx context.Context, logger *zap.Logger, r *reconstruct.Reconstructor, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return usagef("batch file not found: %s", path)
		}
		return err
	}
	requests, err := reconstruct.ParseBatch(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	outcomes, err := reconstruct.NewBatch(r, logger).Run(ctx, requests)
	fmt.Fprintln(out, renderOutcomes(outcomes))
	if failed := reconstruct.Failed(outcomes); failed > 0 {
		logger.Sugar().Warnf("%d of %d links failed", failed, len(requests))
	}
	return err
}

func showHistory(cfg *config.Config, out io.Writer) error {
	if _, err := os.Stat(cfg.HistoryPath()); err != nil {
		fmt.Fprintln(out, "No history yet.")
		return nil
	}
	db, err := boltdb.New(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer db.Close()
	records, err := db.ListRecords()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderHistory(records))
	return nil
}

func forgetHistory(cfg *config.Config, url string, out io.Writer) error {
	db, err := boltdb.New(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer db.Close()
	record, err := db.GetRecord(url)
	if err != nil {
		return err
	}
	if record == nil {
		fmt.Fprintf(out, "No history for %s\n", url)
		return nil
	}
	if err := db.DeleteRecord(url); err != nil {
		return err
	}
	fmt.Fprintf(out, "Forgot %s\n", url)
	return nil
}
