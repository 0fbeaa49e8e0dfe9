package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cactusdynamics/cactusplot"
	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Addr     string   `short:"a" long:"addr" description:"Address to listen on (overrides the config file)"`
	Config   string   `short:"c" long:"config" description:"JSON config file"`
	LogLevel string   `long:"log-level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	Title    string   `short:"t" long:"title" description:"Plot title"`
	XLabel   string   `long:"xlabel" description:"X axis label"`
	YLabel   string   `long:"ylabel" description:"Y axis label"`
	CSV      bool     `long:"csv" description:"Parse files as strict CSV instead of whitespace/comma separated columns"`
	Skip     int      `long:"skip-lines" default:"-1" description:"Number of leading lines to drop from every file"`
	Comments []string `long:"comment" description:"Comment prefix; repeat for several. Replaces the default # and @"`
	Output   string   `short:"o" long:"output-dir" description:"Directory that saved datasets and exported plots go to (overrides the config file)"`

	Functions []string `short:"f" long:"function" description:"Expression in x to plot, e.g. \"sin(x)*x\""`
	XMin      float64  `long:"xmin" default:"0" description:"Start of the domain for --function"`
	XMax      float64  `long:"xmax" default:"10" description:"End of the domain for --function"`
	Points    int      `short:"n" long:"points" default:"100" description:"Number of samples for --function"`
	Sample    bool     `long:"sample" description:"Start with sin(x) and cos(x) on [0, 10]"`

	Positional struct {
		Files []string `positional-arg-name:"FILE"`
	} `positional-args:"yes"`
}

func (o Options) config() (cactusplot.Config, error) {
	cfg := cactusplot.DefaultConfig()
	if o.Config != "" {
		var err error
		if cfg, err = cactusplot.LoadConfig(o.Config); err != nil {
			return cactusplot.Config{}, err
		}
	}

	if o.Addr != "" {
		cfg.Addr = o.Addr
	}
	if o.Title != "" {
		cfg.PlotOptions.Title = o.Title
	}
	if o.XLabel != "" {
		cfg.PlotOptions.XLabel = o.XLabel
	}
	if o.YLabel != "" {
		cfg.PlotOptions.YLabel = o.YLabel
	}
	if o.CSV {
		cfg.Import.Format = cactusplot.FormatCSV
	}
	if o.Skip >= 0 {
		cfg.Import.SkipLines = o.Skip
	}
	if len(o.Comments) > 0 {
		cfg.Import.CommentPrefixes = o.Comments
	}
	if o.Output != "" {
		cfg.OutputDir = o.Output
	}

	return cfg, cfg.Validate()
}

// Commands to run before the server starts, in command line order.
func (o Options) initialCommands() []cactusplot.Command {
	var cmds []cactusplot.Command
	if o.Sample {
		cmds = append(cmds, cactusplot.AddSampleData{})
	}
	for _, path := range o.Positional.Files {
		cmds = append(cmds, cactusplot.LoadFile{Path: path})
	}

	domain := cactusplot.Domain{XMin: o.XMin, XMax: o.XMax, NPoints: o.Points}
	for _, expression := range o.Functions {
		cmds = append(cmds, cactusplot.GenerateFunction{Expression: expression, Domain: domain})
	}
	if len(cmds) > 0 {
		cmds = append(cmds, cactusplot.AutoscaleAxes{})
	}
	return cmds
}

func setupLogging(level string) error {
	logrusLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(logrusLevel)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return err
	}
	slog.SetLogLoggerLevel(slogLevel)
	return nil
}

func run(opts Options) error {
	cfg, err := opts.config()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metadata := cactusplot.Metadata{
		SessionID:       uuid.NewString(),
		ProtocolVersion: cactusplot.ProtocolVersion,
		PlotOptions:     cfg.PlotOptions,
	}

	broadcaster := cactusplot.NewSceneBroadcaster(cfg.StatusHistory)
	coordinator := cactusplot.NewCoordinator(cfg.CoordinatorConfig(), broadcaster, broadcaster, broadcaster)

	// Failures are already logged and shown on the status line. A bad file on
	// the command line should not keep the rest from being plotted.
	for _, cmd := range opts.initialCommands() {
		coordinator.Handle(ctx, cmd)
	}

	requests := make(chan cactusplot.CommandRequest, 16)
	server := cactusplot.NewHttpServer(broadcaster, cfg.Addr, metadata, requests, cfg.ClientBuffer)

	coordinatorDone := make(chan error, 1)
	go func() {
		coordinatorDone <- coordinator.Run(ctx, requests)
	}()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Run()
	}()

	logrus.WithField("session", metadata.SessionID).Info("cactusplot started")

	select {
	case <-ctx.Done():
		logrus.Info("shutting down")
		broadcaster.End(context.Background(), nil)
		return nil
	case err := <-serverDone:
		broadcaster.End(context.Background(), err)
		return fmt.Errorf("http server: %w", err)
	case err := <-coordinatorDone:
		broadcaster.End(context.Background(), err)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "[OPTIONS] [FILE...]"

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if err := setupLogging(opts.LogLevel); err != nil {
		logrus.WithError(err).Fatal("invalid log level")
	}

	if err := run(opts); err != nil {
		logrus.WithError(err).Fatal("cactusplot failed")
	}
}
