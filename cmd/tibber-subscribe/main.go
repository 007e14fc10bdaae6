package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	tibbersubscribe "github.com/CasaMack/tibber-subscribe"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:], os.Stdout)
	case "fields":
		err = fieldsCommand(os.Stdout)
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		printUsage(os.Stderr)
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "tibber-subscribe %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func runCommand(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", "", "path to YAML configuration (optional; environment variables always apply)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := tibbersubscribe.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", "", "path to YAML configuration to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := tibbersubscribe.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "config ok: endpoint=%s home=%s fields=%v sink=%s\n",
		cfg.Tibber.Endpoint, cfg.Tibber.HomeID, cfg.Tibber.Fields, cfg.Sink.Kind)
	return nil
}

func fieldsCommand(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tFORWARDED")
	for _, f := range tibbersubscribe.MeasurementFields() {
		forwarded := "yes"
		if !f.IsNumeric() {
			forwarded = "no (non-numeric)"
		}
		fmt.Fprintf(tw, "%s\t%s\n", f, forwarded)
	}
	return tw.Flush()
}

func statsCommand(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "refresh interval")
	once := fs.Bool("once", false, "print a single snapshot and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		return printMetricsSnapshot(ctx, *url, os.Stdout)
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, *url, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `tibber-subscribe: stream Tibber liveMeasurement data into a time-series sink

Usage:
  tibber-subscribe <command> [flags]

Commands:
  run        Subscribe and write points until interrupted
  validate   Load and validate configuration without connecting
  fields     List the liveMeasurement fields that can be selected
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  tibber-subscribe run --config ./config.yaml
  TIBBER_TOKEN=... HOME_ID=... tibber-subscribe validate
  tibber-subscribe stats --url http://localhost:9100/metrics --interval 1s
`)
}
