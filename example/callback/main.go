package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/CasaMack/tibber-subscribe/pkg/tibbersubscribe"
)

func main() {
	flow, err := tibbersubscribe.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	power, _ := tibbersubscribe.ParseField("power")
	voltage, _ := tibbersubscribe.ParseField("voltagePhase1")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(p tibbersubscribe.Point) error {
		fmt.Printf("%s %s=%g\n", p.Timestamp.Format(time.RFC3339Nano), p.FieldName, p.Value)
		return nil
	}

	err = flow.
		StreamIN(tibbersubscribe.StreamInFields(power, voltage)).
		Options(tibbersubscribe.WithoutMetricsServer()).
		Run(ctx, tibbersubscribe.StreamOutCallback("stdout", callback))
	if err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
