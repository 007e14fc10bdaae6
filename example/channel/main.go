package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	tibbersubscribe "github.com/CasaMack/tibber-subscribe"
)

func main() {
	flow, err := tibbersubscribe.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, points, closePoints := tibbersubscribe.NewChannelSink("fanout", 32)
	defer closePoints()

	go average("power", points)

	if err := flow.Run(ctx, tibbersubscribe.StreamOutSink(sink)); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

// average prints a running mean of one field.
func average(field string, points <-chan tibbersubscribe.Point) {
	var (
		n   int
		sum float64
	)
	for p := range points {
		if p.FieldName != field {
			continue
		}
		n++
		sum += p.Value
		fmt.Printf("%s now=%g mean=%.1f over %d readings\n", field, p.Value, sum/float64(n), n)
	}
}
