package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/Cetendo/EnergyLogger/pkg/energylogger"
)

func main() {
	flow, err := energylogger.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(_ context.Context, snap energylogger.Snapshot) error {
		categories := make([]string, 0, len(snap))
		for name := range snap {
			categories = append(categories, name)
		}
		sort.Strings(categories)

		for _, name := range categories {
			reading := snap[name]
			if reading.Fields != nil {
				fmt.Printf("%s %s %v\n", time.Now().Format(time.RFC3339), name, reading.Fields.Map())
			}
			for sub, fields := range reading.Subcategories {
				fmt.Printf("%s %s/%s %v\n", time.Now().Format(time.RFC3339), name, sub, fields.Map())
			}
		}
		return nil
	}

	if err := flow.Run(ctx, energylogger.StreamOutCallback("stdout", callback)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
}
