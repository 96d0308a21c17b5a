package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cetendo/EnergyLogger"
)

func main() {
	cfg, err := energylogger.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, snapshots, closeSnapshots := energylogger.NewChannelSink("fanout", 8)
	defer closeSnapshots()

	go fanoutWorker("dashboard", snapshots)

	// Without WithStore the channel replaces the SQL store.
	rt, err := energylogger.NewEdgeRuntime(ctx, cfg, energylogger.WithSink(sink))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}
	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, snapshots <-chan energylogger.Snapshot) {
	for snap := range snapshots {
		fmt.Printf("[%s] %d categories at %s\n", name, len(snap), time.Now().Format(time.RFC3339))
	}
}
