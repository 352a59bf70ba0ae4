// cmd/tracon/main.go

// tracon is a headless driver for the simulation core: it loads a
// scenario bundle, advances virtual time at a fixed rate, and prints
// the events the core emits.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tracon-sim/tracon/log"
	"github.com/tracon-sim/tracon/scenario"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a scenario bundle")
	duration := flag.Duration("duration", 10*time.Minute, "virtual time to simulate")
	step := flag.Duration("step", time.Second, "virtual time per tick")
	logLevel := flag.String("loglevel", "info", "debug, info, warn, error")
	logDir := flag.String("logdir", "", "directory for log files")
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: tracon -scenario <bundle> [-duration 10m] [-step 1s]")
		os.Exit(2)
	}

	lg := log.New(*logLevel, *logDir)

	f, err := os.Open(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *scenarioPath, err)
		os.Exit(1)
	}
	bundle, err := scenario.Load(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *scenarioPath, err)
		os.Exit(1)
	}

	sc, err := scenario.Build(bundle, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *scenarioPath, err)
		os.Exit(1)
	}

	w := sc.World
	events := w.Events.Subscribe()

	for w.Clock().Now() < *duration {
		w.Advance(*step)
		for _, ev := range events.Get() {
			now := w.Clock().Now().Truncate(time.Second)
			switch obj := w.Object(ev.Object); {
			case obj != nil:
				fmt.Printf("%8s %-22s %s\n", now, ev.Type, obj.Callsign)
			default:
				fmt.Printf("%8s %-22s\n", now, ev.Type)
			}
		}
	}

	stats := w.Stats
	fmt.Printf("\n%s of %s simulated: %d spawned, %d landed, %d go-arounds, %d conflicts, %d routes completed\n",
		duration, bundle.Meta.Name, stats.Spawned, stats.Landings, stats.GoArounds,
		stats.Conflicts, stats.RoutesCompleted)
}
