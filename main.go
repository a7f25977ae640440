package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"stellar-hierarchy/hierarchy"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	name := flag.String("name", "", "Name for this star system")
	seed := flag.String("seed", "", "Seed for deterministic system generation (optional)")
	dbPath := flag.String("db", "", "Path to SQLite database")
	address := flag.String("address", "", "Address to bind the API server (host:port)")
	tick := flag.Duration("tick", 0, "Simulation tick interval")
	sweepEvery := flag.Uint64("sweep-every", 0, "Ticks between periodic hierarchy sweeps")
	mode := flag.String("mode", "", "Physics mode: kepler or nbody")
	useNAT := flag.Bool("nat", false, "Map the API port through UPnP/NAT-PMP")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags given on the command line win over the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			cfg.Name = *name
		case "seed":
			cfg.Seed = *seed
		case "db":
			cfg.DBPath = *dbPath
		case "address":
			cfg.Address = *address
		case "tick":
			cfg.Tick = *tick
		case "sweep-every":
			cfg.SweepEvery = *sweepEvery
		case "mode":
			parsed, err := hierarchy.ParsePhysicsMode(*mode)
			if err != nil {
				log.Fatalf("Error: %v", err)
			}
			cfg.Engine.Mode = parsed
		case "nat":
			cfg.NAT = *useNAT
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Error: invalid configuration: %v", err)
	}

	// Initialize storage
	storage, err := NewStorage(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer storage.Close()

	system, reg, startTick, err := loadOrSeed(storage, cfg)
	if err != nil {
		log.Fatalf("Failed to load star system: %v", err)
	}

	log.Printf("System ID: %s", system.ID)
	logStarSystem(system, reg)

	metrics := NewMetricsCollector()
	hub := NewHub(system.ID.String(), metrics)
	go hub.Run()

	engine := hierarchy.NewEngine(cfg.Engine, log.Default())
	sim := NewSimulation(system, reg, engine, storage, hub, metrics, cfg)
	sim.Tick = startTick

	// Heal anything a previous run left behind before the first tick
	sim.Sweep()

	api := NewAPI(system, sim, storage, hub, metrics)
	go api.limiter.RunCleanup(time.Minute, 10*time.Minute, sim.stop)
	go func() {
		if err := api.Start(cfg.Address); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	traversals := make(chan *NATTraversal, 1)
	if cfg.NAT {
		go func() {
			time.Sleep(time.Second) // Wait for the listener
			traversals <- MapAPIPort(cfg.Address)
		}()
	} else {
		traversals <- nil
	}

	go sim.Run()

	log.Printf("Star system '%s' is now online", system.Name)
	log.Printf("  API:       http://%s/api/hierarchy", cfg.Address)
	log.Printf("  Stream:    ws://%s/ws", cfg.Address)
	log.Printf("  Metrics:   http://%s/metrics", cfg.Address)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Printf("Shutting down...")
	sim.Stop()
	hub.Stop()
	releasePortMapping(traversals, 15*time.Second)
	if err := sim.Checkpoint(); err != nil {
		log.Printf("Failed to save final snapshot: %v", err)
	}
	log.Printf("Goodbye!")
}

// loadOrSeed restores the stored system, or generates a new one from the
// configured seed when the database is empty. Any other read failure is
// returned so a stored hierarchy is never overwritten.
func loadOrSeed(storage *Storage, cfg HostConfig) (*System, *hierarchy.Registry, uint64, error) {
	system, err := storage.LoadSystem()
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, 0, fmt.Errorf("load system: %w", err)
	}
	if err == nil {
		reg, tick, err := storage.LoadRegistry()
		if err == nil {
			log.Printf("Loaded existing star system: %s (tick %s)", system.Name, humanize.Comma(int64(tick)))
			return system, reg, tick, nil
		}
		if !errors.Is(err, ErrNoSnapshot) {
			return nil, nil, 0, err
		}
		log.Printf("No saved bodies for %s, regenerating", system.Name)
	} else {
		log.Printf("Creating new star system: %s", cfg.Name)
		var systemID uuid.UUID
		if cfg.Seed != "" {
			log.Printf("Using deterministic UUID (seed: %s)", cfg.Seed)
			systemID = generateDeterministicUUID(cfg.Seed)
		}
		system = NewSystem(cfg.Name, systemID)
		if err := storage.SaveSystem(system); err != nil {
			return nil, nil, 0, err
		}
	}

	reg, err := system.GenerateBodies()
	if err != nil {
		return nil, nil, 0, err
	}
	if err := storage.SaveRegistry(reg, 0); err != nil {
		return nil, nil, 0, err
	}
	return system, reg, 0, nil
}

// releasePortMapping waits up to wait for the mapping attempt to finish and
// removes the mapping it made, if any. It reports whether the attempt finished.
func releasePortMapping(traversals <-chan *NATTraversal, wait time.Duration) bool {
	select {
	case traversal := <-traversals:
		if traversal != nil {
			traversal.Close()
		}
		return true
	case <-time.After(wait):
		log.Printf("Warning: port mapping still in progress, not released")
		return false
	}
}

var seedNamespace = uuid.MustParse("5b1f0c7e-2d4a-5e8b-9c3f-7a6d4e2b1c90")

// generateDeterministicUUID creates a UUID from a seed string
func generateDeterministicUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(seed))
}

// logStarSystem logs the star configuration and body counts
func logStarSystem(sys *System, reg *hierarchy.Registry) {
	stars := sys.GenerateStars()
	switch stars.Count {
	case 3:
		log.Printf("Trinary Star System:")
	case 2:
		log.Printf("Binary Star System:")
	default:
		log.Printf("Single Star System:")
	}
	log.Printf("  Primary:   %s (%s, %s M☉)", stars.Primary.Class, stars.Primary.Description,
		humanize.FtoaWithDigits(stars.Primary.MassSolar, 3))
	if stars.Secondary != nil {
		log.Printf("  Secondary: %s (%s, %s M☉)", stars.Secondary.Class, stars.Secondary.Description,
			humanize.FtoaWithDigits(stars.Secondary.MassSolar, 3))
	}
	if stars.Tertiary != nil {
		log.Printf("  Tertiary:  %s (%s, %s M☉)", stars.Tertiary.Class, stars.Tertiary.Description,
			humanize.FtoaWithDigits(stars.Tertiary.MassSolar, 3))
	}

	counts := make(map[hierarchy.Kind]int)
	for _, b := range reg.Active() {
		counts[b.Kind]++
	}
	log.Printf("  Bodies:    %s active (%d planets, %d gas giants, %d moons)",
		humanize.Comma(int64(len(reg.Active()))), counts[hierarchy.KindPlanet],
		counts[hierarchy.KindGasGiant], counts[hierarchy.KindMoon])
}
