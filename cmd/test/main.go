package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// Smoke test: runs the whole stack locally against fake upstreams and drives
// a headless dashboard through search, display, wishlist and market widget.
func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	keep := flag.Bool("keep", false, "keep the scratch directory (database, prefs) after the run")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	// 2. Scratch space
	workDir, err := os.MkdirTemp("", "dashboard-smoke-")
	if err != nil {
		fmt.Printf("Error creating scratch dir: %v\n", err)
		os.Exit(1)
	}
	if !*keep {
		defer os.RemoveAll(workDir)
	}

	// 3. Fake upstream
	bootLogger := logger.NewLogger(&models.MConfig{LogLevel: "INFO"}, "Smoke")
	upstream := setupUpstream(bootLogger.Named("Upstream"))
	defer upstream.Close()

	// 4. Load config
	conf, err := bootstrapConfig(*configPath, workDir, upstream.URL)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 5. Setup Logger
	appLogger := logger.NewLogger(conf.MConfig, "Smoke")
	appLogger.Info("Scratch dir: %s", workDir)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// 6. Start Servers
	backend, err := startServers(ctx, conf, appLogger)
	if err != nil {
		appLogger.Critical("Backend failed to start: %v", err)
		os.Exit(1)
	}

	// 7. Run the scenario
	runErr := runScenario(ctx, conf, appLogger)

	// 8. Shutdown
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	backend.Stop(stopCtx)
	stopCancel()

	if runErr != nil {
		appLogger.Critical("Smoke test failed: %v", runErr)
		os.Exit(1)
	}
	appLogger.Info("Smoke test passed.")
}
