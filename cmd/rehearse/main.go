package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"rehearse/internal/company"
	"rehearse/internal/config"
	"rehearse/internal/conversation"
	"rehearse/internal/credentials"
	"rehearse/internal/logging"
	"rehearse/internal/providers"
	"rehearse/internal/registry"
	"rehearse/internal/repl"
	"rehearse/internal/session"
	"rehearse/internal/stats"
)

// Version is set via -ldflags during build
var Version = "dev"

func main() {
	var (
		promptFlag  = flag.String("p", "", "Send a single question and exit (non-interactive mode)")
		modeFlag    = flag.String("mode", "answer", "Prompt mode: answer or evaluate")
		loadFlag    = flag.String("load", "", "Load a saved conversation before starting")
		setKeyFlag  = flag.String("set-key", "", "Store an API key (KEY_NAME=value) and exit")
		listModels  = flag.Bool("list-models", false, "List available models and exit")
		versionFlag = flag.Bool("version", false, "Print version and exit")
	)
	flag.StringVar(promptFlag, "prompt", "", "Send a single question and exit (non-interactive mode)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("Rehearse version %s\n", Version)
		return
	}

	if *listModels {
		for i, m := range registry.List() {
			fmt.Printf("%d) %s\n", i+1, m.DisplayName)
		}
		return
	}

	credManager, err := credentials.NewManager()
	if err != nil {
		log.Fatalf("Failed to initialize credentials: %v", err)
	}

	if *setKeyFlag != "" {
		if err := storeKey(credManager, *setKeyFlag); err != nil {
			log.Fatalf("Failed to store key: %v", err)
		}
		fmt.Printf("Key saved to %s\n", credManager.Path())
		return
	}

	configDir := config.GetConfigDir()
	logger := logging.Setup(filepath.Join(configDir, "rehearse.log"))

	store := config.NewStore(config.DefaultPath())
	if _, err := store.Load(); err != nil {
		if ce, ok := config.IsConfigError(err); ok {
			// Defaults are already in place; the session runs, the file is
			// only rewritten on the next settings change.
			fmt.Fprintf(os.Stderr, "Warning: settings file unreadable, using defaults (%v)\n", ce)
			logging.ErrorLog("config load: %v", ce)
		} else {
			log.Fatalf("Failed to load settings: %v", err)
		}
	}

	factory := providers.NewFactory(credManager, 120*time.Second, logger)

	convLog := conversation.New()
	if *loadFlag != "" {
		loaded, err := conversation.LoadFromFile(*loadFlag)
		if err != nil {
			log.Fatalf("Failed to load conversation: %v", err)
		}
		convLog.Replace(loaded)
		fmt.Printf("Loaded %d entries from %s.\n", loaded.Len(), *loadFlag)
	}

	statsStore, err := stats.Open(filepath.Join(configDir, "practice.db"))
	if err != nil {
		// Stats are a nicety; the session runs without them.
		logging.ErrorLog("stats store unavailable: %v", err)
		statsStore = nil
	} else {
		defer statsStore.Close()
	}

	var onRecord func(session.Record)
	if statsStore != nil {
		onRecord = func(r session.Record) {
			if err := statsStore.Record(context.Background(), r); err != nil {
				logging.DevLog("record stats: %v", err)
			}
		}
	}

	ui := repl.New(nil, store, logger, repl.Options{
		Fetcher:     company.NewFetcher(20 * time.Second),
		Stats:       statsStore,
		HistoryPath: filepath.Join(configDir, ".history"),
	})

	ctrl := session.New(store, convLog, factory.ClientFor, ui, logger, session.Options{
		OnRecord: onRecord,
	})
	ui.Bind(ctrl)

	if *modeFlag == "evaluate" {
		ctrl.SetMode(session.ModeEvaluate)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("Received shutdown signal, stopping...")
		cancel()
	}()

	if *promptFlag != "" {
		if err := ctrl.Send(ctx, *promptFlag); err != nil {
			os.Exit(1)
		}
		fmt.Println()
		return
	}

	if err := ui.Run(ctx); err != nil {
		log.Fatalf("Session failed: %v", err)
	}
}

func storeKey(m *credentials.Manager, spec string) error {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '=' {
			name, value := spec[:i], spec[i+1:]
			if name == "" || value == "" {
				break
			}
			return m.Set(name, value)
		}
	}
	return fmt.Errorf("expected KEY_NAME=value, got %q", spec)
}
