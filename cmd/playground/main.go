package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tattty/internal/domain"
	"tattty/internal/infra"
	"tattty/internal/playground"
	"tattty/internal/storage"
)

func main() {
	_ = godotenv.Load()

	var (
		apiFlag    string
		promptFlag string
		styleFlag  string
		colorFlag  string
		ratioFlag  string
		modeFlag   string
		outFlag    string
		zipFlag    string
	)
	flag.StringVar(&apiFlag, "api", envOr("PLAYGROUND_API_URL", "http://localhost:8080"), "Base URL of the generation proxy")
	flag.StringVar(&promptFlag, "prompt", "", "Answer to the prompt question (required)")
	flag.StringVar(&styleFlag, "style", "", "Tattoo style (default Tattoo)")
	flag.StringVar(&colorFlag, "color", "", "Color palette (default Black and Grey)")
	flag.StringVar(&ratioFlag, "ratio", "", "Aspect ratio (default 1:1)")
	flag.StringVar(&modeFlag, "mode", string(domain.ModelModePerformance), "Model mode (performance or quality)")
	flag.StringVar(&outFlag, "out", "", "Directory to write slot images into")
	flag.StringVar(&zipFlag, "zip", "", "Path of a zip archive to write slot images into")
	flag.Parse()

	prompt := strings.TrimSpace(promptFlag)
	if prompt == "" {
		fmt.Fprintln(os.Stderr, "-prompt is required")
		os.Exit(1)
	}

	logger := infra.NewLogger(envOr("APP_ENV", "development"), "playground", os.Getenv("LOG_LEVEL"))
	client := playground.NewClient(playground.NewHTTPDispatcher(apiFlag, nil), playground.Options{
		Logger: &logger,
		OnChange: func(s playground.State) {
			logger.Debug().
				Bool("loading", s.IsLoading).
				Int("completed", s.Completed()).
				Int("failed", len(s.Errors)).
				Msg("round updated")
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client.StartGeneration(ctx, prompt, optional(styleFlag), optional(colorFlag), optional(ratioFlag),
		domain.ProviderOrder, domain.ProviderModels(domain.ParseModelMode(modeFlag)))
	state := client.Snapshot()

	for i, slot := range state.Images {
		status := "failed"
		if slot.Image != nil {
			status = fmt.Sprintf("ok (%d base64 chars)", len(*slot.Image))
		}
		fmt.Printf("slot %d [%s/%s]: %s\n", i+1, domain.Providers[slot.Provider].DisplayName, slot.ModelID, status)
	}
	for provider, timing := range state.Timings {
		if ms, ok := timing.ElapsedMillis(); ok {
			fmt.Printf("timing %s: %dms\n", provider, ms)
		}
	}
	for _, failure := range state.Errors {
		fmt.Printf("error %s: %s\n", failure.Provider, failure.Message)
	}

	if err := export(ctx, state, outFlag, zipFlag); err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	if state.Completed() == 0 {
		os.Exit(2)
	}
}

func export(ctx context.Context, state playground.State, outDir, zipPath string) error {
	if outDir == "" && zipPath == "" {
		return nil
	}
	prefix := time.Now().UTC().Format("20060102-150405") + "-"
	files, err := playground.DecodeSlots(state, prefix)
	if err != nil {
		return err
	}
	if outDir != "" {
		store, err := storage.NewFileStore(outDir)
		if err != nil {
			return err
		}
		keys, err := playground.SaveSlots(ctx, store, files)
		if err != nil {
			return err
		}
		for _, key := range keys {
			fmt.Printf("wrote %s\n", key)
		}
	}
	if zipPath != "" {
		archive, err := playground.ArchiveSlots(files, time.Now())
		if err != nil {
			return err
		}
		if err := os.WriteFile(zipPath, archive, 0o644); err != nil {
			return fmt.Errorf("write archive: %w", err)
		}
		fmt.Printf("wrote %s\n", zipPath)
	}
	return nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
