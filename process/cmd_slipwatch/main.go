package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rodneymondela/slip-management/process/slipwatch"

	"github.com/joho/godotenv"
)

func main() {
	dir := flag.String("dir", "uploads/inbox", "directory to watch for slips")
	user := flag.String("user", "", "username owning ingested documents")
	workers := flag.Int("workers", 0, "OCR workers (0 = CPU count)")
	dry := flag.Bool("dry-run", false, "recognize and print, don't write to DB")
	verbose := flag.Bool("verbose", false, "log per-file timings")
	debounce := flag.Duration("debounce", 2*time.Second, "quiet period before a file is picked up")
	flag.Parse()

	_ = godotenv.Load()

	if !*dry && *user == "" {
		fmt.Fprintln(os.Stderr, "-user is required unless -dry-run is set")
		os.Exit(2)
	}
	if !*dry && os.Getenv("DB_DSN") == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export and retry")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := slipwatch.Run(ctx, slipwatch.Options{
		Dir:      *dir,
		Username: *user,
		Workers:  *workers,
		Dry:      *dry,
		Verbose:  *verbose,
		Debounce: *debounce,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}
