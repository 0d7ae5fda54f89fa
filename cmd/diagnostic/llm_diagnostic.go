// File: cmd/diagnostic/llm_diagnostic.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iyunix/go-rigadvisor/internal/app"
	"github.com/iyunix/go-rigadvisor/internal/config"
	"github.com/iyunix/go-rigadvisor/internal/services"
	"github.com/iyunix/go-rigadvisor/internal/services/suggestion"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
)

func main() {
	plan := flag.String("plan", "basic", "plan to request an analysis for")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline, backoff waits included")
	flag.Parse()

	logger := services.NewLogger("rigadvisor-diagnostic")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	catalog, err := config.LoadCatalog(cfg.PlansFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog error: %v\n", err)
		os.Exit(2)
	}

	printer := transport.ObserverFunc(func(a transport.Attempt) {
		fmt.Printf("attempt %d: %s status=%d elapsed=%s", a.Index, a.Outcome, a.StatusCode, a.Elapsed.Round(time.Millisecond))
		if a.Backoff > 0 {
			fmt.Printf(" next_wait=%s", a.Backoff)
		}
		if a.Err != nil {
			fmt.Printf(" error=%v", a.Err)
		}
		fmt.Println()
	})

	backend, err := app.ProvideBackend(cfg, logger, []transport.Observer{printer})
	if err != nil {
		fmt.Fprintf(os.Stderr, "backend error: %v\n", err)
		os.Exit(2)
	}
	svc := suggestion.NewService(catalog, backend, logger)

	fmt.Printf("requesting %q from %s (max %d attempts, waits %v)\n",
		*plan, backend.Name(), cfg.Retry.MaxAttempts, transport.NewRetrier(cfg.Retry).Delays())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	text, err := svc.GetSuggestion(ctx, *plan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nsuggestion failed: %s\n", suggestion.KindOf(err))
		for e := err; e != nil; e = errors.Unwrap(e) {
			fmt.Fprintf(os.Stderr, "  %v\n", e)
		}
		os.Exit(1)
	}
	fmt.Printf("\n%s\n", text)
}
