package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/rtm0/ncmet/internal/extract"
	"github.com/rtm0/ncmet/internal/met"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := Root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ncmet:", err)
		stop()
		os.Exit(1)
	}
}

// extractAll extracts every input with concurrency workers. Each granule is
// extracted on its own; the errors of all failed granules are returned
// together.
func extractAll(ctx context.Context, logger *slog.Logger, base extract.Config, inputs []string, concurrency int) error {
	inputCh := make(chan string)
	resultCh := make(chan error)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			for input := range inputCh {
				cfg := base
				cfg.Input = input
				sum, err := extract.Run(ctx, cfg)
				if err != nil {
					logger.Error("Could not extract granule", "file", input, "err", err)
					resultCh <- fmt.Errorf("%s: %w", input, err)
					continue
				}
				logger.Info("Granule summary", sum.LogAttrs()...)
				resultCh <- nil
			}
			wg.Done()
		}()
	}

	var errs []error
	done := make(chan struct{})
	go func() {
		var processed int
		total := len(inputs)
		start := time.Now()
		for err := range resultCh {
			processed++
			if err != nil {
				errs = append(errs, err)
			}
			duration := time.Since(start).Round(1 * time.Second)
			logger.Info("progress", "processed", fmt.Sprintf("%d/%d", processed, total), "failed", len(errs), "in", duration)
		}
		close(done)
	}()

	for _, input := range inputs {
		inputCh <- input
	}
	close(inputCh)
	wg.Wait()
	close(resultCh)
	<-done
	return errors.Join(errs...)
}

// inspect prints the keys of the named parts stored in output.
func inspect(ctx context.Context, w io.Writer, output string, names []string) error {
	bucket, err := extract.OpenBucket(ctx, output)
	if err != nil {
		return err
	}
	defer bucket.Close()

	for _, name := range names {
		doc, err := met.ReadPart(ctx, bucket, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s:\n", name)
		for _, kv := range doc.KeyVals {
			if kv.Type == "scalar" && len(kv.Vals) == 1 {
				fmt.Fprintf(w, "  %s = %s\n", kv.Key, kv.Vals[0])
				continue
			}
			fmt.Fprintf(w, "  %s [%d]\n", kv.Key, len(kv.Vals))
		}
	}
	return nil
}
