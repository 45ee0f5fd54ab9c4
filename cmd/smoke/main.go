package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/medscribe/internal/smoke"
	"github.com/okian/medscribe/pkg/logger"
)

// Default configuration constants.
const (
	defaultRequests    = 20
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 2 * time.Minute
	defaultRetries     = 3
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:5000", "Base URL of the service")
		requests  = flag.Int("requests", defaultRequests, "Number of transcriptions to submit")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent clients")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		audio     = flag.String("audio", "", "Audio file to upload (default: one second of generated silence)")
		retries   = flag.Int("retries", defaultRetries, "Retries on 429 and 5xx responses")
		expect    = flag.String("expect", "", "Expected transcript text")
		logFormat = flag.String("log-format", logger.FormatText, "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every transcript")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &smoke.Config{
		BaseURL:    *baseURL,
		Requests:   *requests,
		Workers:    *workers,
		Timeout:    *timeout,
		AudioFile:  *audio,
		Retries:    *retries,
		ExpectText: *expect,
		Verbose:    *verbose,
	}

	if _, err := smoke.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "smoke test failed", logger.Error(err))
		cancel()
		os.Exit(1)
	}
}
