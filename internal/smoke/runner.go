package smoke

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/medscribe/pkg/logger"
)

const workerChannelMultiplier = 2

// Sentinel results of a smoke run.
var (
	ErrBadSummary   = errors.New("summary is incomplete")
	ErrSyncRejected = errors.New("fhir sync not acknowledged")
	ErrNoTranscript = errors.New("no transcription succeeded")
	ErrFailures     = errors.New("transcriptions failed")
)

// Run executes the complete smoke test against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Named("smoke")

	log.Info(ctx, "starting medscribe smoke test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	client := NewClient(cfg.BaseURL, cfg.Timeout, cfg.Retries)

	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	sum, err := client.Summarize(ctx, "Patient reports chest pain on exertion.")
	if err != nil {
		return stats, fmt.Errorf("summarize: %w", err)
	}
	if err := verifySummary(sum); err != nil {
		return stats, err
	}
	stats.Summaries++

	ack, err := client.Sync(ctx, sampleBundle())
	if err != nil {
		return stats, fmt.Errorf("fhir sync: %w", err)
	}
	if ack.Status != "success" {
		return stats, fmt.Errorf("%w: status %q", ErrSyncRejected, ack.Status)
	}
	stats.Syncs++

	name, audio, err := loadAudio(cfg.AudioFile)
	if err != nil {
		return stats, err
	}
	transcribeAll(ctx, cfg, client, name, audio, stats)

	stats.Duration = time.Since(stats.StartTime)
	displayFinalStats(ctx, stats)

	switch {
	case stats.Failed > 0:
		return stats, fmt.Errorf("%w: %d of %d", ErrFailures, stats.Failed, stats.Submitted)
	case stats.Mismatched > 0:
		return stats, fmt.Errorf("%w: %d transcripts differ from %q", ErrFailures, stats.Mismatched, cfg.ExpectText)
	case cfg.Requests > 0 && stats.Succeeded == 0:
		return stats, ErrNoTranscript
	}
	log.Info(ctx, "smoke test completed successfully")
	return stats, nil
}

// transcribeAll submits cfg.Requests uploads through cfg.Workers clients.
func transcribeAll(ctx context.Context, cfg *Config, client *Client, name string, audio []byte, stats *Stats) {
	workers := max(cfg.Workers, 1)
	jobs := make(chan int, workers*workerChannelMultiplier)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out, err := client.Transcribe(ctx, name, audio)

				mu.Lock()
				stats.Submitted++
				var se *StatusError
				switch {
				case err == nil && cfg.ExpectText != "" && strings.TrimSpace(out.Transcript) != cfg.ExpectText:
					stats.Mismatched++
				case err == nil:
					stats.Succeeded++
				case errors.As(err, &se) && se.Status == http.StatusTooManyRequests:
					stats.Rejected++
				default:
					stats.Failed++
				}
				mu.Unlock()

				if err != nil {
					logger.Get().Warn(ctx, "transcription failed", logger.Int("request", i), logger.Error(err))
				} else if cfg.Verbose {
					logger.Get().Info(ctx, "transcribed", logger.Int("request", i), logger.String("transcript", out.Transcript))
				}
			}
		}()
	}

loop:
	for i := 0; i < cfg.Requests; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break loop
		}
	}
	close(jobs)
	wg.Wait()
}

func verifySummary(s SummaryResponse) error {
	missing := make([]string, 0, 4)
	for field, v := range map[string]string{
		"subjective": s.SOAP.Subjective,
		"objective":  s.SOAP.Objective,
		"assessment": s.SOAP.Assessment,
		"plan":       s.SOAP.Plan,
		"narrative":  s.Narrative,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if len(s.Codes) == 0 {
		missing = append(missing, "codes")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrBadSummary, strings.Join(missing, ", "))
	}
	return nil
}

// sampleBundle is a minimal FHIR transaction bundle with one encounter.
func sampleBundle() map[string]any {
	return map[string]any{
		"resourceType": "Bundle",
		"id":           uuid.NewString(),
		"type":         "transaction",
		"entry": []any{
			map[string]any{
				"resource": map[string]any{
					"resourceType": "Encounter",
					"status":       "finished",
					"reasonCode": []any{
						map[string]any{"text": "Chest pain on exertion"},
					},
				},
				"request": map[string]any{"method": "POST", "url": "Encounter"},
			},
		},
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("summaries", stats.Summaries),
		logger.Int("syncs", stats.Syncs),
		logger.Int("submitted", stats.Submitted),
		logger.Int("succeeded", stats.Succeeded),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("mismatched", stats.Mismatched),
		logger.Duration("duration", stats.Duration),
		logger.Float64("requestsPerSecond", perSecond))
}
