// Package embedding turns chunks into vectors in token-bounded batches.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"gopherai-docqa/internal/ai"
	"gopherai-docqa/internal/logger"
	"gopherai-docqa/internal/pkg/tokens"
)

const (
	DefaultTokenLimit  = 8190
	DefaultConcurrency = 5
)

var (
	ErrBatchFailed      = errors.New("embedding batch failed")
	ErrAllBatchesFailed = errors.New("all embedding batches failed")
)

type Provider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type Result struct {
	ChunkID uuid.UUID
	Vector  []float32
}

// Report describes one Embed call. FailedChunks lists the chunks of batches
// that exhausted their retries.
type Report struct {
	Batches       int
	FailedBatches int
	Embedded      int
	FailedChunks  []uuid.UUID
}

type Option func(*Batcher)

func WithTokenLimit(limit int) Option {
	return func(b *Batcher) {
		if limit > 0 {
			b.tokenLimit = limit
		}
	}
}

func WithConcurrency(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithCallTimeout bounds every provider attempt. A timed out attempt counts
// as ai.ErrTimeout and is retried under that rule.
func WithCallTimeout(d time.Duration) Option {
	return func(b *Batcher) {
		if d > 0 {
			b.callTimeout = d
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(b *Batcher) {
		b.policy = p
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(b *Batcher) {
		b.log = log
	}
}

// Batcher is shared by the whole process so its semaphore bounds every
// in-flight embedding request.
type Batcher struct {
	provider   Provider
	counter    tokens.Counter
	tokenLimit  int
	callTimeout time.Duration
	sem         *semaphore.Weighted
	policy      Policy
	log         *slog.Logger
}

func NewBatcher(provider Provider, counter tokens.Counter, opts ...Option) *Batcher {
	b := &Batcher{
		provider:   provider,
		counter:    counter,
		tokenLimit: DefaultTokenLimit,
		sem:        semaphore.NewWeighted(DefaultConcurrency),
		policy:     DefaultPolicy(),
		log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With("component", "embedding")
	return b
}

type outcome struct {
	vectors [][]float32
	err     error
}

// Embed returns vectors for every chunk whose batch succeeded, in input
// order. It fails only when every batch failed or ctx ended.
func (b *Batcher) Embed(ctx context.Context, items []Item) ([]Result, Report, error) {
	batches := Pack(items, b.counter, b.tokenLimit)
	report := Report{Batches: len(batches)}
	if len(batches) == 0 {
		return nil, report, nil
	}

	outcomes := make([]outcome, len(batches))
	var g errgroup.Group
	for i := range batches {
		g.Go(func() error {
			if err := b.sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer b.sem.Release(1)

			vectors, err := b.embedBatch(ctx, i, batches[i])
			outcomes[i] = outcome{vectors: vectors, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, fmt.Errorf("embed batches: %w", err)
	}

	var (
		results []Result
		errs    []error
	)
	for i, batch := range batches {
		out := outcomes[i]
		if out.err != nil {
			report.FailedBatches++
			errs = append(errs, out.err)
			for _, item := range batch.Items {
				report.FailedChunks = append(report.FailedChunks, item.ChunkID)
			}
			b.log.Warn("embedding batch dropped",
				"batch", i,
				"chunks", len(batch.Items),
				"tokens", batch.Tokens,
				"error", out.err,
			)
			continue
		}
		for j, item := range batch.Items {
			results = append(results, Result{ChunkID: item.ChunkID, Vector: out.vectors[j]})
		}
	}
	report.Embedded = len(results)

	if report.FailedBatches == len(batches) {
		return nil, report, fmt.Errorf("%w: %d batches: %w", ErrAllBatchesFailed, len(batches), errors.Join(errs...))
	}
	if report.FailedBatches > 0 {
		b.log.Warn("embedding finished with dropped batches",
			"batches", report.Batches,
			"failed_batches", report.FailedBatches,
			"failed_chunks", len(report.FailedChunks),
		)
	}
	return results, report, nil
}

func (b *Batcher) embedBatch(ctx context.Context, index int, batch Batch) ([][]float32, error) {
	texts := batch.texts()
	var vectors [][]float32
	err := b.policy.Do(ctx, func() error {
		out, err := b.embedOnce(ctx, texts)
		if err != nil {
			return err
		}
		if len(out) != len(texts) {
			return retry.Unrecoverable(fmt.Errorf("provider returned %d vectors for %d texts", len(out), len(texts)))
		}
		vectors = out
		return nil
	}, func(n uint, err error) {
		b.log.Debug("retrying embedding batch", "batch", index, "attempt", n+1, "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: batch %d: %w", ErrBatchFailed, index, err)
	}
	return vectors, nil
}

func (b *Batcher) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	if b.callTimeout <= 0 {
		return b.provider.EmbedTexts(ctx, texts)
	}
	callCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	out, err := b.provider.EmbedTexts(callCtx, texts)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ai.ErrTimeout) {
		return nil, fmt.Errorf("%w: call exceeded %s: %w", ai.ErrTimeout, b.callTimeout, err)
	}
	return out, err
}
