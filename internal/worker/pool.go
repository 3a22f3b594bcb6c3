package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Result is the outcome of one input.
type Result[T any, R any] struct {
	Input T
	Value R
	Err   error
}

// Func processes a single input.
type Func[T any, R any] func(ctx context.Context, input T) (R, error)

// Pool is a generic worker pool with bounded concurrency.
type Pool[T any, R any] struct {
	workers int
	fn      Func[T, R]
	log     zerolog.Logger
}

// NewPool creates a pool of at most workers goroutines.
func NewPool[T any, R any](workers int, fn Func[T, R], log zerolog.Logger) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{workers: workers, fn: fn, log: log}
}

// Workers returns the concurrency of the pool.
func (p *Pool[T, R]) Workers() int { return p.workers }

// Execute runs all inputs through the pool. Results are in input order.
// Inputs not started when ctx is done get ctx's error.
func (p *Pool[T, R]) Execute(ctx context.Context, inputs []T) []Result[T, R] {
	results := make([]Result[T, R], len(inputs))
	next := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(p.workers, len(inputs)); w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range next {
				v, err := p.fn(ctx, inputs[idx])
				results[idx] = Result[T, R]{Input: inputs[idx], Value: v, Err: err}
				if err != nil {
					p.log.Debug().Err(err).Int("worker", workerID).Int("index", idx).Msg("Task failed")
				}
			}
		}(w)
	}

feed:
	for i := range inputs {
		select {
		case <-ctx.Done():
			for j := i; j < len(inputs); j++ {
				results[j] = Result[T, R]{Input: inputs[j], Err: ctx.Err()}
			}
			break feed
		case next <- i:
		}
	}
	close(next)

	wg.Wait()
	return results
}

// Batch splits items into slices of at most batchSize.
func Batch[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = 1
	}
	var batches [][]T
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		batches = append(batches, items[i:end])
	}
	return batches
}
