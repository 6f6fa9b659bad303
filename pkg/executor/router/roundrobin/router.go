// Package roundrobin distributes prompts across a set of executors with
// circuit breaker protection.
package roundrobin

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/adrianliechti/prompter/pkg/executor"
	"github.com/adrianliechti/prompter/pkg/executor/router"
	"github.com/adrianliechti/prompter/pkg/prompt"
)

var _ executor.Executor = (*Executor)(nil)

type Executor struct {
	executors []executor.Executor
	stats     []*router.ExecutorStats

	failureThreshold int
	recoveryTimeout  time.Duration
}

func New(executors ...executor.Executor) (*Executor, error) {
	if len(executors) == 0 {
		return nil, errors.New("at least one executor is required")
	}

	stats := make([]*router.ExecutorStats, len(executors))

	for i := range stats {
		stats[i] = router.NewExecutorStats()
	}

	return &Executor{
		executors: executors,
		stats:     stats,

		failureThreshold: router.DefaultFailureThreshold,
		recoveryTimeout:  router.DefaultRecoveryTimeout,
	}, nil
}

// Execute routes the prompt to a randomly selected healthy executor. Only
// retryable failures count against an executor's circuit; an invalid
// prompt fails no matter who serves it.
func (e *Executor) Execute(ctx context.Context, p *prompt.Prompt) (*executor.Response, error) {
	index := e.selectExecutor()

	if index < 0 {
		return nil, errors.New("all executors are unavailable")
	}

	response, err := e.executors[index].Execute(ctx, p)

	if err != nil {
		if executor.IsRetryable(err) {
			e.stats[index].RecordFailure(e.failureThreshold)
		}

		return nil, err
	}

	e.stats[index].RecordSuccess()

	return response, nil
}

func (e *Executor) selectExecutor() int {
	candidates := make([]int, 0, len(e.executors))

	for i, stat := range e.stats {
		if stat.IsAvailable(e.recoveryTimeout) {
			candidates = append(candidates, i)
		}
	}

	if len(candidates) == 0 {
		return e.fallbackExecutor()
	}

	return candidates[rand.Intn(len(candidates))]
}

// fallbackExecutor returns the least recently failed executor when all
// circuits are open.
func (e *Executor) fallbackExecutor() int {
	bestIndex := 0

	var oldestFailure time.Time

	for i, stat := range e.stats {
		lastFailure := stat.GetLastFailure()

		if i == 0 || lastFailure.Before(oldestFailure) {
			oldestFailure = lastFailure
			bestIndex = i
		}
	}

	e.stats[bestIndex].SetHalfOpen()

	return bestIndex
}
