// Package limiter throttles an executor with a shared rate limit.
package limiter

import (
	"context"

	"github.com/adrianliechti/prompter/pkg/executor"
	"github.com/adrianliechti/prompter/pkg/prompt"

	"golang.org/x/time/rate"
)

var _ executor.Executor = (*Executor)(nil)

type Executor struct {
	limiter *rate.Limiter

	executor executor.Executor
}

// New wraps an executor so each Execute waits for the limiter first. A nil
// limiter disables throttling.
func New(l *rate.Limiter, e executor.Executor) *Executor {
	return &Executor{
		limiter: l,

		executor: e,
	}
}

func (e *Executor) Execute(ctx context.Context, p *prompt.Prompt) (*executor.Response, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return e.executor.Execute(ctx, p)
}
