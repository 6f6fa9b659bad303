package executor

import (
	"context"

	"github.com/adrianliechti/prompter/pkg/prompt"
)

// Executor translates a prompt into one provider's wire format, performs a
// single request/response cycle and normalizes the reply into a Response.
//
// Failure policy, uniform across all adapters in this module: transport
// failures and provider-reported errors (rate limit, invalid request,
// content policy rejection of the request) fail Execute immediately. A
// non-nil Response means the provider call succeeded; Response.Err reports
// only conditions encoded in the reply itself, such as a safety refusal or
// truncated output.
//
// Executors hold no cross-call state. Cancellation and timeouts travel
// through ctx into the injected transport.
type Executor interface {
	Execute(ctx context.Context, prompt *prompt.Prompt) (*Response, error)
}
