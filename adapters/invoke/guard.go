package invoke

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/artpar/samgate/ports"
)

// Guard wraps a handler with fault isolation. A panicking handler becomes
// an error result instead of tearing down the process, and a handler that
// outlives the configured timeout is abandoned so the request can be
// answered. Other routes keep serving either way.
type Guard struct {
	handler ports.Handler
	timeout time.Duration
}

// NewGuard wraps h. A zero timeout disables the deadline; panics are
// always recovered.
func NewGuard(h ports.Handler, timeout time.Duration) *Guard {
	return &Guard{handler: h, timeout: timeout}
}

// Invoke runs the wrapped handler under the guard.
func (g *Guard) Invoke(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	type outcome struct {
		result events.APIGatewayProxyResponse
		err    error
	}

	// Buffered so an abandoned invocation can still deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", rec)}
			}
		}()
		result, err := g.handler.Invoke(ctx, event)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return events.APIGatewayProxyResponse{}, fmt.Errorf("invocation aborted: %w", ctx.Err())
	}
}

// Ensure interface compliance.
var _ ports.Handler = (*Guard)(nil)
