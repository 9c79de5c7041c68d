package core

import (
	"context"
	"errors"
	"fmt"
)

// IService is implemented by every vendor adapter.
type IService interface {
	// Name identifies the provider in logs and metrics, e.g. "openai" or "clova".
	Name() string
}

// BaseHandler holds a primary service and the backups tried when it fails.
type BaseHandler[S IService] struct {
	Service        S
	BackupServices []S
	Logger         *Logger
}

// Services returns the primary followed by the backups.
func (h *BaseHandler[S]) Services() []S {
	out := make([]S, 0, 1+len(h.BackupServices))
	out = append(out, h.Service)
	return append(out, h.BackupServices...)
}

// CallWithFallback runs call against each service in order and returns the
// first success. A cancelled ctx stops the chain. When every service fails
// the errors are joined in order.
func CallWithFallback[S IService, R any](ctx context.Context, h *BaseHandler[S], call func(context.Context, S) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	services := h.Services()
	for i, svc := range services {
		result, err := call(ctx, svc)
		if err == nil {
			if i > 0 {
				h.Logger.With(map[string]any{"service": svc.Name(), "attempt": i + 1}).Info("backup service succeeded")
			}
			return result, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", svc.Name(), err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, errors.Join(errs...)
		}
		if i < len(services)-1 {
			h.Logger.With(map[string]any{"service": svc.Name(), "error": err}).Warn("service failed, switching to backup")
		}
	}
	return zero, errors.Join(errs...)
}
