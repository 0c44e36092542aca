package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"deadlinebot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] runs first.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func MWPanicRecover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					req.Logger.Error("panic recovered",
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// MWRequestLog logs every handled update. Fast successes go to DEBUG.
func MWRequestLog(slow time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			d := time.Since(start)

			fields := []logx.Field{logx.String("kind", string(req.Update.Kind)), logx.Duration("dur", d)}
			switch {
			case err != nil:
				req.Logger.Warn("update failed", append(fields, logx.Err(err))...)
			case d >= slow:
				req.Logger.Info("update ok (slow)", fields...)
			default:
				req.Logger.Debug("update ok", fields...)
			}
			return err
		}
	}
}

// MWObserve reports the outcome of each update to obs.
func MWObserve(obs Observer) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			outcome := "ok"
			if err != nil {
				outcome = "error"
			}
			obs.UpdateHandled(string(req.Update.Kind), outcome, time.Since(start))
			return err
		}
	}
}
