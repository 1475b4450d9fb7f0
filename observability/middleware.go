package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/docparse/kit"
)

// maxResultBytes caps the JSON stored in audit_log.result. Parsed payloads
// beyond it are summarised by size.
const maxResultBytes = 4 << 10

// Redactor is implemented by requests carrying secrets.
type Redactor interface {
	Redact() any
}

type coder interface {
	Code() string
}

// Middleware returns a per-operation endpoint middleware that queues an
// AuditEntry for every call.
func Middleware(a *AuditLogger) func(op string) kit.Middleware {
	return func(op string) kit.Middleware {
		return func(next kit.Endpoint) kit.Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				start := time.Now()
				resp, err := next(ctx, req)

				e := &AuditEntry{
					Timestamp:  start,
					Operation:  op,
					Transport:  kit.GetTransport(ctx),
					RequestID:  kit.GetRequestID(ctx),
					RemoteAddr: kit.GetRemoteAddr(ctx),
					Parameters: paramsJSON(req),
					DurationMs: time.Since(start).Milliseconds(),
				}
				if err != nil {
					e.Status = statusOf(err)
					e.ErrorMessage = err.Error()
					var c coder
					if errors.As(err, &c) {
						e.ErrorCode = c.Code()
					}
				} else {
					e.Status = StatusSuccess
					e.Result = resultJSON(resp)
				}
				a.LogAsync(e)
				return resp, err
			}
		}
	}
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	case errors.Is(err, context.Canceled):
		return StatusCancelled
	}
	return StatusError
}

func paramsJSON(req any) string {
	if r, ok := req.(Redactor); ok {
		req = r.Redact()
	}
	if req == nil {
		return "{}"
	}
	b, err := json.Marshal(req)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func resultJSON(resp any) string {
	if resp == nil {
		return ""
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return ""
	}
	if len(b) > maxResultBytes {
		return fmt.Sprintf(`{"truncated":true,"bytes":%d}`, len(b))
	}
	return string(b)
}
