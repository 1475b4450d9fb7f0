package connectivity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxHTTPResponseBody caps a remote answer (64 MiB).
const maxHTTPResponseBody int64 = 64 << 20

type httpConfig struct {
	TimeoutMs int64 `json:"timeout_ms"`
}

// HTTPFactory builds Handlers that POST the JSON payload to
// endpoint + "/" + service, the layout served by docparse's /rpc router.
func HTTPFactory() TransportFactory {
	return func(endpoint string, config json.RawMessage) (Handler, func(), error) {
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, nil, fmt.Errorf("connectivity/http: invalid endpoint %q", endpoint)
		}

		var cfg httpConfig
		if len(config) > 0 {
			_ = json.Unmarshal(config, &cfg)
		}
		timeout := 60 * time.Second
		if cfg.TimeoutMs > 0 {
			timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
		}
		client := &http.Client{Timeout: timeout}
		base := strings.TrimRight(endpoint, "/")

		handler := func(ctx context.Context, payload []byte) ([]byte, error) {
			target := base + "/" + url.PathEscape(ServiceFromContext(ctx))
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: do request: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPResponseBody))
			if err != nil {
				return nil, fmt.Errorf("connectivity/http: read response: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &ErrRemoteStatus{Endpoint: target, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			}
			return body, nil
		}
		return handler, client.CloseIdleConnections, nil
	}
}
