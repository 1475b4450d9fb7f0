// CLAUDE:SUMMARY Registers docparse parse and detect handlers on a connectivity Router for inter-service RPC.
package docparse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/docparse/connectivity"
	"github.com/hazyhaar/docparse/kit"
)

// RegisterConnectivity registers docparse service handlers on a connectivity Router.
//
// Registered services:
//
//	docparse_parse   parse a file into its {file_name, format, shape, payload} envelope
//	docparse_detect  detect the format of a path from its extension
//
// docparse_parse runs on its own goroutine, so a Timeout middleware on the
// router returns to the caller when the deadline passes.
func (p *Pipeline) RegisterConnectivity(router *connectivity.Router) {
	router.RegisterLocal("docparse_parse", rpcHandler[ParseRequest](p.parseEndpoint()))
	router.RegisterLocal("docparse_detect", rpcHandler[DetectRequest](p.detectEndpoint()))
}

func rpcHandler[T any](ep kit.Endpoint) connectivity.Handler {
	return func(ctx context.Context, payload []byte) ([]byte, error) {
		req := new(T)
		if err := json.Unmarshal(payload, req); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		resp, err := ep(kit.WithTransport(ctx, "rpc"), req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(resp)
	}
}
