// CLAUDE:SUMMARY Transport-neutral endpoints (parse, detect, formats) shared by the RPC, MCP and HTTP bindings.
package docparse

import (
	"context"

	"github.com/hazyhaar/docparse/kit"
)

// ParseRequest is the input of docparse_parse on every transport.
type ParseRequest struct {
	Path     string `json:"path"`
	Password string `json:"password,omitempty"`
}

// DetectRequest is the input of docparse_detect.
type DetectRequest struct {
	Path string `json:"path"`
}

// DetectResponse is the output of docparse_detect.
type DetectResponse struct {
	Format Format `json:"format"`
}

// FormatsResponse is the output of docparse_formats.
type FormatsResponse struct {
	Formats []string `json:"formats"`
}

func (p *Pipeline) parseEndpoint() kit.Endpoint {
	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*ParseRequest)
		if up, _ := ctx.Value(uploadKey{}).(string); up == "" || up != r.Path {
			if err := p.AllowPath(r.Path); err != nil {
				return nil, err
			}
		}
		return p.WithPassword(r.Password).parseAsync(ctx, r.Path)
	}
	return p.wrap("docparse_parse", ep)
}

type uploadKey struct{}

// withUpload marks path as a server-side copy of an uploaded file.
func withUpload(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, uploadKey{}, path)
}

func (p *Pipeline) detectEndpoint() kit.Endpoint {
	ep := func(_ context.Context, req any) (any, error) {
		r := req.(*DetectRequest)
		format, err := p.Detect(r.Path)
		if err != nil {
			return nil, err
		}
		return DetectResponse{Format: format}, nil
	}
	return p.wrap("docparse_detect", ep)
}

// wrap applies logging then the middleware added with Use.
func (p *Pipeline) wrap(op string, ep kit.Endpoint) kit.Endpoint {
	mws := []kit.Middleware{kit.Logging(p.logger, op)}
	for _, mw := range p.mws {
		mws = append(mws, mw(op))
	}
	return kit.Chain(mws...)(ep)
}

// Redact returns a copy without the password, for audit records.
func (r *ParseRequest) Redact() any {
	cp := *r
	cp.Password = ""
	return &cp
}

func formatsEndpoint(_ context.Context, _ any) (any, error) {
	return FormatsResponse{Formats: SupportedFormats()}, nil
}
