// CLAUDE:SUMMARY chi routes for parse (path or multipart upload), detect and formats, with error-kind to status mapping.
package docparse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/docparse/kit"
)

// RegisterHTTP mounts the docparse API on r:
//
//	POST /api/v1/parse    {"path": "...", "password": "..."} or multipart field "file"
//
// Path requests are subject to AllowPath; uploads are not.
//	GET  /api/v1/detect?path=...
//	GET  /api/v1/formats
func (p *Pipeline) RegisterHTTP(r chi.Router) {
	parse := p.parseEndpoint()
	detect := p.detectEndpoint()

	r.Post("/api/v1/parse", func(w http.ResponseWriter, req *http.Request) {
		ctx := kit.WithRemoteAddr(kit.WithTransport(req.Context(), "http"), req.RemoteAddr)

		var pr ParseRequest
		if isMultipart(req) {
			path, cleanup, err := p.receiveUpload(w, req)
			if err != nil {
				writeError(w, httpStatus(err), err)
				return
			}
			defer cleanup()
			ctx = withUpload(ctx, path)
			pr = ParseRequest{Path: path, Password: req.FormValue("password")}
		} else if err := json.NewDecoder(req.Body).Decode(&pr); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode: %w", err))
			return
		}

		resp, err := parse(ctx, &pr)
		if err != nil {
			writeError(w, httpStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/api/v1/detect", func(w http.ResponseWriter, req *http.Request) {
		resp, err := detect(kit.WithTransport(req.Context(), "http"), &DetectRequest{Path: req.URL.Query().Get("path")})
		if err != nil {
			writeError(w, httpStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/api/v1/formats", func(w http.ResponseWriter, req *http.Request) {
		resp, _ := formatsEndpoint(req.Context(), nil)
		writeJSON(w, http.StatusOK, resp)
	})
}

func isMultipart(req *http.Request) bool {
	mt, _, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// receiveUpload stores the "file" part in a private temp dir under its
// original base name, so the envelope reports the uploaded name.
func (p *Pipeline) receiveUpload(w http.ResponseWriter, req *http.Request) (string, func(), error) {
	req.Body = http.MaxBytesReader(w, req.Body, p.cfg.MaxFileSize+1<<20)
	src, hdr, err := req.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return "", nil, &Error{Kind: KindTooLarge, Err: err}
		}
		return "", nil, &Error{Kind: KindInvalidPath, Err: fmt.Errorf("multipart field \"file\": %w", err)}
	}
	defer src.Close()

	name, err := fileName(hdr.Filename)
	if err != nil {
		return "", nil, err
	}
	dir, err := os.MkdirTemp("", "docparse-upload-")
	if err != nil {
		return "", nil, &Error{Kind: KindIO, Err: err}
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, &Error{Kind: KindIO, Err: err}
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, &Error{Kind: KindIO, Err: err}
	}
	return path, cleanup, nil
}

// httpStatus maps an error kind to a response status.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, ErrPathNotAllowed):
		return http.StatusForbidden
	}
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case KindInvalidPath, KindNotAFile, KindValidationFailed:
		return http.StatusBadRequest
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindStructuralParse, KindFormatDecode:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error(), "kind": string(KindOf(err))})
}
