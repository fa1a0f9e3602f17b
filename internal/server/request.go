package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/hanpama/kanbangraph/internal/complexity"
	executor "github.com/hanpama/kanbangraph/internal/executor"
	language "github.com/hanpama/kanbangraph/internal/language"
)

// Request is one GraphQL request as sent over HTTP.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

var errBodyTooLarge = errors.New("body too large")

// decodeRequests reads the request from the URL on GET and from the JSON
// body on POST. A body holding an array is a batch.
func decodeRequests(r *http.Request, maxBody int64) ([]Request, bool, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req := Request{Query: q.Get("query"), OperationName: q.Get("operationName")}
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
				return nil, false, errors.New("invalid 'variables' JSON")
			}
		}
		if req.Query == "" {
			return nil, false, errors.New("missing 'query'")
		}
		return []Request{req}, false, nil
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return nil, false, fmt.Errorf("unsupported Content-Type %q", ct)
		}
	}
	defer r.Body.Close()
	body := io.Reader(r.Body)
	if maxBody > 0 {
		body = io.LimitReader(r.Body, maxBody+1)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, false, errors.New("failed to read body")
	}
	if maxBody > 0 && int64(len(raw)) > maxBody {
		return nil, false, errBodyTooLarge
	}

	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "[") {
		var reqs []Request
		if err := json.Unmarshal(raw, &reqs); err != nil {
			return nil, false, errors.New("invalid JSON")
		}
		if len(reqs) == 0 {
			return nil, false, errors.New("empty batch")
		}
		return reqs, true, nil
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, false, errors.New("invalid JSON")
	}
	if req.Query == "" {
		return nil, false, errors.New("missing 'query'")
	}
	return []Request{req}, false, nil
}

// requestErrors is the body of a request that never started executing. It
// has no data entry.
type requestErrors struct {
	Errors []executor.Error `json:"errors"`
}

func requestError(msg, code string) requestErrors {
	return requestErrors{Errors: []executor.Error{{Message: msg, Extensions: map[string]any{"code": code}}}}
}

func documentErrors(list language.ErrorList) requestErrors {
	out := requestErrors{Errors: make([]executor.Error, len(list))}
	for i, e := range list {
		code := CodeParseFailed
		if language.IsValidationError(e) {
			code = CodeValidationFailed
		}
		ee := executor.Error{Message: e.Message, Extensions: map[string]any{"code": code}}
		for _, l := range e.Locations {
			ee.Locations = append(ee.Locations, executor.Location{Line: l.Line, Column: l.Column})
		}
		out.Errors[i] = ee
	}
	return out
}

// rejection reports a guard refusal as one error carrying the exceeded
// limit.
func rejection(err error) requestErrors {
	ext := map[string]any{"code": CodeTooComplex}
	var total *complexity.TooManyAliasesError
	var level *complexity.TooManyAliasesAtLevelError
	switch {
	case errors.As(err, &total):
		ext["limit"], ext["actual"] = total.Limit, total.Actual
	case errors.As(err, &level):
		ext["limit"], ext["actual"], ext["level"] = level.Limit, level.Actual, level.Level
	}
	return requestErrors{Errors: []executor.Error{{Message: err.Error(), Extensions: ext}}}
}

func (h *Handler) write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

// apply sets the CORS headers for an allowed origin. Preflight requests
// also get the allowed methods and their requested headers back.
func (c CORSOptions) apply(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || len(c.AllowedOrigins) == 0 {
		return
	}
	switch {
	case slices.Contains(c.AllowedOrigins, "*"):
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case slices.Contains(c.AllowedOrigins, origin):
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	default:
		return
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	}
}

// wantsHTML reports whether a GET comes from a browser rather than a
// GraphQL client.
func wantsHTML(r *http.Request) bool {
	if r.URL.Query().Get("query") != "" {
		return false
	}
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mt == "text/html" || mt == "*/*" {
			return true
		}
	}
	return false
}
