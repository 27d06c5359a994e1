package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var defaultHTTPHeaders = map[string]string{"content-type": "application/json"}

type HTTPRequest struct {
	Method  string
	BaseURL string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    any
}

type HTTPResponse struct {
	StatusCode int               `json:"statusCode"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers"`
}

// OK reports whether the status code is in the 2xx range.
func (r HTTPResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// DecodeBody unmarshals the JSON response body into v.
func (r HTTPResponse) DecodeBody(v any) error {
	if err := json.Unmarshal([]byte(r.Body), v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// EffectiveMethod returns the request method, GET when unset.
func (r HTTPRequest) EffectiveMethod() string {
	if r.Method == "" {
		return "GET"
	}
	return strings.ToUpper(r.Method)
}

// EffectiveHeaders returns the request headers, a JSON content type when
// none were given.
func (r HTTPRequest) EffectiveHeaders() map[string]string {
	if r.Headers == nil {
		out := make(map[string]string, len(defaultHTTPHeaders))
		for k, v := range defaultHTTPHeaders {
			out[k] = v
		}
		return out
	}
	return r.Headers
}

// EffectiveBody returns the request body, an empty JSON object when unset.
func (r HTTPRequest) EffectiveBody() any {
	if r.Body == nil {
		return map[string]any{}
	}
	return r.Body
}

// URL builds the absolute request URL. A base without a scheme is served
// over https, base and path are joined by exactly one slash and query
// parameters are appended in key order.
func (r HTTPRequest) URL() (string, error) {
	base := strings.TrimSpace(r.BaseURL)
	if base == "" {
		return "", errors.New("bridge: http request has no base url")
	}
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("bridge: parse base url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("bridge: base url %q has no host", r.BaseURL)
	}

	joined := strings.TrimRight(u.Path, "/")
	if p := strings.TrimLeft(r.Path, "/"); p != "" {
		joined += "/" + p
	}
	u.Path = joined
	u.RawPath = ""

	if len(r.Query) > 0 {
		q := u.Query()
		for k, v := range r.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
