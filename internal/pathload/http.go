package pathload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/keithlinneman/pathload/internal/xerrors"
)

// HTTPLoader fetches http(s) URLs as text.
type HTTPLoader struct {
	// Client sends the request. Nil means DefaultHTTPClient.
	Client *http.Client
	// Limiter, when set, is waited on before each request is sent.
	Limiter *rate.Limiter
}

var defaultClient = sync.OnceValue(func() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
})

// DefaultHTTPClient is an http.Client whose transport emits client spans.
// Redirects follow net/http defaults.
func DefaultHTTPClient() *http.Client { return defaultClient() }

func (h *HTTPLoader) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return DefaultHTTPClient()
}

// Load sends one request for rawURL and returns the body as text.
func (h *HTTPLoader) Load(ctx context.Context, rawURL string, o Options) (string, error) {
	method := o.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return "", xerrors.Wrap(err, "build request")
	}
	for k, vs := range o.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if o.basicAuth {
		req.SetBasicAuth(o.user, o.secret)
	}

	if o.PrepareRequest != nil {
		if err := callHook(hookPrepareRequest, func() error { return o.PrepareRequest(req) }); err != nil {
			return "", err
		}
	}

	if h.Limiter != nil {
		if err := h.Limiter.Wait(req.Context()); err != nil {
			return "", xerrors.Wrap(err, "wait for rate limiter")
		}
	}

	resp, err := h.client().Do(req)
	if err != nil {
		return "", xerrors.Wrapf(err, "%s %s", req.Method, req.URL.Redacted())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 64<<10)
		resp.Body.Close()
		return "", &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Method:     req.Method,
			URL:        req.URL.Redacted(),
		}
	}

	if o.ProcessContent != nil {
		return processContent(ctx, resp, o.ProcessContent)
	}

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", xerrors.Wrapf(err, "read body of %s", req.URL.Redacted())
	}
	label := o.Encoding
	if label == "" {
		label = charsetOf(resp.Header.Get("Content-Type"))
	}
	return decode(body, label)
}

type doneResult struct {
	text string
	err  error
}

// processContent hands resp to fn and waits for its done signal. Whatever
// reaches done first is the outcome; a hook failure only counts if done has
// not fired by the time the hook returns.
func processContent(ctx context.Context, resp *http.Response, fn ProcessContentFunc) (string, error) {
	defer resp.Body.Close()

	ch := make(chan doneResult, 1)
	var once sync.Once
	done := func(text string, err error) {
		once.Do(func() { ch <- doneResult{text: text, err: err} })
	}

	if err := callHook(hookProcessContent, func() error { return fn(resp, done) }); err != nil {
		once.Do(func() {})
		select {
		case r := <-ch:
			return settled(r)
		default:
			return "", err
		}
	}

	select {
	case r := <-ch:
		return settled(r)
	case <-ctx.Done():
		once.Do(func() {})
		select {
		case r := <-ch:
			return settled(r)
		default:
			return "", fmt.Errorf("%w: %w", ErrContentNotDelivered, ctx.Err())
		}
	}
}

func settled(r doneResult) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.text, nil
}
