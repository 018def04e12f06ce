package pathload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

type fixture struct {
	srv  *httptest.Server
	hits atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.hits.Add(1)
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/project.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"x"}`)
	})
	r.Get("/latin1.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		_, _ = w.Write([]byte("caf\xe9"))
	})
	r.Get("/echo-header", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, req.Header.Get("X-Token"))
	})
	r.Post("/method", func(w http.ResponseWriter, req *http.Request) {
		_, _ = io.WriteString(w, req.Method)
	})
	r.Get("/redirect", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/project.json", http.StatusFound)
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal detail", http.StatusInternalServerError)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.BasicAuth("pathload", map[string]string{"alice": "s3cret"}))
		r.Get("/private.txt", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "top secret")
		})
	})
	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) url(p string) string { return f.srv.URL + p }

func newHTTPTestLoader(f *fixture) *Loader {
	return New(WithHTTPClient(f.srv.Client()))
}

func TestHTTP_Success(t *testing.T) {
	f := newFixture(t)
	got, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/project.json"))
	if err != nil || got != `{"name":"x"}` {
		t.Fatalf("Load = %q, %v", got, err)
	}
}

func TestHTTP_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/missing.json"))
	if err == nil {
		t.Fatal("expected error")
	}
	if StatusCode(err) != http.StatusNotFound {
		t.Fatalf("StatusCode = %d, want 404 (err %v)", StatusCode(err), err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Method != http.MethodGet || !strings.HasSuffix(se.URL, "/missing.json") {
		t.Fatalf("StatusError = %+v", se)
	}
	if Outcome(err) != "http_status" {
		t.Fatalf("Outcome = %q", Outcome(err))
	}
}

func TestHTTP_ServerErrorOmitsBody(t *testing.T) {
	f := newFixture(t)
	_, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/boom"))
	if StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("StatusCode = %d", StatusCode(err))
	}
	if strings.Contains(err.Error(), "internal detail") {
		t.Fatalf("error should not embed the body: %v", err)
	}
}

func TestHTTP_PrepareRequestBasicAuth(t *testing.T) {
	f := newFixture(t)
	l := newHTTPTestLoader(f)

	_, err := l.Load(context.Background(), f.url("/private.txt"))
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("without auth: StatusCode = %d, want 401", StatusCode(err))
	}

	got, err := l.Load(context.Background(), f.url("/private.txt"), WithPrepareRequest(func(req *http.Request) error {
		req.SetBasicAuth("alice", "s3cret")
		return nil
	}))
	if err != nil || got != "top secret" {
		t.Fatalf("with auth: Load = %q, %v", got, err)
	}
}

func TestHTTP_BasicAuthOption(t *testing.T) {
	f := newFixture(t)
	got, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/private.txt"), WithBasicAuth("alice", "s3cret"))
	if err != nil || got != "top secret" {
		t.Fatalf("Load = %q, %v", got, err)
	}
}

func TestHTTP_HeaderOptionThenHookOverrides(t *testing.T) {
	f := newFixture(t)
	got, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/echo-header"),
		WithHeader("X-Token", "from-option"),
		WithPrepareRequest(func(req *http.Request) error {
			if req.Header.Get("X-Token") != "from-option" {
				t.Errorf("hook saw X-Token=%q", req.Header.Get("X-Token"))
			}
			req.Header.Set("X-Token", "from-hook")
			return nil
		}),
	)
	if err != nil || got != "from-hook" {
		t.Fatalf("Load = %q, %v", got, err)
	}
}

func TestHTTP_PrepareRequestErrorSendsNothing(t *testing.T) {
	f := newFixture(t)
	hookErr := errors.New("no credentials configured")

	_, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/project.json"),
		WithPrepareRequest(func(*http.Request) error { return hookErr }))
	if err == nil || err.Error() != "no credentials configured" {
		t.Fatalf("err = %v, want the hook message verbatim", err)
	}
	var he *HookError
	if !errors.As(err, &he) || he.Hook != "prepareRequest" || !errors.Is(err, hookErr) {
		t.Fatalf("err = %#v, want HookError wrapping hookErr", err)
	}
	if n := f.hits.Load(); n != 0 {
		t.Fatalf("server saw %d requests, want 0", n)
	}
}

func TestHTTP_PrepareRequestPanic(t *testing.T) {
	f := newFixture(t)
	_, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/project.json"),
		WithPrepareRequest(func(*http.Request) error { panic("bad hook") }))
	if err == nil || err.Error() != "bad hook" {
		t.Fatalf("err = %v", err)
	}
	if f.hits.Load() != 0 {
		t.Fatal("request sent after a panicking hook")
	}
}

func TestHTTP_ProcessContentThrows(t *testing.T) {
	f := newFixture(t)
	_, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/project.json"),
		WithProcessContent(func(*http.Response, DoneFunc) error {
			return errors.New("cannot decode payload")
		}))
	if err == nil || err.Error() != "cannot decode payload" {
		t.Fatalf("err = %v", err)
	}
	var he *HookError
	if !errors.As(err, &he) || he.Hook != "processContent" {
		t.Fatalf("err = %#v", err)
	}
}

func TestHTTP_ProcessContentCustomDecoding(t *testing.T) {
	f := newFixture(t)
	got, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/project.json"),
		WithProcessContent(func(resp *http.Response, done DoneFunc) error {
			b, err := io.ReadAll(resp.Body)
			done(strings.ToUpper(string(b)), err)
			return nil
		}))
	if err != nil || got != `{"NAME":"X"}` {
		t.Fatalf("Load = %q, %v", got, err)
	}
}

func TestHTTP_ProcessContentAsyncDone(t *testing.T) {
	f := newFixture(t)
	got, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/project.json"),
		WithProcessContent(func(resp *http.Response, done DoneFunc) error {
			go func() {
				b, err := io.ReadAll(resp.Body)
				done("async:"+string(b), err)
				done("ignored", nil)
			}()
			return nil
		}))
	if err != nil || got != `async:{"name":"x"}` {
		t.Fatalf("Load = %q, %v", got, err)
	}
}

func TestHTTP_ProcessContentDoneError(t *testing.T) {
	f := newFixture(t)
	want := errors.New("schema mismatch")
	_, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/project.json"),
		WithProcessContent(func(_ *http.Response, done DoneFunc) error {
			done("", want)
			return nil
		}))
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestHTTP_ProcessContentDoneBeforeThrowWins(t *testing.T) {
	f := newFixture(t)
	got, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/project.json"),
		WithProcessContent(func(_ *http.Response, done DoneFunc) error {
			done("first", nil)
			return errors.New("too late")
		}))
	if err != nil || got != "first" {
		t.Fatalf("Load = %q, %v", got, err)
	}
}

func TestHTTP_ProcessContentNeverDone(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newHTTPTestLoader(f).Load(ctx, f.url("/project.json"),
		WithProcessContent(func(*http.Response, DoneFunc) error { return nil }))
	if !errors.Is(err, ErrContentNotDelivered) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestHTTP_CharsetFromContentType(t *testing.T) {
	f := newFixture(t)
	got, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/latin1.txt"))
	if err != nil || got != "café" {
		t.Fatalf("Load = %q, %v", got, err)
	}
}

func TestHTTP_Method(t *testing.T) {
	f := newFixture(t)
	got, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/method"), WithMethod("post"))
	if err != nil || got != http.MethodPost {
		t.Fatalf("Load = %q, %v", got, err)
	}
}

func TestHTTP_FollowsRedirects(t *testing.T) {
	f := newFixture(t)
	got, err := newHTTPTestLoader(f).Load(context.Background(), f.url("/redirect"))
	if err != nil || got != `{"name":"x"}` {
		t.Fatalf("Load = %q, %v", got, err)
	}
}

func TestHTTP_RateLimiterCanceled(t *testing.T) {
	f := newFixture(t)
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	l := New(WithHTTPClient(f.srv.Client()), WithRateLimiter(lim))

	if _, err := l.Load(context.Background(), f.url("/project.json")); err != nil {
		t.Fatalf("first load: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Load(ctx, f.url("/project.json")); err == nil {
		t.Fatal("second load should fail waiting for the limiter")
	}
	if f.hits.Load() != 1 {
		t.Fatalf("server saw %d requests, want 1", f.hits.Load())
	}
}

func TestHTTP_TransportError(t *testing.T) {
	f := newFixture(t)
	addr := f.url("/project.json")
	client := f.srv.Client()
	f.srv.Close()

	_, err := New(WithHTTPClient(client)).Load(context.Background(), addr)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if StatusCode(err) != 0 {
		t.Fatalf("StatusCode = %d, want 0", StatusCode(err))
	}
}
