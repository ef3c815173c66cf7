// Package transport is LogJuicer's sole window onto HTTP(S): fetching a
// single log file and listing a directory-index page. It owns the
// process-wide TLS root/client state and a shared rate limiter so baseline
// discovery against a CI log server never floods it, per spec §6.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/logjuicer/logjuicer/internal/apperrors"
)

const (
	envCAExtra    = "LOGJUICER_CA_EXTRA"
	envNoVerify   = "LOGJUICER_SSL_NO_VERIFY"
	envHTTPAuth   = "LOGJUICER_HTTP_AUTH"
	fallbackExtra = "/etc/pki/tls/certs/ca-extra.crt"
)

// Transport is the collaborator interface the core programs against:
// fetch a stream, or list the files referenced by a directory-index page.
type Transport interface {
	Get(ctx context.Context, url string) (io.ReadCloser, error)
	ListDir(ctx context.Context, url string) ([]string, error)
}

// HTTPTransport implements Transport over a shared *http.Client, with a
// request-rate limiter and a hard cap on the total number of requests (file
// fetches and directory listings) it performs, guarding against infinite
// folder loops (spec §6).
type HTTPTransport struct {
	client      *http.Client
	limiter     *rate.Limiter
	maxRequests int
	authHeader  string

	requests int
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithRateLimit overrides the default request rate and burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(t *HTTPTransport) { t.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithMaxRequests overrides the default cap on total requests per run.
func WithMaxRequests(n int) Option {
	return func(t *HTTPTransport) { t.maxRequests = n }
}

// New builds an HTTPTransport, loading the system CA bundle plus any extra
// bundle named by LOGJUICER_CA_EXTRA (or the fallback path), and honoring
// LOGJUICER_SSL_NO_VERIFY / LOGJUICER_HTTP_AUTH.
func New(opts ...Option) (*HTTPTransport, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	extra := os.Getenv(envCAExtra)
	if extra == "" {
		extra = fallbackExtra
	}
	if pem, err := os.ReadFile(extra); err == nil {
		pool.AppendCertsFromPEM(pem)
	}

	tlsCfg := &tls.Config{RootCAs: pool}
	if os.Getenv(envNoVerify) != "" {
		tlsCfg.InsecureSkipVerify = true //nolint:gosec // explicit operator opt-in
	}

	t := &HTTPTransport{
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		},
		limiter:     rate.NewLimiter(rate.Limit(8), 4),
		maxRequests: 4000,
		authHeader:  os.Getenv(envHTTPAuth),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *HTTPTransport) do(ctx context.Context, url string) (*http.Response, error) {
	t.requests++
	if t.requests > t.maxRequests {
		return nil, &apperrors.ReadError{Source: url, Err: fmt.Errorf("request cap of %d exceeded", t.maxRequests)}
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, &apperrors.ReadError{Source: url, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &apperrors.ReadError{Source: url, Err: err}
	}
	if t.authHeader != "" {
		req.Header.Set("Authorization", t.authHeader)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &apperrors.ReadError{Source: url, Err: err}
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, &apperrors.ReadError{Source: url, Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}
	return resp, nil
}

// Get fetches url and returns its body stream.
func (t *HTTPTransport) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := t.do(ctx, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ListDir fetches url as an HTML directory-index page and returns the
// absolute URLs of its entries, skipping parent-directory links and the
// "index of" page footer emitted by common static file servers.
func (t *HTTPTransport) ListDir(ctx context.Context, url string) ([]string, error) {
	resp, err := t.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &apperrors.ReadError{Source: url, Err: err}
	}

	base := strings.TrimSuffix(url, "/") + "/"
	var out []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if href == "" || href == "../" || href == ".." || href == "/" {
			return
		}
		if strings.HasPrefix(href, "?") {
			return
		}
		label := strings.TrimSpace(sel.Text())
		if strings.EqualFold(label, "parent directory") {
			return
		}
		if strings.Contains(href, "://") {
			out = append(out, href)
			return
		}
		out = append(out, base+strings.TrimPrefix(href, "/"))
	})
	return out, nil
}
