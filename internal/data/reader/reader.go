// Package reader loads unit text from the local file system or over HTTP.
package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/encoding/unicode"

	domainErrors "weave/internal/core/errors"
	"weave/internal/core/ports"
	"weave/internal/engine/paths"
	"weave/internal/shared/observability"
	"weave/internal/shared/util"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRate      = 4
	defaultBurst     = 4
	defaultCacheSize = 256
	limiterTTL       = 10 * time.Minute
)

type Option func(*Reader)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Reader) {
		r.client = c
	}
}

// WithRateLimit throttles remote reads per host to rate requests per second.
func WithRateLimit(rate float64, burst int) Option {
	return func(r *Reader) {
		if rate > 0 {
			r.rate = rate
		}
		if burst > 0 {
			r.burst = burst
		}
	}
}

// WithCacheSize bounds how many remote bodies are kept.
func WithCacheSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.cacheSize = n
		}
	}
}

// Reader implements ports.Reader.
type Reader struct {
	client    *http.Client
	rate      float64
	burst     int
	cacheSize int
	limiters  *util.LimiterRegistry
	remote    *lru.Cache[string, string]
}

func New(opts ...Option) (*Reader, error) {
	r := &Reader{
		client:    &http.Client{Timeout: defaultTimeout},
		rate:      defaultRate,
		burst:     defaultBurst,
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	cache, err := lru.New[string, string](r.cacheSize)
	if err != nil {
		return nil, domainErrors.Wrap(err, domainErrors.CodeInvalidConfig, "create remote cache")
	}
	r.remote = cache
	r.limiters = util.NewLimiterRegistry(r.rate, r.burst, limiterTTL)
	return r, nil
}

// Close stops the limiter cleanup.
func (r *Reader) Close() {
	r.limiters.Close()
}

func (r *Reader) ReadFile(ctx context.Context, path string) (ports.ReadResult, error) {
	if paths.IsAbsoluteURL(path) {
		text, err := r.fetch(ctx, path)
		if err != nil {
			return ports.ReadResult{}, err
		}
		return ports.ReadResult{Content: text, Remote: true}, nil
	}

	local := path
	if strings.HasPrefix(strings.ToLower(local), "file://") {
		local = local[len("file://"):]
	}
	data, err := os.ReadFile(local)
	if err != nil {
		code := domainErrors.CodeReadFailed
		if errors.Is(err, fs.ErrNotExist) {
			code = domainErrors.CodeNotFound
		}
		return ports.ReadResult{}, domainErrors.AddContext(domainErrors.Wrap(err, code, "read unit"), domainErrors.CtxPath, path)
	}
	text, err := Decode(data)
	if err != nil {
		return ports.ReadResult{}, domainErrors.AddContext(err, domainErrors.CtxPath, path)
	}
	return ports.ReadResult{Content: text}, nil
}

func (r *Reader) fetch(ctx context.Context, location string) (string, error) {
	target := location
	if strings.HasPrefix(strings.ToLower(target), "www.") {
		target = "http://" + target
	}
	if text, ok := r.remote.Get(target); ok {
		observability.RemoteReadsTotal.WithLabelValues("cached").Inc()
		return text, nil
	}

	fail := func(err error, msg string) (string, error) {
		observability.RemoteReadsTotal.WithLabelValues("failed").Inc()
		return "", domainErrors.AddContext(domainErrors.Wrap(err, domainErrors.CodeReadFailed, msg), domainErrors.CtxPath, location)
	}

	u, err := url.Parse(target)
	if err != nil {
		return fail(err, "parse remote location")
	}
	if err := r.limiters.Get(u.Host).Wait(ctx, 1); err != nil {
		return fail(err, "wait for remote rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fail(err, "build remote request")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fail(err, "fetch remote unit")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(fmt.Errorf("unexpected status %s", resp.Status), "fetch remote unit")
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(err, "read remote body")
	}
	text, err := Decode(body)
	if err != nil {
		return fail(err, "decode remote body")
	}

	r.remote.Add(target, text)
	observability.RemoteReadsTotal.WithLabelValues("fetched").Inc()
	slog.Debug("fetched remote unit", "url", target, "bytes", len(body))
	return text, nil
}

var (
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
)

// Decode turns raw bytes into text by their byte order mark: UTF-16 big or
// little endian, UTF-8 with the mark stripped, and anything else as UTF-8.
func Decode(data []byte) (string, error) {
	var enc unicode.Endianness
	switch {
	case bytes.HasPrefix(data, bomUTF16BE):
		enc = unicode.BigEndian
	case bytes.HasPrefix(data, bomUTF16LE):
		enc = unicode.LittleEndian
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), nil
	default:
		return string(data), nil
	}
	out, err := unicode.UTF16(enc, unicode.ExpectBOM).NewDecoder().Bytes(data)
	if err != nil {
		return "", domainErrors.Wrap(err, domainErrors.CodeReadFailed, "decode UTF-16 text")
	}
	return string(out), nil
}
