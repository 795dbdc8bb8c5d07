package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"fanfan-translator/pkg/config"
	"fanfan-translator/pkg/metrics"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

//go:generate mockgen -destination=mock/mock_translator.go -package=mock fanfan-translator/services/provider Translator

type Engine string

const (
	Google Engine = "google"
	DeepL  Engine = "deepl"
)

func (e Engine) String() string { return string(e) }

// Alternate returns the other engine of the two-provider chain.
func (e Engine) Alternate() Engine {
	if e == DeepL {
		return Google
	}
	return DeepL
}

func ParseEngine(s string) (Engine, bool) {
	switch Engine(s) {
	case Google, DeepL:
		return Engine(s), true
	default:
		return "", false
	}
}

type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeNoCredentials       Outcome = "no_credentials"
	OutcomeUnsupportedLanguage Outcome = "unsupported_language"
	OutcomeTimeout             Outcome = "timeout"
	OutcomeNetworkError        Outcome = "network_error"
	OutcomeRateLimited         Outcome = "rate_limited"
	OutcomeHTTPError           Outcome = "http_error"
	OutcomeEmptyResponse       Outcome = "empty_response"
	OutcomeParseError          Outcome = "parse_error"
	OutcomeUnknownError        Outcome = "unknown_error"
)

// Code renders the outcome for logs and metrics. HTTP errors carry the
// status, e.g. http_502.
func (o Outcome) Code(status int) string {
	if o == OutcomeHTTPError && status > 0 {
		return fmt.Sprintf("http_%d", status)
	}
	return string(o)
}

func (o Outcome) retryable() bool {
	switch o {
	case OutcomeTimeout, OutcomeNetworkError, OutcomeRateLimited, OutcomeHTTPError, OutcomeUnknownError:
		return true
	default:
		return false
	}
}

type Result struct {
	Text       string
	Outcome    Outcome
	HTTPStatus int
}

func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

func (r Result) Code() string { return r.Outcome.Code(r.HTTPStatus) }

func success(text string) Result { return Result{Text: text, Outcome: OutcomeSuccess, HTTPStatus: http.StatusOK} }

func failure(o Outcome) Result { return Result{Outcome: o} }

// Translator is a single translation backend. Failures are reported in the
// Result, never as a Go error.
type Translator interface {
	Name() Engine
	Translate(ctx context.Context, text, lang string) Result
}

type Options struct {
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	MaxAttempts      int
	Backoff          time.Duration
	RateLimitBackoff time.Duration
	RatePerSecond    float64
	Burst            int
}

func OptionsFromConfig(p config.Provider) Options {
	return Options{
		ConnectTimeout:   p.ConnectTimeout,
		ReadTimeout:      p.ReadTimeout,
		MaxAttempts:      p.MaxAttempts,
		Backoff:          p.Backoff,
		RateLimitBackoff: p.RateLimitBackoff,
		RatePerSecond:    p.RatePerSecond,
		Burst:            p.Burst,
	}
}

// newClient builds a resty client whose transport enforces the connect and
// read timeouts separately.
func newClient(opts Options) *resty.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}

	client := resty.New().SetTransport(transport)
	if total := opts.ConnectTimeout + opts.ReadTimeout; total > 0 {
		client.SetTimeout(total)
	}
	return client
}

type retrier struct {
	engine           Engine
	maxAttempts      int
	backoff          time.Duration
	rateLimitBackoff time.Duration
	limiter          *rate.Limiter
}

func newRetrier(engine Engine, opts Options) retrier {
	r := retrier{
		engine:           engine,
		maxAttempts:      opts.MaxAttempts,
		backoff:          opts.Backoff,
		rateLimitBackoff: opts.RateLimitBackoff,
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 1
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return r
}

func (r retrier) do(ctx context.Context, attempt func(ctx context.Context) Result) Result {
	var res Result
	for n := 1; ; n++ {
		if r.limiter != nil && !r.limiter.Allow() {
			res = failure(OutcomeRateLimited)
		} else {
			res = attempt(ctx)
		}

		if res.OK() || !res.Outcome.retryable() || n >= r.maxAttempts {
			break
		}

		wait := r.backoff
		if res.Outcome == OutcomeRateLimited {
			wait = r.rateLimitBackoff
		}
		if !sleep(ctx, wait) {
			res = failure(OutcomeTimeout)
			break
		}
	}

	r.record(res)
	return res
}

func (r retrier) record(res Result) {
	metrics.ProviderOutcomes.WithLabelValues(r.engine.String(), res.Code()).Inc()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func classifyError(err error) Result {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return failure(OutcomeTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return failure(OutcomeTimeout)
		}
		return failure(OutcomeNetworkError)
	}
	return failure(OutcomeUnknownError)
}

func classifyStatus(status int) Result {
	if status == http.StatusTooManyRequests {
		return Result{Outcome: OutcomeRateLimited, HTTPStatus: status}
	}
	return Result{Outcome: OutcomeHTTPError, HTTPStatus: status}
}
