package cnb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"go-exchange-rate-updater"
)

const (
	// DefaultURL daily rates of the Czech National Bank
	DefaultURL = "https://api.cnb.cz/cnbapi/exrates/daily"

	// DefaultTimeout applies to the whole HTTP exchange
	DefaultTimeout = 30 * time.Second

	// maxBodySize the daily listing is a few kB
	maxBodySize = 4 << 20

	userAgent = "exchange-rate-updater/1.0"
)

// Service fetches the daily listing of the feed
type Service interface {
	// Quotes returns every well formed record of the current listing.
	// Transport problems and non-success statuses match updater.ErrNetwork,
	// an unreadable listing matches updater.ErrUpstreamFormat.
	Quotes(ctx context.Context) ([]updater.Quote, error)
}

// service CNB daily rates API
type service struct {
	// url of the daily listing
	url string

	// client for HTTP requests
	client HTTPClient

	// parser for the response body
	parser Parser

	logger log.Logger

	// onSkip observes dropped records
	onSkip func(reason string)
}

// Option configures the feed Service
type Option func(*service)

// WithURL sets the URL of the daily listing
func WithURL(url string) Option {
	return func(s *service) {
		s.url = url
	}
}

// WithHTTPClient sets the HTTP client used for fetching
func WithHTTPClient(client HTTPClient) Option {
	return func(s *service) {
		s.client = client
	}
}

// WithFormat selects the parser matching the listing format
func WithFormat(format Format) Option {
	return func(s *service) {
		s.parser = format.Parser()
	}
}

// WithLogger receives diagnostics about skipped records
func WithLogger(logger log.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithSkipHook is called with the reason of every skipped record
func WithSkipHook(hook func(reason string)) Option {
	return func(s *service) {
		s.onSkip = hook
	}
}

// NewService constructs a feed Service reading the JSON API by default.
func NewService(options ...Option) Service {
	s := &service{
		url:    DefaultURL,
		client: NewHTTPClient(DefaultTimeout),
		parser: ParseJSON,
		logger: log.NewNopLogger(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *service) Quotes(ctx context.Context) ([]updater.Quote, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building http request: %w", err)
	}
	request.Header.Set("User-Agent", userAgent)
	request.Header.Set("Accept", "application/json, text/plain, application/xml")

	response, err := s.client.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: http get: %v", updater.ErrNetwork, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxBodySize))
		return nil, &updater.StatusError{StatusCode: response.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: reading body: %v", updater.ErrNetwork, err)
	}

	quotes, err := s.parser(body, s.skip)
	if err != nil {
		if errors.Is(err, updater.ErrUpstreamFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", updater.ErrUpstreamFormat, err)
	}
	return quotes, nil
}

func (s *service) skip(reason, record string) {
	level.Warn(s.logger).Log("msg", "skipping feed record", "reason", reason, "record", record)
	if s.onSkip != nil {
		s.onSkip(reason)
	}
}

// Ping checks that url answers with a success status. The body is discarded.
func Ping(ctx context.Context, client HTTPClient, url string) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building http request: %w", err)
	}
	request.Header.Set("User-Agent", userAgent)

	response, err := client.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: http get: %v", updater.ErrNetwork, err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxBodySize))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return &updater.StatusError{StatusCode: response.StatusCode}
	}
	return nil
}
