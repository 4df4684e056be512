package base

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/user"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pingsantohq/subpub/internal/config"
	"github.com/pingsantohq/subpub/internal/plugin"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultMaxHTTPBody = 32 << 20
	userAgent          = "subpub"
)

// HTTPSchema fetches a URL with GET.
type HTTPSchema struct {
	url      string
	client   *http.Client
	user     string
	password string
	maxBody  int64
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewHTTPSchema builds a client from the options:
//
//	location      full URL (required)
//	timeout       request timeout, seconds or duration string (default 30s)
//	verify        verify TLS certificates (default true)
//	ca_file       PEM bundle of additional trusted CAs
//	cert_file     client certificate, with key_file
//	key_file      client certificate key
//	max_size      largest accepted body, bytes or a size like "4MiB" (default 32MiB)
//	user          basic auth user; "AUTO" uses the current OS user
//	password      basic auth password
//	password_env  environment variable holding the password
//	min_interval  minimum spacing between requests
//	probe         HEAD the URL at startup and fail unless it answers 200 (default true)
func NewHTTPSchema(opts config.Options, deps plugin.Dependencies) (plugin.Schema, error) {
	deps = deps.WithDefaults()
	if err := opts.Require("location"); err != nil {
		return nil, err
	}
	location, err := opts.String("location", "")
	if err != nil {
		return nil, err
	}
	timeout, err := opts.Duration("timeout", defaultHTTPTimeout)
	if err != nil {
		return nil, err
	}
	verify, err := opts.Bool("verify", true)
	if err != nil {
		return nil, err
	}
	minInterval, err := opts.Duration("min_interval", 0)
	if err != nil {
		return nil, err
	}
	probe, err := opts.Bool("probe", true)
	if err != nil {
		return nil, err
	}
	maxBody, err := opts.Size("max_size", defaultMaxHTTPBody)
	if err != nil {
		return nil, err
	}
	tlsConfig, err := clientTLSConfig(opts, verify)
	if err != nil {
		return nil, err
	}

	s := &HTTPSchema{url: location, maxBody: maxBody, logger: deps.Logger}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	s.client = &http.Client{Timeout: timeout, Transport: transport}
	if minInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}

	if opts.Has("user") {
		if s.user, err = opts.String("user", ""); err != nil {
			return nil, err
		}
		if s.user == "AUTO" {
			current, err := user.Current()
			if err != nil {
				return nil, fmt.Errorf("resolve current user: %w", err)
			}
			s.user = current.Username
		}
		if s.password, err = opts.String("password", ""); err != nil {
			return nil, err
		}
		if env, err := opts.String("password_env", ""); err != nil {
			return nil, err
		} else if env != "" {
			s.password = os.Getenv(env)
		}
	}

	if probe {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		status, err := s.head(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", location, err)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("failed to access %s (%d)", location, status)
		}
	}
	return s, nil
}

func (s *HTTPSchema) newRequest(ctx context.Context, method string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if s.user != "" {
		req.SetBasicAuth(s.user, s.password)
	}
	return req, nil
}

func (s *HTTPSchema) head(ctx context.Context) (int, error) {
	req, err := s.newRequest(ctx, http.MethodHead)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *HTTPSchema) Fetch(ctx context.Context) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := s.newRequest(ctx, http.MethodGet)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("failed to access %s (%d)", s.url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.url, err)
	}
	if int64(len(body)) > s.maxBody {
		return nil, fmt.Errorf("%s: body exceeds %d bytes", s.url, s.maxBody)
	}
	s.logger.Debug("fetched", zap.String("url", s.url), zap.Int("bytes", len(body)))
	return body, nil
}
