// Package protect implements the beep™ Protect mini app flows on top of a
// bridge.Host: enrolling beep cards, paying for the quote and listing the
// issued certificates of coverage.
package protect

import (
	"log/slog"
	"time"

	"github.com/arko-chat/protect/internal/bridge"
	"github.com/arko-chat/protect/internal/cache"
)

const (
	DefaultAppName       = "Beep Mini App"
	DefaultReadyFallback = 3 * time.Second

	CheckoutTitle  = "Beep Protect"
	DashboardTitle = "beep™ Protect"

	BirthDateFormat  = "yyyy-MM-dd"
	MinimumBirthDate = "1930-01-01"
)

// Env is where the flows find their host. sdk.Switch satisfies it.
type Env interface {
	Host() bridge.Host
	NewMiniApp(l bridge.Lifecycle) *bridge.MiniApp
}

type Options struct {
	APIURL       string
	APIKey       string
	MerchantCode string
	AppName      string

	// PolicyTTL is how long a policy lookup is served from cache.
	PolicyTTL time.Duration
	// ReadyFallback marks the app ready when the host never raised its
	// ready event. Zero uses DefaultReadyFallback, negative disables it.
	ReadyFallback time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

type Service struct {
	env      Env
	api      *Client
	opts     Options
	logger   *slog.Logger
	policies *cache.TTL[[]Policy]
}

func New(env Env, opts Options) (*Service, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AppName == "" {
		opts.AppName = DefaultAppName
	}
	if opts.ReadyFallback == 0 {
		opts.ReadyFallback = DefaultReadyFallback
	}

	api, err := NewClient(env.Host, opts.APIURL, opts.APIKey, opts.Logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		env:      env,
		api:      api,
		opts:     opts,
		logger:   opts.Logger.With("component", "protect"),
		policies: cache.NewTTL[[]Policy](opts.PolicyTTL),
	}, nil
}

func (s *Service) API() *Client {
	return s.api
}

func (s *Service) host() bridge.Host {
	return s.env.Host()
}

// Close waits for background policy refreshes.
func (s *Service) Close() {
	s.policies.Wait()
}
