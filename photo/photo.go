// Package photo finds a picture of a city for new locations.
package photo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const PexelsSearchURL = "https://api.pexels.com/v1/search"

// Lookup returns a picture URL for the city, or nil when none is available.
// Failures never surface to the caller.
type Lookup interface {
	Lookup(ctx context.Context, city, state string) *string
}

type Noop struct{}

func (Noop) Lookup(context.Context, string, string) *string { return nil }

type Pexels struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	cache   *cache.Cache
	log     *zap.Logger
}

type PexelsOption func(*Pexels)

func WithBaseURL(u string) PexelsOption {
	return func(p *Pexels) { p.baseURL = u }
}

func WithTimeout(d time.Duration) PexelsOption {
	return func(p *Pexels) { p.timeout = d }
}

func WithLogger(log *zap.Logger) PexelsOption {
	return func(p *Pexels) { p.log = log }
}

// NewPexels searches Pexels with apiKey. Answers, including "no photo", are
// cached for ttl; transport failures are not.
func NewPexels(apiKey string, ttl time.Duration, opts ...PexelsOption) *Pexels {
	p := &Pexels{
		apiKey:  apiKey,
		baseURL: PexelsSearchURL,
		timeout: 5 * time.Second,
		cache:   cache.New(ttl, 2*ttl),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type searchResponse struct {
	Photos []struct {
		Src struct {
			Original string `json:"original"`
		} `json:"src"`
	} `json:"photos"`
}

func (p *Pexels) Lookup(ctx context.Context, city, state string) *string {
	query := fmt.Sprintf("downtown %s %s", strings.TrimSpace(city), strings.TrimSpace(state))
	if cached, ok := p.cache.Get(query); ok {
		return cached.(*string)
	}
	if ctx.Err() != nil {
		return nil
	}

	params := url.Values{}
	params.Set("per_page", "1")
	params.Set("query", query)

	var res searchResponse
	code, _, errs := fiber.Get(p.baseURL).
		Set(fiber.HeaderAuthorization, p.apiKey).
		QueryString(params.Encode()).
		Timeout(p.timeout).
		Struct(&res)
	if len(errs) > 0 {
		p.log.Warn("photo lookup failed", zap.String("query", query), zap.Errors("errors", errs))
		return nil
	}
	if code != fiber.StatusOK {
		p.log.Warn("photo lookup rejected", zap.String("query", query), zap.Int("status", code))
		return nil
	}

	var picture *string
	if len(res.Photos) > 0 && res.Photos[0].Src.Original != "" {
		original := res.Photos[0].Src.Original
		picture = &original
	}
	p.cache.SetDefault(query, picture)
	return picture
}
