package delivery

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sabora/client_layer/pkg/logger"
)

const (
	locateTimeout  = 10 * time.Second
	positionMaxAge = 5 * time.Minute
)

// Position is a best-effort customer position fix.
type Position struct {
	Point
	At time.Time
}

// Locator resolves the customer's current position. Implementations are
// best-effort: denial, timeout, or absence of capability all resolve to nil,
// never an error.
type Locator interface {
	CurrentPosition(ctx context.Context) *Position
}

// IPLocator resolves an approximate position from an IP-geolocation endpoint.
// A fix is cached for five minutes; a single lookup is bounded by a ten
// second timeout.
type IPLocator struct {
	endpoint string
	client   *http.Client
	log      *logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	cached *Position
}

var _ Locator = (*IPLocator)(nil)

// NewIPLocator creates a locator against endpoint, which must return a JSON
// body with latitude/longitude fields (ipapi.co style).
func NewIPLocator(endpoint string, log *logger.Logger) *IPLocator {
	if log == nil {
		log = logger.NewDefault("locator")
	}
	return &IPLocator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: locateTimeout},
		log:      log,
		now:      time.Now,
	}
}

// CurrentPosition returns the cached fix when fresh, otherwise performs one
// lookup. Any failure resolves to nil.
func (l *IPLocator) CurrentPosition(ctx context.Context) *Position {
	l.mu.Lock()
	if l.cached != nil && l.now().Sub(l.cached.At) <= positionMaxAge {
		pos := l.cached
		l.mu.Unlock()
		return pos
	}
	l.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		l.log.WithError(err).Debug("position lookup request failed")
		return nil
	}
	resp, err := l.client.Do(req)
	if err != nil {
		l.log.WithError(err).Debug("position lookup failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.log.WithField("status", resp.StatusCode).Debug("position lookup rejected")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		l.log.WithError(err).Debug("position lookup read failed")
		return nil
	}

	lat := gjson.GetBytes(body, "latitude")
	lon := gjson.GetBytes(body, "longitude")
	if !lat.Exists() || !lon.Exists() {
		l.log.Debug("position lookup returned no coordinates")
		return nil
	}

	pos := &Position{
		Point: Point{Latitude: lat.Float(), Longitude: lon.Float()},
		At:    l.now(),
	}

	l.mu.Lock()
	l.cached = pos
	l.mu.Unlock()
	return pos
}

// GeocodeAddress resolves a street address to coordinates. No geocoding
// provider is wired yet; it always resolves to nil.
func GeocodeAddress(ctx context.Context, address string) *Point {
	return nil
}
