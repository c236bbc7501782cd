// Package rates fetches USD prices for the supported non-USD currencies from
// a CoinGecko-compatible oracle. Snapshots are cached with a TTL; on oracle
// failure the last snapshot keeps serving so conversions stay available. An
// error surfaces only when no snapshot has ever been obtained.
package rates

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"golang.org/x/sync/singleflight"

	"github.com/often-ai/gateway/common/config"
	"github.com/often-ai/gateway/common/logger"
)

// coinIds maps currency codes to the oracle's asset identifiers. USD is
// pinned to 1 and never fetched.
var coinIds = map[string]string{
	"USDC": "usd-coin",
	"ETH":  "ethereum",
	"BTC":  "bitcoin",
	"SOL":  "solana",
}

// Snapshot is one oracle observation: USD price per currency, both as the
// raw float (for audit metadata) and rounded to integer cents (for the
// conversion arithmetic).
type Snapshot struct {
	Prices    map[string]float64
	FetchedAt time.Time
}

// Cents returns the USD price of one whole unit of currency in integer
// cents, rounded half away from zero.
func (s *Snapshot) Cents(currency string) (int64, bool) {
	price, ok := s.Prices[currency]
	if !ok {
		return 0, false
	}
	return int64(math.Round(price * 100)), true
}

// Price returns the raw USD price for audit metadata.
func (s *Snapshot) Price(currency string) (float64, bool) {
	price, ok := s.Prices[currency]
	return price, ok
}

// Oracle is a TTL-cached price client. The zero value is not usable; use
// NewOracle.
type Oracle struct {
	endpoint string
	ttl      time.Duration
	client   *http.Client

	mu       sync.RWMutex
	snapshot *Snapshot

	group singleflight.Group
}

func NewOracle(endpoint string, ttl time.Duration, client *http.Client) *Oracle {
	if client == nil {
		client = &http.Client{Timeout: config.RateOracleTimeout}
	}
	return &Oracle{endpoint: endpoint, ttl: ttl, client: client}
}

// Default is the process-wide oracle wired from configuration.
var Default = NewOracle(config.RateOracleURL, config.RateCacheTTL, nil)

func (o *Oracle) cached() (*Snapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.snapshot == nil {
		return nil, false
	}
	return o.snapshot, time.Since(o.snapshot.FetchedAt) < o.ttl
}

// Get returns a rate snapshot, refreshing past the TTL. A fetch failure
// falls back to the stale snapshot when one exists.
func (o *Oracle) Get(ctx context.Context) (*Snapshot, error) {
	if snap, fresh := o.cached(); fresh {
		return snap, nil
	}

	value, err, _ := o.group.Do("refresh", func() (any, error) {
		// Re-check under the flight: a concurrent caller may have refreshed.
		if snap, fresh := o.cached(); fresh {
			return snap, nil
		}
		snap, err := o.fetch(ctx)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		o.snapshot = snap
		o.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		if stale, _ := o.cached(); stale != nil {
			logger.Logger.Warn("rate oracle fetch failed, serving stale snapshot",
				zap.Time("fetched_at", stale.FetchedAt), zap.Error(err))
			return stale, nil
		}
		return nil, err
	}
	return value.(*Snapshot), nil
}

func (o *Oracle) fetch(ctx context.Context) (*Snapshot, error) {
	ids := make([]string, 0, len(coinIds))
	for _, id := range coinIds {
		ids = append(ids, id)
	}
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")

	ctx, cancel := context.WithTimeout(ctx, config.RateOracleTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build oracle request")
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch rates")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("rate oracle returned %d: %s", resp.StatusCode, string(body))
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode oracle response")
	}

	prices := map[string]float64{"USD": 1}
	for code, id := range coinIds {
		entry, ok := payload[id]
		if !ok {
			return nil, errors.Errorf("oracle response missing %s", id)
		}
		price, ok := entry["usd"]
		if !ok || price <= 0 {
			return nil, errors.Errorf("oracle returned non-positive price for %s", id)
		}
		prices[code] = price
	}

	return &Snapshot{Prices: prices, FetchedAt: time.Now()}, nil
}
