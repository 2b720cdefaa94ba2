// Package exchange quotes the BTC/USD exchange rate. Quotes are aggregated
// from several independent public feeds and the median is taken, so a single
// misbehaving feed cannot skew the price.
package exchange

import (
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// requestTimeout bounds each upstream price request.
	requestTimeout = 5 * time.Second

	// cacheTTL is how long a successfully fetched price is served from
	// cache. The cache is process-local and repopulates on the next call
	// after a restart.
	cacheTTL = 5 * time.Minute

	maxResponseBytes = 1 << 20
)

// ErrNoPricesAvailable is returned when every price source failed.
var ErrNoPricesAvailable = errors.New("no exchange rate source returned a price")

// Source is a single upstream price feed.
type Source struct {
	Name  string
	URL   string
	Parse func(body []byte) (float64, error)
}

// Oracle fetches and caches the USD price of one Bitcoin.
type Oracle struct {
	sources []Source
	client  *http.Client
	now     func() time.Time

	mtx         sync.Mutex
	cachedPrice float64
	cachedAt    time.Time
}

// NewOracle returns an Oracle over the given sources. Use DefaultSources for
// the production feed set.
func NewOracle(sources []Source) *Oracle {
	return &Oracle{
		sources: sources,
		client:  &http.Client{Timeout: requestTimeout},
		now:     time.Now,
	}
}

// Price returns the median USD price of one Bitcoin across all reachable
// sources. Results are cached for five minutes; a call within the TTL of a
// successful fetch does not hit upstream. It fails with ErrNoPricesAvailable
// only when every source failed.
func (o *Oracle) Price() (float64, error) {
	o.mtx.Lock()
	defer o.mtx.Unlock()

	now := o.now()
	if !o.cachedAt.IsZero() && now.Sub(o.cachedAt) < cacheTTL {
		return o.cachedPrice, nil
	}

	prices := o.fetchAll()
	if len(prices) == 0 {
		return 0, ErrNoPricesAvailable
	}

	price := median(prices)
	o.cachedPrice = price
	o.cachedAt = now
	log.Debugf("Refreshed BTC/USD rate: %.2f from %d of %d sources",
		price, len(prices), len(o.sources))
	return price, nil
}

// fetchAll queries every source concurrently and returns the prices of the
// sources that responded with a parseable quote.
func (o *Oracle) fetchAll() []float64 {
	type result struct {
		price float64
		err   error
		name  string
	}

	results := make(chan result, len(o.sources))
	var wg sync.WaitGroup
	for _, source := range o.sources {
		source := source
		wg.Add(1)
		spawn(func() {
			defer wg.Done()
			price, err := o.fetchOne(source)
			results <- result{price: price, err: err, name: source.Name}
		})
	}
	wg.Wait()
	close(results)

	prices := make([]float64, 0, len(o.sources))
	for res := range results {
		if res.err != nil {
			log.Warnf("Price source %s failed: %s", res.name, res.err)
			continue
		}
		prices = append(prices, res.price)
	}
	return prices
}

func (o *Oracle) fetchOne(source Source) (float64, error) {
	response, err := o.client.Get(source.URL)
	if err != nil {
		return 0, errors.Wrapf(err, "couldn't fetch %s", source.Name)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return 0, errors.Errorf("%s returned status %d", source.Name,
			response.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return 0, errors.Wrapf(err, "couldn't read %s response", source.Name)
	}

	price, err := source.Parse(body)
	if err != nil {
		return 0, errors.Wrapf(err, "couldn't parse %s response", source.Name)
	}
	if price <= 0 {
		return 0, errors.Errorf("%s quoted a non-positive price %f",
			source.Name, price)
	}
	return price, nil
}

// median returns the median of the given prices, averaging the two middle
// values for even counts.
func median(prices []float64) float64 {
	sort.Float64s(prices)
	middle := len(prices) / 2
	if len(prices)%2 == 0 {
		return (prices[middle-1] + prices[middle]) / 2
	}
	return prices[middle]
}
