package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/R3E-Network/fortivo/internal/app/domain/currency"
	"github.com/R3E-Network/fortivo/internal/httputil"
)

// Fetcher retrieves current rates relative to USD.
type Fetcher interface {
	Fetch(ctx context.Context) (currency.Rates, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (currency.Rates, error)

func (f FetcherFunc) Fetch(ctx context.Context) (currency.Rates, error) {
	if f == nil {
		return nil, nil
	}
	return f(ctx)
}

// HTTPFetcher reads a `{"rates": {"EUR": 0.92, ...}}` document.
type HTTPFetcher struct {
	client *httputil.Client
	url    string
}

// NewHTTPFetcher creates a fetcher for url. apiKey, when set, is sent in the
// apikey header.
func NewHTTPFetcher(url, apiKey string) *HTTPFetcher {
	headers := map[string]string{"Accept": "application/json"}
	if apiKey != "" {
		headers["apikey"] = apiKey
	}
	return &HTTPFetcher{
		client: httputil.NewClient(httputil.ClientConfig{Headers: headers}),
		url:    url,
	}
}

// Fetch implements Fetcher. Only supported currencies are kept.
func (f *HTTPFetcher) Fetch(ctx context.Context) (currency.Rates, error) {
	resp, err := f.client.Get(ctx, f.url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, httputil.DecodeResponse(resp, nil)
	}
	body, err := httputil.ReadAllStrict(resp.Body, 1<<20)
	if err != nil {
		return nil, fmt.Errorf("read rates: %w", err)
	}
	return parseRates(body)
}

func parseRates(body []byte) (currency.Rates, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("rates response is not valid JSON")
	}
	node := gjson.GetBytes(body, "rates")
	if !node.IsObject() {
		return nil, fmt.Errorf("rates response has no rates object")
	}
	rates := make(currency.Rates)
	node.ForEach(func(key, value gjson.Result) bool {
		code := currency.Code(strings.ToUpper(key.String()))
		if _, ok := currency.Lookup(code); ok && value.Type == gjson.Number && value.Float() > 0 {
			rates[code] = value.Float()
		}
		return true
	})
	if len(rates) == 0 {
		return nil, fmt.Errorf("rates response lists no supported currency")
	}
	return rates, nil
}
