package exchange

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/fortivo/internal/app/domain/currency"
	"github.com/R3E-Network/fortivo/internal/app/storage/memory"
	"github.com/R3E-Network/fortivo/internal/errors"
)

func TestRatesWithoutSnapshot(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	view, err := svc.Rates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currency.Rates{currency.USD: 1}, view.Rates)
	assert.Nil(t, view.FetchedAt)
	assert.Len(t, view.Currencies, 6)
}

func TestRefreshStoresFetchedRates(t *testing.T) {
	store := memory.New()
	fetcher := FetcherFunc(func(context.Context) (currency.Rates, error) {
		return currency.Rates{currency.EUR: 0.5, currency.BRL: 5}, nil
	})
	svc := New(store, fetcher, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.Refresh(context.Background()))
	view, err := svc.Rates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.5, view.Rates[currency.EUR])
	assert.Equal(t, 1.0, view.Rates[currency.USD])
	require.NotNil(t, view.FetchedAt)
	assert.True(t, fixed.Equal(*view.FetchedAt))
}

func TestRefreshPropagatesFetchError(t *testing.T) {
	svc := New(memory.New(), FetcherFunc(func(context.Context) (currency.Rates, error) {
		return nil, stderrors.New("upstream down")
	}), nil)
	assert.EqualError(t, svc.Refresh(context.Background()), "upstream down")
}

func TestConvert(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.SaveRates(context.Background(), currency.Snapshot{Rates: currency.Rates{currency.EUR: 0.5, currency.BRL: 5}}))
	svc := New(store, nil, nil)
	ctx := context.Background()

	out, err := svc.Convert(ctx, "100", "eur", "BRL")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, out.Result)
	assert.Equal(t, "R$1,000.00", out.Formatted)

	out, err = svc.Convert(ctx, "42", "", "USD")
	require.NoError(t, err)
	assert.Equal(t, 42.0, out.Result)

	_, err = svc.Convert(ctx, "ten", "USD", "EUR")
	assert.True(t, errors.HasCode(err, "invalid_amount"))

	_, err = svc.Convert(ctx, "10", "USD", "COP")
	assert.True(t, errors.HasCode(err, "unsupported_currency"))
}

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k1", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"EUR":0.92,"brl":5.1,"JPY":150,"MXN":"bad"}}`))
	}))
	defer server.Close()

	rates, err := NewHTTPFetcher(server.URL, "k1").Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currency.Rates{currency.EUR: 0.92, currency.BRL: 5.1}, rates)
}

func TestParseRatesRejectsBadBodies(t *testing.T) {
	for _, body := range []string{`not json`, `{"rates":[]}`, `{"rates":{"JPY":1}}`} {
		_, err := parseRates([]byte(body))
		assert.Error(t, err, body)
	}
}
