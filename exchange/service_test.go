package exchange

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-exchange-rate-updater"
	"go-exchange-rate-updater/cache"
)

type mock struct {
	quotes []updater.Quote
	err    error
	calls  atomic.Int32
}

func (m *mock) Quotes(_ context.Context) ([]updater.Quote, error) {
	m.calls.Add(1)
	return m.quotes, m.err
}

// failingStore is a cache whose backing store is gone
type failingStore struct {
	gets, puts atomic.Int32
}

func (f *failingStore) Get(context.Context, string) ([]updater.ExchangeRate, bool, error) {
	f.gets.Add(1)
	return nil, false, updater.ErrCacheUnavailable
}

func (f *failingStore) Put(context.Context, string, []updater.ExchangeRate, time.Duration) error {
	f.puts.Add(1)
	return updater.ErrCacheUnavailable
}

var (
	usd = updater.MustCurrency("USD")
	eur = updater.MustCurrency("EUR")
	xyz = updater.MustCurrency("XYZ")
	czk = updater.MustCurrency("CZK")
)

func feed() *mock {
	return &mock{quotes: []updater.Quote{
		{Code: "USD", Amount: 1, Rate: decimal.RequireFromString("22.0")},
		{Code: "EUR", Amount: 1, Rate: decimal.RequireFromString("25.0")},
	}}
}

func assertRate(t *testing.T, want string, source updater.Currency, got updater.ExchangeRate) {
	t.Helper()
	assert.Equal(t, source, got.Source)
	assert.Equal(t, czk, got.Target)
	assert.Truef(t, decimal.RequireFromString(want).Equal(got.Value), "want %s, got %s", want, got.Value)
}

func TestService_GetRates_UnknownCurrencyIsOmitted(t *testing.T) {
	source := feed()
	s := NewService(source, log.NewNopLogger())

	rates, err := s.GetRates(context.Background(), []updater.Currency{usd, eur, xyz}, czk)
	require.NoError(t, err)

	require.Len(t, rates, 2)
	assertRate(t, "25", eur, rates[0])
	assertRate(t, "22", usd, rates[1])
	assert.Equal(t, "USD/CZK=22", rates[1].String())
}

func TestService_GetRates_InvalidArguments(t *testing.T) {
	source := feed()
	s := NewService(source, log.NewNopLogger())

	_, err := s.GetRates(context.Background(), nil, czk)
	assert.ErrorIs(t, err, updater.ErrInvalidArgument)

	_, err = s.GetRates(context.Background(), []updater.Currency{usd}, updater.Currency{})
	assert.ErrorIs(t, err, updater.ErrInvalidArgument)

	assert.Equal(t, int32(0), source.calls.Load())
}

func TestService_GetRates_PropagatesFeedErrors(t *testing.T) {
	for _, want := range []error{updater.ErrNetwork, updater.ErrCircuitOpen, updater.ErrUpstreamFormat} {
		s := NewService(&mock{err: want}, log.NewNopLogger())
		_, err := s.GetRates(context.Background(), []updater.Currency{usd}, czk)
		assert.ErrorIs(t, err, want)
	}
}

func TestCachingService_SecondCallIsServedFromCache(t *testing.T) {
	source := feed()
	s := NewCachingService(cache.NewMemoryStore(16), source, time.Hour, log.NewNopLogger())
	ctx := context.Background()

	first, err := s.GetRates(ctx, []updater.Currency{usd, eur}, czk)
	require.NoError(t, err)

	second, err := s.GetRates(ctx, []updater.Currency{eur, updater.MustCurrency("usd"), usd}, czk)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), source.calls.Load())

	// a different set is a different key
	_, err = s.GetRates(ctx, []updater.Currency{usd}, czk)
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestCachingService_StoreUnavailable(t *testing.T) {
	source := feed()
	store := &failingStore{}
	s := NewCachingService(store, source, time.Hour, log.NewNopLogger())

	rates, err := s.GetRates(context.Background(), []updater.Currency{usd, eur, xyz}, czk)
	require.NoError(t, err)

	require.Len(t, rates, 2)
	assertRate(t, "22", usd, rates[1])
	assert.Equal(t, int32(1), store.gets.Load())
	assert.Equal(t, int32(1), store.puts.Load())
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestCachingService_FailedFetchIsNotCached(t *testing.T) {
	source := &mock{err: updater.ErrNetwork}
	store := cache.NewMemoryStore(16)
	s := NewCachingService(store, source, time.Hour, log.NewNopLogger())

	_, err := s.GetRates(context.Background(), []updater.Currency{usd}, czk)
	assert.ErrorIs(t, err, updater.ErrNetwork)

	_, ok, _ := store.Get(context.Background(), cache.Key([]updater.Currency{usd}, czk))
	assert.False(t, ok)
}

func TestAssemble(t *testing.T) {
	quotes := []updater.Quote{
		{Code: "usd", Amount: 1, Rate: decimal.RequireFromString("22.0")},
		{Code: "USD", Amount: 1, Rate: decimal.RequireFromString("99.0")},
		{Code: "JPY", Amount: 100, Rate: decimal.RequireFromString("14.320")},
		{Code: "ZZZ", Amount: 0, Rate: decimal.RequireFromString("1")},
	}
	jpy, zzz := updater.MustCurrency("JPY"), updater.MustCurrency("ZZZ")

	rates, missing := Assemble(quotes, []updater.Currency{usd, jpy, zzz, usd}, czk)

	require.Len(t, rates, 2)
	assertRate(t, "0.1432", jpy, rates[0])
	assertRate(t, "22", usd, rates[1])
	assert.Equal(t, []updater.Currency{zzz}, missing)
}
