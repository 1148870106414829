package execution

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/hlarb/internal/domain"
)

func TestQuoteReader_BestPrice(t *testing.T) {
	books := &fakeBooks{quotes: map[string]domain.Quote{"HYPE": mustQuote("HYPE", "23.9", "24.0")}}
	r := NewQuoteReader(books)

	ask, err := r.BestPrice(context.Background(), "HYPE", domain.SideBuy)
	require.NoError(t, err)
	assert.True(t, ask.Equal(d("24")))

	bid, err := r.BestPrice(context.Background(), "HYPE", domain.SideSell)
	require.NoError(t, err)
	assert.True(t, bid.Equal(d("23.9")))

	// 不缓存
	assert.Equal(t, 2, books.calls)
}

func TestQuoteReader_EmptyAskSide(t *testing.T) {
	books := &fakeBooks{quotes: map[string]domain.Quote{"HYPE": mustQuote("HYPE", "23.9", "")}}
	_, err := NewQuoteReader(books).BestPrice(context.Background(), "HYPE", domain.SideBuy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyBook))
}

func TestQuoteReader_FetchError(t *testing.T) {
	books := &fakeBooks{err: domain.NewTransportError(errors.New("connection refused"))}
	_, err := NewQuoteReader(books).Quote(context.Background(), "HYPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransportFailure))
}

func TestQuoteReader_Invalid(t *testing.T) {
	r := NewQuoteReader(&fakeBooks{})
	_, err := r.Quote(context.Background(), "")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = r.BestPrice(context.Background(), "HYPE", domain.Side("x"))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	var nilReader *QuoteReader
	_, err = nilReader.Quote(context.Background(), "HYPE")
	assert.Error(t, err)
}
