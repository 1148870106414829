package execution

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/ports"
)

// QuoteReader 每次调用都拉取最新盘口，不缓存、不重试
type QuoteReader struct {
	books ports.BookFetcher
}

func NewQuoteReader(books ports.BookFetcher) *QuoteReader {
	return &QuoteReader{books: books}
}

// Quote 当前最优买卖价
func (r *QuoteReader) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	if r == nil || r.books == nil {
		return domain.Quote{}, errors.New("quote reader not initialized")
	}
	if symbol == "" {
		return domain.Quote{}, errors.Wrap(domain.ErrInvalidInput, "symbol 不能为空")
	}
	q, err := r.books.FetchOrderBook(ctx, symbol)
	if err != nil {
		return domain.Quote{}, errors.Wrapf(err, "获取 %s 盘口失败", symbol)
	}
	return q, nil
}

// BestPrice 买入返回最优 ask，卖出返回最优 bid。对应一侧为空时返回 ErrEmptyBook。
func (r *QuoteReader) BestPrice(ctx context.Context, symbol string, side domain.Side) (decimal.Decimal, error) {
	if err := side.Validate(); err != nil {
		return decimal.Zero, err
	}
	q, err := r.Quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Best(side)
}
