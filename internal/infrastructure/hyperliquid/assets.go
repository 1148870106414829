package hyperliquid

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/betbot/hlarb/hl/types"
	"github.com/betbot/hlarb/internal/domain"
)

// metaSource 元数据查询（*client.Client 实现）
type metaSource interface {
	Meta(ctx context.Context) (*types.Meta, error)
	SpotMeta(ctx context.Context) (*types.SpotMeta, error)
}

// Asset 交易对在交易所的标识
type Asset struct {
	// ID 下单用的资产编号：永续为 meta.universe 下标，现货为 10000 + spotMeta 交易对 index
	ID int
	// Coin l2Book / openOrders 中使用的名称（永续 "HYPE"，现货 "@107" 或 "PURR/USDC"）
	Coin       string
	SzDecimals int32
	IsSpot     bool
}

// maxPriceDecimals 价格最大小数位：永续 6，现货 8，再减去 szDecimals
func (a Asset) maxPriceDecimals() int32 {
	if a.IsSpot {
		return 8 - a.SzDecimals
	}
	return 6 - a.SzDecimals
}

// AssetResolver 按需加载并缓存 meta / spotMeta。未命中时刷新一次（新上线的交易对）。
type AssetResolver struct {
	src metaSource

	mu     sync.Mutex
	loaded bool
	perps  map[string]Asset
	spots  map[string]Asset
}

func NewAssetResolver(src metaSource) *AssetResolver {
	return &AssetResolver{src: src}
}

// Resolve symbol 支持永续名称 "HYPE"、现货 "@107" 以及 "HYPE/USDC"
func (r *AssetResolver) Resolve(ctx context.Context, symbol string) (Asset, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Asset{}, errors.Wrap(domain.ErrInvalidInput, "symbol 不能为空")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		if a, ok := r.lookup(symbol); ok {
			return a, nil
		}
	}
	if err := r.loadLocked(ctx); err != nil {
		return Asset{}, err
	}
	if a, ok := r.lookup(symbol); ok {
		return a, nil
	}
	return Asset{}, errors.Wrapf(domain.ErrInvalidInput, "未知交易对 %s", symbol)
}

func (r *AssetResolver) lookup(symbol string) (Asset, bool) {
	if a, ok := r.spots[strings.ToUpper(symbol)]; ok {
		return a, true
	}
	a, ok := r.perps[symbol]
	return a, ok
}

func (r *AssetResolver) loadLocked(ctx context.Context) error {
	meta, err := r.src.Meta(ctx)
	if err != nil {
		return domain.NewTransportError(errors.Wrap(err, "获取永续元数据失败"))
	}
	spotMeta, err := r.src.SpotMeta(ctx)
	if err != nil {
		return domain.NewTransportError(errors.Wrap(err, "获取现货元数据失败"))
	}

	perps := make(map[string]Asset, len(meta.Universe))
	for i, u := range meta.Universe {
		perps[u.Name] = Asset{ID: i, Coin: u.Name, SzDecimals: u.SzDecimals}
	}

	tokens := make(map[int]types.SpotToken, len(spotMeta.Tokens))
	for _, t := range spotMeta.Tokens {
		tokens[t.Index] = t
	}
	spots := make(map[string]Asset, len(spotMeta.Universe)*3)
	for _, p := range spotMeta.Universe {
		base, okBase := tokens[p.Tokens[0]]
		quote, okQuote := tokens[p.Tokens[1]]
		if !okBase {
			continue
		}
		a := Asset{
			ID:         types.SpotAssetOffset + p.Index,
			Coin:       p.Name,
			SzDecimals: base.SzDecimals,
			IsSpot:     true,
		}
		spots["@"+strconv.Itoa(p.Index)] = a
		spots[strings.ToUpper(p.Name)] = a
		if okQuote {
			pair := strings.ToUpper(base.Name + "/" + quote.Name)
			// 同名交易对以 canonical 为准
			if _, dup := spots[pair]; !dup || p.IsCanonical {
				spots[pair] = a
			}
		}
	}

	r.perps = perps
	r.spots = spots
	r.loaded = true
	return nil
}
