package execution

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/ports"
	"github.com/betbot/hlarb/pkg/logger"
)

// Cleaner 撤单。撤单失败会记录日志并返回给调用方，调用方之后应通过对账确认真实状态。
type Cleaner struct {
	canceler ports.OrderCanceler
}

func NewCleaner(canceler ports.OrderCanceler) *Cleaner {
	return &Cleaner{canceler: canceler}
}

// CancelAll 撤销 symbol 上账户的全部挂单，包括其他会话下的单
func (c *Cleaner) CancelAll(ctx context.Context, symbol string) (domain.CancelReport, error) {
	if c == nil || c.canceler == nil {
		return domain.CancelReport{}, errors.New("cleaner not initialized")
	}
	report, err := c.canceler.CancelOrders(ctx, symbol)
	return c.finish(symbol, report, err)
}

// CancelOrder 按交易所订单号精确撤单
func (c *Cleaner) CancelOrder(ctx context.Context, symbol string, oid int64) (domain.CancelReport, error) {
	if c == nil || c.canceler == nil {
		return domain.CancelReport{}, errors.New("cleaner not initialized")
	}
	report, err := c.canceler.CancelOrder(ctx, symbol, oid)
	return c.finish(symbol, report, err)
}

// CancelTicket 撤销 ticket 对应的挂单。只有已接受且未成交的订单需要撤销，其余情况返回空报告。
func (c *Cleaner) CancelTicket(ctx context.Context, t *OrderTicket) (domain.CancelReport, error) {
	symbol := t.Intent().Symbol()
	accepted, ok := t.Outcome().(domain.Accepted)
	if !ok || !accepted.IsResting() {
		return domain.CancelReport{Symbol: symbol}, nil
	}
	return c.CancelOrder(ctx, symbol, accepted.ExchangeOrderID)
}

func (c *Cleaner) finish(symbol string, report domain.CancelReport, err error) (domain.CancelReport, error) {
	log := logger.WithField("symbol", symbol)
	if err != nil {
		log.Errorf("撤单请求失败: %v", err)
		return report, errors.Wrapf(err, "撤销 %s 挂单失败", symbol)
	}
	for _, f := range report.Failed() {
		log.WithFields(logrus.Fields{"oid": f.ExchangeOrderID}).Warnf("撤单失败: %s", f.Reason)
	}
	if len(report.Results) == 0 {
		log.Info("没有需要撤销的挂单")
	} else {
		log.Infof("撤单完成: 成功 %d / 共 %d", report.Cancelled(), len(report.Results))
	}
	return report, report.Err()
}
