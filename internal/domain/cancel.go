package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// CancelResult 单个订单的撤单结果
type CancelResult struct {
	ExchangeOrderID int64
	OK              bool
	Reason          string // 失败原因
}

// CancelReport 一次撤单操作的逐单结果
type CancelReport struct {
	Symbol  string
	Results []CancelResult
}

// Failed 撤单失败的订单
func (r CancelReport) Failed() []CancelResult {
	var out []CancelResult
	for _, res := range r.Results {
		if !res.OK {
			out = append(out, res)
		}
	}
	return out
}

// Cancelled 撤单成功数量
func (r CancelReport) Cancelled() int {
	return len(r.Results) - len(r.Failed())
}

// Err 任一订单撤单失败时返回 ErrRejected，附带所有失败原因
func (r CancelReport) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, f := range failed {
		parts = append(parts, fmt.Sprintf("oid=%d: %s", f.ExchangeOrderID, f.Reason))
	}
	return errors.Wrapf(ErrRejected, "%s 撤单失败 %d/%d [%s]", r.Symbol, len(failed), len(r.Results), strings.Join(parts, "; "))
}
