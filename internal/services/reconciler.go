package services

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/ports"
	"github.com/betbot/hlarb/pkg/config"
	"github.com/betbot/hlarb/pkg/syncgroup"
)

var reconcileLog = logrus.WithField("component", "reconciler")

// ReconcileObserver 对账结果上报
type ReconcileObserver interface {
	ObserveReconcile(err error)
}

// Reconciler 合并现货余额与永续仓位。每次调用都重新查询，不缓存。
type Reconciler struct {
	accounts ports.AccountFetcher
	target   common.Address
	observer ReconcileObserver
	now      func() time.Time
}

// NewReconciler 目标账户：配置了主账户时查询主账户（agent 代主账户交易，资金在主账户），否则查询 agent 自身
func NewReconciler(accounts ports.AccountFetcher, agent common.Address, master config.OptionalAddress) *Reconciler {
	var target common.Address
	if addr, ok := master.Get(); ok {
		target = addr
	} else {
		target = agent
	}
	return &Reconciler{accounts: accounts, target: target, now: time.Now}
}

// SetObserver 在开始对账前设置
func (r *Reconciler) SetObserver(o ReconcileObserver) {
	r.observer = o
}

// Target 查询的账户地址
func (r *Reconciler) Target() common.Address {
	return r.target
}

// Snapshot 并发查询现货与永续。任一失败返回 ErrTransportFailure，不返回部分结果。
func (r *Reconciler) Snapshot(ctx context.Context) (*domain.ExposureSnapshot, error) {
	if r == nil || r.accounts == nil {
		return nil, errors.New("reconciler not initialized")
	}
	snap, err := r.snapshot(ctx)
	if r.observer != nil {
		r.observer.ObserveReconcile(err)
	}
	return snap, err
}

func (r *Reconciler) snapshot(ctx context.Context) (*domain.ExposureSnapshot, error) {
	account := r.target.Hex()

	var (
		spot             map[string]decimal.Decimal
		perp             domain.PerpState
		spotErr, perpErr error
	)
	sg := syncgroup.NewSyncGroup()
	sg.Add(func() {
		spot, spotErr = r.accounts.FetchSpotBalances(ctx, account)
	})
	sg.Add(func() {
		perp, perpErr = r.accounts.FetchPerpState(ctx, account)
	})
	sg.RunAndWait()

	if spotErr != nil {
		return nil, asTransport(spotErr, "查询现货余额失败 account=%s", account)
	}
	if perpErr != nil {
		return nil, asTransport(perpErr, "查询永续仓位失败 account=%s", account)
	}

	snap := domain.NewExposureSnapshot(account, spot, perp, r.now())
	reconcileLog.WithFields(logrus.Fields{
		"account":    account,
		"spot_coins": len(snap.SpotBalances),
		"perp_pos":   len(snap.PerpPositions),
	}).Debugf("对账完成 accountValue=%s", snap.AccountValueUSD)
	return snap, nil
}

// asTransport 余额查询的任何失败都归为 ErrTransportFailure
func asTransport(err error, format string, args ...interface{}) error {
	if !errors.Is(err, domain.ErrTransportFailure) {
		err = domain.NewTransportError(err)
	}
	return errors.Wrapf(err, format, args...)
}
