package service

import (
	"academy_backend/pkg/logger"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConnectivityProbe 维护远程库的可达性标记。
// 后台周期探测；远程操作失败时由调用方标记离线；
// 可达性由假翻真时触发注册的回调（引擎借此执行合并）。
type ConnectivityProbe struct {
	db        *gorm.DB
	timeout   time.Duration
	reachable atomic.Bool

	mu        sync.Mutex
	onRestore []func()

	interval atomic.Int64 // 纳秒，可热更新
}

func NewConnectivityProbe(db *gorm.DB, timeout, interval time.Duration) *ConnectivityProbe {
	p := &ConnectivityProbe{db: db, timeout: timeout}
	p.interval.Store(int64(interval))
	p.reachable.Store(false)
	return p
}

func (p *ConnectivityProbe) Reachable() bool {
	return p.reachable.Load()
}

// OnRestore 注册重连回调；必须在 Run 之前调用
func (p *ConnectivityProbe) OnRestore(fn func()) {
	p.mu.Lock()
	p.onRestore = append(p.onRestore, fn)
	p.mu.Unlock()
}

// MarkOffline 远程操作失败时由调用方降级标记
func (p *ConnectivityProbe) MarkOffline() {
	if p.reachable.Swap(false) {
		logger.Log.Warn("Remote store marked offline, falling back to local cache")
	}
}

// SetInterval 热更新探测周期
func (p *ConnectivityProbe) SetInterval(interval time.Duration) {
	if interval > 0 {
		p.interval.Store(int64(interval))
	}
}

// Check 立即探测一次远程库；由不可达转为可达时触发回调
func (p *ConnectivityProbe) Check(ctx context.Context) bool {
	ok := p.ping(ctx)
	was := p.reachable.Swap(ok)
	if ok && !was {
		logger.Log.Info("Remote store reachable again, running restore callbacks")
		p.mu.Lock()
		callbacks := make([]func(), len(p.onRestore))
		copy(callbacks, p.onRestore)
		p.mu.Unlock()
		for _, fn := range callbacks {
			fn()
		}
	}
	if !ok && was {
		logger.Log.Warn("Remote store became unreachable")
	}
	return ok
}

// Run 周期探测直到 ctx 结束
func (p *ConnectivityProbe) Run(ctx context.Context) {
	p.Check(ctx)
	for {
		interval := time.Duration(p.interval.Load())
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			p.Check(ctx)
		}
	}
}

func (p *ConnectivityProbe) ping(ctx context.Context) bool {
	sqlDB, err := p.db.DB()
	if err != nil {
		logger.Log.Error("Connectivity probe failed to get sql.DB", zap.Error(err))
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return sqlDB.PingContext(pingCtx) == nil
}
