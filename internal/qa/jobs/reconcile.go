package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reconciler 执行一次过期降级
type Reconciler interface {
	ReconcileNow(ctx context.Context) (*service.ReconcileResult, error)
}

// ReconcileScheduler 按cron表达式周期性降级过期的继承测试
type ReconcileScheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	timeout    time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewReconcileScheduler 表达式非法时返回错误，支持@daily等描述符
func NewReconcileScheduler(spec string, reconciler Reconciler, logger *zap.Logger) (*ReconcileScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReconcileScheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		reconciler: reconciler,
		timeout:    5 * time.Minute,
		logger:     logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *ReconcileScheduler) Start() {
	s.cron.Start()
	s.logger.Info("link reconcile scheduler started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop 等待正在执行的任务结束
func (s *ReconcileScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("link reconcile still running at shutdown")
	}
}

// RunOnce 执行一次降级，上一轮未结束时跳过
func (s *ReconcileScheduler) RunOnce(ctx context.Context) (*service.ReconcileResult, bool) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("skip link reconcile, previous run in progress")
		return nil, false
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.reconciler.ReconcileNow(ctx)
	if err != nil {
		s.logger.Error("link reconcile failed", zap.Error(err))
		return nil, false
	}
	s.logger.Info("link reconcile finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("downgraded", len(result.Downgraded)),
		zap.Int("conflicts", result.Conflicts))
	return result, true
}
