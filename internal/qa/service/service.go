package service

import (
	"context"
	"sync"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/config"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/metrics"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services QA服务集合
type Services struct {
	Component  *ComponentService
	Style      *StyleService
	Link       *LinkService
	Test       *TestLedger
	Lifecycle  *LifecycleService
	Risk       *RiskService
	Inspection *InspectionService
	GoldSeal   *GoldSealService
	Summary    *SummaryService
	Supplier   *SupplierService
}

// Deps 服务依赖，可选依赖为nil时对应功能降级
type Deps struct {
	Repos    *repository.Repositories
	Redis    *redis.Client
	Storage  ObjectStore
	Notifier Notifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Config   config.ComplianceConfig
	Clock    Clock

	// 金封样审批流，nil时只接受调用方提供的审批实例号
	Approvals WorkbookApprovals
}

// NewServices 创建服务集合
func NewServices(deps Deps) *Services {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	deps.Config = deps.Config.WithDefaults()

	core := &engine{
		repos:   deps.Repos,
		locks:   NewStyleLocker(),
		clock:   deps.Clock,
		cfg:     deps.Config,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		notify:  deps.Notifier,
	}

	linkSvc := &LinkService{engine: core}
	riskSvc := NewRiskService(core, deps.Redis)

	return &Services{
		Component:  &ComponentService{engine: core, links: linkSvc},
		Style:      &StyleService{engine: core, links: linkSvc},
		Link:       linkSvc,
		Test:       &TestLedger{engine: core, storage: deps.Storage},
		Lifecycle:  &LifecycleService{engine: core, links: linkSvc},
		Risk:       riskSvc,
		Inspection: &InspectionService{engine: core, risk: riskSvc},
		GoldSeal:   &GoldSealService{engine: core, approvals: deps.Approvals},
		Summary:    &SummaryService{engine: core},
		Supplier:   &SupplierService{engine: core},
	}
}

// Clock 时间来源，测试中可注入
type Clock func() time.Time

// SystemClock 系统时间（UTC）
func SystemClock() time.Time {
	return time.Now().UTC()
}

// Notifier 变更通知（SSE等），不得在款式锁内阻塞
type Notifier interface {
	Publish(eventType string, payload map[string]interface{})
}

// engine 各服务共享的仓库、锁、时钟与配置
type engine struct {
	repos   *repository.Repositories
	locks   *StyleLocker
	clock   Clock
	cfg     config.ComplianceConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	notify  Notifier
}

// inTx 在单个事务内执行，事务内只能使用传入的仓库
func (e *engine) inTx(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	return e.repos.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(e.repos.WithTx(tx))
	})
}

func (e *engine) now() time.Time {
	return e.clock()
}

// audit 审计写入失败只记日志，不影响已提交的业务
func (e *engine) audit(ctx context.Context, entry entity.ActivityLog) {
	entry.CreatedAt = e.now()
	if err := e.repos.ActivityLog.Append(ctx, &entry); err != nil {
		e.logger.Warn("append activity log failed",
			zap.String("entity", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}

func (e *engine) publish(eventType string, payload map[string]interface{}) {
	if e.notify != nil {
		e.notify.Publish(eventType, payload)
	}
}

// StyleLocker 按款式串行化：关联、测试申请/录入、阶段推进
type StyleLocker struct {
	mu    sync.Mutex
	locks map[string]*styleLock
}

type styleLock struct {
	mu   sync.Mutex
	refs int
}

func NewStyleLocker() *StyleLocker {
	return &StyleLocker{locks: make(map[string]*styleLock)}
}

// Lock 获取款式锁，返回解锁函数
func (l *StyleLocker) Lock(styleID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[styleID]
	if !ok {
		sl = &styleLock{}
		l.locks[styleID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, styleID)
		}
		l.mu.Unlock()
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
