package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RiskService 工厂风险评分，结果缓存在Redis
type RiskService struct {
	*engine
	rdb *redis.Client
}

func NewRiskService(core *engine, rdb *redis.Client) *RiskService {
	return &RiskService{engine: core, rdb: rdb}
}

// FactoryRisk 工厂风险评估
type FactoryRisk struct {
	FactoryID string     `json:"factory_id"`
	Score     int        `json:"score"`
	Level     string     `json:"level"`
	Inputs    RiskInputs `json:"inputs"`

	TestsTotal        int `json:"tests_total"`
	TestsFailed       int `json:"tests_failed"`
	InspectionsTotal  int `json:"inspections_total"`
	InspectionsFailed int `json:"inspections_failed"`
	CertificatesTotal int `json:"certificates_total"`
	CertificatesLapse int `json:"certificates_lapsed"`

	ComputedAt time.Time `json:"computed_at"`
}

func riskCacheKey(factoryID string) string {
	return "qa:risk:factory:" + factoryID
}

// FactoryRisk 计算工厂风险：测试不通过率、验货不通过率、迟交率、证书失效率
func (s *RiskService) FactoryRisk(ctx context.Context, factoryID string) (*FactoryRisk, error) {
	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, riskCacheKey(factoryID)).Result()
		if err == nil {
			var risk FactoryRisk
			if json.Unmarshal([]byte(cached), &risk) == nil {
				return &risk, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("read risk cache failed", zap.String("factory_id", factoryID), zap.Error(err))
		}
	}

	risk, err := s.compute(ctx, factoryID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(risk); err == nil {
			if err := s.rdb.Set(ctx, riskCacheKey(factoryID), data, s.cfg.RiskCacheTTL).Err(); err != nil {
				s.logger.Warn("write risk cache failed", zap.String("factory_id", factoryID), zap.Error(err))
			}
		}
	}
	return risk, nil
}

func (s *RiskService) compute(ctx context.Context, factoryID string) (*FactoryRisk, error) {
	factory, err := s.repos.Factory.FindByID(ctx, factoryID)
	if err != nil {
		return nil, wrapNotFound(err, "factory", factoryID)
	}
	now := s.now()

	styleIDs, err := s.repos.Style.FindIDsByFactory(ctx, factoryID)
	if err != nil {
		return nil, fmt.Errorf("find factory styles: %w", err)
	}
	tests, err := s.repos.Test.FindTestedByStyles(ctx, styleIDs)
	if err != nil {
		return nil, fmt.Errorf("find factory tests: %w", err)
	}
	testsFailed := 0
	for i := range tests {
		if !tests[i].IsPassing() {
			testsFailed++
		}
	}

	inspTotal, inspFailed, err := s.repos.Inspection.CountResultsByFactory(ctx, factoryID)
	if err != nil {
		return nil, fmt.Errorf("count inspections: %w", err)
	}

	lapsed := 0
	for i := range factory.Certificates {
		if factory.Certificates[i].Lapsed(now) {
			lapsed++
		}
	}
	// 没有任何证书视为认证全部缺失
	certRate := 1.0
	if len(factory.Certificates) > 0 {
		certRate = ratio(lapsed, len(factory.Certificates))
	}

	inputs := RiskInputs{
		TestFailureRate:      ratio(testsFailed, len(tests)),
		InspectionFailRate:   ratio(int(inspFailed), int(inspTotal)),
		LateDeliveryRate:     ratio(factory.LateDeliveries, factory.TotalDeliveries),
		CertificateLapseRate: certRate,
	}
	score := RiskScore(inputs)

	return &FactoryRisk{
		FactoryID:         factoryID,
		Score:             score,
		Level:             RiskLevel(score),
		Inputs:            inputs,
		TestsTotal:        len(tests),
		TestsFailed:       testsFailed,
		InspectionsTotal:  int(inspTotal),
		InspectionsFailed: int(inspFailed),
		CertificatesTotal: len(factory.Certificates),
		CertificatesLapse: lapsed,
		ComputedAt:        now,
	}, nil
}

// Invalidate 清除工厂风险缓存
func (s *RiskService) Invalidate(ctx context.Context, factoryID string) {
	if s.rdb == nil || factoryID == "" {
		return
	}
	if err := s.rdb.Del(ctx, riskCacheKey(factoryID)).Err(); err != nil {
		s.logger.Warn("invalidate risk cache failed", zap.String("factory_id", factoryID), zap.Error(err))
	}
}

// SLAResult 截止状态查询结果
type SLAResult struct {
	DueDate       time.Time `json:"due_date"`
	Rush          bool      `json:"rush"`
	Status        SLAState  `json:"status"`
	DaysRemaining int       `json:"days_remaining"`
	AsOf          time.Time `json:"as_of"`
}

// EvaluateSLA 按当前时间与配置的at_risk窗口计算截止状态
func (s *RiskService) EvaluateSLA(due time.Time, rush bool) SLAResult {
	now := s.now()
	return SLAResult{
		DueDate:       due,
		Rush:          rush,
		Status:        SLAStatusWithin(due, now, rush, s.cfg.AtRiskWindow),
		DaysRemaining: DaysRemaining(due, now),
		AsOf:          now,
	}
}
