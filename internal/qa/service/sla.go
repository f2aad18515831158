package service

import (
	"math"
	"time"
)

// SLAState 截止状态
type SLAState string

const (
	SLAOnTrack SLAState = "on_track"
	SLAAtRisk  SLAState = "at_risk"
	SLAOverdue SLAState = "overdue"
)

// DefaultAtRiskWindow 普通事项距截止不足该时长即为at_risk
const DefaultAtRiskWindow = 48 * time.Hour

// SLAStatus 按默认窗口计算截止状态
func SLAStatus(due, now time.Time, rush bool) SLAState {
	return SLAStatusWithin(due, now, rush, DefaultAtRiskWindow)
}

// SLAStatusWithin 已过截止为overdue；加急事项截止在今天之内为at_risk，
// 普通事项距截止不超过window为at_risk；其余on_track
func SLAStatusWithin(due, now time.Time, rush bool, window time.Duration) SLAState {
	if now.After(due) {
		return SLAOverdue
	}
	if rush {
		if !due.After(endOfDay(now)) {
			return SLAAtRisk
		}
		return SLAOnTrack
	}
	if due.Sub(now) <= window {
		return SLAAtRisk
	}
	return SLAOnTrack
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}

// DaysRemaining 日历天差，负数表示已逾期的天数，仅用于展示
func DaysRemaining(due, now time.Time) int {
	due = due.In(now.Location())
	dy, dm, dd := due.Date()
	ny, nm, nd := now.Date()
	dueDay := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	nowDay := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(dueDay.Sub(nowDay).Hours() / 24)
}

// RiskInputs 风险评分输入，各项为0-1之间的比率
type RiskInputs struct {
	TestFailureRate      float64 `json:"test_failure_rate"`
	InspectionFailRate   float64 `json:"inspection_fail_rate"`
	LateDeliveryRate     float64 `json:"late_delivery_rate"`
	CertificateLapseRate float64 `json:"certificate_lapse_rate"`
}

// 风险权重
const (
	weightTestFailure      = 0.4
	weightInspectionFail   = 0.3
	weightLateDelivery     = 0.2
	weightCertificateLapse = 0.1
)

// 风险等级
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// RiskScore 加权风险分，四舍五入到0-100的整数
func RiskScore(in RiskInputs) int {
	score := weightTestFailure*clampRate(in.TestFailureRate) +
		weightInspectionFail*clampRate(in.InspectionFailRate) +
		weightLateDelivery*clampRate(in.LateDeliveryRate) +
		weightCertificateLapse*clampRate(in.CertificateLapseRate)
	return int(math.Round(score * 100))
}

// RiskLevel low(<31) / medium(31-60) / high(>60)
func RiskLevel(score int) string {
	switch {
	case score > 60:
		return RiskLevelHigh
	case score >= 31:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

func clampRate(r float64) float64 {
	if math.IsNaN(r) || r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

func ratio(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}
