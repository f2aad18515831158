package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSLAStatus(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		rush bool
		want SLAState
	}{
		{"overdue by a second", now.Add(-time.Second), false, SLAOverdue},
		{"due now", now, false, SLAAtRisk},
		{"inside window", now.Add(47 * time.Hour), false, SLAAtRisk},
		{"window boundary", now.Add(48 * time.Hour), false, SLAAtRisk},
		{"just outside window", now.Add(48*time.Hour + time.Second), false, SLAOnTrack},
		{"rush overdue", now.Add(-time.Minute), true, SLAOverdue},
		{"rush due today", time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC), true, SLAAtRisk},
		{"rush due tomorrow", time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), true, SLAOnTrack},
		{"rush far", now.Add(10 * 24 * time.Hour), true, SLAOnTrack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SLAStatus(tt.due, now, tt.rush))
		})
	}
}

func TestSLAStatusWithin_CustomWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, SLAOnTrack, SLAStatusWithin(now.Add(30*time.Hour), now, false, 24*time.Hour))
	assert.Equal(t, SLAAtRisk, SLAStatusWithin(now.Add(30*time.Hour), now, false, 72*time.Hour))
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysRemaining(time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 3, DaysRemaining(time.Date(2026, 3, 5, 1, 0, 0, 0, time.UTC), now))
	assert.Equal(t, -1, DaysRemaining(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC), now))
	// 跨月
	assert.Equal(t, 30, DaysRemaining(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), now))
}

func TestRiskScore(t *testing.T) {
	assert.Equal(t, 0, RiskScore(RiskInputs{}))
	assert.Equal(t, 100, RiskScore(RiskInputs{1, 1, 1, 1}))
	assert.Equal(t, 40, RiskScore(RiskInputs{TestFailureRate: 1}))
	assert.Equal(t, 30, RiskScore(RiskInputs{InspectionFailRate: 1}))
	assert.Equal(t, 20, RiskScore(RiskInputs{LateDeliveryRate: 1}))
	assert.Equal(t, 10, RiskScore(RiskInputs{CertificateLapseRate: 1}))
	assert.Equal(t, 44, RiskScore(RiskInputs{0.5, 0.5, 0.2, 0.5}))

	// 超出范围的比率截断到0-1
	assert.Equal(t, 40, RiskScore(RiskInputs{TestFailureRate: 3}))
	assert.Equal(t, 0, RiskScore(RiskInputs{TestFailureRate: -1}))
}

func TestRiskLevel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, RiskLevelLow},
		{30, RiskLevelLow},
		{31, RiskLevelMedium},
		{60, RiskLevelMedium},
		{61, RiskLevelHigh},
		{100, RiskLevelHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskLevel(tt.score), "score %d", tt.score)
	}
}
