package service

import (
	"testing"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskService_FactoryRisk(t *testing.T) {
	env := newTestEnv(t)
	lapsedAt := testEpoch.AddDate(0, -1, 0)
	validUntil := testEpoch.AddDate(1, 0, 0)
	factory, err := env.svc.Supplier.CreateFactory(env.ctx, &CreateFactoryRequest{
		Code:            "FAC-01",
		Name:            "Dhaka Knits",
		Country:         "BD",
		TotalDeliveries: 10,
		LateDeliveries:  2,
		Certificates: []CertificateInput{
			{Name: "BSCI", ExpiresAt: &lapsedAt},
			{Name: "OEKO-TEX", ExpiresAt: &validUntil},
		},
	})
	require.NoError(t, err)

	fabric := env.fabric(t, "Rib")
	style, err := env.svc.Style.Create(env.ctx, "gt-001", &CreateStyleRequest{
		Name:         "Tank",
		FactoryID:    factory.ID,
		ComponentIDs: []string{fabric.ID},
	})
	require.NoError(t, err)
	env.recordTest(t, fabric.ID, style.ID, entity.TestLevelBase, true)
	env.recordTest(t, fabric.ID, style.ID, entity.TestLevelBulk, false)

	for _, result := range []string{entity.InspectionResultPassed, entity.InspectionResultFailed} {
		in, err := env.svc.Inspection.Schedule(env.ctx, "qa-001", &ScheduleInspectionRequest{
			StyleID: style.ID,
			Type:    entity.InspectionTypeInline,
			DueDate: testEpoch.AddDate(0, 0, 7),
		})
		require.NoError(t, err)
		_, err = env.svc.Inspection.Complete(env.ctx, in.ID, "qa-001", &CompleteInspectionRequest{Result: result})
		require.NoError(t, err)
	}

	risk, err := env.svc.Risk.FactoryRisk(env.ctx, factory.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, risk.TestsTotal)
	assert.Equal(t, 1, risk.TestsFailed)
	assert.Equal(t, 2, risk.InspectionsTotal)
	assert.Equal(t, 1, risk.InspectionsFailed)
	assert.Equal(t, 2, risk.CertificatesTotal)
	assert.Equal(t, 1, risk.CertificatesLapse)
	assert.InDelta(t, 0.2, risk.Inputs.LateDeliveryRate, 1e-9)
	assert.Equal(t, 44, risk.Score)
	assert.Equal(t, RiskLevelMedium, risk.Level)
}

func TestRiskService_FactoryWithoutHistory(t *testing.T) {
	env := newTestEnv(t)
	factory, err := env.svc.Supplier.CreateFactory(env.ctx, &CreateFactoryRequest{Code: "FAC-02", Name: "New"})
	require.NoError(t, err)

	risk, err := env.svc.Risk.FactoryRisk(env.ctx, factory.ID)
	require.NoError(t, err)
	// 没有证书按全部失效计
	assert.Equal(t, 1.0, risk.Inputs.CertificateLapseRate)
	assert.Equal(t, 10, risk.Score)
	assert.Equal(t, RiskLevelLow, risk.Level)

	_, err = env.svc.Risk.FactoryRisk(env.ctx, "missing")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRiskService_EvaluateSLA(t *testing.T) {
	env := newTestEnv(t)

	result := env.svc.Risk.EvaluateSLA(testEpoch.Add(24*time.Hour), false)
	assert.Equal(t, SLAAtRisk, result.Status)
	assert.Equal(t, 1, result.DaysRemaining)
	assert.Equal(t, testEpoch, result.AsOf)

	result = env.svc.Risk.EvaluateSLA(testEpoch.Add(24*time.Hour), true)
	assert.Equal(t, SLAOnTrack, result.Status)
}

func TestInspectionService(t *testing.T) {
	env := newTestEnv(t)
	factory, err := env.svc.Supplier.CreateFactory(env.ctx, &CreateFactoryRequest{Code: "FAC-03", Name: "Porto"})
	require.NoError(t, err)
	style, err := env.svc.Style.Create(env.ctx, "gt-001", &CreateStyleRequest{Name: "Cardigan", FactoryID: factory.ID})
	require.NoError(t, err)

	_, err = env.svc.Inspection.Schedule(env.ctx, "qa-001", &ScheduleInspectionRequest{
		StyleID: style.ID, Type: "random", DueDate: testEpoch,
	})
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)

	noFactory := env.style(t, "Unassigned")
	_, err = env.svc.Inspection.Schedule(env.ctx, "qa-001", &ScheduleInspectionRequest{
		StyleID: noFactory.ID, Type: entity.InspectionTypeFinal, DueDate: testEpoch,
	})
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "style_id", fieldErr.Field)

	in, err := env.svc.Inspection.Schedule(env.ctx, "qa-001", &ScheduleInspectionRequest{
		StyleID: style.ID, Type: entity.InspectionTypeFinal, DueDate: testEpoch.AddDate(0, 0, 3),
	})
	require.NoError(t, err)
	assert.Equal(t, factory.ID, in.FactoryID)
	assert.Equal(t, entity.InspectionStatusScheduled, in.Status)

	_, err = env.svc.Inspection.Complete(env.ctx, in.ID, "qa-001", &CompleteInspectionRequest{Result: "maybe"})
	require.ErrorAs(t, err, &fieldErr)

	done, err := env.svc.Inspection.Complete(env.ctx, in.ID, "qa-001", &CompleteInspectionRequest{Result: entity.InspectionResultPassed})
	require.NoError(t, err)
	assert.Equal(t, entity.InspectionStatusCompleted, done.Status)

	_, err = env.svc.Inspection.Complete(env.ctx, in.ID, "qa-001", &CompleteInspectionRequest{Result: entity.InspectionResultFailed})
	var finalized *AlreadyFinalizedError
	require.ErrorAs(t, err, &finalized)
	assert.Equal(t, "inspection", finalized.Entity)

	items, err := env.svc.Inspection.ListByStyle(env.ctx, style.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, entity.InspectionResultPassed, items[0].Result)
}

func TestSupplierService_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Supplier.CreateSupplier(env.ctx, &CreateSupplierRequest{Code: "S", Name: "S", TestExpiryMonths: -1})
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)

	_, err = env.svc.Supplier.CreateFactory(env.ctx, &CreateFactoryRequest{Code: "F", Name: "F", TotalDeliveries: 1, LateDeliveries: 2})
	require.ErrorAs(t, err, &fieldErr)

	_, err = env.svc.Supplier.CreateFactory(env.ctx, &CreateFactoryRequest{Code: "F", Name: "F", SupplierID: "missing"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "supplier", nf.Entity)

	_, err = env.svc.Style.Create(env.ctx, "gt-001", &CreateStyleRequest{Name: "X", FactoryID: "missing"})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "factory", nf.Entity)
}
