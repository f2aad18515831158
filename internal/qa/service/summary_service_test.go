package service

import (
	"testing"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryService_GetComplianceSummary(t *testing.T) {
	env := newTestEnv(t)
	factory, err := env.svc.Supplier.CreateFactory(env.ctx, &CreateFactoryRequest{Code: "FAC-10", Name: "Izmir"})
	require.NoError(t, err)

	fabric := env.fabric(t, "Loopback")
	trim := env.trim(t, "Drawcord")
	source := env.style(t, "Source", fabric.ID)
	env.recordTest(t, fabric.ID, source.ID, entity.TestLevelBase, true)

	style, err := env.svc.Style.Create(env.ctx, "gt-001", &CreateStyleRequest{
		Name:         "Sweatpant",
		FactoryID:    factory.ID,
		ComponentIDs: []string{fabric.ID, trim.ID},
	})
	require.NoError(t, err)

	testDue := testEpoch.Add(24 * time.Hour)
	_, err = env.svc.Test.RequestTest(env.ctx, &RequestTestRequest{
		ComponentID: trim.ID, StyleID: style.ID, Level: entity.TestLevelBase, DueDate: &testDue,
	})
	require.NoError(t, err)
	_, err = env.svc.Inspection.Schedule(env.ctx, "qa-001", &ScheduleInspectionRequest{
		StyleID: style.ID, Type: entity.InspectionTypePreProduction, DueDate: testEpoch.AddDate(0, 0, 10),
	})
	require.NoError(t, err)

	summary, err := env.svc.Summary.GetComplianceSummary(env.ctx, style.ID)
	require.NoError(t, err)
	assert.Equal(t, style.Code, summary.StyleCode)
	assert.Equal(t, entity.StageBase, summary.Stage)
	assert.Equal(t, entity.StageBaseApproved, summary.NextStage)
	assert.Equal(t, 1, summary.ApprovedCount)
	assert.Equal(t, 1, summary.PendingCount)
	assert.Equal(t, 1, summary.InheritedCount)
	assert.Equal(t, "none", summary.WorkbookStatus)

	require.Len(t, summary.Components, 2)
	fabricRow := summary.Components[0]
	assert.Equal(t, fabric.ID, fabricRow.ComponentID)
	assert.True(t, fabricRow.Inherited)
	assert.Equal(t, source.ID, *fabricRow.CopiedFrom)
	assert.True(t, fabricRow.BasePassing)
	assert.False(t, fabricRow.BulkPassing)
	assert.True(t, fabricRow.CompositionValid)

	trimRow := summary.Components[1]
	assert.Equal(t, entity.TUStatusPending, trimRow.TUStatus)
	assert.Equal(t, entity.ComponentStatusPending, trimRow.ComponentStatus)
	assert.False(t, trimRow.BasePassing)

	require.Len(t, summary.OpenItems, 2)
	assert.Equal(t, "test", summary.OpenItems[0].Kind)
	assert.Equal(t, SLAAtRisk, summary.OpenItems[0].Status)
	assert.Equal(t, "inspection", summary.OpenItems[1].Kind)
	assert.Equal(t, SLAOnTrack, summary.OpenItems[1].Status)
	assert.Equal(t, 10, summary.OpenItems[1].DaysRemaining)

	// 过期后汇总反映降级
	env.clock.Advance(7 * 30 * 24 * time.Hour)
	summary, err = env.svc.Summary.GetComplianceSummary(env.ctx, style.ID)
	require.NoError(t, err)
	assert.False(t, summary.Components[0].BasePassing)
	assert.Equal(t, SLAOverdue, summary.OpenItems[0].Status)
}

func TestSummaryService_ExportComplianceXLSX(t *testing.T) {
	env := newTestEnv(t)
	fabric := env.fabric(t, "Pique")
	style := env.style(t, "Polo", fabric.ID)
	env.recordTest(t, fabric.ID, style.ID, entity.TestLevelBase, true)
	_, err := env.svc.Test.RequestTest(env.ctx, &RequestTestRequest{
		ComponentID: fabric.ID, StyleID: style.ID, Level: entity.TestLevelBulk,
	})
	require.NoError(t, err)

	f, filename, err := env.svc.Summary.ExportComplianceXLSX(env.ctx, style.ID)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "compliance_"+style.Code+"_20260302.xlsx", filename)

	assert.Equal(t, []string{"Compliance", "Open Items"}, f.GetSheetList())

	code, err := f.GetCellValue("Compliance", "A2")
	require.NoError(t, err)
	assert.Equal(t, fabric.Code, code)

	tuStatus, err := f.GetCellValue("Compliance", "F2")
	require.NoError(t, err)
	assert.Equal(t, entity.TUStatusApproved, tuStatus)

	base, err := f.GetCellValue("Compliance", "I2")
	require.NoError(t, err)
	assert.Equal(t, "pass", base)

	footer, err := f.GetCellValue("Compliance", "F3")
	require.NoError(t, err)
	assert.Equal(t, "approved 1 / pending 0", footer)

	kind, err := f.GetCellValue("Open Items", "A2")
	require.NoError(t, err)
	assert.Equal(t, "test", kind)
	label, err := f.GetCellValue("Open Items", "C2")
	require.NoError(t, err)
	assert.Equal(t, entity.TestLevelBulk, label)

	_, _, err = env.svc.Summary.ExportComplianceXLSX(env.ctx, "missing")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
