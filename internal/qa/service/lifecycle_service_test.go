package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) advance(t *testing.T, styleID string) *AdvanceResult {
	t.Helper()
	result, err := e.svc.Lifecycle.Advance(e.ctx, styleID, "gt-001")
	require.NoError(t, err)
	return result
}

// approveWorkbook 提交并通过金封样确认书
func (e *testEnv) approveWorkbook(t *testing.T, styleID string) *entity.GoldSealWorkbook {
	t.Helper()
	wb, err := e.svc.GoldSeal.Submit(e.ctx, styleID, &SubmitWorkbookRequest{SubmittedBy: "gt-001"})
	require.NoError(t, err)
	wb, changed, err := e.svc.GoldSeal.ApplyDecision(e.ctx, wb.ApprovalInstance, true, "qa-lead")
	require.NoError(t, err)
	require.True(t, changed)
	return wb
}

func TestLifecycle_FullProgression(t *testing.T) {
	env := newTestEnv(t)
	fabric := env.fabric(t, "Denim")
	trim := env.trim(t, "Shank button")
	style := env.style(t, "Five pocket", fabric.ID, trim.ID)

	env.recordTest(t, fabric.ID, style.ID, entity.TestLevelBase, true)
	env.recordTest(t, trim.ID, style.ID, entity.TestLevelBase, true)

	result := env.advance(t, style.ID)
	assert.Equal(t, entity.StageBase, result.From)
	assert.Equal(t, entity.StageBaseApproved, result.Stage)
	assert.True(t, result.Changed)

	// 进入bulk不设前置条件
	assert.Equal(t, entity.StageBulk, env.advance(t, style.ID).Stage)

	_, err := env.svc.Lifecycle.Advance(env.ctx, style.ID, "gt-001")
	var guardErr *GuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Equal(t, entity.StageBulkApproved, guardErr.To)
	assert.ElementsMatch(t, []string{fabric.ID, trim.ID}, guardErr.FailingComponentIDs)
	assert.Equal(t, entity.StageBulk, env.stage(t, style.ID))

	env.recordTest(t, fabric.ID, style.ID, entity.TestLevelBulk, true)
	env.recordTest(t, trim.ID, style.ID, entity.TestLevelBulk, true)
	assert.Equal(t, entity.StageBulkApproved, env.advance(t, style.ID).Stage)
	assert.Equal(t, entity.StageProduct, env.advance(t, style.ID).Stage)

	_, err = env.svc.Lifecycle.Advance(env.ctx, style.ID, "gt-001")
	require.ErrorAs(t, err, &guardErr)
	assert.True(t, guardErr.WorkbookRequired)
	assert.False(t, guardErr.WorkbookApproved)
	assert.Empty(t, guardErr.FailingComponentIDs)

	env.approveWorkbook(t, style.ID)
	assert.Equal(t, entity.StageProductApproved, env.advance(t, style.ID).Stage)

	// 终态：不报错不变化
	final := env.advance(t, style.ID)
	assert.False(t, final.Changed)
	assert.Equal(t, entity.StageProductApproved, final.Stage)

	assert.Equal(t, 5, env.events.count("stage_changed"))
}

func TestLifecycle_BaseGuardReportsFailingComponents(t *testing.T) {
	env := newTestEnv(t)
	passing := env.fabric(t, "Pass")
	untested := env.fabric(t, "Untested")
	style := env.style(t, "Skirt", passing.ID, untested.ID)
	env.recordTest(t, passing.ID, style.ID, entity.TestLevelBase, true)

	_, err := env.svc.Lifecycle.Advance(env.ctx, style.ID, "gt-001")
	var guardErr *GuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Equal(t, style.ID, guardErr.StyleID)
	assert.Equal(t, entity.StageBase, guardErr.From)
	assert.Equal(t, entity.StageBaseApproved, guardErr.To)
	assert.Equal(t, []string{untested.ID}, guardErr.FailingComponentIDs)
	assert.Contains(t, guardErr.Error(), untested.ID)
	assert.Equal(t, entity.StageBase, env.stage(t, style.ID))
}

func TestLifecycle_BaseGuardChecksComposition(t *testing.T) {
	env := newTestEnv(t)
	draft, err := env.svc.Component.Create(env.ctx, "ft-001", &CreateComponentRequest{
		Variant:     entity.ComponentVariantFabric,
		Name:        "Draft",
		Composition: []FibreInput{{FibreType: "Wool", Percentage: 80}},
	})
	require.NoError(t, err)
	style := env.style(t, "Knit", draft.ID)
	env.recordTest(t, draft.ID, style.ID, entity.TestLevelBase, true)

	_, err = env.svc.Lifecycle.Advance(env.ctx, style.ID, "gt-001")
	var guardErr *GuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Equal(t, []string{draft.ID}, guardErr.FailingComponentIDs)
}

func TestLifecycle_StyleWithoutComponentsAdvances(t *testing.T) {
	env := newTestEnv(t)
	style := env.style(t, "Empty")
	assert.Equal(t, entity.StageBaseApproved, env.advance(t, style.ID).Stage)
}

func TestLifecycle_InheritedEvidenceExpiresBeforeAdvance(t *testing.T) {
	env := newTestEnv(t)
	fabric := env.fabric(t, "Corduroy")
	source := env.style(t, "Source", fabric.ID)
	env.recordTest(t, fabric.ID, source.ID, entity.TestLevelBase, true)
	style := env.style(t, "Trousers", fabric.ID)
	require.Equal(t, entity.TUStatusApproved, env.link(t, style.ID, fabric.ID).TUStatus)

	// 未执行定时降级，推进前仍会按当前时间重新判断
	env.clock.Advance(7 * 30 * 24 * time.Hour)
	_, err := env.svc.Lifecycle.Advance(env.ctx, style.ID, "gt-001")
	var guardErr *GuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Equal(t, []string{fabric.ID}, guardErr.FailingComponentIDs)

	// 降级结果不随守卫失败回滚
	l := env.link(t, style.ID, fabric.ID)
	assert.Equal(t, entity.TUStatusPending, l.TUStatus)
	assert.True(t, l.IsInherited())
}

func TestLifecycle_ProductApprovedRechecksBaseEvidence(t *testing.T) {
	env := newTestEnv(t)
	fabric := env.fabric(t, "Seersucker")
	source := env.style(t, "Source", fabric.ID)
	env.recordTest(t, fabric.ID, source.ID, entity.TestLevelBase, true)
	style := env.style(t, "Shorts", fabric.ID)

	env.advance(t, style.ID)
	env.advance(t, style.ID)
	env.recordTest(t, fabric.ID, style.ID, entity.TestLevelBulk, true)
	env.advance(t, style.ID)
	env.advance(t, style.ID)
	require.Equal(t, entity.StageProduct, env.stage(t, style.ID))
	env.approveWorkbook(t, style.ID)

	env.clock.Advance(7 * 30 * 24 * time.Hour)
	_, err := env.svc.Lifecycle.Advance(env.ctx, style.ID, "gt-001")
	var guardErr *GuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Equal(t, []string{fabric.ID}, guardErr.FailingComponentIDs)
	assert.True(t, guardErr.WorkbookApproved)
}

func TestLifecycle_RejectedComponentBlocksBase(t *testing.T) {
	env := newTestEnv(t)
	trim := env.trim(t, "Buckle")
	style := env.style(t, "Belt", trim.ID)
	env.recordTest(t, trim.ID, style.ID, entity.TestLevelBase, true)

	_, err := env.svc.Component.Reject(env.ctx, trim.ID, "ft-001", "plating failed")
	require.NoError(t, err)

	_, err = env.svc.Lifecycle.Advance(env.ctx, style.ID, "gt-001")
	var guardErr *GuardError
	require.ErrorAs(t, err, &guardErr)
	assert.Equal(t, []string{trim.ID}, guardErr.FailingComponentIDs)
}

func TestLifecycle_StageConflict(t *testing.T) {
	env := newTestEnv(t)
	style := env.style(t, "Race")

	// 模拟另一实例先完成推进
	ok, err := env.repos.Style.UpdateStage(context.Background(), style.ID, entity.StageBase, entity.StageBaseApproved)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = env.repos.Style.UpdateStage(context.Background(), style.ID, entity.StageBase, entity.StageBaseApproved)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, entity.StageBulk, env.advance(t, style.ID).Stage)
}

func TestGoldSeal_Submit(t *testing.T) {
	env := newTestEnv(t)
	style := env.style(t, "Parka")

	_, err := env.svc.GoldSeal.Submit(env.ctx, style.ID, &SubmitWorkbookRequest{SubmittedBy: "gt-001"})
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, RuleStatusTransition, invErr.Rule)

	for i := 0; i < 3; i++ {
		env.advance(t, style.ID)
	}
	require.Equal(t, entity.StageBulkApproved, env.stage(t, style.ID))

	wb, err := env.svc.GoldSeal.Submit(env.ctx, style.ID, &SubmitWorkbookRequest{
		ApprovalInstance: "INST-001",
		SubmittedBy:      "gt-001",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.WorkbookStatusSubmitted, wb.Status)
	assert.Equal(t, "INST-001", wb.ApprovalInstance)

	_, err = env.svc.GoldSeal.Submit(env.ctx, style.ID, &SubmitWorkbookRequest{SubmittedBy: "gt-001"})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, wb.ID, dup.ExistingID)

	// 驳回后可重新提交
	rejected, changed, err := env.svc.GoldSeal.ApplyExternalStatus(env.ctx, "INST-001", "REJECTED", "feishu:ou_lead")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, entity.WorkbookStatusRejected, rejected.Status)

	env.clock.Advance(time.Minute)
	resubmitted, err := env.svc.GoldSeal.Submit(env.ctx, style.ID, &SubmitWorkbookRequest{SubmittedBy: "gt-001"})
	require.NoError(t, err)
	assert.Contains(t, resubmitted.ApprovalInstance, "local-")

	latest, err := env.svc.GoldSeal.Latest(env.ctx, style.ID)
	require.NoError(t, err)
	assert.Equal(t, resubmitted.ID, latest.ID)
}

func TestGoldSeal_DecisionAppliedOnce(t *testing.T) {
	env := newTestEnv(t)
	style := env.style(t, "Gilet")
	for i := 0; i < 3; i++ {
		env.advance(t, style.ID)
	}
	wb, err := env.svc.GoldSeal.Submit(env.ctx, style.ID, &SubmitWorkbookRequest{ApprovalInstance: "INST-9"})
	require.NoError(t, err)

	_, changed, err := env.svc.GoldSeal.ApplyExternalStatus(env.ctx, "INST-9", "PENDING", "feishu")
	require.NoError(t, err)
	assert.False(t, changed)

	approved, changed, err := env.svc.GoldSeal.ApplyDecision(env.ctx, "INST-9", true, "qa-lead")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, wb.ID, approved.ID)
	assert.Equal(t, entity.WorkbookStatusApproved, approved.Status)

	again, changed, err := env.svc.GoldSeal.ApplyDecision(env.ctx, "INST-9", false, "qa-lead")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, entity.WorkbookStatusApproved, again.Status)
	assert.Equal(t, 1, env.events.count("workbook_decided"))

	_, _, err = env.svc.GoldSeal.ApplyDecision(env.ctx, "INST-unknown", true, "qa-lead")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestGoldSeal_DecideOnlyFromSubmitted(t *testing.T) {
	env := newTestEnv(t)
	style := env.style(t, "Duffle")
	for i := 0; i < 3; i++ {
		env.advance(t, style.ID)
	}
	wb, err := env.svc.GoldSeal.Submit(env.ctx, style.ID, &SubmitWorkbookRequest{ApprovalInstance: "INST-R"})
	require.NoError(t, err)

	ok, err := env.repos.Workbook.Decide(env.ctx, wb.ID, entity.WorkbookStatusApproved, env.clock.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	// 已决的确认书不会被后到的结果覆盖
	ok, err = env.repos.Workbook.Decide(env.ctx, wb.ID, entity.WorkbookStatusRejected, env.clock.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	latest, err := env.svc.GoldSeal.Latest(env.ctx, style.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.WorkbookStatusApproved, latest.Status)
	require.NotNil(t, latest.DecidedAt)
}

func TestGoldSeal_ConcurrentDecisionsApplyOnce(t *testing.T) {
	env := newTestEnv(t)
	style := env.style(t, "Trench")
	for i := 0; i < 3; i++ {
		env.advance(t, style.ID)
	}
	_, err := env.svc.GoldSeal.Submit(env.ctx, style.ID, &SubmitWorkbookRequest{ApprovalInstance: "INST-C"})
	require.NoError(t, err)

	type outcome struct {
		status  string
		changed bool
		err     error
	}
	outcomes := make(chan outcome, 2)
	var wg sync.WaitGroup
	for _, approved := range []bool{true, false} {
		wg.Add(1)
		go func(approved bool) {
			defer wg.Done()
			wb, changed, err := env.svc.GoldSeal.ApplyDecision(env.ctx, "INST-C", approved, "qa-lead")
			o := outcome{changed: changed, err: err}
			if wb != nil {
				o.status = wb.Status
			}
			outcomes <- o
		}(approved)
	}
	wg.Wait()
	close(outcomes)

	winners := 0
	var winning string
	for o := range outcomes {
		require.NoError(t, o.err)
		if o.changed {
			winners++
			winning = o.status
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, env.events.count("workbook_decided"))

	latest, err := env.svc.GoldSeal.Latest(env.ctx, style.ID)
	require.NoError(t, err)
	assert.Equal(t, winning, latest.Status)
}

type stubApprovals struct {
	started []string
	status  string
}

func (s *stubApprovals) Start(_ context.Context, submitterOpenID, styleCode, _ string) (string, error) {
	s.started = append(s.started, submitterOpenID+"/"+styleCode)
	return "FS-" + styleCode, nil
}

func (s *stubApprovals) Status(_ context.Context, _ string) (string, error) {
	return s.status, nil
}

func TestGoldSeal_ExternalApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	approvals := &stubApprovals{status: "PENDING"}
	goldSeal := &GoldSealService{engine: env.svc.GoldSeal.engine, approvals: approvals}

	style := env.style(t, "Anorak")
	for i := 0; i < 3; i++ {
		env.advance(t, style.ID)
	}

	wb, err := goldSeal.Submit(env.ctx, style.ID, &SubmitWorkbookRequest{SubmitterOpenID: "ou_gt", SubmittedBy: "gt-001"})
	require.NoError(t, err)
	assert.Equal(t, "FS-"+style.Code, wb.ApprovalInstance)
	assert.Equal(t, []string{"ou_gt/" + style.Code}, approvals.started)

	latest, err := goldSeal.Latest(env.ctx, style.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.WorkbookStatusSubmitted, latest.Status)

	approvals.status = "APPROVED"
	latest, err = goldSeal.Latest(env.ctx, style.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.WorkbookStatusApproved, latest.Status)
}

func TestStyle_ActivityTrail(t *testing.T) {
	env := newTestEnv(t)
	fabric := env.fabric(t, "Poplin")
	style := env.style(t, "Shirt", fabric.ID)

	env.clock.Advance(time.Hour)
	env.recordTest(t, fabric.ID, style.ID, entity.TestLevelBase, true)
	env.clock.Advance(time.Hour)
	env.advance(t, style.ID)

	items, err := env.svc.Style.Activity(env.ctx, style.ID, 0)
	require.NoError(t, err)

	actions := make([]string, 0, len(items))
	for _, item := range items {
		assert.Equal(t, style.ID, item.StyleID)
		actions = append(actions, item.EntityType+":"+item.Action)
	}
	assert.Contains(t, actions, "style:create")
	assert.Contains(t, actions, "link:link")
	assert.Contains(t, actions, "test:request")
	assert.Contains(t, actions, "test:record_result")
	// 组件审批不归属款式
	assert.NotContains(t, actions, "component:approve")

	// 最新在前
	assert.Equal(t, "advance", items[0].Action)
	assert.Equal(t, entity.StageBaseApproved, items[0].ToStatus)

	limited, err := env.svc.Style.Activity(env.ctx, style.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = env.svc.Style.Activity(env.ctx, "missing", 10)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
