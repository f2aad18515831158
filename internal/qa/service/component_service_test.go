package service

import (
	"strings"
	"testing"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestComponentService_Create(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.svc.Component.Create(env.ctx, "ft-001", &CreateComponentRequest{
		Variant:     entity.ComponentVariantFabric,
		Name:        "Stretch Twill",
		Mill:        "Mill A",
		Composition: []FibreInput{{FibreType: "Cotton", Percentage: 60}, {FibreType: "Polyester", Percentage: 35}},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ComponentStatusPending, c.Status)
	assert.Regexp(t, `^CMP-\d{4}-0001$`, c.Code)

	got, err := env.svc.Component.Get(env.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Composition, 2)
	assert.Equal(t, "Cotton", got.Composition[0].FibreType)
	assert.Equal(t, "Polyester", got.Composition[1].FibreType)

	t.Run("unknown variant", func(t *testing.T) {
		_, err := env.svc.Component.Create(env.ctx, "ft-001", &CreateComponentRequest{Variant: "lining"})
		var fieldErr *FieldError
		require.ErrorAs(t, err, &fieldErr)
		assert.Equal(t, "variant", fieldErr.Field)
	})

	t.Run("draft percentage out of range", func(t *testing.T) {
		_, err := env.svc.Component.Create(env.ctx, "ft-001", &CreateComponentRequest{
			Variant:     entity.ComponentVariantFabric,
			Composition: []FibreInput{{FibreType: "Cotton", Percentage: 120}},
		})
		var compErr *CompositionError
		require.ErrorAs(t, err, &compErr)
		assert.Equal(t, CompositionOutOfRange, compErr.Kind)
	})
}

func TestComponentService_ApproveRequiresValidComposition(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.svc.Component.Create(env.ctx, "ft-001", &CreateComponentRequest{
		Variant:     entity.ComponentVariantFabric,
		Composition: []FibreInput{{FibreType: "Cotton", Percentage: 60}, {FibreType: "Polyester", Percentage: 35}},
	})
	require.NoError(t, err)

	_, err = env.svc.Component.Approve(env.ctx, c.ID, "ft-001")
	var compErr *CompositionError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, CompositionIncomplete, compErr.Kind)
	assert.Equal(t, 95, compErr.Sum)

	got, err := env.svc.Component.Get(env.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ComponentStatusPending, got.Status, "failed validation must not change status")

	fixed := []FibreInput{{FibreType: "Cotton", Percentage: 60}, {FibreType: "Polyester", Percentage: 40}}
	_, err = env.svc.Component.Update(env.ctx, c.ID, "ft-001", &UpdateComponentRequest{Composition: &fixed})
	require.NoError(t, err)

	approved, err := env.svc.Component.Approve(env.ctx, c.ID, "ft-001")
	require.NoError(t, err)
	assert.Equal(t, entity.ComponentStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, testEpoch, approved.ApprovedAt.UTC())
}

func TestComponentService_TrimApprovesWithoutComposition(t *testing.T) {
	env := newTestEnv(t)
	trim := env.trim(t, "Horn button")

	approved, err := env.svc.Component.Approve(env.ctx, trim.ID, "ft-001")
	require.NoError(t, err)
	assert.Equal(t, entity.ComponentStatusApproved, approved.Status)
}

func TestComponentService_Reject(t *testing.T) {
	env := newTestEnv(t)
	c := env.trim(t, "Zip")

	rejected, err := env.svc.Component.Reject(env.ctx, c.ID, "ft-001", "nickel content")
	require.NoError(t, err)
	assert.Equal(t, entity.ComponentStatusRejected, rejected.Status)

	_, err = env.svc.Component.Approve(env.ctx, c.ID, "ft-001")
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, RuleStatusTransition, invErr.Rule)

	// 被驳回的组件保留，不可再关联
	style := env.style(t, "Chino")
	_, err = env.svc.Link.Link(env.ctx, style.ID, c.ID, LinkOptions{LinkedBy: "gt-001"})
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, RuleComponentRejected, invErr.Rule)
}

func TestComponentService_UpdateGuardsCompliantMaterial(t *testing.T) {
	env := newTestEnv(t)
	fabric := env.fabric(t, "Poplin")
	style := env.style(t, "Shirt", fabric.ID)

	// 未合规前可自由修改
	name := "Poplin 120s"
	_, err := env.svc.Component.Update(env.ctx, fabric.ID, "ft-001", &UpdateComponentRequest{Name: &name})
	require.NoError(t, err)

	env.recordTest(t, fabric.ID, style.ID, entity.TestLevelBase, true)
	require.Equal(t, entity.TUStatusApproved, env.link(t, style.ID, fabric.ID).TUStatus)

	composition := []FibreInput{{FibreType: "Linen", Percentage: 100}}
	_, err = env.svc.Component.Update(env.ctx, fabric.ID, "ft-001", &UpdateComponentRequest{Composition: &composition})
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, RuleEditCompliantMaterial, invErr.Rule)

	yes, no := true, false
	_, err = env.svc.Component.Update(env.ctx, fabric.ID, "ft-001", &UpdateComponentRequest{Sustainable: &no})
	require.ErrorAs(t, err, &invErr)

	updated, err := env.svc.Component.Update(env.ctx, fabric.ID, "ft-001", &UpdateComponentRequest{Sustainable: &yes, ReachCompliant: &yes})
	require.NoError(t, err)
	assert.True(t, updated.Sustainable)
	assert.True(t, updated.ReachCompliant)

	got, err := env.svc.Component.Get(env.ctx, fabric.ID)
	require.NoError(t, err)
	require.Len(t, got.Composition, 1)
	assert.Equal(t, "Cotton", got.Composition[0].FibreType)
}

func TestComponentService_FindByStyleAndUsage(t *testing.T) {
	env := newTestEnv(t)
	shell := env.fabric(t, "Shell")
	button := env.trim(t, "Button")
	style := env.style(t, "Jacket", button.ID, shell.ID)
	other := env.style(t, "Coat", shell.ID)

	components, err := env.svc.Component.FindByStyle(env.ctx, style.ID)
	require.NoError(t, err)
	require.Len(t, components, 2)
	assert.Equal(t, button.ID, components[0].ID)
	assert.Equal(t, shell.ID, components[1].ID)

	usages, err := env.svc.Component.ListStylesUsingComponent(env.ctx, shell.ID)
	require.NoError(t, err)
	styleIDs := []string{}
	for _, u := range usages {
		styleIDs = append(styleIDs, u.Style.ID)
	}
	assert.ElementsMatch(t, []string{style.ID, other.ID}, styleIDs)

	_, err = env.svc.Component.FindByStyle(env.ctx, "missing")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestComponentService_ImportXLSX(t *testing.T) {
	env := newTestEnv(t)

	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Variant", "Name", "Mill", "Origin Country", "Reference Code", "Colour", "Composition", "Trim Type", "Size", "Material"},
		{"Fabric", "Denim 12oz", "Mill B", "TR", "DN-12", "Indigo", "98% Cotton, 2% Elastane"},
		{"trim", "Rivet", "", "", "RV-1", "Copper", "", "rivet", "9mm", "brass"},
		{"fabric", "Broken", "", "", "", "", "abc Cotton"},
		{},
		{"lining", "Pocketing"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	result, err := env.svc.Component.ImportXLSX(env.ctx, "ft-001", f)
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, 4, result.Failed[0].Row)
	assert.Equal(t, 6, result.Failed[1].Row)

	denim, err := env.svc.Component.Get(env.ctx, result.Created[0])
	require.NoError(t, err)
	assert.Equal(t, entity.ComponentVariantFabric, denim.Variant)
	require.Len(t, denim.Composition, 2)
	assert.NoError(t, ValidateFabric(denim))

	rivet, err := env.svc.Component.Get(env.ctx, result.Created[1])
	require.NoError(t, err)
	assert.Equal(t, "rivet", rivet.TrimType)
	assert.Empty(t, rivet.Composition)
}

func TestComponentService_ImportCSV(t *testing.T) {
	env := newTestEnv(t)

	content := "Variant,Name,Mill,Origin Country,Reference Code,Colour,Composition\n" +
		"fabric,Poplin 40s,江苏纺织,CN,PP-40,White,\"100% Cotton\"\n" +
		"fabric,Bad,江苏纺织,CN,,,\"x Cotton\"\n"
	gbk, err := simplifiedchinese.GBK.NewEncoder().String(content)
	require.NoError(t, err)

	result, err := env.svc.Component.ImportCSV(env.ctx, "ft-001", strings.NewReader(gbk))
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 3, result.Failed[0].Row)

	poplin, err := env.svc.Component.Get(env.ctx, result.Created[0])
	require.NoError(t, err)
	assert.Equal(t, "江苏纺织", poplin.Mill)
	require.Len(t, poplin.Composition, 1)
	assert.Equal(t, 100, poplin.Composition[0].Percentage)

	// UTF-8 带BOM
	utf8Content := "\xef\xbb\xbf" + "Variant,Name\ntrim,Zip\n"
	result, err = env.svc.Component.ImportCSV(env.ctx, "ft-001", strings.NewReader(utf8Content))
	require.NoError(t, err)
	assert.Len(t, result.Created, 1)

	_, err = env.svc.Component.ImportCSV(env.ctx, "ft-001", strings.NewReader("a,\"b\n"))
	var ve ValidationError
	assert.ErrorAs(t, err, &ve)
}
