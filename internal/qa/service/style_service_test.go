package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) styleCount(t *testing.T) int64 {
	t.Helper()
	result, err := e.svc.Style.List(e.ctx, 1, 20, nil)
	require.NoError(t, err)
	return result.Total
}

func TestStyle_CreateRollsBackOnUnknownComponent(t *testing.T) {
	env := newTestEnv(t)
	fabric := env.fabric(t, "Oxford")

	_, err := env.svc.Style.Create(env.ctx, "gt-001", &CreateStyleRequest{
		Name:         "Button down",
		ComponentIDs: []string{fabric.ID, "missing-component"},
	})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing-component", nf.ID)

	assert.Equal(t, int64(0), env.styleCount(t))
	usages, err := env.svc.Component.ListStylesUsingComponent(env.ctx, fabric.ID)
	require.NoError(t, err)
	assert.Empty(t, usages)
	assert.Equal(t, 0, env.events.count("link_changed"))

	// 重试只产生一个款式
	style := env.style(t, "Button down", fabric.ID)
	assert.Equal(t, int64(1), env.styleCount(t))
	assert.Equal(t, []string{fabric.ID}, style.ComponentIDs)
}

func TestStyle_CreateRejectsRejectedComponent(t *testing.T) {
	env := newTestEnv(t)
	trim := env.trim(t, "Snap")
	_, err := env.svc.Component.Reject(env.ctx, trim.ID, "ft-001", "wrong plating")
	require.NoError(t, err)

	_, err = env.svc.Style.Create(env.ctx, "gt-001", &CreateStyleRequest{
		Name:         "Bomber",
		ComponentIDs: []string{trim.ID},
	})
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, RuleComponentRejected, invErr.Rule)
	assert.Equal(t, int64(0), env.styleCount(t))
}

func TestStyle_CreateDeduplicatesComponents(t *testing.T) {
	env := newTestEnv(t)
	fabric := env.fabric(t, "Twill")
	trim := env.trim(t, "Rivet")

	style := env.style(t, "Chino", fabric.ID, trim.ID, fabric.ID)
	assert.Equal(t, []string{fabric.ID, trim.ID}, style.ComponentIDs)
	assert.Equal(t, 2, env.events.count("link_changed"))

	got, err := env.svc.Style.Get(env.ctx, style.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, style.ComponentIDs, got.ComponentIDs)
}
