package service

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"galera-cd/internal/dto"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/pkg/database/dbtest"
	"galera-cd/internal/repository"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

const frozenMilli = int64(1700000000000)

func newTemplateService(t *testing.T) (TemplateService, repository.TemplateRepository) {
	t.Helper()
	repo := repository.NewTemplateRepository(dbtest.Open(t))
	svc := NewTemplateService(repo, nil, zap.NewNop())
	svc.(*templateService).now = func() time.Time { return time.UnixMilli(frozenMilli) }
	return svc, repo
}

func createTemplate(t *testing.T, svc TemplateService, name string, author auth.Principal) *dto.TemplateResponse {
	t.Helper()
	resp, err := svc.Create(context.Background(), &dto.TemplateRequest{Name: name, BufferPool: "4G"}, author)
	require.NoError(t, err)
	return resp.Template
}

func TestTemplateCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTemplateService(t)

	pending := createTemplate(t, svc, "oltp", alice)
	assert.Equal(t, constants.TemplateStatusPendingApproval, pending.Status)
	assert.Nil(t, pending.ApprovedBy)
	assert.Equal(t, constants.DefaultTemplatePartitionGB, pending.LogsGB)
	assert.Equal(t, constants.DefaultMaxConnections, pending.MaxConnections)

	active := createTemplate(t, svc, "olap", root)
	assert.Equal(t, constants.TemplateStatusActive, active.Status)
	require.NotNil(t, active.ApprovedBy)
	assert.Equal(t, root.Email, *active.ApprovedBy)

	_, err := svc.Create(ctx, &dto.TemplateRequest{Name: "oltp"}, bob)
	assert.Equal(t, pkgErrors.CodeConflict, pkgErrors.CodeOf(err))

	_, err = svc.Create(ctx, &dto.TemplateRequest{Name: "bad-pool", BufferPool: "4X"}, bob)
	assert.Equal(t, pkgErrors.CodeValidationError, pkgErrors.CodeOf(err))

	_, err = svc.Create(ctx, &dto.TemplateRequest{Name: "bad-param", CustomParams: map[string]string{"init_connect": "SET a=1; DROP"}}, bob)
	assert.Equal(t, pkgErrors.CodeValidationError, pkgErrors.CodeOf(err))
}

func TestTemplateUpdate_StandardCreatesShadow(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTemplateService(t)
	base := createTemplate(t, svc, "base", root)

	resp, err := svc.Update(ctx, base.ID, &dto.TemplateRequest{Name: "base", BufferPool: "8G", LogsGB: floatPtr(5)}, alice)
	require.NoError(t, err)
	shadow := resp.Template
	assert.Equal(t, "base"+constants.TemplatePendingEditSuffix, shadow.Name)
	assert.Equal(t, constants.TemplateStatusPendingApproval, shadow.Status)
	require.NotNil(t, shadow.ParentTemplateID)
	assert.Equal(t, base.ID, *shadow.ParentTemplateID)

	// 原模板不变
	original, err := repo.FindByID(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, "4G", original.BufferPool)
	assert.Equal(t, constants.TemplateStatusActive, original.Status)

	// 已有同名副本时追加时间戳
	resp, err = svc.Update(ctx, base.ID, &dto.TemplateRequest{Name: "base", BufferPool: "16G"}, bob)
	require.NoError(t, err)
	assert.Equal(t, "base (Pending Edit 1700000000000)", resp.Template.Name)

	_, err = svc.Update(ctx, shadow.ID, &dto.TemplateRequest{Name: "base"}, bob)
	assert.Equal(t, pkgErrors.CodeConflict, pkgErrors.CodeOf(err))

	_, err = svc.Update(ctx, 999, &dto.TemplateRequest{Name: "base"}, bob)
	assert.Equal(t, pkgErrors.CodeNotFound, pkgErrors.CodeOf(err))
}

func TestTemplateApprove_MergesShadow(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTemplateService(t)
	base := createTemplate(t, svc, "base", root)

	resp, err := svc.Update(ctx, base.ID, &dto.TemplateRequest{Name: "base", BufferPool: "8G", LogsGB: floatPtr(5)}, alice)
	require.NoError(t, err)
	shadowID := resp.Template.ID

	_, err = svc.Approve(ctx, shadowID, alice)
	assert.ErrorIs(t, err, pkgErrors.ErrSelfReview)

	approved, err := svc.Approve(ctx, shadowID, bob)
	require.NoError(t, err)
	assert.Equal(t, base.ID, approved.Template.ID)
	assert.Equal(t, "base", approved.Template.Name)
	assert.Equal(t, "8G", approved.Template.BufferPool)
	assert.Equal(t, 5.0, approved.Template.LogsGB)
	require.NotNil(t, approved.Template.ApprovedBy)
	assert.Equal(t, bob.Email, *approved.Template.ApprovedBy)

	_, err = repo.FindByID(ctx, shadowID)
	assert.ErrorIs(t, err, pkgErrors.ErrNotFound)

	_, err = svc.Approve(ctx, base.ID, bob)
	assert.Equal(t, pkgErrors.CodeConflict, pkgErrors.CodeOf(err))
}

func TestTemplateApprove_NewTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTemplateService(t)
	tpl := createTemplate(t, svc, "oltp", alice)

	resp, err := svc.Approve(ctx, tpl.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, constants.TemplateStatusActive, resp.Template.Status)

	got, err := svc.Get(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TemplateStatusActive, got.Status)
	require.NotNil(t, got.ApprovedBy)
	assert.Equal(t, bob.Email, *got.ApprovedBy)

	_, err = svc.Approve(ctx, 404, bob)
	assert.Equal(t, pkgErrors.CodeNotFound, pkgErrors.CodeOf(err))
}

func TestTemplateReject(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTemplateService(t)

	t.Run("shadow is discarded", func(t *testing.T) {
		base := createTemplate(t, svc, "base", root)
		resp, err := svc.Update(ctx, base.ID, &dto.TemplateRequest{Name: "base", BufferPool: "8G"}, alice)
		require.NoError(t, err)

		_, err = svc.Reject(ctx, resp.Template.ID, bob)
		require.NoError(t, err)

		_, err = repo.FindByID(ctx, resp.Template.ID)
		assert.ErrorIs(t, err, pkgErrors.ErrNotFound)

		original, err := repo.FindByID(ctx, base.ID)
		require.NoError(t, err)
		assert.Equal(t, "4G", original.BufferPool)
	})

	t.Run("new template is kept as rejected", func(t *testing.T) {
		tpl := createTemplate(t, svc, "draft", alice)

		_, err := svc.Reject(ctx, tpl.ID, alice)
		assert.ErrorIs(t, err, pkgErrors.ErrSelfReview)

		resp, err := svc.Reject(ctx, tpl.ID, bob)
		require.NoError(t, err)
		assert.Equal(t, constants.TemplateStatusRejected, resp.Template.Status)

		_, err = svc.Reject(ctx, tpl.ID, bob)
		assert.Equal(t, pkgErrors.CodeConflict, pkgErrors.CodeOf(err))
	})
}

func TestTemplateUpdate_Privileged(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTemplateService(t)
	base := createTemplate(t, svc, "base", root)
	createTemplate(t, svc, "other", root)

	resp, err := svc.Update(ctx, base.ID, &dto.TemplateRequest{Name: "renamed", BufferPool: "12G", GcacheGB: floatPtr(2)}, root)
	require.NoError(t, err)
	assert.Equal(t, base.ID, resp.Template.ID)
	assert.Equal(t, "renamed", resp.Template.Name)
	assert.Equal(t, "12G", resp.Template.BufferPool)
	assert.Equal(t, 2.0, resp.Template.GcacheGB)
	assert.Equal(t, constants.TemplateStatusActive, resp.Template.Status)

	_, err = svc.Update(ctx, base.ID, &dto.TemplateRequest{Name: "other"}, root)
	assert.Equal(t, pkgErrors.CodeConflict, pkgErrors.CodeOf(err))
}

func TestTemplateDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTemplateService(t)
	base := createTemplate(t, svc, "base", root)

	first, err := svc.Duplicate(ctx, base.ID, root)
	require.NoError(t, err)
	assert.Equal(t, "base"+constants.TemplateCopySuffix, first.Template.Name)
	assert.Equal(t, constants.TemplateStatusActive, first.Template.Status)
	assert.Equal(t, "4G", first.Template.BufferPool)

	second, err := svc.Duplicate(ctx, base.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "base (Copy 1700000000000)", second.Template.Name)
	assert.Equal(t, constants.TemplateStatusPendingApproval, second.Template.Status)
	assert.Equal(t, alice.Email, second.Template.CreatedBy)

	_, err = svc.Duplicate(ctx, 404, alice)
	assert.Equal(t, pkgErrors.CodeNotFound, pkgErrors.CodeOf(err))
}

func TestTemplateDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTemplateService(t)
	base := createTemplate(t, svc, "base", root)

	err := svc.Delete(ctx, base.ID, alice)
	assert.Equal(t, pkgErrors.CodeForbidden, pkgErrors.CodeOf(err))

	require.NoError(t, svc.Delete(ctx, base.ID, root))

	err = svc.Delete(ctx, base.ID, root)
	assert.Equal(t, pkgErrors.CodeNotFound, pkgErrors.CodeOf(err))
}

func TestTemplateList_FiltersByRole(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTemplateService(t)

	createTemplate(t, svc, "active", root)
	createTemplate(t, svc, "pending", alice)
	rejected := createTemplate(t, svc, "rejected", alice)
	_, err := svc.Reject(ctx, rejected.ID, bob)
	require.NoError(t, err)

	names := func(list []*dto.TemplateResponse) []string {
		return lo.Map(list, func(t *dto.TemplateResponse, _ int) string { return t.Name })
	}

	standard, err := svc.List(ctx, alice)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"active", "pending"}, names(standard))

	privileged, err := svc.List(ctx, root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"active", "pending", "rejected"}, names(privileged))
}
