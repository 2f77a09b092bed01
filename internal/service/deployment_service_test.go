package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/core/params"
	"galera-cd/internal/dto"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/pkg/crypto"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

func submitRequest(preflightID int64) *dto.SubmitDeploymentRequest {
	return &dto.SubmitDeploymentRequest{
		Hosts:       []string{"10.0.0.3", "10.0.0.1", "10.0.0.2"},
		AsyncNodeIP: asyncHost,
		ClusterName: "orders_prod",
		DBRootPass:  "root-secret",
		AppPass:     "app-secret",
		PreflightID: preflightID,
	}
}

func TestSubmit_PrivilegedTriggersImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)

	resp, err := f.svc.Submit(ctx, submitRequest(check.ID), root)
	require.NoError(t, err)
	assert.Equal(t, constants.DeploymentStatusQueued, resp.Status)

	dep := f.reload(t, resp.DeploymentID)
	require.NotNil(t, dep.TrackingToken)
	assert.Equal(t, []int64{dep.ID}, f.tracker.Tracked())
	assert.Equal(t, 50.0, dep.MinVGSizeGB)
	assert.Equal(t, 10.0, dep.LogsGB)
	assert.Equal(t, 5.0, dep.TmpGB)
	assert.Equal(t, 2.5, dep.GcacheGB)
	assert.Nil(t, dep.DataGB)
	assert.False(t, dep.ForceWipe)

	// 快照中的密码加密存储, 执行器收到明文
	assert.True(t, crypto.IsSealed(dep.Config[params.KeyDBRootPass]))
	assert.True(t, crypto.IsSealed(dep.Config[params.KeyAppPass]))

	sent := f.sim.Params(*dep.TrackingToken)
	require.NotNil(t, sent)
	assert.Equal(t, "root-secret", sent[params.KeyDBRootPass])
	assert.Equal(t, "app-secret", sent[params.KeyAppPass])
	assert.Equal(t, constants.DefaultAppUser, sent[params.KeyAppUser])
	assert.Equal(t, constants.DataSizeUseRemaining, sent[params.KeyLVDataSize])
	assert.Equal(t, "50.00", sent[params.KeyMinVGSizeGB])
	assert.Equal(t, "10.0.0.3,10.0.0.1,10.0.0.2", sent[params.KeyTargetHosts])

	stored, err := f.preflights.FindByID(ctx, check.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ConsumedBy)
	assert.Equal(t, dep.ID, *stored.ConsumedBy)
}

func TestSubmit_StandardWaitsForApproval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 100, true)

	resp, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
	require.NoError(t, err)
	assert.Equal(t, constants.DeploymentStatusPendingApproval, resp.Status)

	dep := f.reload(t, resp.DeploymentID)
	assert.Nil(t, dep.TrackingToken)
	assert.Nil(t, f.sim.Params("1"), "executor must not be called")
	assert.Empty(t, f.tracker.Tracked())

	// 默认 65/20/10/5, minCapacity 100
	assert.Equal(t, 20.0, dep.LogsGB)
	assert.Equal(t, 10.0, dep.TmpGB)
	assert.Equal(t, 5.0, dep.GcacheGB)
	assert.Nil(t, dep.DataGB)
	assert.True(t, dep.ForceWipe)
	assert.Equal(t, "true", dep.Config[params.KeyForceWipe])
	assert.Equal(t, "4096M", dep.Config[params.KeyGcacheSize])
}

func TestSubmit_WithTemplate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 20, false)
	tpl := f.seedTemplate(t, "small", constants.TemplateStatusActive, 4, 2, 1)

	req := submitRequest(check.ID)
	req.TemplateID = &tpl.ID
	req.DataGB = floatPtr(10)
	req.CustomParams = map[string]string{"wsrep_slave_threads": "16"}

	resp, err := f.svc.Submit(ctx, req, alice)
	require.NoError(t, err)

	dep := f.reload(t, resp.DeploymentID)
	assert.Equal(t, 4.0, dep.LogsGB)
	assert.Equal(t, 2.0, dep.TmpGB)
	assert.Equal(t, 1.0, dep.GcacheGB)
	require.NotNil(t, dep.DataGB)
	assert.Equal(t, 10.0, *dep.DataGB)
	require.NotNil(t, dep.TemplateName)
	assert.Equal(t, "small", *dep.TemplateName)
	assert.Equal(t, "10.0g", dep.Config[params.KeyLVDataSize])

	galera := dep.Config[params.KeyGaleraConfig]
	assert.Contains(t, galera, `"wsrep_slave_threads": "16"`)
	assert.Contains(t, galera, `"binlog_format": "ROW"`)

	// 请求未指定时沿用模板的缓冲池和连接数
	sqlConfig := dep.Config[params.KeySQLConfig]
	assert.Contains(t, sqlConfig, `"innodb_buffer_pool_size": "2G"`)
	assert.Contains(t, sqlConfig, `"max_connections": "300"`)

	// 请求显式指定时覆盖模板
	override := f.seedPreflight(t, constants.PreflightStatusSuccess, 20, false)
	req = submitRequest(override.ID)
	req.TemplateID = &tpl.ID
	req.BufferPool = "6G"
	req.MaxConnections = 50
	resp, err = f.svc.Submit(ctx, req, alice)
	require.NoError(t, err)

	sqlConfig = f.reload(t, resp.DeploymentID).Config[params.KeySQLConfig]
	assert.Contains(t, sqlConfig, `"innodb_buffer_pool_size": "6G"`)
	assert.Contains(t, sqlConfig, `"max_connections": "50"`)
}

func TestSubmit_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("async node among cluster hosts", func(t *testing.T) {
		f := newFixture(t)
		check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
		req := submitRequest(check.ID)
		req.AsyncNodeIP = "10.0.0.1"
		_, err := f.svc.Submit(ctx, req, alice)
		assert.Equal(t, pkgErrors.CodeValidationError, pkgErrors.CodeOf(err))
	})

	t.Run("bad cluster name", func(t *testing.T) {
		f := newFixture(t)
		check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
		req := submitRequest(check.ID)
		req.ClusterName = "orders-prod"
		_, err := f.svc.Submit(ctx, req, alice)
		assert.Equal(t, pkgErrors.CodeValidationError, pkgErrors.CodeOf(err))
	})

	t.Run("semicolon in custom param", func(t *testing.T) {
		f := newFixture(t)
		check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
		req := submitRequest(check.ID)
		req.CustomParams = map[string]string{"wsrep_provider_options": "a=1;b=2"}
		_, err := f.svc.Submit(ctx, req, alice)
		assert.Equal(t, pkgErrors.CodeValidationError, pkgErrors.CodeOf(err))
	})

	t.Run("preflight missing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Submit(ctx, submitRequest(99), alice)
		assert.Equal(t, pkgErrors.CodeNotFound, pkgErrors.CodeOf(err))
	})

	t.Run("preflight failed", func(t *testing.T) {
		f := newFixture(t)
		check := f.seedPreflight(t, constants.PreflightStatusFailed, 50, false)
		_, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
		assert.Equal(t, pkgErrors.CodeConflict, pkgErrors.CodeOf(err))
	})

	t.Run("hosts differ from preflight", func(t *testing.T) {
		f := newFixture(t)
		check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
		req := submitRequest(check.ID)
		req.Hosts = []string{"10.0.0.1", "10.0.0.2", "10.0.0.9"}
		_, err := f.svc.Submit(ctx, req, alice)
		assert.Equal(t, pkgErrors.CodeValidationError, pkgErrors.CodeOf(err))
	})

	t.Run("insufficient capacity", func(t *testing.T) {
		f := newFixture(t)
		check := f.seedPreflight(t, constants.PreflightStatusSuccess, 5, false)
		_, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
		assert.Equal(t, pkgErrors.CodeCapacityError, pkgErrors.CodeOf(err))
	})

	t.Run("template exceeds capacity", func(t *testing.T) {
		f := newFixture(t)
		check := f.seedPreflight(t, constants.PreflightStatusSuccess, 8, false)
		tpl := f.seedTemplate(t, "big", constants.TemplateStatusActive, 4, 3, 3)
		req := submitRequest(check.ID)
		req.TemplateID = &tpl.ID
		_, err := f.svc.Submit(ctx, req, alice)
		assert.Equal(t, pkgErrors.CodeCapacityError, pkgErrors.CodeOf(err))
	})

	t.Run("template not active", func(t *testing.T) {
		f := newFixture(t)
		check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
		tpl := f.seedTemplate(t, "draft", constants.TemplateStatusPendingApproval, 3, 3, 3)
		req := submitRequest(check.ID)
		req.TemplateID = &tpl.ID
		_, err := f.svc.Submit(ctx, req, alice)
		assert.Equal(t, pkgErrors.CodeValidationError, pkgErrors.CodeOf(err))
	})

	t.Run("nothing persisted on rejection", func(t *testing.T) {
		f := newFixture(t)
		check := f.seedPreflight(t, constants.PreflightStatusSuccess, 5, false)
		_, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
		require.Error(t, err)

		history, err := f.svc.ListHistory(ctx)
		require.NoError(t, err)
		assert.Empty(t, history)
		stored, err := f.preflights.FindByID(ctx, check.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.ConsumedBy)
	})
}

func TestSubmit_PreflightConsumedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)

	_, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, submitRequest(check.ID), bob)
	assert.ErrorIs(t, err, pkgErrors.ErrAlreadyUsed)
}

func TestSubmit_ConcurrentSubmitsShareOnePreflight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)

	const callers = 4
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		used     int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, pkgErrors.ErrAlreadyUsed):
				used++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, callers-1, used)

	history, err := f.svc.ListHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSubmit_TriggerFailureMarksNotBuilt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
	f.sim.SetTriggerError(errors.New("connection refused"))

	_, err := f.svc.Submit(ctx, submitRequest(check.ID), root)
	assert.Equal(t, pkgErrors.CodeExecutorError, pkgErrors.CodeOf(err))

	history, err := f.svc.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, constants.DeploymentStatusNotBuilt, history[0].Status)
	require.NotNil(t, history[0].ErrorMessage)
	assert.Contains(t, *history[0].ErrorMessage, "connection refused")
	assert.NotNil(t, history[0].FinishedAt)
	assert.Empty(t, f.tracker.Tracked())
}

func TestApprove_PeerTriggersFrozenSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)

	submitted, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
	require.NoError(t, err)

	resp, err := f.svc.Approve(ctx, submitted.DeploymentID, bob)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TrackingToken)

	dep := f.reload(t, submitted.DeploymentID)
	assert.Equal(t, constants.DeploymentStatusQueued, dep.Status)
	require.NotNil(t, dep.ApproverEmail)
	assert.Equal(t, bob.Email, *dep.ApproverEmail)
	require.NotNil(t, dep.TrackingToken)
	assert.Equal(t, resp.TrackingToken, *dep.TrackingToken)
	assert.Equal(t, []int64{dep.ID}, f.tracker.Tracked())

	frozen, err := f.sealer.OpenKeys(dep.Config, params.SecretKeys...)
	require.NoError(t, err)
	assert.Equal(t, frozen, f.sim.Params(resp.TrackingToken))
}

func TestApprove_Guards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
	submitted, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
	require.NoError(t, err)

	// 邮箱大小写不同也视为本人
	sameRequester := auth.Principal{Email: " ALICE@example.com", Role: string(auth.RoleUser)}
	_, err = f.svc.Approve(ctx, submitted.DeploymentID, sameRequester)
	assert.ErrorIs(t, err, pkgErrors.ErrSelfReview)

	_, err = f.svc.Approve(ctx, 999, bob)
	assert.Equal(t, pkgErrors.CodeNotFound, pkgErrors.CodeOf(err))

	require.NoError(t, f.svc.Reject(ctx, submitted.DeploymentID, bob))
	_, err = f.svc.Approve(ctx, submitted.DeploymentID, bob)
	assert.Equal(t, pkgErrors.CodeConflict, pkgErrors.CodeOf(err))
}

func TestApprove_TriggerFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
	submitted, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
	require.NoError(t, err)

	f.sim.SetTriggerError(errors.New("503 from executor"))
	_, err = f.svc.Approve(ctx, submitted.DeploymentID, bob)
	assert.Equal(t, pkgErrors.CodeExecutorError, pkgErrors.CodeOf(err))

	dep := f.reload(t, submitted.DeploymentID)
	assert.Equal(t, constants.DeploymentStatusPendingApproval, dep.Status)
	assert.Nil(t, dep.ApproverEmail)

	// 执行器恢复后可以再次审批
	f.sim.SetTriggerError(nil)
	_, err = f.svc.Approve(ctx, submitted.DeploymentID, bob)
	require.NoError(t, err)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
	submitted, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Reject(ctx, submitted.DeploymentID, alice), pkgErrors.ErrSelfReview)
	require.NoError(t, f.svc.Reject(ctx, submitted.DeploymentID, bob))

	dep := f.reload(t, submitted.DeploymentID)
	assert.Equal(t, constants.DeploymentStatusRejected, dep.Status)
	require.NotNil(t, dep.ApproverEmail)
	assert.Equal(t, bob.Email, *dep.ApproverEmail)
	assert.NotNil(t, dep.FinishedAt)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
	submitted, err := f.svc.Submit(ctx, submitRequest(check.ID), root)
	require.NoError(t, err)

	// 推进到 RUNNING
	dep := f.reload(t, submitted.DeploymentID)
	_, err = f.sm.Process(ctx, dep)
	require.NoError(t, err)
	dep = f.reload(t, submitted.DeploymentID)
	require.Equal(t, constants.DeploymentStatusRunning, dep.Status)
	require.NotNil(t, dep.ExecutionID)

	err = f.svc.Cancel(ctx, dep.ID, alice)
	assert.Equal(t, pkgErrors.CodeForbidden, pkgErrors.CodeOf(err))

	require.NoError(t, f.svc.Cancel(ctx, dep.ID, root))

	dep = f.reload(t, dep.ID)
	assert.Equal(t, constants.DeploymentStatusCancelled, dep.Status)
	require.NotNil(t, dep.ApproverEmail)
	assert.Equal(t, root.Email, *dep.ApproverEmail)

	state, err := f.sim.QueryExecution(ctx, dep.JobName, *dep.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, constants.ExecutorResultAborted, state.Result, "build should have been stopped")

	err = f.svc.Cancel(ctx, dep.ID, root)
	assert.Equal(t, pkgErrors.CodeConflict, pkgErrors.CodeOf(err))
}

func TestCancel_StopFailureStillCancels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
	submitted, err := f.svc.Submit(ctx, submitRequest(check.ID), root)
	require.NoError(t, err)

	dep := f.reload(t, submitted.DeploymentID)
	_, err = f.sm.Process(ctx, dep)
	require.NoError(t, err)
	require.Equal(t, constants.DeploymentStatusRunning, f.reload(t, dep.ID).Status)

	f.sim.SetStopError(errors.New("executor offline"))
	require.NoError(t, f.svc.Cancel(ctx, dep.ID, root))

	dep = f.reload(t, dep.ID)
	assert.Equal(t, constants.DeploymentStatusCancelled, dep.Status)
	require.NotNil(t, dep.ApproverEmail)
	assert.Equal(t, root.Email, *dep.ApproverEmail)
	assert.NotNil(t, dep.FinishedAt)
}

func TestCancel_QueuedWithdrawsQueueItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
	submitted, err := f.svc.Submit(ctx, submitRequest(check.ID), root)
	require.NoError(t, err)

	dep := f.reload(t, submitted.DeploymentID)
	require.Equal(t, constants.DeploymentStatusQueued, dep.Status)
	require.NotNil(t, dep.TrackingToken)

	require.NoError(t, f.svc.Cancel(ctx, dep.ID, root))
	assert.Equal(t, constants.DeploymentStatusCancelled, f.reload(t, dep.ID).Status)

	q, err := f.sim.QueryQueued(ctx, *dep.TrackingToken)
	require.NoError(t, err)
	assert.Equal(t, executor.QueueCancelled, q.Phase)
}

func TestBindToken_CancelledMeanwhileWithdrawsQueueItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
	submitted, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
	require.NoError(t, err)
	dep := f.reload(t, submitted.DeploymentID)

	// 审批已触发构建, 但写回 token 之前部署被取消
	token, err := f.sim.Trigger(ctx, dep.JobName, nil)
	require.NoError(t, err)
	applied, err := f.deployments.Transition(ctx, dep.ID,
		[]string{constants.DeploymentStatusPendingApproval}, constants.DeploymentStatusCancelled, nil)
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, f.svc.(*deploymentService).bindToken(ctx, dep, token))

	stored := f.reload(t, dep.ID)
	assert.Equal(t, constants.DeploymentStatusCancelled, stored.Status)
	assert.Nil(t, stored.TrackingToken)

	q, err := f.sim.QueryQueued(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, executor.QueueCancelled, q.Phase)
}

func TestCancel_PendingIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
	submitted, err := f.svc.Submit(ctx, submitRequest(check.ID), alice)
	require.NoError(t, err)

	err = f.svc.Cancel(ctx, submitted.DeploymentID, root)
	assert.Equal(t, pkgErrors.CodeConflict, pkgErrors.CodeOf(err))

	err = f.svc.Cancel(ctx, 404, root)
	assert.Equal(t, pkgErrors.CodeNotFound, pkgErrors.CodeOf(err))
}

func TestHistoryAndLogs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ids []int64
	for i := 0; i < 3; i++ {
		check := f.seedPreflight(t, constants.PreflightStatusSuccess, 50, false)
		resp, err := f.svc.Submit(ctx, submitRequest(check.ID), root)
		require.NoError(t, err)
		ids = append(ids, resp.DeploymentID)
	}

	history, err := f.svc.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ids[2], history[0].ID)
	assert.Equal(t, ids[0], history[2].ID)

	_, err = f.svc.FetchLog(ctx, ids[0])
	assert.Equal(t, pkgErrors.CodeNotFound, pkgErrors.CodeOf(err), "no execution bound yet")

	dep := f.reload(t, ids[0])
	_, err = f.sm.Process(ctx, dep)
	require.NoError(t, err)

	logs, err := f.svc.FetchLog(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(logs.Logs, "[simulator]"))

	got, err := f.svc.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, constants.DeploymentStatusRunning, got.Status)
	assert.Equal(t, "10.0g", got.LogsSize)
}
