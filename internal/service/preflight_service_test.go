package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/core/params"
	"galera-cd/internal/dto"
	"galera-cd/internal/model"
	"galera-cd/internal/pkg/database/dbtest"
	"galera-cd/internal/repository"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
)

func newPreflightService(t *testing.T) (PreflightService, repository.PreflightRepository, *executor.Simulator) {
	t.Helper()
	repo := repository.NewPreflightRepository(dbtest.Open(t))
	sim := executor.NewSimulator()
	return NewPreflightService(repo, sim, "galera-preflight", zap.NewNop()), repo, sim
}

func TestPreflightStart(t *testing.T) {
	ctx := context.Background()
	svc, repo, sim := newPreflightService(t)

	resp, err := svc.Start(ctx, &dto.StartPreflightRequest{Hosts: clusterHosts, AsyncNodeIP: asyncHost}, alice)
	require.NoError(t, err)
	assert.Equal(t, constants.PreflightStatusRunning, resp.Status)

	stored, err := repo.FindByID(ctx, resp.PreflightID)
	require.NoError(t, err)
	require.NotNil(t, stored.TrackingToken)
	assert.Equal(t, alice.Email, stored.RequesterEmail)
	assert.Equal(t, "10.0.0.1,10.0.0.2,10.0.0.3", stored.TargetHosts)

	sent := sim.Params(*stored.TrackingToken)
	require.NotNil(t, sent)
	assert.Equal(t, asyncHost, sent[params.KeyAsyncHost])
	assert.Equal(t, "1", sent[params.KeyPreflightID])
}

func TestPreflightStart_TriggerFailure(t *testing.T) {
	ctx := context.Background()
	svc, repo, sim := newPreflightService(t)
	sim.SetTriggerError(errors.New("connection refused"))

	_, err := svc.Start(ctx, &dto.StartPreflightRequest{Hosts: clusterHosts, AsyncNodeIP: asyncHost}, alice)
	require.Error(t, err)
	assert.Equal(t, pkgErrors.CodeExecutorError, pkgErrors.CodeOf(err))

	stored, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, constants.PreflightStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "Failed to trigger executor: connection refused", *stored.ErrorMessage)
	assert.NotNil(t, stored.CompletedAt)
}

func TestPreflightStart_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _, sim := newPreflightService(t)

	cases := map[string]*dto.StartPreflightRequest{
		"two hosts":      {Hosts: []string{"10.0.0.1", "10.0.0.2"}, AsyncNodeIP: asyncHost},
		"duplicate host": {Hosts: []string{"10.0.0.1", "10.0.0.1", "10.0.0.2"}, AsyncNodeIP: asyncHost},
		"not an ip":      {Hosts: []string{"10.0.0.1", "10.0.0.2", "db3"}, AsyncNodeIP: asyncHost},
		"async in hosts": {Hosts: clusterHosts, AsyncNodeIP: "10.0.0.2"},
		"missing async":  {Hosts: clusterHosts},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Start(ctx, req, alice)
			assert.Equal(t, pkgErrors.CodeValidationError, pkgErrors.CodeOf(err))
		})
	}
	assert.Nil(t, sim.Params("1"), "executor must not be called")
}

func TestPreflightComplete(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newPreflightService(t)

	resp, err := svc.Start(ctx, &dto.StartPreflightRequest{Hosts: clusterHosts, AsyncNodeIP: asyncHost}, alice)
	require.NoError(t, err)

	t.Run("unknown id", func(t *testing.T) {
		err := svc.Complete(ctx, 404, &dto.CompletePreflightRequest{Status: constants.PreflightStatusSuccess})
		assert.Equal(t, pkgErrors.CodeNotFound, pkgErrors.CodeOf(err))
	})

	t.Run("bad status", func(t *testing.T) {
		err := svc.Complete(ctx, resp.PreflightID, &dto.CompletePreflightRequest{Status: "DONE"})
		assert.Equal(t, pkgErrors.CodeValidationError, pkgErrors.CodeOf(err))
	})

	results := []model.NodeResult{
		{IP: "10.0.0.1", Hostname: "db1", Status: "OK", ExpectedVGGB: 80},
		{IP: "10.0.0.2", Hostname: "db2", Status: "OK", ExpectedVGGB: 90},
		{IP: "10.0.0.3", Hostname: "db3", Status: "OK", ExpectedVGGB: 70},
	}
	require.NoError(t, svc.Complete(ctx, resp.PreflightID, &dto.CompletePreflightRequest{
		Status:  constants.PreflightStatusSuccess,
		Results: results,
	}))

	got, err := svc.Get(ctx, resp.PreflightID)
	require.NoError(t, err)
	assert.Equal(t, constants.PreflightStatusSuccess, got.Status)
	assert.Len(t, got.Results, 3)
	assert.NotNil(t, got.CompletedAt)

	// 被部署消费后不能再回写
	ok, err := repo.TryConsume(ctx, resp.PreflightID, 7)
	require.NoError(t, err)
	require.True(t, ok)

	err = svc.Complete(ctx, resp.PreflightID, &dto.CompletePreflightRequest{Status: constants.PreflightStatusFailed})
	assert.Equal(t, pkgErrors.CodeConflict, pkgErrors.CodeOf(err))

	got, err = svc.Get(ctx, resp.PreflightID)
	require.NoError(t, err)
	assert.Equal(t, constants.PreflightStatusSuccess, got.Status)
}

func TestPreflightGet_NotFound(t *testing.T) {
	svc, _, _ := newPreflightService(t)
	_, err := svc.Get(context.Background(), 12)
	assert.ErrorIs(t, err, pkgErrors.ErrNotFound)
}
