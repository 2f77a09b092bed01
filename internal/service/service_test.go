package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/core/capacity"
	"galera-cd/internal/core/deployment"
	"galera-cd/internal/model"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/pkg/crypto"
	"galera-cd/internal/pkg/database/dbtest"
	"galera-cd/internal/repository"
)

var (
	alice = auth.Principal{Email: "alice@example.com", Name: "Alice", Role: string(auth.RoleUser)}
	bob   = auth.Principal{Email: "bob@example.com", Name: "Bob", Role: string(auth.RoleUser)}
	root  = auth.Principal{Email: "root@example.com", Name: "Root", Role: string(auth.RoleSuperUser)}

	clusterHosts = []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	asyncHost    = "10.0.0.4"
)

type recordingTracker struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recordingTracker) Track(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return true
}

func (r *recordingTracker) Tracked() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.ids...)
}

type fixture struct {
	db          *gorm.DB
	deployments repository.DeploymentRepository
	preflights  repository.PreflightRepository
	templates   repository.TemplateRepository
	sim         *executor.Simulator
	sm          *deployment.StateMachine
	tracker     *recordingTracker
	sealer      *crypto.Sealer
	svc         DeploymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.Open(t)
	f := &fixture{
		db:          db,
		deployments: repository.NewDeploymentRepository(db),
		preflights:  repository.NewPreflightRepository(db),
		templates:   repository.NewTemplateRepository(db),
		sim:         executor.NewSimulator(),
		tracker:     &recordingTracker{},
	}

	sealer, err := crypto.NewSealer("service-test-key")
	require.NoError(t, err)
	f.sealer = sealer

	f.sm = deployment.NewDeploymentStateMachine(f.deployments, f.sim, nil, zap.NewNop())
	f.svc = NewDeploymentService(DeploymentDeps{
		DB:          db,
		Deployments: f.deployments,
		Preflights:  f.preflights,
		Templates:   f.templates,
		Executor:    f.sim,
		Transitions: f.sm,
		Tracker:     f.tracker,
		Sealer:      sealer,
		Resolver:    capacity.NewResolver(0),
		JobName:     "galera-deploy",
		Logger:      zap.NewNop(),
	})
	return f
}

// seedPreflight 写入一条已完成的预检, 每个节点的 VG 容量为 vgGB
func (f *fixture) seedPreflight(t *testing.T, status string, vgGB float64, existingMySQL bool) *model.PreflightCheck {
	t.Helper()
	results := make(datatypes.JSONSlice[model.NodeResult], 0, len(clusterHosts))
	for i, h := range clusterHosts {
		results = append(results, model.NodeResult{
			IP:               h,
			Hostname:         fmt.Sprintf("db%d", i+1),
			Status:           "OK",
			ExpectedVGGB:     model.FlexFloat(vgGB + float64(i)),
			HasExistingMySQL: existingMySQL && i == 0,
		})
	}
	check := &model.PreflightCheck{
		TargetHosts:    "10.0.0.1,10.0.0.2,10.0.0.3",
		AsyncNode:      asyncHost,
		Status:         status,
		Results:        results,
		RequesterEmail: alice.Email,
	}
	require.NoError(t, f.preflights.Create(context.Background(), check))
	return check
}

func (f *fixture) seedTemplate(t *testing.T, name, status string, logs, tmp, gcache float64) *model.Template {
	t.Helper()
	tpl := &model.Template{
		Name:           name,
		BufferPool:     "2G",
		MaxConnections: 300,
		CustomParams:   model.StringMap{"wsrep_slave_threads": "8", "binlog_format": "MIXED"},
		LogsGB:         logs,
		TmpGB:          tmp,
		GcacheGB:       gcache,
		Status:         status,
		CreatedBy:      bob.Email,
	}
	require.NoError(t, f.templates.Create(context.Background(), tpl))
	return tpl
}

func (f *fixture) reload(t *testing.T, id int64) *model.Deployment {
	t.Helper()
	dep, err := f.deployments.FindByID(context.Background(), id)
	require.NoError(t, err)
	return dep
}

func strPtr(s string) *string     { return &s }
func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }
