package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"galera-cd/internal/adapter/executor"
	"galera-cd/internal/core/params"
	"galera-cd/internal/dto"
	"galera-cd/internal/model"
	"galera-cd/internal/pkg/auth"
	"galera-cd/internal/repository"
	"galera-cd/pkg/constants"
	pkgErrors "galera-cd/pkg/errors"
	"galera-cd/pkg/utils"
)

// PreflightService 预检登记
type PreflightService interface {
	Start(ctx context.Context, req *dto.StartPreflightRequest, principal auth.Principal) (*dto.StartPreflightResponse, error)
	Get(ctx context.Context, id int64) (*dto.PreflightResponse, error)
	Complete(ctx context.Context, id int64, req *dto.CompletePreflightRequest) error
}

type preflightService struct {
	repo     repository.PreflightRepository
	executor executor.Executor
	jobName  string
	logger   *zap.Logger
}

// NewPreflightService 创建预检服务
func NewPreflightService(repo repository.PreflightRepository, exec executor.Executor, jobName string, logger *zap.Logger) PreflightService {
	return &preflightService{
		repo:     repo,
		executor: exec,
		jobName:  jobName,
		logger:   logger,
	}
}

// Start 创建 RUNNING 记录并触发预检 job. 触发失败时记录转为 FAILED
func (s *preflightService) Start(ctx context.Context, req *dto.StartPreflightRequest, principal auth.Principal) (*dto.StartPreflightResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := validateTopology(req.Hosts, req.AsyncNodeIP); err != nil {
		return nil, err
	}

	check := &model.PreflightCheck{
		TargetHosts:    strings.Join(req.Hosts, ","),
		AsyncNode:      req.AsyncNodeIP,
		Status:         constants.PreflightStatusRunning,
		RequesterEmail: principal.Email,
	}
	if err := s.repo.Create(ctx, check); err != nil {
		return nil, err
	}

	log := s.logger.With(zap.Int64("preflight_id", check.ID)).Sugar()

	token, err := s.executor.Trigger(ctx, s.jobName, params.Preflight(req.Hosts, req.AsyncNodeIP, check.ID))
	if err != nil {
		log.Errorf("触发预检失败: %v", err)
		if _, markErr := s.repo.MarkFailed(ctx, check.ID, "Failed to trigger executor: "+err.Error()); markErr != nil {
			log.Errorf("标记预检失败出错: %v", markErr)
		}
		return nil, pkgErrors.Executor("触发预检失败", err)
	}

	if err := s.repo.SetTrackingToken(ctx, check.ID, token); err != nil {
		log.Warnf("保存排队 token 失败: %v", err)
	}
	log.Infof("预检已启动: hosts=%s async=%s token=%s", check.TargetHosts, check.AsyncNode, token)

	return &dto.StartPreflightResponse{
		Message:     "Preflight check started",
		PreflightID: check.ID,
		Status:      constants.PreflightStatusRunning,
	}, nil
}

// Get 预检详情
func (s *preflightService) Get(ctx context.Context, id int64) (*dto.PreflightResponse, error) {
	check, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pkgErrors.ErrNotFound) {
			return nil, pkgErrors.NotFound("预检 %d 不存在", id)
		}
		return nil, err
	}
	return dto.NewPreflightResponse(check), nil
}

// Complete 执行器回调. 已被部署消费的预检不允许再改写
func (s *preflightService) Complete(ctx context.Context, id int64, req *dto.CompletePreflightRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}

	check, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, pkgErrors.ErrNotFound) {
			return pkgErrors.NotFound("预检 %d 不存在", id)
		}
		return err
	}

	ok, err := s.repo.Complete(ctx, id, req.Status, req.Results, req.ErrorMessage)
	if err != nil {
		return err
	}
	if !ok {
		return pkgErrors.Conflict("预检 %d 已被部署 %d 使用, 不能再更新结果", id, derefID(check.ConsumedBy))
	}

	s.logger.Info("预检结果已保存",
		zap.Int64("preflight_id", id),
		zap.String("status", req.Status),
		zap.Int("nodes", len(req.Results)))
	return nil
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
