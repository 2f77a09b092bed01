package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"galera-cd/internal/pkg/config"
	pkgErrors "galera-cd/pkg/errors"
)

var queueItemPattern = regexp.MustCompile(`/item/(\d+)/?`)

// maxLogBytes 单次拉取日志上限
const maxLogBytes = 8 << 20

type credentials struct {
	user  string
	token string
}

// Jenkins 基于 Jenkins REST API 的执行器
type Jenkins struct {
	baseURL    string
	operator   credentials
	viewer     credentials
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewJenkins 创建 Jenkins 执行器
func NewJenkins(cfg *config.ExecutorConfig) (*Jenkins, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("executor.base_url 不能为空")
	}

	viewer := credentials{user: cfg.ViewerUser, token: cfg.ViewerToken}
	if viewer.user == "" {
		viewer = credentials{user: cfg.User, token: cfg.Token}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Jenkins{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		operator: credentials{user: cfg.User, token: cfg.Token},
		viewer:   viewer,
		httpClient: &http.Client{
			Timeout: cfg.TimeoutDuration(),
		},
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

// jobPath 支持文件夹形式的 job 名: a/b -> /job/a/job/b
func jobPath(job string) string {
	parts := strings.Split(strings.Trim(job, "/"), "/")
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("/job/")
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

func (j *Jenkins) do(ctx context.Context, method, path string, query url.Values, cred credentials) (*http.Response, error) {
	if err := j.limiter.Wait(ctx); err != nil {
		return nil, pkgErrors.Executor("等待执行器限流失败", err)
	}

	target := j.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, pkgErrors.Executor("构造执行器请求失败", err)
	}
	if cred.user != "" {
		req.SetBasicAuth(cred.user, cred.token)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, pkgErrors.Executor("请求执行器失败", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, pkgErrors.Executor(fmt.Sprintf("执行器返回 %d", resp.StatusCode), fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}
	return resp, nil
}

// Trigger 触发带参数构建, 排队 token 取自 Location 头
func (j *Jenkins) Trigger(ctx context.Context, job string, params map[string]string) (string, error) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}

	resp, err := j.do(ctx, http.MethodPost, jobPath(job)+"/buildWithParameters", query, j.operator)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", pkgErrors.Executor(fmt.Sprintf("触发 %s 失败 (状态码: %d)", job, resp.StatusCode), fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	location := resp.Header.Get("Location")
	m := queueItemPattern.FindStringSubmatch(location)
	if m == nil {
		return "", pkgErrors.Executor(fmt.Sprintf("触发 %s 未返回排队信息", job), fmt.Errorf("location=%q", location))
	}
	return m[1], nil
}

// QueryQueued 查询排队项, 404 表示排队项已过期被清理
func (j *Jenkins) QueryQueued(ctx context.Context, token string) (QueueState, error) {
	resp, err := j.do(ctx, http.MethodGet, "/queue/item/"+url.PathEscape(token)+"/api/json", nil, j.operator)
	if err != nil {
		return QueueState{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return QueueState{Phase: QueueNotFound}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return QueueState{}, pkgErrors.Executor(fmt.Sprintf("查询排队项 %s 失败 (状态码: %d)", token, resp.StatusCode), nil)
	}

	var item struct {
		Cancelled  bool `json:"cancelled"`
		Executable *struct {
			Number int64 `json:"number"`
		} `json:"executable"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return QueueState{}, pkgErrors.Executor("解析排队项失败", err)
	}

	switch {
	case item.Cancelled:
		return QueueState{Phase: QueueCancelled}, nil
	case item.Executable != nil && item.Executable.Number > 0:
		return QueueState{Phase: QueueAssigned, ExecutionID: item.Executable.Number}, nil
	default:
		return QueueState{Phase: QueuePending}, nil
	}
}

// QueryExecution 查询构建, 404 视为构建已不存在
func (j *Jenkins) QueryExecution(ctx context.Context, job string, id int64) (ExecutionState, error) {
	resp, err := j.do(ctx, http.MethodGet, jobPath(job)+"/"+strconv.FormatInt(id, 10)+"/api/json", nil, j.operator)
	if err != nil {
		return ExecutionState{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ExecutionState{Phase: ExecutionNotFound}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return ExecutionState{}, pkgErrors.Executor(fmt.Sprintf("查询构建 %s#%d 失败 (状态码: %d)", job, id, resp.StatusCode), nil)
	}

	var build struct {
		Building bool    `json:"building"`
		Result   *string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&build); err != nil {
		return ExecutionState{}, pkgErrors.Executor("解析构建信息失败", err)
	}

	if build.Building {
		return ExecutionState{Phase: ExecutionInProgress}, nil
	}
	state := ExecutionState{Phase: ExecutionFinished}
	if build.Result != nil {
		state.Result = *build.Result
	}
	return state, nil
}

// Dequeue 取消排队项
func (j *Jenkins) Dequeue(ctx context.Context, token string) error {
	resp, err := j.do(ctx, http.MethodPost, "/queue/cancelItem", url.Values{"id": {token}}, j.operator)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return pkgErrors.Executor(fmt.Sprintf("取消排队项 %s 失败 (状态码: %d)", token, resp.StatusCode), nil)
	}
	return nil
}

// Stop 停止构建
func (j *Jenkins) Stop(ctx context.Context, job string, id int64) error {
	resp, err := j.do(ctx, http.MethodPost, jobPath(job)+"/"+strconv.FormatInt(id, 10)+"/stop", nil, j.operator)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return pkgErrors.Executor(fmt.Sprintf("停止构建 %s#%d 失败 (状态码: %d)", job, id, resp.StatusCode), nil)
	}
	return nil
}

// FetchLog 使用只读账号拉取控制台日志
func (j *Jenkins) FetchLog(ctx context.Context, job string, id int64) (string, error) {
	resp, err := j.do(ctx, http.MethodGet, jobPath(job)+"/"+strconv.FormatInt(id, 10)+"/consoleText", nil, j.viewer)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", pkgErrors.NotFound("构建 %s#%d 日志不存在", job, id)
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgErrors.Executor(fmt.Sprintf("拉取日志失败 (状态码: %d)", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLogBytes))
	if err != nil {
		return "", pkgErrors.Executor("读取日志失败", err)
	}
	return string(body), nil
}
