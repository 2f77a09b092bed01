package constants

// PreflightStatus 预检状态
const (
	PreflightStatusRunning = "RUNNING"
	PreflightStatusSuccess = "SUCCESS"
	PreflightStatusFailed  = "FAILED"
)

// DeploymentStatus 部署状态
const (
	DeploymentStatusPendingApproval = "PENDING_APPROVAL"
	DeploymentStatusQueued          = "QUEUED"
	DeploymentStatusRunning         = "RUNNING"
	DeploymentStatusSuccess         = "SUCCESS"
	DeploymentStatusFailure         = "FAILURE"
	DeploymentStatusRejected        = "REJECTED"
	DeploymentStatusCancelled       = "CANCELLED"
	DeploymentStatusAborted         = "ABORTED"
	DeploymentStatusNotBuilt        = "NOT_BUILT"
)

// DeploymentTerminalStatuses 终态, 一旦进入不再变化
var DeploymentTerminalStatuses = []string{
	DeploymentStatusSuccess,
	DeploymentStatusFailure,
	DeploymentStatusRejected,
	DeploymentStatusCancelled,
	DeploymentStatusAborted,
	DeploymentStatusNotBuilt,
}

// DeploymentActiveStatuses 需要被监控的状态
var DeploymentActiveStatuses = []string{
	DeploymentStatusQueued,
	DeploymentStatusRunning,
}

// IsDeploymentTerminal 是否终态
func IsDeploymentTerminal(status string) bool {
	for _, s := range DeploymentTerminalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// TemplateStatus 模板状态
const (
	TemplateStatusActive          = "ACTIVE"
	TemplateStatusPendingApproval = "PENDING_APPROVAL"
	TemplateStatusRejected        = "REJECTED"
)

// 模板命名后缀
const (
	TemplatePendingEditSuffix = " (Pending Edit)"
	TemplateCopySuffix        = " (Copy)"
)

// 执行器返回的构建结果
const (
	ExecutorResultSuccess  = "SUCCESS"
	ExecutorResultFailure  = "FAILURE"
	ExecutorResultUnstable = "UNSTABLE"
	ExecutorResultAborted  = "ABORTED"
	ExecutorResultNotBuilt = "NOT_BUILT"
)

// 磁盘分配默认值
const (
	DefaultTemplatePartitionGB = 3.0
	DefaultCapacityFloorGB     = 7.0
	DefaultBufferPool          = "1G"
	DefaultMaxConnections      = 100
	DefaultAppUser             = "app_user"
	DataSizeUseRemaining       = "100%FREE"
	HistoryLimit               = 50
)

// JWT 相关
const (
	JWTContextKey  = "jwt_user"
	JWTTypeAccess  = "access"
	JWTTypeRefresh = "refresh"
)

// HTTP Header
const (
	HeaderAuthorization = "Authorization"
	HeaderBearerPrefix  = "Bearer "
	HeaderRequestID     = "X-Request-ID"
	HeaderCallbackToken = "X-Callback-Token"
)
