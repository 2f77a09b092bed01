package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"galera-cd/internal/model"
	"galera-cd/internal/pkg/config"
)

// NotificationType 通知类型
type NotificationType string

const (
	NotifyApprovalRequested NotificationType = "approval_requested" // 部署待审批
	NotifyDeployApproved    NotificationType = "deploy_approved"    // 部署已批准
	NotifyDeployRejected    NotificationType = "deploy_rejected"    // 部署被驳回
	NotifyDeployCancelled   NotificationType = "deploy_cancelled"   // 部署被取消
	NotifyDeploySuccess     NotificationType = "deploy_success"     // 构建成功
	NotifyDeployFailed      NotificationType = "deploy_failed"      // 构建失败/中止

	NotifyTemplatePending  NotificationType = "template_pending"  // 模板待审批
	NotifyTemplateApproved NotificationType = "template_approved" // 模板已批准
	NotifyTemplateRejected NotificationType = "template_rejected" // 模板被驳回
)

// NotificationMessage 通知消息
type NotificationMessage struct {
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Extra     map[string]interface{} `json:"extra,omitempty"` // 额外信息
}

// Notifier 通知器接口
type Notifier interface {
	// Send 发送通知
	Send(ctx context.Context, msg *NotificationMessage) error

	// SendDeploymentNotification 发送部署通知
	SendDeploymentNotification(ctx context.Context, dep *model.Deployment, notifyType NotificationType, message string) error

	// SendTemplateNotification 发送模板审批通知
	SendTemplateNotification(ctx context.Context, tpl *model.Template, notifyType NotificationType, message string) error
}

// New 按配置创建通知器, 未启用时只记录日志
func New(cfg *config.NotificationConfig, logger *zap.Logger) Notifier {
	logNotifier := NewLogNotifier(logger)
	if !cfg.Enabled || cfg.Provider != "lark" {
		return logNotifier
	}
	return NewMultiNotifier(logger, logNotifier, NewLarkNotifier(cfg.LarkWebhook, true, logger))
}

// deploymentMessage 部署通知内容, 各通知器共用
func deploymentMessage(dep *model.Deployment, notifyType NotificationType, message string) *NotificationMessage {
	var title, color string
	switch notifyType {
	case NotifyApprovalRequested:
		title = "📝 部署申请待审批"
		color = "orange"
	case NotifyDeployApproved:
		title = "🚀 部署已批准"
		color = "blue"
	case NotifyDeployRejected:
		title = "🚫 部署申请被驳回"
		color = "grey"
	case NotifyDeployCancelled:
		title = "⏹ 部署已取消"
		color = "grey"
	case NotifyDeploySuccess:
		title = "✅ 集群部署成功"
		color = "green"
	case NotifyDeployFailed:
		title = "❌ 集群部署失败"
		color = "red"
	default:
		title = "📢 部署通知"
		color = "grey"
	}

	content := fmt.Sprintf("**集群**: %s\n**节点**: %s (async: %s)\n**申请人**: %s\n**状态**: %s",
		dep.ClusterName, dep.TargetHosts, dep.AsyncNode, dep.RequesterEmail, dep.Status)
	if message != "" {
		content += fmt.Sprintf("\n**消息**: %s", message)
	}

	return &NotificationMessage{
		Type:      notifyType,
		Title:     title,
		Content:   content,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"deployment_id": dep.ID,
			"cluster_name":  dep.ClusterName,
			"color":         color,
		},
	}
}

func templateMessage(tpl *model.Template, notifyType NotificationType, message string) *NotificationMessage {
	var title, color string
	switch notifyType {
	case NotifyTemplatePending:
		title = "📝 模板变更待审批"
		color = "orange"
	case NotifyTemplateApproved:
		title = "✅ 模板变更已批准"
		color = "green"
	case NotifyTemplateRejected:
		title = "🚫 模板变更被驳回"
		color = "grey"
	default:
		title = "📢 模板通知"
		color = "grey"
	}

	content := fmt.Sprintf("**模板**: %s\n**提交人**: %s", tpl.Name, tpl.CreatedBy)
	if message != "" {
		content += fmt.Sprintf("\n**消息**: %s", message)
	}

	return &NotificationMessage{
		Type:      notifyType,
		Title:     title,
		Content:   content,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"template_id": tpl.ID,
			"color":       color,
		},
	}
}

// ============= Lark 通知适配器 =============

// LarkNotifier Lark通知器
type LarkNotifier struct {
	webhookURL string
	enabled    bool
	logger     *zap.Logger
	client     *http.Client
}

// NewLarkNotifier 创建Lark通知器
func NewLarkNotifier(webhookURL string, enabled bool, logger *zap.Logger) *LarkNotifier {
	return &LarkNotifier{
		webhookURL: webhookURL,
		enabled:    enabled,
		logger:     logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send 发送通知
func (n *LarkNotifier) Send(ctx context.Context, msg *NotificationMessage) error {
	if !n.enabled {
		n.logger.Debug("通知已禁用,跳过发送")
		return nil
	}

	if n.webhookURL == "" {
		n.logger.Warn("Lark Webhook URL未配置")
		return nil
	}

	jsonData, err := json.Marshal(n.buildLarkMessage(msg))
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Lark API返回错误状态码: %d", resp.StatusCode)
	}

	n.logger.Info("Lark通知发送成功",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title))

	return nil
}

// SendDeploymentNotification 发送部署通知
func (n *LarkNotifier) SendDeploymentNotification(ctx context.Context, dep *model.Deployment, notifyType NotificationType, message string) error {
	return n.Send(ctx, deploymentMessage(dep, notifyType, message))
}

// SendTemplateNotification 发送模板通知
func (n *LarkNotifier) SendTemplateNotification(ctx context.Context, tpl *model.Template, notifyType NotificationType, message string) error {
	return n.Send(ctx, templateMessage(tpl, notifyType, message))
}

// buildLarkMessage 构建Lark消息格式
func (n *LarkNotifier) buildLarkMessage(msg *NotificationMessage) map[string]interface{} {
	color := "grey"
	if c, ok := msg.Extra["color"].(string); ok {
		color = c
	}

	// Lark富文本消息格式
	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": msg.Title,
				},
				"template": color,
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"tag":     "lark_md",
						"content": msg.Content,
					},
				},
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"tag":     "plain_text",
						"content": fmt.Sprintf("时间: %s", msg.Timestamp.Format("2006-01-02 15:04:05")),
					},
				},
			},
		},
	}
}

// ============= 多通知器 =============

// MultiNotifier 多通知器(支持同时发送到多个渠道)
type MultiNotifier struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMultiNotifier 创建多通知器
func NewMultiNotifier(logger *zap.Logger, notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		notifiers: notifiers,
		logger:    logger,
	}
}

// Send 发送到所有通知器
func (m *MultiNotifier) Send(ctx context.Context, msg *NotificationMessage) error {
	return m.each(func(n Notifier) error { return n.Send(ctx, msg) })
}

// SendDeploymentNotification 发送部署通知到所有通知器
func (m *MultiNotifier) SendDeploymentNotification(ctx context.Context, dep *model.Deployment, notifyType NotificationType, message string) error {
	return m.each(func(n Notifier) error { return n.SendDeploymentNotification(ctx, dep, notifyType, message) })
}

// SendTemplateNotification 发送模板通知到所有通知器
func (m *MultiNotifier) SendTemplateNotification(ctx context.Context, tpl *model.Template, notifyType NotificationType, message string) error {
	return m.each(func(n Notifier) error { return n.SendTemplateNotification(ctx, tpl, notifyType, message) })
}

// each 某个渠道失败不影响其他渠道
func (m *MultiNotifier) each(fn func(Notifier) error) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := fn(notifier); err != nil {
			m.logger.Error("发送通知失败", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// ============= 日志通知器(仅记录日志,不发送实际通知) =============

// LogNotifier 日志通知器
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger,
	}
}

// Send 记录通知到日志
func (n *LogNotifier) Send(ctx context.Context, msg *NotificationMessage) error {
	n.logger.Info("📢 通知",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title),
		zap.String("content", msg.Content),
		zap.Any("extra", msg.Extra))
	return nil
}

// SendDeploymentNotification 记录部署通知到日志
func (n *LogNotifier) SendDeploymentNotification(ctx context.Context, dep *model.Deployment, notifyType NotificationType, message string) error {
	n.logger.Info("📢 部署通知",
		zap.String("type", string(notifyType)),
		zap.Int64("deployment_id", dep.ID),
		zap.String("cluster_name", dep.ClusterName),
		zap.String("status", dep.Status),
		zap.String("message", message))
	return nil
}

// SendTemplateNotification 记录模板通知到日志
func (n *LogNotifier) SendTemplateNotification(ctx context.Context, tpl *model.Template, notifyType NotificationType, message string) error {
	n.logger.Info("📢 模板通知",
		zap.String("type", string(notifyType)),
		zap.Int64("template_id", tpl.ID),
		zap.String("template_name", tpl.Name),
		zap.String("message", message))
	return nil
}
