// Package service 提供业务逻辑服务
package service

import "context"

// 通知事件类型
const (
	EventAgreementCreated    = "agreement.created"
	EventAgreementStatus     = "agreement.status_changed"
	EventMilestoneUpdated    = "agreement.milestone_updated"
	EventChangeRequested     = "change_request.created"
	EventChangeRequestMoved  = "change_request.status_changed"
	EventTransactionRecorded = "transaction.recorded"
)

// EventPublisher 通知事件发布接口
//
// 发布即忘: 实现方不得阻塞业务流程，失败只记日志，财务逻辑从不等待。
type EventPublisher interface {
	Publish(ctx context.Context, event string, payload interface{})
}

// NopPublisher 空实现
type NopPublisher struct{}

// Publish 丢弃事件
func (NopPublisher) Publish(ctx context.Context, event string, payload interface{}) {}
