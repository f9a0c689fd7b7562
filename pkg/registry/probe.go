package registry

import (
	"context"
	"sort"

	"github.com/hewenyu/modularity/pkg/events"
	"github.com/hewenyu/modularity/pkg/model"
	"go.uber.org/zap"
)

// ProbeTarget 一次健康检查需要的服务信息
type ProbeTarget struct {
	ID       string
	Location string
}

// ProbeTargets 返回所有http模式服务的ID和location，按ID排序
func (r *Registry) ProbeTargets() []ProbeTarget {
	r.mu.RLock()
	out := make([]ProbeTarget, 0, len(r.services))
	for _, svc := range r.services {
		if svc.Mode != model.ModeHTTP {
			continue
		}
		out = append(out, ProbeTarget{ID: svc.ID, Location: svc.Location})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProbeOutcome 应用探测结果后的服务状态
type ProbeOutcome struct {
	// Applied 为false表示服务在探测期间被注销或以新的location重新注册
	Applied      bool
	Status       model.Status
	FailedChecks int
	Changed      bool
}

// ApplyProbeResult 在一次加锁中应用探测结果
//
// 成功时恢复active并清零失败计数；失败时计数加一，
// 达到maxFailedChecks后置为inactive。
func (r *Registry) ApplyProbeResult(target ProbeTarget, healthy bool, maxFailedChecks int) ProbeOutcome {
	r.mu.Lock()
	svc, ok := r.services[target.ID]
	if !ok || svc.Location != target.Location || svc.Mode != model.ModeHTTP {
		r.mu.Unlock()
		return ProbeOutcome{}
	}

	before := svc.Status
	if healthy {
		svc.Status = model.StatusActive
		svc.FailedChecks = 0
		svc.LastSeen = r.now()
	} else {
		svc.FailedChecks++
		if svc.FailedChecks >= maxFailedChecks {
			svc.Status = model.StatusInactive
		}
	}
	outcome := ProbeOutcome{
		Applied:      true,
		Status:       svc.Status,
		FailedChecks: svc.FailedChecks,
		Changed:      before != svc.Status,
	}
	if outcome.Changed {
		r.persistLocked(context.Background())
	}
	r.mu.Unlock()

	if outcome.Changed {
		r.logger.Info("服务状态变更",
			zap.String("service_id", target.ID),
			zap.String("from", string(before)),
			zap.String("to", string(outcome.Status)),
			zap.Int("failed_checks", outcome.FailedChecks))
		r.publish(events.TopicServiceStatusChanged, target.ID, outcome.Status)
	}
	return outcome
}
