package registry

import (
	"context"
	"time"

	"github.com/hewenyu/modularity/pkg/model"
	"go.uber.org/zap"
)

// 单次快照写入的超时时间
const saveTimeout = 10 * time.Second

// Restore 从快照存储加载服务表并重建能力索引
//
// 只应在对外提供服务之前调用一次。存储不存在或内容损坏时以空注册表启动，
// 只记录警告，不返回错误。
func (r *Registry) Restore(ctx context.Context) int {
	if r.store == nil {
		return 0
	}

	snapshot, err := r.store.Load(ctx)
	if err != nil {
		r.logger.Warn("加载快照失败，以空注册表启动",
			zap.String("kind", ErrPersistence.String()),
			zap.Error(err))
		snapshot = model.Snapshot{}
	}

	r.mu.Lock()
	r.services = make(map[string]*model.Service, len(snapshot))
	for id, svc := range snapshot {
		if svc == nil || id == "" {
			continue
		}
		svc = svc.Clone()
		svc.ID = id
		svc.Capabilities = dedupe(svc.Capabilities)
		if svc.Metadata == nil {
			svc.Metadata = map[string]any{}
		}
		if svc.Status != model.StatusActive && svc.Status != model.StatusInactive {
			svc.Status = model.StatusActive
		}
		r.services[id] = svc
	}
	r.rebuildIndexLocked()
	n := len(r.services)
	r.mu.Unlock()

	r.logger.Info("已从快照恢复注册表", zap.Int("services", n))
	return n
}

// Snapshot 返回服务表的完整副本
func (r *Registry) Snapshot() model.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Flush 立即写入一次快照，失败时返回错误
func (r *Registry) Flush(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	return r.save(ctx, r.Snapshot())
}

// Close 停止后台写协程并写入最后一次快照，不关闭快照存储
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
	})
	<-r.writerDone
	return nil
}

func (r *Registry) snapshotLocked() model.Snapshot {
	out := make(model.Snapshot, len(r.services))
	for id, svc := range r.services {
		out[id] = svc.Clone()
	}
	return out
}

// persistLocked 在一次变更之后安排快照写入，调用方必须持有写锁
//
// 同步模式下直接在锁内写入；异步模式下只标记为脏，由写协程处理。
// 写入失败只记录日志。
func (r *Registry) persistLocked(ctx context.Context) {
	if r.store == nil {
		return
	}
	if r.syncWrites {
		if err := r.save(ctx, r.snapshotLocked()); err != nil {
			r.logger.Error("写入快照失败",
				zap.String("kind", ErrPersistence.String()),
				zap.Error(err))
		}
		return
	}
	r.markDirty()
}

func (r *Registry) markDirty() {
	select {
	case r.dirty <- struct{}{}:
	default:
		// 已有待写入的标记，写协程会读取最新状态
	}
}

// writeLoop 单一写协程，合并连续的变更，每次写入时重新获取最新快照
func (r *Registry) writeLoop() {
	defer close(r.writerDone)
	for {
		select {
		case <-r.dirty:
			r.flushAsync()
		case <-r.stop:
			select {
			case <-r.dirty:
				r.flushAsync()
			default:
			}
			return
		}
	}
}

func (r *Registry) flushAsync() {
	if err := r.save(context.Background(), r.Snapshot()); err != nil {
		r.logger.Error("写入快照失败",
			zap.String("kind", ErrPersistence.String()),
			zap.Error(err))
	}
}

func (r *Registry) save(ctx context.Context, snapshot model.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	return r.store.Save(ctx, snapshot)
}
