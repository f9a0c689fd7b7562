package storage

import (
	"encoding/json"

	"github.com/hewenyu/modularity/pkg/model"
)

// EncodeSnapshot 将快照序列化为JSON
func EncodeSnapshot(snapshot model.Snapshot) ([]byte, error) {
	if snapshot == nil {
		snapshot = model.Snapshot{}
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, NewInternalError("序列化快照失败", err)
	}
	return data, nil
}

// DecodeSnapshot 从JSON解析快照，空内容视为空快照
func DecodeSnapshot(data []byte) (model.Snapshot, error) {
	snapshot := model.Snapshot{}
	if len(data) == 0 {
		return snapshot, nil
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, NewCorruptError("解析快照失败", err)
	}

	// 丢弃无法使用的记录，并以键作为ID
	for id, svc := range snapshot {
		if svc == nil || id == "" {
			delete(snapshot, id)
			continue
		}
		svc.ID = id
	}
	return snapshot, nil
}
