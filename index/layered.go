package index

import (
	"github.com/BaSui01/contextflow/score"
	"github.com/BaSui01/contextflow/types"
)

// Snapshot 是分层索引的一次不可变读取视图：一组节点加上按需构建的
// 每层 BM25 统计。节点一经持久化不再变化，因此快照可以与写入者并发
// 使用而无需加锁。
type Snapshot struct {
	SessionKey string
	Nodes      []types.ContextNode

	params score.BM25Params
	layers [3]*score.BM25
}

// NewSnapshot 用给定节点构建快照。
func NewSnapshot(sessionKey string, nodes []types.ContextNode, params score.BM25Params) *Snapshot {
	return &Snapshot{
		SessionKey: sessionKey,
		Nodes:      nodes,
		params:     params,
	}
}

// Len 返回节点数。
func (s *Snapshot) Len() int {
	return len(s.Nodes)
}

// Layer 返回某一层的 BM25 索引，首次访问时构建。
// 检索通常止步于 L0/L1，惰性构建避免为每次查询付出 L2 全文的代价。
func (s *Snapshot) Layer(l types.Layer) *score.BM25 {
	if l < types.LayerAbstract || l > types.LayerTranscript {
		l = types.LayerTranscript
	}
	if s.layers[l] == nil {
		docs := make([]string, len(s.Nodes))
		for i := range s.Nodes {
			docs[i] = s.Nodes[i].LayerText(l)
		}
		s.layers[l] = score.NewBM25(docs, s.params)
	}
	return s.layers[l]
}
