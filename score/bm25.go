package score

import (
	"math"
	"strings"
)

// phraseBonus 是查询串在文档中逐字出现时的固定加分。
const phraseBonus = 0.15

// BM25Params BM25 调节参数
type BM25Params struct {
	K1 float64 `json:"k1"` // 词频饱和度 (1.2-2.0)
	B  float64 `json:"b"`  // 文档长度归一化强度 (0.75)
}

// DefaultBM25Params 返回默认参数
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.2, B: 0.75}
}

// BM25 是一个不可变的词法检索索引。
// 构建后对任意查询评分，输出始终落在 [0,1]。
type BM25 struct {
	params BM25Params

	docs      []bm25Doc
	df        map[string]int
	avgDocLen float64
}

// bm25Doc 单篇文档的预计算统计
type bm25Doc struct {
	tf         map[string]int
	length     int
	normalized string // 小写、空白压缩后的原文，用于短语匹配
}

// NewBM25 为文档集构建索引并预计算统计信息。
func NewBM25(documents []string, params BM25Params) *BM25 {
	if params.K1 <= 0 {
		params.K1 = DefaultBM25Params().K1
	}
	if params.B < 0 || params.B > 1 {
		params.B = DefaultBM25Params().B
	}

	idx := &BM25{
		params: params,
		docs:   make([]bm25Doc, len(documents)),
		df:     make(map[string]int),
	}

	totalLen := 0
	for i, content := range documents {
		terms := Tokenize(content)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		idx.docs[i] = bm25Doc{
			tf:         tf,
			length:     len(terms),
			normalized: NormalizeText(content),
		}
		totalLen += len(terms)

		// 统计包含每个词的文档数
		for t := range tf {
			idx.df[t]++
		}
	}

	if len(documents) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(documents))
	}

	return idx
}

// Len 返回索引中的文档数。
func (idx *BM25) Len() int {
	return len(idx.docs)
}

// Score 对单篇文档评分，结果在 [0,1]。
func (idx *BM25) Score(query string, docIndex int) float64 {
	if docIndex < 0 || docIndex >= len(idx.docs) {
		return 0
	}

	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return 0
	}
	queryTF := make(map[string]int, len(queryTerms))
	for _, t := range queryTerms {
		queryTF[t]++
	}

	doc := idx.docs[docIndex]
	docLen := float64(doc.length)

	raw := 0.0
	for term, qtf := range queryTF {
		tf, ok := doc.tf[term]
		if !ok {
			continue
		}

		// BM25 公式
		idf := idx.idf(term)
		lengthNorm := 1.0 - idx.params.B
		if idx.avgDocLen > 0 {
			lengthNorm += idx.params.B * (docLen / idx.avgDocLen)
		}
		tfNorm := float64(tf) * (idx.params.K1 + 1.0) / (float64(tf) + idx.params.K1*lengthNorm)
		queryWeight := 1.0 + math.Log(1.0+float64(qtf))

		raw += idf * tfNorm * queryWeight
	}

	// 饱和归一化到 [0,1]
	normalized := 1.0 - math.Exp(-raw)

	// 逐字短语加分
	normQuery := NormalizeText(query)
	if normQuery != "" && doc.normalized != "" && strings.Contains(doc.normalized, normQuery) {
		normalized += phraseBonus
	}

	return Clamp01(normalized)
}

// ScoreAll 对全部文档评分。
func (idx *BM25) ScoreAll(query string) []float64 {
	scores := make([]float64, len(idx.docs))
	for i := range idx.docs {
		scores[i] = idx.Score(query, i)
	}
	return scores
}

// idf 逆文档频率，始终为正。
func (idx *BM25) idf(term string) float64 {
	n := float64(len(idx.docs))
	df := float64(idx.df[term])
	return math.Log(1.0 + (n-df+0.5)/(df+0.5))
}

// ScorePair 以单文档语料为基础对一对文本评分。
// 话题相关度等只有一个参照文本的场景使用。
func ScorePair(query, document string, params BM25Params) float64 {
	return NewBM25([]string{document}, params).Score(query, 0)
}
