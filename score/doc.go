// Package score provides the relevance signals used by retrieval and topic
// tracking: an Okapi BM25 lexical scorer with CJK-aware tokenization, a
// pluggable dense similarity provider with metric normalization, and the
// blender that folds both signals into a single [0,1] score.
package score
