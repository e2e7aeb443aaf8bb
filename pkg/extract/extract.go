// Package extract finds post entities inside arbitrarily nested feed
// payloads.
//
// The feed wraps posts in cards, card groups and other containers whose
// shape changes without notice, so rather than decoding a fixed schema the
// payload is walked as generic JSON and any object that looks like a post is
// yielded.
package extract

import (
	"iter"
	"slices"
)

// IsPost reports whether m carries both a creation timestamp and a text body.
func IsPost(m map[string]any) bool {
	_, hasCreated := m["created_at"]
	_, hasText := m["text"]
	return hasCreated && hasText
}

// Posts walks node depth first and yields every post-shaped object. A post is
// not searched for nested posts; a repost's embedded original is therefore
// part of the repost rather than a separate entity. Object keys are visited in
// sorted order so the sequence is deterministic.
func Posts(node any) iter.Seq[map[string]any] {
	return func(yield func(map[string]any) bool) {
		walk(node, yield)
	}
}

// Collect returns every post in node.
func Collect(node any) []map[string]any {
	return slices.Collect(Posts(node))
}

func walk(node any, yield func(map[string]any) bool) bool {
	switch v := node.(type) {
	case map[string]any:
		if IsPost(v) {
			return yield(v)
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if !walk(v[k], yield) {
				return false
			}
		}
	case []any:
		for _, item := range v {
			if !walk(item, yield) {
				return false
			}
		}
	}
	return true
}
