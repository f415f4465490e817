// Package jsonpatch computes RFC 6902 patches between two JSON documents.
package jsonpatch

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"permit-engine/internal/model"
)

// Between marshals from and to and returns the patch turning the first
// document into the second.
func Between(from, to any) ([]model.PatchOperation, error) {
	a, err := normalize(from)
	if err != nil {
		return nil, fmt.Errorf("jsonpatch: source: %w", err)
	}
	b, err := normalize(to)
	if err != nil {
		return nil, fmt.Errorf("jsonpatch: target: %w", err)
	}
	ops := Diff(a, b, "")
	if ops == nil {
		ops = []model.PatchOperation{}
	}
	return ops, nil
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Diff computes the operations transforming a into b. Both must be decoded
// JSON (maps, slices and scalars). Object keys are visited in sorted order so
// the output is stable.
func Diff(a, b any, path string) []model.PatchOperation {
	if a == nil && b == nil {
		return nil
	}
	if a == nil || b == nil {
		return []model.PatchOperation{replaceOp(path, b)}
	}

	aMap, aIsMap := a.(map[string]any)
	bMap, bIsMap := b.(map[string]any)
	if aIsMap && bIsMap {
		return diffObjects(aMap, bMap, path)
	}

	aArr, aIsArr := a.([]any)
	bArr, bIsArr := b.([]any)
	if aIsArr && bIsArr {
		return diffArrays(aArr, bArr, path)
	}

	if aIsMap || bIsMap || aIsArr || bIsArr || a != b {
		return []model.PatchOperation{replaceOp(path, b)}
	}
	return nil
}

func diffObjects(a, b map[string]any, path string) []model.PatchOperation {
	var ops []model.PatchOperation

	for _, k := range sortedKeys(a) {
		if _, ok := b[k]; !ok {
			ops = append(ops, removeOp(path+"/"+escapeKey(k)))
		}
	}

	for _, k := range sortedKeys(b) {
		childPath := path + "/" + escapeKey(k)
		av, inA := a[k]
		if !inA {
			ops = append(ops, addOp(childPath, b[k]))
			continue
		}
		ops = append(ops, Diff(av, b[k], childPath)...)
	}
	return ops
}

func diffArrays(a, b []any, path string) []model.PatchOperation {
	var ops []model.PatchOperation

	common := min(len(a), len(b))
	for i := 0; i < common; i++ {
		ops = append(ops, Diff(a[i], b[i], path+"/"+strconv.Itoa(i))...)
	}

	// Trailing removals go last-first so earlier indices stay valid.
	for i := len(a) - 1; i >= common; i-- {
		ops = append(ops, removeOp(path+"/"+strconv.Itoa(i)))
	}
	for i := common; i < len(b); i++ {
		ops = append(ops, addOp(path+"/"+strconv.Itoa(i), b[i]))
	}
	return ops
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func replaceOp(path string, value any) model.PatchOperation {
	return model.PatchOperation{Op: model.PatchReplace, Path: path, Value: value}
}

func addOp(path string, value any) model.PatchOperation {
	return model.PatchOperation{Op: model.PatchAdd, Path: path, Value: value}
}

func removeOp(path string) model.PatchOperation {
	return model.PatchOperation{Op: model.PatchRemove, Path: path}
}

// escapeKey escapes a JSON Pointer token per RFC 6901.
func escapeKey(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	s = strings.ReplaceAll(s, "/", "~1")
	return s
}
