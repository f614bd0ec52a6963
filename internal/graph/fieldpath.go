package graph

import (
	"fmt"
	"strings"
)

// Field paths address values inside a node's structured data document using
// dot notation ("metadata.source.url"). Paths are resolved over nested
// map[string]any trees; every segment except the last must resolve to a map.

func splitPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty field path")
	}
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return nil, fmt.Errorf("field path %q has an empty segment", path)
		}
	}
	return segments, nil
}

// GetField resolves path against data. The second return is false when any
// segment is missing.
func GetField(data map[string]any, path string) (any, bool, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false, err
	}
	current := data
	for i, seg := range segments {
		if current == nil {
			return nil, false, nil
		}
		val, ok := current[seg]
		if !ok {
			return nil, false, nil
		}
		if i == len(segments)-1 {
			return val, true, nil
		}
		next, ok := val.(map[string]any)
		if !ok {
			return nil, false, fmt.Errorf("field path %q: segment %q is not an object", path, seg)
		}
		current = next
	}
	return nil, false, nil
}

// SetField writes value at path, mutating data in place. Intermediate maps are
// not created implicitly: the path must already exist through its parent, so a
// snapshot of the original value is always possible before the write.
func SetField(data map[string]any, path string, value any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("field path %q: node has no data document", path)
	}
	current := data
	for i, seg := range segments {
		if i == len(segments)-1 {
			current[seg] = value
			return nil
		}
		val, ok := current[seg]
		if !ok {
			return fmt.Errorf("field path %q: segment %q does not exist", path, seg)
		}
		next, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("field path %q: segment %q is not an object", path, seg)
		}
		current = next
	}
	return nil
}
