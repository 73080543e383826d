package content

import (
	"fmt"
	"strconv"
	"strings"
)

// PathError reports a patch whose path does not resolve against the tree.
// The tree is never modified when a PathError is returned.
type PathError struct {
	Path   []string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %q: %s", strings.Join(e.Path, "."), e.Reason)
}

func pathErr(path []string, format string, args ...interface{}) error {
	return &PathError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Resolve walks a path of keys (object fields) and decimal indexes (array
// elements) and returns the addressed node.
func Resolve(root *Node, path []string) (*Node, error) {
	cur := root
	for i, seg := range path {
		child, err := childOf(cur, seg)
		if err != nil {
			return nil, pathErr(path[:i+1], "%v", err)
		}
		cur = child
	}
	return cur, nil
}

func childOf(n *Node, seg string) (*Node, error) {
	switch n.Kind() {
	case KindObject:
		c, ok := n.obj[seg]
		if !ok {
			return nil, fmt.Errorf("key %q not found", seg)
		}
		return c, nil
	case KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return nil, fmt.Errorf("segment %q is not an array index", seg)
		}
		if idx < 0 || idx >= len(n.arr) {
			return nil, fmt.Errorf("index %d out of bounds (len %d)", idx, len(n.arr))
		}
		return n.arr[idx], nil
	default:
		return nil, fmt.Errorf("cannot descend into %s node", n.Kind())
	}
}

// rewrite returns a new tree where the node at path has been replaced by the
// result of edit. Nodes along the path are shallow-copied; everything off the
// path is shared with the input tree.
func rewrite(n *Node, path []string, full []string, edit func(*Node) (*Node, error)) (*Node, error) {
	return rewriteAt(n, path, full, 0, edit)
}

func rewriteAt(n *Node, path, full []string, depth int, edit func(*Node) (*Node, error)) (*Node, error) {
	if len(path) == 0 {
		return edit(n)
	}
	seg := path[0]
	switch n.Kind() {
	case KindObject:
		child, ok := n.obj[seg]
		if !ok {
			return nil, pathErr(full[:depth+1], "key %q not found", seg)
		}
		newChild, err := rewriteAt(child, path[1:], full, depth+1, edit)
		if err != nil {
			return nil, err
		}
		obj := make(map[string]*Node, len(n.obj))
		for k, v := range n.obj {
			obj[k] = v
		}
		obj[seg] = newChild
		return &Node{kind: KindObject, obj: obj}, nil
	case KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(n.arr) {
			return nil, pathErr(full[:depth+1], "invalid array index %q", seg)
		}
		newChild, err := rewriteAt(n.arr[idx], path[1:], full, depth+1, edit)
		if err != nil {
			return nil, err
		}
		arr := make([]*Node, len(n.arr))
		copy(arr, n.arr)
		arr[idx] = newChild
		return &Node{kind: KindArray, arr: arr}, nil
	default:
		return nil, pathErr(full[:depth+1], "cannot descend into %s node", n.Kind())
	}
}

// Insert splices item into the array addressed by path when index is given,
// creating the array if the final path segment does not exist yet. Without an
// index, the final path segment names an object field to set.
func Insert(root *Node, path []string, index *int, item *Node) (*Node, error) {
	if item == nil {
		item = Null()
	}
	if index != nil {
		if len(path) == 0 {
			return spliceInto(root, path, *index, item)
		}
		last := path[len(path)-1]
		return rewrite(root, path[:len(path)-1], path, func(parent *Node) (*Node, error) {
			target, err := childForSplice(parent, last, path)
			if err != nil {
				return nil, err
			}
			newTarget, err := spliceInto(target, path, *index, item)
			if err != nil {
				return nil, err
			}
			return replaceChild(parent, last, newTarget, path)
		})
	}
	if len(path) == 0 {
		return nil, pathErr(path, "insert without index requires a field path")
	}
	last := path[len(path)-1]
	return rewrite(root, path[:len(path)-1], path, func(parent *Node) (*Node, error) {
		if parent.Kind() != KindObject {
			return nil, pathErr(path, "parent of %q is %s, not object", last, parent.Kind())
		}
		obj := make(map[string]*Node, len(parent.obj)+1)
		for k, v := range parent.obj {
			obj[k] = v
		}
		obj[last] = item
		return &Node{kind: KindObject, obj: obj}, nil
	})
}

// childForSplice resolves the array a splice targets, tolerating a missing
// object field (a fresh empty array takes its place).
func childForSplice(parent *Node, seg string, path []string) (*Node, error) {
	switch parent.Kind() {
	case KindObject:
		c, ok := parent.obj[seg]
		if !ok {
			return NewArray(), nil
		}
		return c, nil
	case KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(parent.arr) {
			return nil, pathErr(path, "invalid array index %q", seg)
		}
		return parent.arr[idx], nil
	default:
		return nil, pathErr(path, "cannot descend into %s node", parent.Kind())
	}
}

func replaceChild(parent *Node, seg string, child *Node, path []string) (*Node, error) {
	switch parent.Kind() {
	case KindObject:
		obj := make(map[string]*Node, len(parent.obj)+1)
		for k, v := range parent.obj {
			obj[k] = v
		}
		obj[seg] = child
		return &Node{kind: KindObject, obj: obj}, nil
	case KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(parent.arr) {
			return nil, pathErr(path, "invalid array index %q", seg)
		}
		arr := make([]*Node, len(parent.arr))
		copy(arr, parent.arr)
		arr[idx] = child
		return &Node{kind: KindArray, arr: arr}, nil
	default:
		return nil, pathErr(path, "cannot replace child of %s node", parent.Kind())
	}
}

func spliceInto(target *Node, path []string, index int, item *Node) (*Node, error) {
	if target.Kind() != KindArray {
		return nil, pathErr(path, "insert target is %s, not array", target.Kind())
	}
	if index < 0 || index > len(target.arr) {
		return nil, pathErr(path, "insert index %d out of bounds (len %d)", index, len(target.arr))
	}
	arr := make([]*Node, 0, len(target.arr)+1)
	arr = append(arr, target.arr[:index]...)
	arr = append(arr, item)
	arr = append(arr, target.arr[index:]...)
	return &Node{kind: KindArray, arr: arr}, nil
}

// Delete removes the array element at index (path addresses the array) or,
// without an index, the object field named by the final path segment. The
// removed node is returned so callers can record it as the old value.
func Delete(root *Node, path []string, index *int) (*Node, *Node, error) {
	var removed *Node
	if index != nil {
		edit := func(target *Node) (*Node, error) {
			if target.Kind() != KindArray {
				return nil, pathErr(path, "delete target is %s, not array", target.Kind())
			}
			if *index < 0 || *index >= len(target.arr) {
				return nil, pathErr(path, "delete index %d out of bounds (len %d)", *index, len(target.arr))
			}
			removed = target.arr[*index]
			arr := make([]*Node, 0, len(target.arr)-1)
			arr = append(arr, target.arr[:*index]...)
			arr = append(arr, target.arr[*index+1:]...)
			return &Node{kind: KindArray, arr: arr}, nil
		}
		newRoot, err := rewrite(root, path, path, edit)
		if err != nil {
			return nil, nil, err
		}
		return newRoot, removed, nil
	}
	if len(path) == 0 {
		return nil, nil, pathErr(path, "delete without index requires a field path")
	}
	last := path[len(path)-1]
	newRoot, err := rewrite(root, path[:len(path)-1], path, func(parent *Node) (*Node, error) {
		if parent.Kind() != KindObject {
			return nil, pathErr(path, "parent of %q is %s, not object", last, parent.Kind())
		}
		old, ok := parent.obj[last]
		if !ok {
			return nil, pathErr(path, "key %q not found", last)
		}
		removed = old
		obj := make(map[string]*Node, len(parent.obj))
		for k, v := range parent.obj {
			if k != last {
				obj[k] = v
			}
		}
		return &Node{kind: KindObject, obj: obj}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return newRoot, removed, nil
}

// Update replaces the node addressed by path and returns the value it held
// before. An empty path replaces the whole tree.
func Update(root *Node, path []string, value *Node) (*Node, *Node, error) {
	if value == nil {
		value = Null()
	}
	old, err := Resolve(root, path)
	if err != nil {
		return nil, nil, err
	}
	newRoot, err := rewrite(root, path, path, func(*Node) (*Node, error) {
		return value, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return newRoot, old, nil
}

// Move removes the element at from and reinserts it at to within the array
// addressed by path.
func Move(root *Node, path []string, from, to int) (*Node, error) {
	return rewrite(root, path, path, func(target *Node) (*Node, error) {
		if target.Kind() != KindArray {
			return nil, pathErr(path, "move target is %s, not array", target.Kind())
		}
		n := len(target.arr)
		if from < 0 || from >= n {
			return nil, pathErr(path, "move source %d out of bounds (len %d)", from, n)
		}
		if to < 0 || to >= n {
			return nil, pathErr(path, "move destination %d out of bounds (len %d)", to, n)
		}
		arr := make([]*Node, 0, n)
		arr = append(arr, target.arr[:from]...)
		arr = append(arr, target.arr[from+1:]...)
		moved := target.arr[from]
		out := make([]*Node, 0, n)
		out = append(out, arr[:to]...)
		out = append(out, moved)
		out = append(out, arr[to:]...)
		return &Node{kind: KindArray, arr: out}, nil
	})
}
