package collab

import (
	"fmt"

	"github.com/collabkit/server/internal/content"
)

// applyOperation applies op to root without mutating it and returns the new
// root plus the value the operation displaced. The displaced value is stored
// as the operation's oldValue so an inverse can be derived later.
func applyOperation(root *content.Node, op *Operation) (*content.Node, interface{}, error) {
	switch op.Type {
	case OpInsert:
		if idx, item, ok := spliceArgs(op.Value); ok {
			next, err := content.Insert(root, op.Path, &idx, content.FromAny(item))
			if err != nil {
				return nil, nil, err
			}
			return next, map[string]interface{}{"index": idx}, nil
		}
		next, err := content.Insert(root, op.Path, nil, content.FromAny(op.Value))
		if err != nil {
			return nil, nil, err
		}
		return next, nil, nil

	case OpDelete:
		if idx, ok := indexArg(op.Value); ok {
			next, removed, err := content.Delete(root, op.Path, &idx)
			if err != nil {
				return nil, nil, err
			}
			return next, map[string]interface{}{"index": idx, "item": removed.Interface()}, nil
		}
		next, removed, err := content.Delete(root, op.Path, nil)
		if err != nil {
			return nil, nil, err
		}
		return next, removed.Interface(), nil

	case OpUpdate:
		next, old, err := content.Update(root, op.Path, content.FromAny(op.Value))
		if err != nil {
			return nil, nil, err
		}
		return next, old.Interface(), nil

	case OpMove:
		from, to, ok := moveArgs(op.Value)
		if !ok {
			return nil, nil, fmt.Errorf("move operation requires from and to indexes")
		}
		next, err := content.Move(root, op.Path, from, to)
		if err != nil {
			return nil, nil, err
		}
		return next, map[string]interface{}{"from": to, "to": from}, nil

	default:
		return nil, nil, fmt.Errorf("unknown operation type %q", op.Type)
	}
}

// inverseOperation derives the operation that undoes op: insert and delete
// swap types, value and oldValue swap, the path stays. The result moves the
// document forward to a new version rather than rewinding history.
func inverseOperation(op *Operation) *OperationDraft {
	inv := &OperationDraft{
		Path:     op.Path,
		Value:    op.OldValue,
		OldValue: op.Value,
	}
	switch op.Type {
	case OpInsert:
		inv.Type = OpDelete
	case OpDelete:
		inv.Type = OpInsert
	default:
		inv.Type = op.Type
	}
	return inv
}

func spliceArgs(value interface{}) (int, interface{}, bool) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return 0, nil, false
	}
	idx, ok := intFromAny(m["index"])
	if !ok {
		return 0, nil, false
	}
	return idx, m["item"], true
}

func indexArg(value interface{}) (int, bool) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return 0, false
	}
	return intFromAny(m["index"])
}

func moveArgs(value interface{}) (int, int, bool) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return 0, 0, false
	}
	from, ok := intFromAny(m["from"])
	if !ok {
		return 0, 0, false
	}
	to, ok := intFromAny(m["to"])
	if !ok {
		return 0, 0, false
	}
	return from, to, true
}

func intFromAny(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
