// Package content models document content as a tagged tree of variants
// (object, array, scalar) with path-addressed, copy-on-write patching.
package content

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind identifies the variant a Node holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Node is one vertex of a content tree. Nodes are treated as immutable once
// shared: patch operations copy the spine they rewrite and share the rest.
type Node struct {
	kind Kind
	b    bool
	num  float64
	str  string
	arr  []*Node
	obj  map[string]*Node
}

// NewObject returns an empty object node, the initial content of a document.
func NewObject() *Node {
	return &Node{kind: KindObject, obj: map[string]*Node{}}
}

// NewArray returns an array node holding the given elements.
func NewArray(elems ...*Node) *Node {
	return &Node{kind: KindArray, arr: elems}
}

// Null returns the null node.
func Null() *Node {
	return &Node{kind: KindNull}
}

// FromAny converts a JSON-decoded value (map/slice/string/float64/bool/nil)
// into a Node. Integer Go values are accepted for convenience in tests.
func FromAny(v interface{}) *Node {
	switch t := v.(type) {
	case nil:
		return &Node{kind: KindNull}
	case bool:
		return &Node{kind: KindBool, b: t}
	case float64:
		return &Node{kind: KindNumber, num: t}
	case int:
		return &Node{kind: KindNumber, num: float64(t)}
	case int64:
		return &Node{kind: KindNumber, num: float64(t)}
	case string:
		return &Node{kind: KindString, str: t}
	case []interface{}:
		arr := make([]*Node, len(t))
		for i, e := range t {
			arr[i] = FromAny(e)
		}
		return &Node{kind: KindArray, arr: arr}
	case map[string]interface{}:
		obj := make(map[string]*Node, len(t))
		for k, e := range t {
			obj[k] = FromAny(e)
		}
		return &Node{kind: KindObject, obj: obj}
	case *Node:
		return t
	default:
		// Unknown Go type: round-trip through JSON semantics as a string.
		return &Node{kind: KindString, str: fmt.Sprintf("%v", t)}
	}
}

// Kind returns the variant tag.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

// Interface converts the node back to plain JSON-shaped Go values.
func (n *Node) Interface() interface{} {
	if n == nil {
		return nil
	}
	switch n.kind {
	case KindNull:
		return nil
	case KindBool:
		return n.b
	case KindNumber:
		return n.num
	case KindString:
		return n.str
	case KindArray:
		out := make([]interface{}, len(n.arr))
		for i, e := range n.arr {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(n.obj))
		for k, e := range n.obj {
			out[k] = e.Interface()
		}
		return out
	}
	return nil
}

// Len returns the number of elements (array) or fields (object), 0 otherwise.
func (n *Node) Len() int {
	switch n.kind {
	case KindArray:
		return len(n.arr)
	case KindObject:
		return len(n.obj)
	}
	return 0
}

// Field returns the named field of an object node.
func (n *Node) Field(key string) (*Node, bool) {
	if n == nil || n.kind != KindObject {
		return nil, false
	}
	c, ok := n.obj[key]
	return c, ok
}

// Index returns the i-th element of an array node.
func (n *Node) Index(i int) (*Node, bool) {
	if n == nil || n.kind != KindArray || i < 0 || i >= len(n.arr) {
		return nil, false
	}
	return n.arr[i], true
}

// Keys returns the sorted field names of an object node.
func (n *Node) Keys() []string {
	if n == nil || n.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(n.obj))
	for k := range n.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep equality of two trees.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a.Kind() == KindNull && b.Kind() == KindNull
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = *FromAny(v)
	return nil
}
