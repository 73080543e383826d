package content_test

import (
	"encoding/json"
	"testing"

	"github.com/collabkit/server/internal/content"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func fromJSON(t *testing.T, s string) *content.Node {
	t.Helper()

	var n content.Node
	require.NoError(t, json.Unmarshal([]byte(s), &n))

	return &n
}

func TestInsert_CreatesArrayAtMissingField(t *testing.T) {
	t.Parallel()

	root := content.NewObject()

	got, err := content.Insert(root, []string{"items"}, intPtr(0), content.FromAny("x"))
	require.NoError(t, err)

	items, ok := got.Field("items")
	require.True(t, ok)
	require.Equal(t, 1, items.Len())

	elem, _ := items.Index(0)
	require.Equal(t, "x", elem.Interface())

	// Original tree untouched.
	_, ok = root.Field("items")
	require.False(t, ok)
}

func TestInsert_SplicesExistingArray(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"items":["a","c"]}`)

	got, err := content.Insert(root, []string{"items"}, intPtr(1), content.FromAny("b"))
	require.NoError(t, err)

	items, _ := got.Field("items")
	require.Equal(t, []interface{}{"a", "b", "c"}, items.Interface())
}

func TestInsert_SetsObjectField(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"meta":{}}`)

	got, err := content.Insert(root, []string{"meta", "title"}, nil, content.FromAny("hello"))
	require.NoError(t, err)

	meta, _ := got.Field("meta")
	title, ok := meta.Field("title")
	require.True(t, ok)
	require.Equal(t, "hello", title.Interface())
}

func TestInsert_IndexOutOfBounds(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"items":["a"]}`)
	before := root.Interface()

	_, err := content.Insert(root, []string{"items"}, intPtr(5), content.FromAny("b"))
	require.Error(t, err)

	var pathErr *content.PathError
	require.ErrorAs(t, err, &pathErr)
	require.Equal(t, before, root.Interface())
}

func TestDelete_ArrayElement(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"items":["a","b","c"]}`)

	got, removed, err := content.Delete(root, []string{"items"}, intPtr(1))
	require.NoError(t, err)
	require.Equal(t, "b", removed.Interface())

	items, _ := got.Field("items")
	require.Equal(t, []interface{}{"a", "c"}, items.Interface())
}

func TestDelete_ObjectField(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"a":1,"b":2}`)

	got, removed, err := content.Delete(root, []string{"b"}, nil)
	require.NoError(t, err)
	require.Equal(t, float64(2), removed.Interface())

	_, ok := got.Field("b")
	require.False(t, ok)
	_, ok = got.Field("a")
	require.True(t, ok)
}

func TestDelete_MissingKeyLeavesTreeUntouched(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"a":1}`)
	before := root.Interface()

	_, _, err := content.Delete(root, []string{"missing"}, nil)
	require.Error(t, err)
	require.Equal(t, before, root.Interface())
}

func TestUpdate_ReplacesAndReturnsOld(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"title":"old","body":{"text":"keep"}}`)

	got, old, err := content.Update(root, []string{"title"}, content.FromAny("new"))
	require.NoError(t, err)
	require.Equal(t, "old", old.Interface())

	title, _ := got.Field("title")
	require.Equal(t, "new", title.Interface())

	// Untouched subtree is shared, not copied.
	oldBody, _ := root.Field("body")
	newBody, _ := got.Field("body")
	require.Same(t, oldBody, newBody)
}

func TestUpdate_ArrayElementByIndexSegment(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"items":["a","b"]}`)

	got, old, err := content.Update(root, []string{"items", "1"}, content.FromAny("z"))
	require.NoError(t, err)
	require.Equal(t, "b", old.Interface())

	items, _ := got.Field("items")
	require.Equal(t, []interface{}{"a", "z"}, items.Interface())
}

func TestUpdate_UnresolvablePath(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"a":{"b":1}}`)

	_, _, err := content.Update(root, []string{"a", "c"}, content.FromAny(2))
	require.Error(t, err)

	var pathErr *content.PathError
	require.ErrorAs(t, err, &pathErr)
}

func TestMove_ReordersArray(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from int
		to   int
		want []interface{}
	}{
		{"forward", 0, 2, []interface{}{"b", "c", "a"}},
		{"backward", 2, 0, []interface{}{"c", "a", "b"}},
		{"same", 1, 1, []interface{}{"a", "b", "c"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := fromJSON(t, `{"items":["a","b","c"]}`)

			got, err := content.Move(root, []string{"items"}, tt.from, tt.to)
			require.NoError(t, err)

			items, _ := got.Field("items")
			require.Equal(t, tt.want, items.Interface())
		})
	}
}

func TestMove_OutOfBounds(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"items":["a"]}`)

	_, err := content.Move(root, []string{"items"}, 0, 3)
	require.Error(t, err)
}

func TestResolve_DeepPath(t *testing.T) {
	t.Parallel()

	root := fromJSON(t, `{"blocks":[{"type":"text","runs":["x","y"]}]}`)

	n, err := content.Resolve(root, []string{"blocks", "0", "runs", "1"})
	require.NoError(t, err)
	require.Equal(t, "y", n.Interface())

	_, err = content.Resolve(root, []string{"blocks", "2"})
	require.Error(t, err)
}

func TestEqualAndJSONRoundTrip(t *testing.T) {
	t.Parallel()

	a := fromJSON(t, `{"n":1,"s":"x","b":true,"z":null,"arr":[1,2],"o":{"k":"v"}}`)

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var b content.Node
	require.NoError(t, json.Unmarshal(data, &b))
	require.True(t, content.Equal(a, &b))

	c := fromJSON(t, `{"n":2}`)
	require.False(t, content.Equal(a, c))
}
