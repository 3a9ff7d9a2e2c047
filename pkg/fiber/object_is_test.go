package fiber

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type point struct{ X, Y int }

type tagged struct {
	Name string
	Tags []string
}

func TestObjectIs(t *testing.T) {
	m := map[string]int{"a": 1}
	s := []int{1, 2, 3}
	fn := func() {}
	p := &point{1, 2}
	ch := make(chan int)
	negZero := math.Copysign(0, -1)

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil nil", nil, nil, true},
		{"nil value", nil, 0, false},
		{"ints", 1, 1, true},
		{"different ints", 1, 2, false},
		{"different types", 1, int64(1), false},
		{"strings", "a", "a", true},
		{"nan", math.NaN(), math.NaN(), true},
		{"signed zeros", 0.0, negZero, false},
		{"float32", float32(1.5), float32(1.5), true},
		{"same map", m, m, true},
		{"equal maps", map[string]int{"a": 1}, map[string]int{"a": 1}, false},
		{"same slice", s, s, true},
		{"subslice", s, s[:2], false},
		{"equal slices", []int{1, 2, 3}, []int{1, 2, 3}, false},
		{"same func", fn, fn, true},
		{"same pointer", p, p, true},
		{"equal pointees", &point{1, 2}, &point{1, 2}, false},
		{"same chan", ch, ch, true},
		{"structs", point{1, 2}, point{1, 2}, true},
		{"uncomparable structs", tagged{Name: "a"}, tagged{Name: "a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, objectIs(tt.a, tt.b))
		})
	}
}

func TestAreHookInputsEqual(t *testing.T) {
	assert.False(t, areHookInputsEqual(nil, nil))
	assert.False(t, areHookInputsEqual([]any{1}, nil))
	assert.True(t, areHookInputsEqual([]any{}, []any{}))
	assert.True(t, areHookInputsEqual([]any{1, "a"}, []any{1, "a"}))
	assert.False(t, areHookInputsEqual([]any{1}, []any{1, 2}))
	assert.False(t, areHookInputsEqual([]any{1, "a"}, []any{1, "b"}))
}

func TestSameProps(t *testing.T) {
	a := Props{"x": 1}
	assert.True(t, sameProps(a, a))
	assert.True(t, sameProps(nil, nil))
	assert.False(t, sameProps(a, nil))
	assert.False(t, sameProps(a, Props{"x": 1}))
}
