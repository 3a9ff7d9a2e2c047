package fiber

import (
	"math"
	"reflect"
)

// objectIs reports whether a and b are the same value. Reference kinds
// (maps, slices, funcs, channels, pointers) compare by identity, floats treat
// NaN as equal to itself and distinguish +0 from -0, and everything else uses
// ==. Values that cannot be compared are never equal.
func objectIs(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Float32, reflect.Float64:
		x, y := va.Float(), vb.Float()
		if math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
		return x == y && math.Signbit(x) == math.Signbit(y)
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if !va.Type().Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// sameProps compares props by identity.
func sameProps(a, b Props) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
}

// areHookInputsEqual compares dependency lists element-wise. A nil list never
// matches, so the hook runs on every render.
func areHookInputsEqual(next, prev []any) bool {
	if next == nil || prev == nil {
		return false
	}
	if len(next) != len(prev) {
		return false
	}
	for i := range next {
		if !objectIs(next[i], prev[i]) {
			return false
		}
	}
	return true
}
