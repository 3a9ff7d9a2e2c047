package testing

import (
	"fmt"
	"reflect"
)

// Fire calls the handler stored in prop on the first fiber matched by
// finder, as a discrete event, and flushes the work it causes. args are
// passed to the handler, which must be a func.
func (r *Renderer) Fire(finder Finder, prop string, args ...any) error {
	result := r.Find(finder)
	if !result.Exists() {
		return fmt.Errorf("Fire: finder matched no fibers: %s", finder.Description())
	}
	handler, ok := result.First().MemoizedProps[prop]
	if !ok || handler == nil {
		return fmt.Errorf("Fire: %s has no %s handler: %s", result.First(), prop, finder.Description())
	}
	fn := reflect.ValueOf(handler)
	if fn.Kind() != reflect.Func {
		return fmt.Errorf("Fire: %s is %T, not a func", prop, handler)
	}
	in, err := handlerArgs(fn.Type(), args)
	if err != nil {
		return fmt.Errorf("Fire: %s: %w", prop, err)
	}
	return r.Act(func() {
		r.rec.DiscreteUpdates(func() { fn.Call(in) })
	})
}

// Click fires the onClick handler of the first match.
func (r *Renderer) Click(finder Finder) error {
	return r.Fire(finder, "onClick")
}

// Input fires the onChange handler of the first match with value.
func (r *Renderer) Input(finder Finder, value string) error {
	return r.Fire(finder, "onChange", value)
}

func handlerArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	if t.IsVariadic() || t.NumIn() != len(args) {
		return nil, fmt.Errorf("handler takes %d arguments, got %d", t.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		want := t.In(i)
		if a == nil {
			switch want.Kind() {
			case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
				in[i] = reflect.Zero(want)
				continue
			}
			return nil, fmt.Errorf("argument %d: nil is not a %s", i, want)
		}
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(want) {
			return nil, fmt.Errorf("argument %d: %s is not assignable to %s", i, v.Type(), want)
		}
		in[i] = v
	}
	return in, nil
}
