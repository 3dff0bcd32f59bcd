package projection

import (
	"fmt"
	"iter"
	"reflect"
)

// ElemType returns the element type of a sequence: a slice, an array, a
// receive channel or an iterator function func(yield func(X) bool).
func ElemType(seq any) (reflect.Type, error) {
	if seq == nil {
		return nil, ErrNilSequence
	}
	rv := reflect.ValueOf(seq)
	t := rv.Type()
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem(), nil
	case reflect.Chan:
		if t.ChanDir()&reflect.RecvDir == 0 {
			break
		}
		if rv.IsNil() {
			return nil, ErrNilSequence
		}
		return t.Elem(), nil
	case reflect.Func:
		elem, ok := yieldElem(t)
		if !ok {
			break
		}
		if rv.IsNil() {
			return nil, ErrNilSequence
		}
		return elem, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotSequence, t)
}

func yieldElem(t reflect.Type) (reflect.Type, bool) {
	if t.NumIn() != 1 || t.NumOut() != 0 || t.IsVariadic() {
		return nil, false
	}
	y := t.In(0)
	if y.Kind() != reflect.Func || y.NumIn() != 1 || y.NumOut() != 1 || y.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	return y.In(0), true
}

// each calls visit for every element of seq until visit fails. Sequences of
// S itself take a direct path; other element types assignable to S are
// walked through reflection.
func (p *Plan[S]) each(seq any, visit func(S) error) error {
	switch v := seq.(type) {
	case []S:
		for _, s := range v {
			if err := visit(s); err != nil {
				return err
			}
		}
		return nil
	case iter.Seq[S]:
		return eachSeq(v, visit)
	case func(func(S) bool):
		return eachSeq(v, visit)
	case <-chan S:
		for s := range v {
			if err := visit(s); err != nil {
				return err
			}
		}
		return nil
	case chan S:
		for s := range v {
			if err := visit(s); err != nil {
				return err
			}
		}
		return nil
	}
	return eachValue(reflect.ValueOf(seq), p.elem, visit)
}

func eachSeq[S any](seq iter.Seq[S], visit func(S) error) error {
	var err error
	seq(func(s S) bool {
		err = visit(s)
		return err == nil
	})
	return err
}

func eachValue[S any](rv reflect.Value, st reflect.Type, visit func(S) error) error {
	if !rv.IsValid() {
		return ErrNilSequence
	}
	elem, err := ElemType(rv.Interface())
	if err != nil {
		return err
	}
	if !elem.AssignableTo(st) {
		return fmt.Errorf("%w: %s elements are not assignable to %s", ErrNotSequence, elem, st)
	}
	conv := func(x reflect.Value) S {
		if x.Type() != st {
			x = x.Convert(st)
		}
		// A nil interface element yields the zero S.
		s, _ := x.Interface().(S)
		return s
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := visit(conv(rv.Index(i))); err != nil {
				return err
			}
		}
		return nil
	case reflect.Chan:
		for {
			x, ok := rv.Recv()
			if !ok {
				return nil
			}
			if err := visit(conv(x)); err != nil {
				return err
			}
		}
	default:
		var err error
		yield := reflect.MakeFunc(rv.Type().In(0), func(args []reflect.Value) []reflect.Value {
			err = visit(conv(args[0]))
			return []reflect.Value{reflect.ValueOf(err == nil)}
		})
		rv.Call([]reflect.Value{yield})
		return err
	}
}
