package vcall

import (
	"fmt"
	"reflect"

	"github.com/ajroetker/go-vcall/jit"
	"github.com/gomlx/exceptions"
)

// Values handed to a dispatch call are flattened into the indices of their
// leaves, depth first:
//
//   - jit leaf arrays (jit.Float, jit.UInt32, jit.Bool) contribute their index;
//   - jit.Diff contributes the leaves of its primal;
//   - arrays and slices contribute their entries in order;
//   - structs contribute their exported fields in declaration order, except
//     fields tagged `vcall:"-"`.
//
// Anything else (numbers, strings, pointers, interfaces, funcs, maps) is a
// constant of the call and contributes nothing.

type leafKind uint8

const (
	kindOpaque leafKind = iota
	kindLeaf
	kindDiff
	kindArray
	kindSlice
	kindStruct
)

var (
	leafType = reflect.TypeFor[jit.Leaf]()
	diffType = reflect.TypeFor[jit.Differentiable]()
	jitPkg   = reflect.TypeFor[jit.Float]().PkgPath()
)

func kindOf(t reflect.Type) leafKind {
	if t.PkgPath() == jitPkg {
		switch {
		case t.Implements(leafType):
			return kindLeaf
		case t.Implements(diffType):
			return kindDiff
		}
	}
	switch t.Kind() {
	case reflect.Array:
		return kindArray
	case reflect.Slice:
		return kindSlice
	case reflect.Struct:
		return kindStruct
	}
	return kindOpaque
}

// traversed reports whether field i of struct type t takes part in the
// traversal.
func traversed(t reflect.Type, i int) bool {
	f := t.Field(i)
	return f.IsExported() && f.Tag.Get("vcall") != "-"
}

// visit calls fn for every leaf of v in traversal order.
func visit(v reflect.Value, path string, fn func(leaf reflect.Value, path string) error) error {
	if !v.IsValid() {
		return nil
	}
	switch kindOf(v.Type()) {
	case kindLeaf:
		return fn(v, path)
	case kindDiff:
		return visit(v.Field(0), path+".Primal", fn)
	case kindArray, kindSlice:
		for i := range v.Len() {
			if err := visit(v.Index(i), fmt.Sprintf("%s[%d]", path, i), fn); err != nil {
				return err
			}
		}
	case kindStruct:
		t := v.Type()
		for i := range t.NumField() {
			if !traversed(t, i) {
				continue
			}
			if err := visit(v.Field(i), path+"."+t.Field(i).Name, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Collect flattens values into the indices of their leaves. It fails with an
// *UninitializedError if any leaf has index 0.
func Collect(values ...any) ([]jit.Index, error) {
	var out []jit.Index
	for i, value := range values {
		idx, err := collectNamed(fmt.Sprintf("value[%d]", i), value)
		if err != nil {
			return nil, err
		}
		out = append(out, idx...)
	}
	return out, nil
}

// collectNamed is Collect for a single value whose leaves are reported
// under name.
func collectNamed(name string, value any) ([]jit.Index, error) {
	var out []jit.Index
	err := visit(reflect.ValueOf(value), name, func(leaf reflect.Value, path string) error {
		idx := leaf.Interface().(jit.Leaf).Index()
		if !idx.Valid() {
			return &UninitializedError{Path: path}
		}
		out = append(out, idx)
		return nil
	})
	return out, err
}

// LeafCount returns the number of leaves of value.
func LeafCount(value any) int {
	n := 0
	_ = visit(reflect.ValueOf(value), "", func(reflect.Value, string) error {
		n++
		return nil
	})
	return n
}

// Reconstruct writes indices into the leaves of the value target points to,
// in the order Collect reads them. The number of indices must match the
// number of leaves exactly; anything else is a programming error and
// panics.
func Reconstruct(indices []jit.Index, target any) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		exceptions.Panicf("vcall: Reconstruct target must be a non-nil pointer, got %T", target)
	}
	if n := LeafCount(rv.Elem().Interface()); n != len(indices) {
		exceptions.Panicf("vcall: reconstructing %s needs %d indices, got %d", rv.Elem().Type(), n, len(indices))
	}
	offset := 0
	_ = visit(rv.Elem(), "", func(leaf reflect.Value, _ string) error {
		leaf.Addr().Interface().(jit.MutableLeaf).SetIndex(indices[offset])
		offset++
		return nil
	})
	if offset != len(indices) {
		exceptions.Panicf("vcall: reconstruction consumed %d of %d indices", offset, len(indices))
	}
}

// mapLeaves returns a deep copy of value in which every leaf is replaced by
// the variable fn returns for it. Constants are copied unchanged, and nil
// slices stay nil.
func mapLeaves[T any](value T, fn func(leaf jit.Leaf) jit.Index) T {
	return mapValue(reflect.ValueOf(&value).Elem(), fn).Interface().(T)
}

func mapValue(v reflect.Value, fn func(leaf jit.Leaf) jit.Index) reflect.Value {
	t := v.Type()
	switch kindOf(t) {
	case kindLeaf:
		out := reflect.New(t).Elem()
		out.Addr().Interface().(jit.MutableLeaf).SetIndex(fn(v.Interface().(jit.Leaf)))
		return out
	case kindDiff:
		out := reflect.New(t).Elem()
		out.Set(v)
		out.Field(0).Set(mapValue(v.Field(0), fn))
		return out
	case kindArray:
		out := reflect.New(t).Elem()
		for i := range v.Len() {
			out.Index(i).Set(mapValue(v.Index(i), fn))
		}
		return out
	case kindSlice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := range v.Len() {
			out.Index(i).Set(mapValue(v.Index(i), fn))
		}
		return out
	case kindStruct:
		out := reflect.New(t).Elem()
		out.Set(v)
		for i := range t.NumField() {
			if traversed(t, i) {
				out.Field(i).Set(mapValue(v.Field(i), fn))
			}
		}
		return out
	}
	return v
}

// detach clears the gradient node of every jit.Diff inside *value. value
// must not share slices with anything else, which holds for the results of
// mapLeaves.
func detach[T any](value *T) {
	detachValue(reflect.ValueOf(value).Elem())
}

func detachValue(v reflect.Value) {
	switch kindOf(v.Type()) {
	case kindDiff:
		v.FieldByName("Grad").SetUint(0)
		detachValue(v.Field(0))
	case kindArray, kindSlice:
		for i := range v.Len() {
			detachValue(v.Index(i))
		}
	case kindStruct:
		t := v.Type()
		for i := range t.NumField() {
			if traversed(t, i) {
				detachValue(v.Field(i))
			}
		}
	}
}
