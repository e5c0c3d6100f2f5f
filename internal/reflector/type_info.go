// Package reflector derives stable type names used for message dispatch.
package reflector

import (
	"reflect"
	"sync"
)

var cache sync.Map // reflect.Type -> TypeInfo

type TypeInfo struct {
	Name string
	Type reflect.Type
}

func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeOf((*T)(nil)).Elem())
}

func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}
	if v, ok := cache.Load(t); ok {
		return v.(TypeInfo)
	}

	e := t
	if e.Kind() == reflect.Pointer {
		e = e.Elem()
	}
	ti := TypeInfo{
		Name: e.PkgPath() + "." + e.Name(),
		Type: e,
	}

	cache.Store(t, ti)
	return ti
}
