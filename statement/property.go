package statement

import (
	"database/sql/driver"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// IsSimpleValue reports whether v binds directly as a single driver argument.
func IsSimpleValue(v any) bool {
	switch v.(type) {
	case nil, time.Time, []byte, driver.Valuer:
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// PropertyValue reads property name from a map[string]any or a struct.
// Struct fields match by name, case-insensitively, or by their db tag.
func PropertyValue(param any, name string) (any, error) {
	if name == "" {
		return param, nil
	}
	if m, ok := param.(map[string]any); ok {
		return m[name], nil
	}
	rv := reflect.ValueOf(param)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errors.Newf("cannot read property %q from %T", name, param)
	}
	f, ok := fieldByName(rv, name)
	if !ok {
		return nil, errors.Newf("no property %q on %T", name, param)
	}
	return f.Interface(), nil
}

// SetPropertyValue writes property name on a map[string]any or a pointer to struct.
func SetPropertyValue(param any, name string, value any) error {
	if m, ok := param.(map[string]any); ok {
		m[name] = value
		return nil
	}
	rv := reflect.ValueOf(param)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.Newf("cannot set property %q on %T", name, param)
	}
	f, ok := fieldByName(rv.Elem(), name)
	if !ok || !f.CanSet() {
		return errors.Newf("no settable property %q on %T", name, param)
	}
	if value == nil {
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(f.Type()):
		f.Set(v)
	case v.Type().ConvertibleTo(f.Type()) && isNumeric(v.Kind()) && isNumeric(f.Kind()):
		f.Set(v.Convert(f.Type()))
	default:
		return errors.Newf("property %q on %T: cannot assign %T", name, param, value)
	}
	return nil
}

func fieldByName(rv reflect.Value, name string) (reflect.Value, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("db"), ",")
		if tag == name || strings.EqualFold(sf.Name, name) {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
