package payload

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	jsonMarshaler   = reflect.TypeFor[json.Marshaler]()
	jsonUnmarshaler = reflect.TypeFor[json.Unmarshaler]()
	textMarshaler   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshaler = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// checkString rejects strings JSON would alter or Postgres JSONB would refuse:
// invalid UTF-8 is replaced with U+FFFD by encoding/json, and NUL cannot be
// stored in a jsonb text value.
func checkString(path, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s: invalid UTF-8", path)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("%s: contains NUL", path)
	}
	return nil
}

// checkStrings walks every string json.Marshal would emit for v, including
// map keys. Values with custom marshalers are left to their marshaler.
func checkStrings(path string, v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()
	if t.Implements(jsonMarshaler) || t.Implements(textMarshaler) {
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		return checkString(path, v.String())
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkStrings(path, v.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			name, _, skip := jsonField(f)
			if skip {
				continue
			}
			if err := checkStrings(path+"."+name, v.Field(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			k := iter.Key()
			if k.Kind() == reflect.String {
				if err := checkString(path+" key", k.String()); err != nil {
					return err
				}
			}
			if err := checkStrings(fmt.Sprintf("%s[%v]", path, k), iter.Value()); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil // base64
		}
		for i := range v.Len() {
			if err := checkStrings(fmt.Sprintf("%s[%d]", path, i), v.Index(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// jsonField reports the JSON name of f and whether it carries omitempty.
// skip is set for fields encoding/json ignores.
func jsonField(f reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if !f.IsExported() && !f.Anonymous {
		return "", false, true
	}
	if name == "" {
		name = f.Name
	}
	for opt := range strings.SplitSeq(opts, ",") {
		if opt == "omitempty" || opt == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// requiredField is a JSON key a stored struct must carry.
type requiredField struct {
	name     string
	nullable bool // null is a legal value (slices, maps)
}

var requiredCache sync.Map // reflect.Type -> []requiredField

// requiredFields lists the keys of struct type t that have no "absent"
// encoding: fields that are neither pointers, interfaces nor omitempty.
func requiredFields(t reflect.Type) []requiredField {
	if cached, ok := requiredCache.Load(t); ok {
		return cached.([]requiredField)
	}
	var out []requiredField
	for i := range t.NumField() {
		f := t.Field(i)
		name, omitEmpty, skip := jsonField(f)
		if skip {
			continue
		}
		ft := f.Type
		if f.Anonymous && f.Tag.Get("json") == "" {
			if ft.Kind() == reflect.Struct {
				out = append(out, requiredFields(ft)...)
			}
			continue
		}
		if !f.IsExported() || omitEmpty {
			continue
		}
		switch ft.Kind() {
		case reflect.Pointer, reflect.Interface:
			continue
		case reflect.Slice, reflect.Map:
			out = append(out, requiredField{name: name, nullable: true})
		default:
			out = append(out, requiredField{name: name})
		}
	}
	requiredCache.Store(t, out)
	return out
}

// checkPresent reports the first field of t missing from the stored object
// raw, recursing into nested struct objects. encoding/json matches keys
// case-insensitively, so presence does too.
func checkPresent(path string, t reflect.Type, raw json.RawMessage) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || customDecoded(t) {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil // shape errors are reported by the typed decode
	}
	present := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		present[strings.ToLower(k)] = v
	}

	for _, f := range requiredFields(t) {
		v, ok := present[strings.ToLower(f.name)]
		if !ok {
			return fmt.Errorf("%s.%s: missing", path, f.name)
		}
		if !f.nullable && string(v) == "null" {
			return fmt.Errorf("%s.%s: null", path, f.name)
		}
	}

	for i := range t.NumField() {
		f := t.Field(i)
		name, _, skip := jsonField(f)
		if skip || (f.Anonymous && f.Tag.Get("json") == "") {
			continue
		}
		v, ok := present[strings.ToLower(name)]
		if !ok || len(v) == 0 || v[0] != '{' {
			continue
		}
		if err := checkPresent(path+"."+name, f.Type, v); err != nil {
			return err
		}
	}
	return nil
}

func customDecoded(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return pt.Implements(jsonUnmarshaler) || pt.Implements(textUnmarshaler)
}
