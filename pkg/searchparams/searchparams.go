// Package searchparams converts typed values to and from URL search
// strings, for building navigation destinations and reading loader
// request queries.
//
// Example:
//
//	type Filters struct {
//		Category string `url:"cat"`
//		Page     int    `url:"page"`
//	}
//
//	codec := searchparams.Flat[Filters]("")
//	search := codec.EncodeSearch(Filters{Category: "tech", Page: 2})
//	// "?cat=tech&page=2"
package searchparams

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Encoding selects how a value is laid out in the search string.
type Encoding int

const (
	// EncodingFlat spreads struct fields as individual params: ?cat=tech&page=2
	EncodingFlat Encoding = iota

	// EncodingJSON stores the value as base64url JSON under one key.
	EncodingJSON

	// EncodingComma joins slice elements with commas under one key: ?tags=go,web
	EncodingComma
)

// Codec encodes and decodes values of one type. A key is required for the
// JSON and comma encodings and for non-struct flat values; flat structs
// take their keys from `url` field tags, falling back to the lowercased
// field name. A tag of "-" skips the field.
type Codec[T any] struct {
	key      string
	encoding Encoding
}

// Flat builds a codec using the flat encoding.
func Flat[T any](key string) Codec[T] { return Codec[T]{key: key, encoding: EncodingFlat} }

// JSON builds a codec using the base64url JSON encoding.
func JSON[T any](key string) Codec[T] { return Codec[T]{key: key, encoding: EncodingJSON} }

// Comma builds a codec using the comma-joined encoding.
func Comma[T any](key string) Codec[T] { return Codec[T]{key: key, encoding: EncodingComma} }

// Encode writes the value into a fresh url.Values. Zero-valued struct
// fields are omitted under the flat encoding.
func (c Codec[T]) Encode(value T) url.Values {
	out := url.Values{}
	c.EncodeInto(value, out)
	return out
}

// EncodeInto writes the value into an existing url.Values, overwriting
// keys it owns and leaving the rest alone.
func (c Codec[T]) EncodeInto(value T, out url.Values) {
	switch c.encoding {
	case EncodingJSON:
		data, err := json.Marshal(value)
		if err != nil {
			out.Set(c.key, "")
			return
		}
		out.Set(c.key, base64.RawURLEncoding.EncodeToString(data))
	case EncodingComma:
		v := reflect.ValueOf(value)
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			out.Set(c.key, formatValue(v))
			return
		}
		parts := make([]string, v.Len())
		for i := 0; i < v.Len(); i++ {
			parts[i] = formatValue(v.Index(i))
		}
		out.Set(c.key, strings.Join(parts, ","))
	default:
		c.encodeFlat(value, out)
	}
}

// EncodeSearch returns the value as a search string with a leading "?",
// or "" when nothing encodes.
func (c Codec[T]) EncodeSearch(value T) string {
	encoded := c.Encode(value).Encode()
	if encoded == "" {
		return ""
	}
	return "?" + encoded
}

func (c Codec[T]) encodeFlat(value T, out url.Values) {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		out.Set(c.key, formatValue(v))
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("url")
		if key == "" {
			key = strings.ToLower(field.Name)
		}
		if key == "-" || v.Field(i).IsZero() {
			continue
		}
		out.Set(key, formatValue(v.Field(i)))
	}
}

// Decode reads the value back out of url.Values. Missing keys leave the
// corresponding fields at their zero value.
func (c Codec[T]) Decode(params url.Values) (T, error) {
	var result T
	switch c.encoding {
	case EncodingJSON:
		raw := params.Get(c.key)
		if raw == "" {
			return result, nil
		}
		data, err := base64.RawURLEncoding.DecodeString(raw)
		if err != nil {
			return result, err
		}
		err = json.Unmarshal(data, &result)
		return result, err
	case EncodingComma:
		raw := params.Get(c.key)
		if raw == "" {
			return result, nil
		}
		v := reflect.ValueOf(&result).Elem()
		if v.Kind() != reflect.Slice {
			return result, fmt.Errorf("searchparams: comma encoding requires a slice type, got %s", v.Kind())
		}
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, part := range parts {
			if err := setValue(slice.Index(i), part); err != nil {
				return result, err
			}
		}
		v.Set(slice)
		return result, nil
	default:
		return c.decodeFlat(params)
	}
}

// DecodeSearch parses a search string (with or without the leading "?")
// and decodes it.
func (c Codec[T]) DecodeSearch(search string) (T, error) {
	params, err := url.ParseQuery(strings.TrimPrefix(search, "?"))
	if err != nil {
		var zero T
		return zero, err
	}
	return c.Decode(params)
}

func (c Codec[T]) decodeFlat(params url.Values) (T, error) {
	var result T
	v := reflect.ValueOf(&result).Elem()
	if v.Kind() != reflect.Struct {
		if raw := params.Get(c.key); raw != "" {
			if err := setValue(v, raw); err != nil {
				return result, err
			}
		}
		return result, nil
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !v.Field(i).CanSet() {
			continue
		}
		key := field.Tag.Get("url")
		if key == "" {
			key = strings.ToLower(field.Name)
		}
		if key == "-" {
			continue
		}
		if !params.Has(key) {
			continue
		}
		if err := setValue(v.Field(i), params.Get(key)); err != nil {
			return result, fmt.Errorf("searchparams: field %s: %w", field.Name, err)
		}
	}
	return result, nil
}

func formatValue(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func setValue(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}
