package db

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ConfigField is a single config value addressed by its dotted JSON path.
type ConfigField struct {
	Path  string // e.g. "temperature.max", "chart_window"
	Value any
	Type  string // "string", "int", "float64"
}

// GetConfigFields lists every leaf field of config in declaration order.
func GetConfigFields(config *Config) []ConfigField {
	var fields []ConfigField
	extractFields(reflect.ValueOf(config).Elem(), "", &fields)
	return fields
}

func jsonKey(field reflect.StructField) string {
	key := strings.Split(field.Tag.Get("json"), ",")[0]
	if key == "-" {
		return ""
	}
	return key
}

func extractFields(v reflect.Value, prefix string, fields *[]ConfigField) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		key := jsonKey(t.Field(i))
		if key == "" {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		value := v.Field(i)
		if value.Kind() == reflect.Struct {
			extractFields(value, path, fields)
			continue
		}
		*fields = append(*fields, ConfigField{
			Path:  path,
			Value: value.Interface(),
			Type:  value.Kind().String(),
		})
	}
}

// SetConfigField parses value and stores it at path.
func SetConfigField(config *Config, path string, value string) error {
	field, err := fieldByPath(reflect.ValueOf(config).Elem(), strings.Split(path, "."))
	if err != nil {
		return err
	}
	return setFieldValue(field, value)
}

// GetConfigField returns the value at path.
func GetConfigField(config *Config, path string) (any, error) {
	field, err := fieldByPath(reflect.ValueOf(config).Elem(), strings.Split(path, "."))
	if err != nil {
		return nil, err
	}
	if field.Kind() == reflect.Struct {
		return nil, fmt.Errorf("%s is a section; use %s.<key>", path, path)
	}
	return field.Interface(), nil
}

func fieldByPath(v reflect.Value, parts []string) (reflect.Value, error) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		if jsonKey(t.Field(i)) != parts[0] {
			continue
		}
		field := v.Field(i)
		if len(parts) == 1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("cannot navigate into non-struct field: %s", parts[0])
		}
		return fieldByPath(field, parts[1:])
	}
	return reflect.Value{}, fmt.Errorf("unknown config key: %s", parts[0])
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("cannot set field")
	}
	value = strings.TrimSpace(value)

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
		if err != nil {
			return fmt.Errorf("invalid number: %s", value)
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// FormatConfigValue formats a config value for display.
func FormatConfigValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "<not set>"
	case string:
		if v == "" {
			return `""`
		}
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
