// Package utils holds small conversion helpers shared by the pivot packages.
package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// StructToMap converts a struct, or a pointer to one, into a map[string]any
// by way of its JSON form, so json tags and omitempty apply. Values that are
// JSON objects are kept as json.RawMessage, which lets MapToStruct decode
// them back into their original types.
//
// Example:
//
//	req := pivot.NewRequest()
//	m, err := StructToMap(req)
//	// m["margins_label"] == "All"
func StructToMap[T any](record T) (map[string]any, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return nil, fmt.Errorf("input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, fmt.Errorf("input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("StructToMap: failed to marshal input record to JSON: %w", err)
	}
	var tempMap map[string]any
	if err := json.Unmarshal(jsonBytes, &tempMap); err != nil {
		return nil, fmt.Errorf("StructToMap: failed to unmarshal JSON to temporary map[string]any: %w", err)
	}

	resultMap := make(map[string]any, len(tempMap))
	for key, val := range tempMap {
		nestedMap, ok := val.(map[string]any)
		if !ok {
			resultMap[key] = val
			continue
		}
		nestedBytes, err := json.Marshal(nestedMap)
		if err != nil {
			return nil, fmt.Errorf("StructToMap: error re-marshaling nested map for key '%s': %w", key, err)
		}
		resultMap[key] = json.RawMessage(nestedBytes)
	}
	return resultMap, nil
}

// MapToStruct decodes input into a new T through JSON, so T's json tags and
// custom UnmarshalJSON methods decide how each key is read. It is the inverse
// of StructToMap. T must be a struct or a pointer to a struct.
//
// Example:
//
//	type window struct {
//		Rows StringList `json:"rows"`
//	}
//	w, err := MapToStruct[window](map[string]any{"rows": "region"})
func MapToStruct[T any](input map[string]any) (T, error) {
	var zero T
	if input == nil {
		return zero, fmt.Errorf("MapToStruct: input map cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("MapToStruct: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	jsonBytes, err := json.Marshal(input)
	if err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to marshal input map to JSON: %w", err)
	}
	var result T
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return zero, fmt.Errorf("MapToStruct: failed to unmarshal JSON to target struct: %w", err)
	}
	return result, nil
}
