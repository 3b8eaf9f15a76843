// -----------------------------------------------------------------------
// Key reference replacement - resolves {key} references in configuration
// strings against the key/value store
// -----------------------------------------------------------------------

// Config values may reference stored keys with {key-name} syntax, so
// credentials live in the KV store instead of the config file:
//
//	claude:
//	  api_key: "{claude-api-key}"
//
// After the store loads, ReplaceInStruct walks the config and swaps each
// reference for the stored value. Unresolved references are logged and
// left in place rather than silently becoming empty credentials.
// Resolved values are never logged.
package common

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/ternarybob/arbor"
)

// keyRefPattern matches {key-name}. Key names allow letters, digits,
// hyphens, and underscores.
var keyRefPattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// ReplaceKeyReferences resolves every {key-name} reference in input
// against kvMap. References to missing keys warn and stay unchanged.
func ReplaceKeyReferences(input string, kvMap map[string]string, logger arbor.ILogger) string {
	if input == "" {
		return input
	}

	return keyRefPattern.ReplaceAllStringFunc(input, func(match string) string {
		keyName := match[1 : len(match)-1]
		if value, ok := kvMap[keyName]; ok {
			return value
		}
		logger.Warn().
			Str("reference", match).
			Msg("Key reference not found in KV store - left unresolved")
		return match
	})
}

// ReplaceInMap resolves key references in a decoded JSON/YAML map,
// mutating it in place. Recurses through nested maps and arrays; leaves
// non-string values alone.
func ReplaceInMap(m map[string]interface{}, kvMap map[string]string, logger arbor.ILogger) error {
	for key, value := range m {
		switch v := value.(type) {
		case string:
			resolved := ReplaceKeyReferences(v, kvMap, logger)
			if resolved != v {
				m[key] = resolved
				logger.Debug().Str("key", key).Msg("Resolved key reference in map")
			}

		case map[string]interface{}:
			if err := ReplaceInMap(v, kvMap, logger); err != nil {
				return fmt.Errorf("replace in nested map %q: %w", key, err)
			}

		case []interface{}:
			for i, elem := range v {
				switch e := elem.(type) {
				case string:
					resolved := ReplaceKeyReferences(e, kvMap, logger)
					if resolved != e {
						v[i] = resolved
						logger.Debug().Str("key", key).Int("index", i).Msg("Resolved key reference in array")
					}
				case map[string]interface{}:
					if err := ReplaceInMap(e, kvMap, logger); err != nil {
						return fmt.Errorf("replace in %q[%d]: %w", key, i, err)
					}
				}
			}
		}
	}

	return nil
}

// ReplaceInStruct resolves key references in every reachable string
// field of a struct, mutating it in place. v must be a struct pointer.
// Traversal covers nested structs, struct pointers, string slices, and
// string-keyed maps; unexported fields are skipped.
func ReplaceInStruct(v interface{}, kvMap map[string]string, logger arbor.ILogger) error {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("ReplaceInStruct requires a pointer, got %T", v)
	}

	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("ReplaceInStruct requires a struct pointer, got pointer to %v", val.Kind())
	}

	return walkStructFields(val, kvMap, logger)
}

func walkStructFields(val reflect.Value, kvMap map[string]string, logger arbor.ILogger) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		name := typ.Field(i).Name

		if !field.CanSet() {
			continue
		}

		switch field.Kind() {
		case reflect.String:
			current := field.String()
			resolved := ReplaceKeyReferences(current, kvMap, logger)
			if resolved != current {
				field.SetString(resolved)
				logger.Debug().Str("field", name).Msg("Resolved key reference in config field")
			}

		case reflect.Struct:
			if err := walkStructFields(field, kvMap, logger); err != nil {
				return fmt.Errorf("replace in field %q: %w", name, err)
			}

		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				if err := walkStructFields(field.Elem(), kvMap, logger); err != nil {
					return fmt.Errorf("replace in field %q: %w", name, err)
				}
			}

		case reflect.Map:
			if field.Type().Key().Kind() != reflect.String {
				continue
			}
			switch field.Type().Elem().Kind() {
			case reflect.Interface:
				if err := ReplaceInMap(field.Interface().(map[string]interface{}), kvMap, logger); err != nil {
					return fmt.Errorf("replace in field %q: %w", name, err)
				}
			case reflect.String:
				mapVal := field.Interface().(map[string]string)
				for key, value := range mapVal {
					resolved := ReplaceKeyReferences(value, kvMap, logger)
					if resolved != value {
						mapVal[key] = resolved
						logger.Debug().Str("field", name).Str("key", key).Msg("Resolved key reference in map field")
					}
				}
			}

		case reflect.Slice:
			if field.Type().Elem().Kind() != reflect.String {
				continue
			}
			for j := 0; j < field.Len(); j++ {
				elem := field.Index(j)
				current := elem.String()
				resolved := ReplaceKeyReferences(current, kvMap, logger)
				if resolved != current {
					elem.SetString(resolved)
					logger.Debug().Str("field", name).Int("index", j).Msg("Resolved key reference in slice field")
				}
			}
		}
	}

	return nil
}
