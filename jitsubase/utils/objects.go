package utils

import (
	"fmt"

	"github.com/hjson/hjson-go/v4"
	"github.com/mitchellh/mapstructure"
)

// ParseObject parses struct of any type from input object that can be:
//
// map, hjson (or plain json) string or bytes,
//
// already struct of provided type or pointer to it
func ParseObject[K any](inputObject any, result *K) error {
	if result == nil {
		return fmt.Errorf("result variable must be an empty struct of desired type, got nil")
	}
	switch cfg := inputObject.(type) {
	case *K:
		*result = *cfg
	case K:
		*result = cfg
	case map[string]any:
		if err := mapstructure.WeakDecode(cfg, result); err != nil {
			return fmt.Errorf("failed to parse map as %T : %v", result, err)
		}
	case []byte:
		return parseHjson(cfg, result)
	case string:
		return parseHjson([]byte(cfg), result)
	default:
		return fmt.Errorf("can't parse object from type: %T", cfg)
	}
	return nil
}

func parseHjson[K any](data []byte, result *K) error {
	if len(data) == 0 {
		return fmt.Errorf("failed to parse. input data is empty")
	}
	raw := map[string]any{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse hjson as %T : %v", result, err)
	}
	if err := mapstructure.WeakDecode(raw, result); err != nil {
		return fmt.Errorf("failed to parse map as %T : %v", result, err)
	}
	return nil
}

func Ternary[T any](cond bool, a T, b T) T {
	if cond {
		return a
	}
	return b
}
