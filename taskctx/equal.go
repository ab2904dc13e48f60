package taskctx

import "reflect"

// deepEqualValue wraps reflect.DeepEqual so taskctx.go can keep its
// exported surface free of reflect imports in signatures.
func deepEqualValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
