package main

import (
	"fmt"
	"strconv"
	"strings"
)

// formatValue prints a decoded value in the text form the build command
// reads back.
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []int64:
		return joinList(x, func(i int64) string { return strconv.FormatInt(i, 10) })
	case []float64:
		return joinList(x, func(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) })
	case []string:
		return strings.Join(x, ";")
	}
	return fmt.Sprint(v)
}

func joinList[T any](xs []T, f func(T) string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = f(x)
	}
	return strings.Join(parts, ";")
}
