package util

import (
	"strings"

	"github.com/samber/lo"
)

// SliceToMap turns name=value pairs into a map. An entry without '=' maps to an empty value.
func SliceToMap(slice []string) map[string]string {
	return lo.SliceToMap(slice, func(s string) (string, string) {
		name, value, _ := strings.Cut(s, "=")
		return name, value
	})
}
