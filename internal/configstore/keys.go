package configstore

import (
	"fmt"
	"strings"

	"github.com/ferralux/myhome-core/internal/bus/own"
	"github.com/ferralux/myhome-core/internal/discovery"
)

// DeviceKey derives a human-readable document key for a device from its
// category and bus address. The same inputs always produce the same
// key; collisions against keys already in the document are avoided by a
// numeric suffix (_2, _3, ...).
//
// Examples:
//
//	light, "15"       -> light_15
//	cover, "#4"       -> cover_g4
//	light, "15#4#12"  -> light_15_4_12
func DeviceKey(category discovery.Category, where own.Where, taken map[string]bool) string {
	base := fmt.Sprintf("%s_%s", category.Platform(), sanitizeWhere(where))
	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// sanitizeWhere maps an address into key-safe characters: group
// addresses get a g prefix, local bus separators become underscores.
func sanitizeWhere(where own.Where) string {
	s := where.String()
	if strings.HasPrefix(s, "#") {
		return "g" + strings.ReplaceAll(s[1:], "#", "_")
	}
	return strings.ReplaceAll(s, "#", "_")
}
