package bt

import (
	"regexp"
	"strings"
)

var capitalInWord = regexp.MustCompile(`\B[A-Z]`)

// DisplayName derives a human label from a node type name by dropping a
// trailing "Node" and splitting on inner capitals: "SetTagCooldownNode"
// becomes "Set Tag Cooldown".
func DisplayName(typeName string) string {
	name := strings.TrimSuffix(typeName, "Node")
	return capitalInWord.ReplaceAllString(name, " $0")
}
