package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxChannelName is the guild channel name limit, in characters.
const maxChannelName = 100

// ChannelName turns a sub-group name into a guild text channel name: lowercase accent-folded words joined by dashes,
// at most maxChannelName characters.
// Falls back to "subgroup-<id>" when nothing usable is left.
func ChannelName(subgroupName, subgroupID string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), subgroupName)
	if err != nil {
		folded = subgroupName
	}
	var b strings.Builder
	n := 0
	dash := false
	for _, r := range strings.ToLower(folded) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			dash = true
			continue
		}
		need := 1
		if dash && n > 0 {
			need = 2
		}
		if n+need > maxChannelName {
			break
		}
		if need == 2 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
		n += need
		dash = false
	}
	name := b.String()
	if name == "" {
		return "subgroup-" + subgroupID
	}
	return name
}
