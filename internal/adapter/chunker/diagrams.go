package chunker

import (
	"regexp"
	"sort"
)

var diagramRef = regexp.MustCompile(`(?i)diagram\s+(\d+\.\d+)`)

// FindDiagramIDs returns the unique diagram numbers referenced in the
// text, sorted. "See Diagram 4.1" yields "4.1".
func FindDiagramIDs(text string) []string {
	matches := diagramRef.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var ids []string
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		ids = append(ids, m[1])
	}

	sort.Strings(ids)
	return ids
}
