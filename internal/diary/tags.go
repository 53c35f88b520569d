package diary

// DefaultTagVocabulary is the category set the resolver asks the
// collaborator to draw from. It is advisory: tags are never validated
// against it, and the store accepts arbitrary strings.
var DefaultTagVocabulary = []string{"仕事", "プライベート", "健康", "勉強", "趣味", "食事"}

// UnionTags returns the set union of a and b, preserving first-seen
// order and dropping empty strings. Union is commutative as a set and
// idempotent.
func UnionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range a {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range b {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
