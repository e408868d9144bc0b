package cache

// BuildPattern returns a glob matching every key under prefix.
// Both backends accept it in DeleteByPattern.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
