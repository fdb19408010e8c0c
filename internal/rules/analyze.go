package rules

// Analysis summarizes a rule set by type and file distribution.
type Analysis struct {
	TotalRules     int            `json:"total_rules"`
	RulesByType    map[Type]int   `json:"rules_by_type"`
	RulesByFile    map[string]int `json:"rules_by_file"`
	MostCommonType Type           `json:"most_common_type"`
	MostCommonFile string         `json:"most_common_file"`
}

// Analyze computes distribution counts over the rule set. Ties for the
// most common entry break to the lexicographically smallest key, so the
// result is independent of map iteration order.
func Analyze(ruleSet []Rule) Analysis {
	byType := make(map[Type]int)
	byFile := make(map[string]int)
	for _, r := range ruleSet {
		byType[r.Type]++
		byFile[r.File]++
	}

	return Analysis{
		TotalRules:     len(ruleSet),
		RulesByType:    byType,
		RulesByFile:    byFile,
		MostCommonType: Type(mostCommon(stringKeyed(byType))),
		MostCommonFile: mostCommon(byFile),
	}
}

func stringKeyed(m map[Type]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

func mostCommon(counts map[string]int) string {
	best := ""
	bestN := 0
	for k, n := range counts {
		if n > bestN || (n == bestN && bestN > 0 && k < best) {
			best = k
			bestN = n
		}
	}
	return best
}
