package rule

// Catalog returns the built-in rule set in execution order. The order is
// part of the output contract: reruns over identical input produce findings
// in identical order.
func Catalog() []Rule {
	return []Rule{
		commaDensityRule(),
		longSentenceRule(),
		redundantExpressionRule(),
		ellipsisStyleRule(),
		raNukiRule(),
		particleRunRule(),
		conjunctionLeadRule(),
		phrasingConsistencyRule(),
		styleConsistencyRule(),
		homophoneCheckRule(),
	}
}
