package domain

import (
	"regexp"
	"strings"
)

// classificationRule maps a keyword pattern to a category.
type classificationRule struct {
	Type    KnowledgeType
	Pattern *regexp.Regexp
}

// classificationRules are evaluated in order; the first match wins.
// Earlier rules are the more specific categories.
var classificationRules = []classificationRule{
	{
		Type: KnowledgeTypeCompetitor,
		Pattern: regexp.MustCompile(`\b(competitors?|competition|competitive|competing|rivals?|incumbents?|` +
			`vs|versus|funding round|series [a-d]|acquired by|acquisition of)\b`),
	},
	{
		Type: KnowledgeTypeRegulation,
		Pattern: regexp.MustCompile(`\b(regulations?|regulatory|regulators?|compliance|compliant|gdpr|hipaa|pci|` +
			`licen[cs]es?|licensing|legislation|laws?|legal|mandates?|policy|policies|rules?)\b`),
	},
	{
		Type: KnowledgeTypeTechnology,
		Pattern: regexp.MustCompile(`\b(technology|technologies|tech stack|apis?|ai|machine learning|llms?|` +
			`software|saas|cloud|blockchain|automation|infrastructure|open source)\b`),
	},
	{
		Type: KnowledgeTypeTrend,
		Pattern: regexp.MustCompile(`\b(trends?|trending|emerging|growing|rising|shift|shifting|adoption|` +
			`increasingly|momentum|forecast)\b`),
	},
	{
		Type: KnowledgeTypePainPoint,
		Pattern: regexp.MustCompile(`\b(pain|pain points?|frustrat\w*|struggl\w*|problems?|challenges?|` +
			`complain\w*|difficult\w*|bottlenecks?|friction|churn)\b`),
	},
}

// Classify maps free text to a knowledge category. Text that matches no rule,
// including empty text, is market data.
func Classify(text string) KnowledgeType {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return KnowledgeTypeMarketData
	}

	for _, rule := range classificationRules {
		if rule.Pattern.MatchString(lower) {
			return rule.Type
		}
	}
	return KnowledgeTypeMarketData
}
