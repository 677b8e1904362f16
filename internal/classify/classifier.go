// Package classify maps a video's text metadata to a summary category. The
// classifier is a plain ordered rule table: adding a category is a data
// change, not new control flow.
package classify

import "strings"

// Category selects which prompt template distillation uses.
type Category string

const (
	CategoryTech    Category = "tech"
	CategoryFinance Category = "finance"
	CategoryGeneral Category = "general"
)

// AllCategories returns the known categories in priority order.
func AllCategories() []Category {
	return []Category{CategoryTech, CategoryFinance, CategoryGeneral}
}

// ParseCategory converts a string into a known Category.
func ParseCategory(value string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(value))) {
	case CategoryTech:
		return CategoryTech, true
	case CategoryFinance:
		return CategoryFinance, true
	case CategoryGeneral:
		return CategoryGeneral, true
	default:
		return "", false
	}
}

type rule struct {
	category Category
	keywords []string
}

// Rules are checked in order; the first category with any keyword hit wins.
// Multi-word keywords match as substrings, single words match whole tokens so
// "ai" does not fire on "maintain".
var rules = []rule{
	{
		category: CategoryTech,
		keywords: []string{
			"ai", "artificial intelligence", "machine learning", "robot",
			"computer", "software", "algorithm", "programming", "code",
			"technology", "digital", "internet", "app", "data", "neural",
		},
	},
	{
		category: CategoryFinance,
		keywords: []string{
			"money", "dollar", "invest", "investing", "stock", "market", "bitcoin",
			"crypto", "economy", "finance", "business", "bank", "trade",
			"price", "wealth", "profit", "revenue",
		},
	},
}

// Classify picks a category from the title and tags. It is deterministic,
// case-insensitive, and total: unmatched content is general.
func Classify(title string, tags []string) Category {
	fields := make([]string, 0, len(tags)+1)
	fields = append(fields, strings.ToLower(title))
	for _, tag := range tags {
		fields = append(fields, strings.ToLower(tag))
	}
	content := strings.Join(fields, " ")
	tokens := tokenize(content)

	for _, r := range rules {
		for _, keyword := range r.keywords {
			if matches(content, tokens, keyword) {
				return r.category
			}
		}
	}
	return CategoryGeneral
}

func matches(content string, tokens map[string]struct{}, keyword string) bool {
	if strings.ContainsRune(keyword, ' ') {
		return strings.Contains(content, keyword)
	}
	_, ok := tokens[keyword]
	return ok
}

func tokenize(content string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.FieldsFunc(content, func(r rune) bool {
		return !isWordRune(r)
	}) {
		tokens[field] = struct{}{}
	}
	return tokens
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	default:
		return false
	}
}
