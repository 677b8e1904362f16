// Package validate scores distilled summaries for readability and checks their
// structure. Both checks are pure: the orchestrator decides what to do with a
// failing result.
package validate

import (
	"fmt"
	"strings"

	"distill/internal/prompt"
)

// DefaultMaxGrade is the Flesch-Kincaid grade ceiling summaries must stay
// under: at or below roughly sixth-grade complexity.
const DefaultMaxGrade = 7.0

// Result reports a validation outcome. Reason is empty on a pass.
type Result struct {
	Pass   bool
	Score  float64
	Reason string
}

// Validate checks a distilled candidate against the grade ceiling and the
// required section structure. A missing or empty section fails regardless of
// score.
func Validate(text string, maxGrade float64) Result {
	if maxGrade <= 0 {
		maxGrade = DefaultMaxGrade
	}

	doc, err := ParseDocument(text)
	if err != nil {
		return Result{Pass: false, Reason: err.Error()}
	}

	var missing []string
	for _, label := range prompt.RequiredSections() {
		if strings.TrimSpace(doc.Sections[label]) == "" {
			missing = append(missing, label)
		}
	}
	score := GradeLevel(text)
	if len(missing) > 0 {
		return Result{
			Pass:   false,
			Score:  score,
			Reason: "missing required sections: " + strings.Join(missing, "; "),
		}
	}

	if score > maxGrade {
		return Result{
			Pass:   false,
			Score:  score,
			Reason: fmt.Sprintf("reading grade %.1f exceeds target %.1f; simplify the language", score, maxGrade),
		}
	}
	return Result{Pass: true, Score: score}
}

// GradeLevel computes the Flesch-Kincaid grade level of the text. Markdown
// markers are stripped first so headings and bullets do not count as words.
func GradeLevel(text string) float64 {
	words, sentences, syllables := textCounts(stripMarkup(text))
	if words == 0 || sentences == 0 {
		return 0
	}
	return 0.39*(float64(words)/float64(sentences)) +
		11.8*(float64(syllables)/float64(words)) -
		15.59
}

func stripMarkup(text string) string {
	replacer := strings.NewReplacer("#", " ", "*", " ", "- ", " ", "`", " ")
	return replacer.Replace(text)
}

func textCounts(text string) (words, sentences, syllables int) {
	for _, field := range strings.Fields(text) {
		trimmed := strings.Trim(field, `"'()[]{},:;`)
		if trimmed == "" {
			continue
		}
		if strings.ContainsAny(trimmed, ".!?") {
			sentences++
		}
		word := strings.Trim(trimmed, ".!?")
		if word == "" {
			continue
		}
		words++
		syllables += countSyllables(word)
	}
	if sentences == 0 && words > 0 {
		sentences = 1
	}
	return words, sentences, syllables
}

// countSyllables approximates syllables as vowel groups, with the usual
// silent-e adjustment. Close enough for a grade-level heuristic.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
