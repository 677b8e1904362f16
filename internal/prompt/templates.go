// Package prompt renders the category-specific instruction templates that turn
// a transcript into a distillation request. Builders are pure; a missing
// required field is a programming error surfaced as a plain error.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"distill/internal/classify"
)

// Section labels the model is asked to produce. The validator checks for
// exactly these; the store parses answers back out by them.
const (
	SectionWhat  = "What is this about?"
	SectionWhy   = "Why should I care?"
	SectionHow   = "How does it work?"
	SectionLearn = "What can I learn from this?"
)

// RequiredSections returns the four Q&A labels in document order.
func RequiredSections() []string {
	return []string{SectionWhat, SectionWhy, SectionHow, SectionLearn}
}

const readingLevelGuidelines = `TARGET READING LEVEL: Grade 5-6 (Ages 10-12)

Writing Guidelines:
- Use simple, clear sentences (10-15 words average)
- Avoid complex vocabulary - use everyday words
- Break up long explanations into short paragraphs
- Use concrete examples kids can relate to
- Avoid jargon - explain technical terms simply
- Use active voice ("Scientists discovered" not "It was discovered by scientists")
- Keep paragraphs to 3-4 sentences maximum`

const outputStructure = `Structure your answer exactly like this:

## Summary
Two or three sentences covering the whole video.

## Key Points
A bulleted list of 4-6 short takeaways, one per line starting with "- ".

Then answer these questions in order, each as a heading followed by its answer:

**` + SectionWhat + `**
Write 2-3 sentences explaining the main topic in simple terms.

**` + SectionWhy + `**
Explain in 2-3 sentences why this topic matters or is interesting.

**` + SectionHow + `**
Break down the key ideas or processes in 4-5 short bullet points.

**` + SectionLearn + `**
List 3-4 key takeaways or lessons in simple language.`

// simplifyInstruction is appended when a first candidate fails readability
// validation and the orchestrator asks for one regeneration.
const simplifyInstruction = `IMPORTANT: Your previous answer was too hard to read. Simplify further:
use shorter sentences, smaller words, and less detail. Aim well below a
sixth-grade reading level while keeping every required section.`

type template struct {
	name       classify.Category
	persona    string
	task       string
	guidelines string
}

var templates = map[classify.Category]template{
	classify.CategoryGeneral: {
		name:    classify.CategoryGeneral,
		persona: "You are creating a summary for kids aged 8-11 who want to learn from videos.",
		task:    "Create a kid-friendly summary that makes this content easy to understand.",
		guidelines: `IMPORTANT:
- Write at a Grade 5-6 reading level (like you're talking to a 10-year-old)
- Use simple words and short sentences
- Make it engaging and fun to read
- Focus on the most interesting and important ideas
- Skip boring or overly technical parts
- Use examples kids can relate to`,
	},
	classify.CategoryTech: {
		name:    classify.CategoryTech,
		persona: "You are creating a tech summary for kids aged 8-11 who are curious about computers, AI, and technology.",
		task:    "Create a kid-friendly summary that explains this technology in a way kids can understand.",
		guidelines: `TECH-SPECIFIC GUIDELINES:
- Compare technology to everyday things kids know (e.g., "AI is like a super smart robot brain")
- Break down complex tech terms into simple ideas
- Focus on what the technology DOES, not how it's programmed
- Make it sound exciting and cool (because tech IS cool!)
- Avoid: code, algorithms, technical jargon
- Include: real-world examples, fun facts, "Did you know?" moments`,
	},
	classify.CategoryFinance: {
		name:    classify.CategoryFinance,
		persona: "You are creating a finance summary for kids aged 8-11 who want to learn about money and how business works.",
		task:    "Create a kid-friendly summary that explains these money concepts in a way kids can understand.",
		guidelines: `FINANCE-SPECIFIC GUIDELINES:
- Use examples with allowance, saving, or buying things kids want
- Compare financial concepts to simple trades or exchanges
- Avoid: stock tickers, complex market terms, percentages
- Make connections to things kids do (saving, spending, earning)
- Use simple comparisons (e.g., "The stock market is like a big store where people buy tiny pieces of companies")
- Focus on the big picture, not detailed numbers`,
	},
}

// Input carries the item fields substituted into a template.
type Input struct {
	Title           string
	ChannelName     string
	DurationSeconds int
	Transcript      string
}

// Payload is a fully rendered distillation request.
type Payload struct {
	Category classify.Category
	System   string
	User     string

	// EstimatedPromptTokens approximates the prompt size for budget checks
	// (4 characters per token, the usual rule of thumb for English text).
	EstimatedPromptTokens int
}

// Build renders the template for a category. Transcript and title are
// required; everything else is optional decoration.
func Build(category classify.Category, in Input) (Payload, error) {
	tmpl, ok := templates[category]
	if !ok {
		return Payload{}, fmt.Errorf("prompt: unknown category %q", category)
	}
	if strings.TrimSpace(in.Title) == "" {
		return Payload{}, errors.New("prompt: title is required")
	}
	if strings.TrimSpace(in.Transcript) == "" {
		return Payload{}, errors.New("prompt: transcript is required")
	}

	var system strings.Builder
	system.WriteString(tmpl.persona)
	system.WriteString("\n\n")
	system.WriteString(readingLevelGuidelines)
	system.WriteString("\n\n")
	system.WriteString(tmpl.guidelines)

	var user strings.Builder
	user.WriteString("VIDEO INFORMATION:\n")
	fmt.Fprintf(&user, "Title: %s\n", in.Title)
	if channel := strings.TrimSpace(in.ChannelName); channel != "" {
		fmt.Fprintf(&user, "Channel: %s\n", channel)
	}
	if in.DurationSeconds > 0 {
		fmt.Fprintf(&user, "Duration: %s\n", formatDuration(in.DurationSeconds))
	}
	user.WriteString("\nTRANSCRIPT:\n")
	user.WriteString(in.Transcript)
	user.WriteString("\n\nTASK:\n")
	user.WriteString(tmpl.task)
	user.WriteString("\n\n")
	user.WriteString(outputStructure)

	payload := Payload{
		Category: category,
		System:   system.String(),
		User:     user.String(),
	}
	payload.EstimatedPromptTokens = estimateTokens(payload.System) + estimateTokens(payload.User)
	return payload, nil
}

// Simplified returns a copy of the payload carrying the one-shot regeneration
// instruction used after a failed validation.
func (p Payload) Simplified() Payload {
	out := p
	out.User = p.User + "\n\n" + simplifyInstruction
	out.EstimatedPromptTokens = estimateTokens(out.System) + estimateTokens(out.User)
	return out
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return utf8.RuneCountInString(text)/4 + 1
}

func formatDuration(seconds int) string {
	return time.Duration(seconds * int(time.Second)).String()
}
