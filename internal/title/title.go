// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package title

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/goodnight-labs/goodnightgpt/internal/model"
)

const (
	// maxWords bounds the structured title (one slot is reserved for a
	// verb tail when present).
	maxWords = 6

	// maxChars is the hard character ceiling; truncation happens at a
	// word boundary.
	maxChars = 60

	// fallbackChars bounds the simplified first-sentence fallback.
	fallbackChars = 50

	// minSubjects is how many subject tokens the user message should
	// yield before the AI reply is consulted for enrichment.
	minSubjects = 3
)

var (
	setUpRE    = regexp.MustCompile(`(?i)\bset[ -]up\b`)
	aiPrefixRE = regexp.MustCompile(`(?i)^(sure[,!]?\s+|here'?s\s+(a|the)\s+|here\s+is\s+(a|the)\s+)`)
	spaceRE    = regexp.MustCompile(`\s+`)
)

// =============================================================================
// ENTRY POINT
// =============================================================================

// Generate derives a title from a conversation's messages: the first
// user message plus, when available, the first AI reply after it.
// The result is never empty; the chain terminates at "New Chat".
func Generate(messages []model.Message) string {
	userText, replyText := firstExchange(messages)

	if t := structured(userText, replyText); t != "" {
		return t
	}
	if t := firstSentence(userText); t != "" {
		return t
	}
	if userText == "" && replyText != "" {
		stripped := aiPrefixRE.ReplaceAllString(strings.TrimSpace(replyText), "")
		if t := firstSentence(stripped); t != "" {
			return t
		}
	}
	return model.DefaultTitle
}

// firstExchange locates the first user message and the first AI reply
// that follows it.
func firstExchange(messages []model.Message) (userText, replyText string) {
	userIdx := -1
	for i := range messages {
		if messages[i].Sender == model.SenderUser {
			userIdx = i
			userText = messages[i].Text
			break
		}
	}
	if userIdx < 0 {
		// No user turn yet; the greeting is skipped so it can never
		// become a title.
		for i := range messages {
			if messages[i].Sender == model.SenderAI && messages[i].Text != model.Greeting {
				return "", messages[i].Text
			}
		}
		return "", ""
	}
	for i := userIdx + 1; i < len(messages); i++ {
		if messages[i].Sender == model.SenderAI {
			replyText = messages[i].Text
			break
		}
	}
	return userText, replyText
}

// =============================================================================
// STRUCTURED PIPELINE
// =============================================================================

// structured runs the full subject/verb pipeline. Returns "" when no
// usable subject survives.
func structured(userText, replyText string) string {
	subjects, verb := extract(userText)

	if len(subjects) < minSubjects && replyText != "" {
		more, _ := extract(replyText)
		for _, tok := range more {
			if len(subjects) >= minSubjects {
				break
			}
			if !contains(subjects, tok) {
				subjects = append(subjects, tok)
			}
		}
	}

	// "save" reads best as "<subject> Savings Strategy".
	if verb == "save" && !contains(subjects, "savings") {
		subjects = append(subjects, "savings")
	}

	if len(subjects) == 0 {
		return ""
	}

	tail := ""
	if verb != "" && verb != "explain" {
		tail = verbNouns[verb]
	}

	limit := maxWords
	if tail != "" {
		limit = maxWords - 1
	}
	if len(subjects) > limit {
		subjects = subjects[:limit]
	}

	words := make([]string, 0, len(subjects)+1)
	for _, tok := range subjects {
		words = append(words, capitalize(tok))
	}
	if tail != "" {
		words = append(words, tail)
	}

	return trimTrailingPunct(truncateWords(words, maxChars))
}

// extract tokenizes text into deduplicated subject tokens plus the
// first recognized canonical verb.
func extract(text string) (subjects []string, verb string) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return nil, ""
	}

	// Phrase normalization must run before the whitespace split.
	lower = setUpRE.ReplaceAllString(lower, "setup")

	// Leading filler framings, greedily, longest first.
	for stripped := true; stripped; {
		stripped = false
		for _, phrase := range fillerPhrases {
			if lower == phrase {
				return nil, ""
			}
			if strings.HasPrefix(lower, phrase+" ") {
				lower = strings.TrimSpace(lower[len(phrase)+1:])
				stripped = true
			}
		}
	}

	// Sentence splitters become spaces; the structured pass considers
	// all clauses.
	lower = strings.Map(func(r rune) rune {
		if r == '!' || r == '?' {
			return ' '
		}
		return r
	}, lower)

	seen := make(map[string]bool)
	for _, raw := range strings.Fields(lower) {
		tok := trimToken(raw)
		if tok == "" || stopwords[tok] {
			continue
		}
		if canon, ok := verbCanon[tok]; ok {
			if verb == "" {
				verb = canon
			}
			continue
		}
		if isBareNumber(tok) {
			continue
		}
		if !seen[tok] {
			seen[tok] = true
			subjects = append(subjects, tok)
		}
	}
	return subjects, verb
}

// trimToken strips leading/trailing punctuation while preserving the
// ()+.#- whitelist, so tokens like "c++", "node.js", and "401(k)"
// survive intact.
func trimToken(tok string) string {
	return strings.TrimFunc(tok, func(r rune) bool {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
		switch r {
		case '(', ')', '+', '.', '#', '-':
			return false
		}
		return true
	})
}

// isBareNumber reports whether the token is purely numeric. Tokens
// with letters adjacent to digits or a parenthesized fragment (like
// "401(k)") are acronym-like and kept.
func isBareNumber(tok string) bool {
	if strings.ContainsRune(tok, '(') {
		return false
	}
	hasDigit := false
	for _, r := range tok {
		if unicode.IsLetter(r) {
			return false
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}
	return hasDigit
}

// =============================================================================
// CASING AND TRUNCATION
// =============================================================================

// capitalize cases one token: acronym dictionary first, hyphen
// segments individually, then plain first-letter capitalization.
func capitalize(tok string) string {
	if canon, ok := acronyms[tok]; ok {
		return canon
	}
	if strings.Contains(tok, "-") {
		parts := strings.Split(tok, "-")
		for i, part := range parts {
			parts[i] = capitalize(part)
		}
		return strings.Join(parts, "-")
	}
	runes := []rune(tok)
	if len(runes) == 0 {
		return tok
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// truncateWords joins words up to the character ceiling, never cutting
// inside a word.
func truncateWords(words []string, limit int) string {
	var sb strings.Builder
	for i, w := range words {
		next := len(w)
		if i > 0 {
			next++
		}
		if sb.Len()+next > limit {
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w)
	}
	return sb.String()
}

// trimTrailingPunct drops dangling punctuation left by truncation.
func trimTrailingPunct(s string) string {
	return strings.TrimRight(s, ".,;:!-+ ")
}

// =============================================================================
// FALLBACK
// =============================================================================

// firstSentence is the simplified fallback: strip leading question
// words, cut at the first sentence boundary, truncate at a word
// boundary with an ellipsis, capitalize.
func firstSentence(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}

	fields := strings.Fields(t)
	start := 0
	for start < len(fields) && questionWords[strings.ToLower(strings.Trim(fields[start], ",.!?'"))] {
		start++
	}
	if start >= len(fields) {
		return ""
	}
	t = strings.Join(fields[start:], " ")

	if idx := strings.IndexAny(t, ".!?"); idx > 0 {
		// Keep dots inside tokens like "node.js": only cut when the
		// boundary ends the clause (followed by space or end).
		if idx+1 >= len(t) || t[idx+1] == ' ' {
			t = t[:idx]
		}
	}
	t = spaceRE.ReplaceAllString(strings.TrimSpace(t), " ")
	if t == "" {
		return ""
	}

	if len(t) > fallbackChars {
		cut := strings.LastIndex(t[:fallbackChars], " ")
		if cut <= 0 {
			cut = fallbackChars
		}
		t = strings.TrimRight(t[:cut], ".,;:! ") + "..."
	}

	runes := []rune(t)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// contains is a tiny order-preserving membership check; subject lists
// are a handful of tokens at most.
func contains(list []string, tok string) bool {
	for _, v := range list {
		if v == tok {
			return true
		}
	}
	return false
}
