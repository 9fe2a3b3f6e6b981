// Copyright (c) 2025 Goodnight Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package title

// The summarizer is driven entirely by these fixed tables; the
// pipeline itself carries no special cases beyond what they encode.

// fillerPhrases are leading request framings stripped before
// tokenization. Ordered longest-first so greedy matching works.
var fillerPhrases = []string{
	"i would like to know",
	"i would like to",
	"can you help me",
	"could you help me",
	"can you please",
	"tell me about",
	"i'd like to",
	"how do you",
	"how can i",
	"how do i",
	"what about",
	"could you",
	"would you",
	"can you",
	"will you",
	"i need to",
	"i want to",
	"help me",
	"tell me",
	"i need",
	"i want",
	"how to",
	"what is",
	"what are",
	"please",
	"hello",
	"hey",
	"hi",
}

// stopwords is the closed drop list: pronouns, articles, conjunctions,
// prepositions, auxiliary verbs, politeness words.
var stopwords = map[string]bool{
	// articles
	"a": true, "an": true, "the": true,
	// pronouns
	"i": true, "me": true, "my": true, "mine": true, "myself": true,
	"you": true, "your": true, "yours": true, "we": true, "us": true,
	"our": true, "ours": true, "he": true, "him": true, "his": true,
	"she": true, "her": true, "hers": true, "it": true, "its": true,
	"they": true, "them": true, "their": true, "theirs": true,
	"this": true, "that": true, "these": true, "those": true,
	"something": true, "anything": true, "everything": true,
	// conjunctions
	"and": true, "or": true, "but": true, "so": true, "if": true,
	"then": true, "than": true, "as": true, "because": true,
	// prepositions
	"to": true, "of": true, "in": true, "on": true, "for": true,
	"with": true, "about": true, "from": true, "at": true, "by": true,
	"into": true, "onto": true, "over": true, "under": true,
	"up": true, "out": true, "off": true,
	// auxiliary verbs
	"am": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "do": true, "does": true,
	"did": true, "have": true, "has": true, "had": true, "will": true,
	"would": true, "can": true, "could": true, "should": true,
	"shall": true, "may": true, "might": true, "must": true,
	"get": true, "got": true, "lets": true, "let's": true,
	// question words
	"what": true, "how": true, "why": true, "when": true,
	"where": true, "who": true, "which": true, "whose": true,
	// politeness / chatter
	"please": true, "thanks": true, "thank": true, "hello": true,
	"hi": true, "hey": true, "ok": true, "okay": true, "just": true,
	"really": true, "some": true, "any": true, "more": true,
	"also": true, "very": true, "much": true, "many": true,
	"need": true, "want": true, "like": true, "know": true,
	"there": true, "here": true, "not": true, "no": true, "yes": true,
}

// verbCanon maps action synonyms to a canonical verb. The multi-word
// phrase "set up" is normalized to "setup" before tokenization so it
// survives the whitespace split.
var verbCanon = map[string]string{
	"debug":        "debug",
	"troubleshoot": "debug",
	"diagnose":     "debug",
	"fix":          "debug",
	"setup":        "setup",
	"set-up":       "setup",
	"install":      "setup",
	"configure":    "setup",
	"plan":         "plan",
	"planning":     "plan",
	"organize":     "plan",
	"schedule":     "plan",
	"prepare":      "plan",
	"write":        "write",
	"draft":        "write",
	"compose":      "write",
	"explain":      "explain",
	"describe":     "explain",
	"clarify":      "explain",
	"understand":   "explain",
	"compare":      "compare",
	"versus":       "compare",
	"vs":           "compare",
	"find":         "find",
	"search":       "find",
	"locate":       "find",
	"improve":      "improve",
	"optimize":     "improve",
	"boost":        "improve",
	"apply":        "apply",
	"applying":     "apply",
	"create":       "create",
	"build":        "create",
	"make":         "create",
	"choose":       "choose",
	"pick":         "choose",
	"select":       "choose",
	"decide":       "choose",
	"save":         "save",
	"saving":       "save",
	"learn":        "learn",
	"study":        "learn",
}

// verbNouns turns a canonical verb into a title-appropriate trailing
// noun. "explain" is intentionally absent: an "Explanation" tail reads
// oddly as a title. "save" is special-cased in the pipeline to also
// contribute a "savings" subject.
var verbNouns = map[string]string{
	"debug":   "Debugging",
	"setup":   "Setup",
	"plan":    "Planning",
	"write":   "Writing",
	"compare": "Comparison",
	"find":    "Search",
	"improve": "Tips",
	"apply":   "Application",
	"create":  "Creation",
	"choose":  "Selection",
	"save":    "Strategy",
	"learn":   "Guide",
}

// acronyms maps lowercase tokens to their canonical casing. Hyphenated
// tokens are cased per segment against this table.
var acronyms = map[string]string{
	"api":        "API",
	"ui":         "UI",
	"ux":         "UX",
	"ai":         "AI",
	"ml":         "ML",
	"gpt":        "GPT",
	"gpa":        "GPA",
	"sat":        "SAT",
	"act":        "ACT",
	"fafsa":      "FAFSA",
	"stem":       "STEM",
	"css":        "CSS",
	"html":       "HTML",
	"http":       "HTTP",
	"https":      "HTTPS",
	"json":       "JSON",
	"sql":        "SQL",
	"url":        "URL",
	"cpu":        "CPU",
	"gpu":        "GPU",
	"ide":        "IDE",
	"cli":        "CLI",
	"sdk":        "SDK",
	"faq":        "FAQ",
	"pdf":        "PDF",
	"csv":        "CSV",
	"react":      "React",
	"javascript": "JavaScript",
	"typescript": "TypeScript",
	"node.js":    "Node.js",
	"github":     "GitHub",
	"ios":        "iOS",
	"c++":        "C++",
	"c#":         "C#",
}

// questionWords are stripped from the front of the simplified
// first-sentence fallback.
var questionWords = map[string]bool{
	"what": true, "whats": true, "what's": true, "how": true,
	"why": true, "when": true, "where": true, "who": true,
	"which": true, "can": true, "could": true, "would": true,
	"should": true, "will": true, "do": true, "does": true,
	"did": true, "is": true, "are": true, "was": true, "were": true,
	"please": true, "hey": true, "hi": true, "hello": true,
}
