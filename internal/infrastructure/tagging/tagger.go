// Package tagging derives civic category tags and a language tag from text.
package tagging

import (
	"regexp"
	"strings"

	"github.com/pemistahl/lingua-go"

	"CivicScanner/internal/ports"
)

// LanguagePrefix marks the detected-language tag, e.g. "lang:en".
const LanguagePrefix = "lang:"

type category struct {
	tag     string
	pattern *regexp.Regexp
}

var categories = []category{
	{"agenda", regexp.MustCompile(`(?i)\bagendas?\b`)},
	{"minutes", regexp.MustCompile(`(?i)\bminutes\b`)},
	{"notice", regexp.MustCompile(`(?i)\bnotices?\b`)},
	{"public-hearing", regexp.MustCompile(`(?i)\bpublic\s*hearings?\b`)},
	{"budget", regexp.MustCompile(`(?i)\b(budget|millage|appropriations?)\b`)},
	{"zoning", regexp.MustCompile(`(?i)\b(zoning|rezoning|variance|land use)\b`)},
	{"election", regexp.MustCompile(`(?i)\b(elections?|ballots?|polling)\b`)},
}

// detectLanguages limits the detector to languages common in US civic documents.
var detectLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.Portuguese,
	lingua.Vietnamese,
	lingua.Chinese,
	lingua.Korean,
	lingua.Tagalog,
	lingua.Arabic,
	lingua.Russian,
}

// Tagger implements ports.Tagger.
type Tagger struct {
	detector lingua.LanguageDetector
}

var _ ports.Tagger = (*Tagger)(nil)

// NewTagger builds a tagger with the language detector enabled.
func NewTagger() *Tagger {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(detectLanguages...).
		Build()
	return &Tagger{detector: detector}
}

// NewKeywordTagger builds a tagger without language detection.
func NewKeywordTagger() *Tagger {
	return &Tagger{}
}

// Tags returns matching categories in a fixed order, then the language tag.
func (t *Tagger) Tags(text string) []string {
	tags := []string{}
	for _, c := range categories {
		if c.pattern.MatchString(text) {
			tags = append(tags, c.tag)
		}
	}

	if t.detector != nil && strings.TrimSpace(text) != "" {
		if lang, ok := t.detector.DetectLanguageOf(text); ok {
			tags = append(tags, LanguagePrefix+strings.ToLower(lang.IsoCode639_1().String()))
		}
	}
	return tags
}
