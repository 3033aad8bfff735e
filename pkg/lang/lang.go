// Package lang defines the canonical language tags used throughout Pageglot.
//
// All raw language codes — oracle output, browser locales, config values —
// must pass through [Canonicalize] before use anywhere else in the pipeline.
// This is an invariant, not an optimisation: speech-synthesis voice selection
// and readability scoring key off exact canonical tags, so a stray "zh" or
// "en_us" leaking past this package would silently select the wrong voice.
package lang

import (
	"strings"

	"golang.org/x/text/language"
)

// Tag is a normalized BCP-47-like language code drawn from the fixed
// supported set (e.g. "en-US", "zh-CN").
type Tag string

const (
	// Unknown is returned when no language can be determined, e.g. for empty
	// input. It is not a member of the supported set.
	Unknown Tag = ""

	EnglishUS  Tag = "en-US"
	EnglishUK  Tag = "en-GB"
	ChineseCN  Tag = "zh-CN"
	ChineseTW  Tag = "zh-TW"
	Japanese   Tag = "ja-JP"
	Korean     Tag = "ko-KR"
	Thai       Tag = "th-TH"
	French     Tag = "fr-FR"
	German     Tag = "de-DE"
	Spanish    Tag = "es-ES"
	Portuguese Tag = "pt-BR"
	Russian    Tag = "ru-RU"
	Vietnamese Tag = "vi-VN"
)

// Default is the tag used when canonicalization cannot map the input to a
// supported tag.
const Default = EnglishUS

// Supported lists every tag the pipeline may produce, in no particular order.
var Supported = []Tag{
	EnglishUS, EnglishUK, ChineseCN, ChineseTW, Japanese, Korean,
	Thai, French, German, Spanish, Portuguese, Russian, Vietnamese,
}

// aliases maps lowercase raw codes to canonical tags for inputs that
// region-matching alone gets wrong (script subtags, legacy spellings).
var aliases = map[string]Tag{
	"zh":         ChineseCN,
	"zh-hans":    ChineseCN,
	"zh-hans-cn": ChineseCN,
	"zh-hant":    ChineseTW,
	"zh-hant-tw": ChineseTW,
	"cmn":        ChineseCN,
	"en":         EnglishUS,
	"ja":         Japanese,
	"ko":         Korean,
	"th":         Thai,
	"fr":         French,
	"de":         German,
	"es":         Spanish,
	"pt":         Portuguese,
	"ru":         Russian,
	"vi":         Vietnamese,
}

// baseToTag maps ISO 639-1 base codes to the canonical regional tag used for
// that base when the input carries no usable region.
var baseToTag = map[string]Tag{
	"en": EnglishUS,
	"zh": ChineseCN,
	"ja": Japanese,
	"ko": Korean,
	"th": Thai,
	"fr": French,
	"de": German,
	"es": Spanish,
	"pt": Portuguese,
	"ru": Russian,
	"vi": Vietnamese,
}

// supportedSet is the membership index over Supported.
var supportedSet = func() map[Tag]struct{} {
	m := make(map[Tag]struct{}, len(Supported))
	for _, t := range Supported {
		m[t] = struct{}{}
	}
	return m
}()

// IsSupported reports whether t is a member of the supported set.
func IsSupported(t Tag) bool {
	_, ok := supportedSet[t]
	return ok
}

// Canonicalize maps a raw language code to a canonical [Tag]. It accepts the
// full mess of real-world input: bare base codes ("en"), script subtags
// ("zh-Hans"), underscore separators ("en_US"), and arbitrary case. Unknown
// or unparseable input maps to [Default], never to an error — downstream code
// must always have a usable tag.
func Canonicalize(raw string) Tag {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Default
	}
	normalized := strings.ToLower(strings.ReplaceAll(raw, "_", "-"))

	if t, ok := aliases[normalized]; ok {
		return t
	}
	if t := Tag(canonicalCase(normalized)); IsSupported(t) {
		return t
	}

	// Fall back to BCP-47 parsing for anything fancier (extensions, odd
	// regions, three-letter codes).
	parsed, err := language.Parse(normalized)
	if err != nil {
		return Default
	}
	base, conf := parsed.Base()
	if conf == language.No {
		return Default
	}
	if t, ok := baseToTag[base.String()]; ok {
		return t
	}
	return Default
}

// canonicalCase rewrites a lowercase ll-rr code into ll-RR form so that e.g.
// "en-gb" can be tested against the supported set directly.
func canonicalCase(code string) string {
	parts := strings.SplitN(code, "-", 2)
	if len(parts) != 2 || len(parts[1]) != 2 {
		return code
	}
	return parts[0] + "-" + strings.ToUpper(parts[1])
}

// Base returns the ISO 639-1 base code of t (e.g. "zh" for "zh-CN").
func (t Tag) Base() string {
	s := string(t)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}

// IsCJK reports whether t denotes a language written without whitespace word
// boundaries. The deterministic fallback segmenter switches to per-character
// chunking for these.
func (t Tag) IsCJK() bool {
	switch t.Base() {
	case "zh", "ja", "ko":
		return true
	}
	return false
}

// String returns the tag as a plain string.
func (t Tag) String() string {
	return string(t)
}
