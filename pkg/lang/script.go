package lang

// Rune classification helpers used by the deterministic detection fallback and
// the CJK fallback segmenter. These deliberately cover only the ranges the
// detection heuristic needs, not full Unicode script tables.

// IsCJKRune reports whether r falls in the CJK ideograph ranges (unified
// ideographs, extension A, and CJK symbols/punctuation).
func IsCJKRune(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // Extension A
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK Symbols and Punctuation
		return true
	}
	return false
}

// IsThaiRune reports whether r falls in the Thai script block.
func IsThaiRune(r rune) bool {
	return r >= 0x0E00 && r <= 0x0E7F
}

// IsPrintableASCII reports whether r is a printable ASCII character
// (space through tilde).
func IsPrintableASCII(r rune) bool {
	return r >= 0x20 && r <= 0x7E
}

// IsKanaRune reports whether r is Hiragana or Katakana. Used to distinguish
// Japanese from Chinese text when both contain CJK ideographs.
func IsKanaRune(r rune) bool {
	return (r >= 0x3040 && r <= 0x309F) || (r >= 0x30A0 && r <= 0x30FF)
}

// IsHangulRune reports whether r is a Hangul syllable or jamo.
func IsHangulRune(r rune) bool {
	return (r >= 0xAC00 && r <= 0xD7AF) || (r >= 0x1100 && r <= 0x11FF)
}
