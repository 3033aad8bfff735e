package segment

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/types"
)

// fallback segments text deterministically, without any oracle. For CJK
// languages it emits one chunk per non-whitespace character (Japanese goes
// through the morphological tokenizer when available); for everything else it
// splits on whitespace runs. Offsets are accumulated against the original
// string, so they stay exact even though whitespace is skipped. The fallback
// never fails.
func (s *Segmenter) fallback(text string, language lang.Tag) []types.Chunk {
	if language.IsCJK() {
		if language.Base() == "ja" && s.jaTokenizer != nil {
			if chunks := s.tokenizeJapanese(text, language); len(chunks) > 0 {
				return chunks
			}
		}
		return perCharacterChunks(text, language)
	}
	return whitespaceChunks(text, language)
}

// tokenizeJapanese segments text morphologically. Token positions reported by
// the tokenizer are rune offsets; they are converted to byte offsets and each
// token is verified against the source. Unverifiable tokens are skipped; if
// nothing verifies, the caller falls back to per-character segmentation.
func (s *Segmenter) tokenizeJapanese(text string, language lang.Tag) []types.Chunk {
	// Rune offset -> byte offset table, with one trailing entry for the end.
	runeToByte := make([]int, 0, len(text)+1)
	for i := range text {
		runeToByte = append(runeToByte, i)
	}
	runeToByte = append(runeToByte, len(text))

	tokens := s.jaTokenizer.Tokenize(text)
	chunks := make([]types.Chunk, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Start < 0 || tok.End > len(runeToByte)-1 || tok.Start >= tok.End {
			continue
		}
		start := runeToByte[tok.Start]
		end := runeToByte[tok.End]
		if text[start:end] != tok.Surface {
			s.logger.Debug("skipping token with mismatched offsets",
				"surface", tok.Surface, "start", start, "end", end)
			continue
		}
		if strings.TrimSpace(tok.Surface) == "" {
			continue
		}
		chunks = append(chunks, types.Chunk{
			Text:     tok.Surface,
			Type:     types.SingleWord,
			Start:    start,
			End:      end,
			Language: language,
		})
	}
	return chunks
}

// perCharacterChunks emits one chunk per non-whitespace rune with exact byte
// offsets.
func perCharacterChunks(text string, language lang.Tag) []types.Chunk {
	chunks := make([]types.Chunk, 0, utf8.RuneCountInString(text))
	for i, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		width := utf8.RuneLen(r)
		chunks = append(chunks, types.Chunk{
			Text:     text[i : i+width],
			Type:     types.SingleWord,
			Start:    i,
			End:      i + width,
			Language: language,
		})
	}
	return chunks
}

// whitespaceChunks splits on runs of whitespace, emitting one chunk per
// non-empty token. Offsets are computed by walking the original string,
// including the whitespace separators, so they remain exact.
func whitespaceChunks(text string, language lang.Tag) []types.Chunk {
	var chunks []types.Chunk
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				chunks = append(chunks, types.Chunk{
					Text:     text[start:i],
					Type:     types.SingleWord,
					Start:    start,
					End:      i,
					Language: language,
				})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		chunks = append(chunks, types.Chunk{
			Text:     text[start:],
			Type:     types.SingleWord,
			Start:    start,
			End:      len(text),
			Language: language,
		})
	}
	return chunks
}
