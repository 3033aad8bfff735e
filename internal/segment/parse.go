package segment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/types"
)

// rawItem is one element of the oracle's JSON array. Offsets are decoded as
// loose values because models occasionally emit them as strings; they are
// advisory only — repair recomputes real offsets from the item text.
type rawItem struct {
	Text  string `json:"text"`
	Type  string `json:"type"`
	Start any    `json:"start"`
	End   any    `json:"end"`
}

// parseResponse unmarshals the oracle output into raw items. It strips
// markdown code fences before parsing. A response that is not a JSON array
// after stripping is a hard parse failure.
func parseResponse(content string) ([]rawItem, error) {
	cleaned := stripMarkdown(content)

	var items []rawItem
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, fmt.Errorf("segment: parse response: %w", err)
	}
	return items, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models prepend and append to JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// repair turns raw oracle items into validated chunks. The oracle's reported
// offsets are ignored: each item's text is located in the source by substring
// search from a moving cursor, which guarantees in-order, non-overlapping
// byte offsets and the exact-substring invariant. Items whose text cannot be
// found ahead of the cursor (out of order, hallucinated, or already consumed)
// are discarded and logged, never coerced to position zero.
func (s *Segmenter) repair(items []rawItem, source string, language lang.Tag) []types.Chunk {
	chunks := make([]types.Chunk, 0, len(items))
	cursor := 0

	for _, item := range items {
		if item.Text == "" || strings.TrimSpace(item.Text) == "" {
			continue
		}

		idx := strings.Index(source[cursor:], item.Text)
		if idx < 0 {
			s.logger.Debug("discarding chunk not found in source",
				"text", item.Text, "cursor", cursor)
			continue
		}

		start := cursor + idx
		end := start + len(item.Text)
		cursor = end

		chunks = append(chunks, types.Chunk{
			Text:     item.Text,
			Type:     types.ChunkType(item.Type).Normalize(),
			Start:    start,
			End:      end,
			Language: language,
		})
	}
	return chunks
}
