package tghtml

import "unicode"

// SplitText splits s into chunks of at most limit runes.
//
// Chunks break at the nearest preceding whitespace boundary; the boundary
// whitespace rune itself is consumed by the split. A chunk never ends inside
// an HTML tag, with one exception: a single tag longer than limit cannot be
// kept whole and is cut hard. When a window contains no usable whitespace
// the text is cut hard at the limit, backing off to the start of a dangling
// tag where possible.
func SplitText(s string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLen
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end >= len(rs) {
			out = append(out, string(rs[start:]))
			break
		}

		// end < len(rs) here, so the mask may include the rune just past
		// the window: a whitespace there lets the chunk fill the limit.
		inTag := tagMask(rs[start : end+1])

		// Nearest whitespace at or before the window end, outside any tag.
		cut := -1
		for i := end; i > start; i-- {
			if unicode.IsSpace(rs[i]) && !inTag[i-start] {
				cut = i
				break
			}
		}
		if cut != -1 {
			out = append(out, string(rs[start:cut]))
			start = cut + 1
			continue
		}

		// Hard cut; back off to the start of a dangling tag if needed.
		lastOpen, lastClose := -1, -1
		for i := start; i < end; i++ {
			switch rs[i] {
			case '<':
				lastOpen = i
			case '>':
				lastClose = i
			}
		}
		// lastOpen == start means the tag fills the whole window; backing
		// off would emit an empty chunk, so the oversized tag is cut hard.
		if lastOpen > lastClose && lastOpen > start {
			end = lastOpen
		}
		out = append(out, string(rs[start:end]))
		start = end
	}
	return out
}

// tagMask marks which positions of rs sit inside an HTML tag
// (between '<' and its closing '>').
func tagMask(rs []rune) []bool {
	mask := make([]bool, len(rs))
	in := false
	for i, r := range rs {
		if r == '<' {
			in = true
		}
		mask[i] = in
		if r == '>' {
			in = false
		}
	}
	return mask
}
