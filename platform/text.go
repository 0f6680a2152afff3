package platform

import "strings"

// Chunk splits text on line boundaries into parts no longer than size.
// A line that cannot fit in one part is cut.
func Chunk(text string, size int) []string {
	var (
		parts   []string
		current strings.Builder
	)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		for len(line) >= size {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			parts = append(parts, line[:size])
			line = line[size:]
		}
		if current.Len() > 0 && current.Len()+len(line)+1 > size {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteByte('\n')
	}
	if strings.TrimSpace(current.String()) != "" {
		parts = append(parts, current.String())
	}
	return parts
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
