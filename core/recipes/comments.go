package recipes

import "strings"

// stripComments removes `###`-delimited block comments and `#` line
// comments, ignoring markers inside double-quoted spans. The line count is
// preserved (comment text is blanked, not removed) so grammar errors
// report positions in the original file.
func stripComments(text string) string {
	lines := strings.Split(text, "\n")
	inBlock := false
	for i, line := range lines {
		lines[i] = stripLine(line, &inBlock)
	}
	return strings.Join(lines, "\n")
}

func stripLine(line string, inBlock *bool) string {
	var out strings.Builder
	inQuote := false
	for i := 0; i < len(line); {
		if !inQuote && strings.HasPrefix(line[i:], "###") {
			*inBlock = !*inBlock
			i += 3
			continue
		}
		c := line[i]
		if *inBlock {
			i++
			continue
		}
		if c == '"' {
			inQuote = !inQuote
		}
		if !inQuote && c == '#' {
			// Line comment runs to end of line; a block already toggled
			// off above would have consumed its marker.
			break
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}
