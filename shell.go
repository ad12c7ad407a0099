package ptyexpect

import "strings"

// splitCommand splits s into an argv using a minimal whitespace- and
// quote-aware grammar: unquoted fields are separated by runs of
// whitespace; '...' and "..." groups are taken literally, except that
// inside a double-quoted group \" and \\ are recognized as escapes. There
// is no globbing, variable expansion, or subshell support; this is not a
// POSIX shell grammar, only enough to let Spawn accept a human-typed
// command line.
func splitCommand(s string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inField := false
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
			i++
		case c == '\'':
			inField = true
			j := strings.IndexByte(s[i+1:], '\'')
			if j < 0 {
				return nil, wrapErr(KindCommandParsing, "unterminated single quote", nil)
			}
			cur.WriteString(s[i+1 : i+1+j])
			i += j + 2
		case c == '"':
			inField = true
			i++
			closed := false
			for i < len(s) {
				if s[i] == '"' {
					closed = true
					i++
					break
				}
				if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
					cur.WriteByte(s[i+1])
					i += 2
					continue
				}
				cur.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, wrapErr(KindCommandParsing, "unterminated double quote", nil)
			}
		default:
			inField = true
			cur.WriteByte(c)
			i++
		}
	}
	if inField {
		fields = append(fields, cur.String())
	}
	if len(fields) == 0 {
		return nil, wrapErr(KindCommandParsing, "empty command", nil)
	}
	return fields, nil
}
