package fs

import "strings"

// Text is file content split into lines, remembering the line ending style
// and whether the content ended with a newline so it can be rebuilt exactly.
type Text struct {
	Lines           []string
	EOL             string
	TrailingNewline bool
}

// SplitLines splits content on "\n", dropping a "\r" before each break.
// Empty content has zero lines.
func SplitLines(content []byte) Text {
	s := string(content)
	t := Text{EOL: "\n"}
	if s == "" {
		return t
	}
	if i := strings.IndexByte(s, '\n'); i > 0 && s[i-1] == '\r' {
		t.EOL = "\r\n"
	}
	if strings.HasSuffix(s, "\n") {
		t.TrailingNewline = true
		s = strings.TrimSuffix(s, "\n")
	}
	t.Lines = strings.Split(s, "\n")
	for i, line := range t.Lines {
		t.Lines[i] = strings.TrimSuffix(line, "\r")
	}
	return t
}

// Bytes joins the lines back using the remembered line ending.
func (t Text) Bytes() []byte {
	if len(t.Lines) == 0 {
		return nil
	}
	eol := t.EOL
	if eol == "" {
		eol = "\n"
	}
	out := strings.Join(t.Lines, eol)
	if t.TrailingNewline {
		out += eol
	}
	return []byte(out)
}

// WithLines returns a copy of t holding lines.
func (t Text) WithLines(lines []string) Text {
	t.Lines = lines
	return t
}
