package matrix

import (
	"html"
	"strings"
)

// markdownToHTML renders the Markdown subset model replies commonly use
// into Matrix's org.matrix.custom.html format: fenced code blocks, inline
// code, bold and line breaks. Everything else is HTML-escaped.
func markdownToHTML(md string) string {
	var out strings.Builder
	inCode := false
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "```") {
			if inCode {
				out.WriteString("</code></pre>")
			} else {
				out.WriteString("<pre><code>")
			}
			inCode = !inCode
			continue
		}
		out.WriteString(html.EscapeString(line))
		if inCode {
			out.WriteString("\n")
		} else {
			out.WriteString("\x00")
		}
	}
	if inCode {
		out.WriteString("</code></pre>")
	}

	// Inline passes run on text outside code blocks only.
	var b strings.Builder
	rest := out.String()
	for rest != "" {
		start := strings.Index(rest, "<pre><code>")
		if start == -1 {
			b.WriteString(inline(rest))
			break
		}
		end := strings.Index(rest[start:], "</code></pre>")
		if end == -1 {
			b.WriteString(inline(rest))
			break
		}
		end += start + len("</code></pre>")
		b.WriteString(inline(rest[:start]))
		b.WriteString(strings.TrimSuffix(rest[start:end-len("</code></pre>")], "\n"))
		b.WriteString("</code></pre>")
		rest = rest[end:]
	}
	return strings.TrimSuffix(b.String(), "<br/>")
}

func inline(s string) string {
	s = replaceDelimited(s, "`", "<code>", "</code>")
	s = replaceDelimited(s, "**", "<strong>", "</strong>")
	return strings.ReplaceAll(s, "\x00", "<br/>")
}

// replaceDelimited replaces delim...delim pairs with open+content+close.
// An unmatched opener is left as-is.
func replaceDelimited(s, delim, open, close string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, delim)
		if start == -1 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start+len(delim):], delim)
		if end == -1 {
			b.WriteString(s)
			break
		}
		end += start + len(delim)
		b.WriteString(s[:start])
		b.WriteString(open)
		b.WriteString(s[start+len(delim) : end])
		b.WriteString(close)
		s = s[end+len(delim):]
	}
	return b.String()
}
