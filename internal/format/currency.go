// Package format renders ledger results as chat replies.
package format

import (
	"fmt"
	"strings"

	"finanzas/internal/core"

	"github.com/dustin/go-humanize"
)

// Mode is the markup dialect a reply is written in.
type Mode int

const (
	Plain Mode = iota
	Markdown
	MarkdownV2
)

// ParseMode is the transport's name for m; Plain has none.
func (m Mode) ParseMode() string {
	switch m {
	case Markdown:
		return "Markdown"
	case MarkdownV2:
		return "MarkdownV2"
	default:
		return ""
	}
}

// ModeFromParseMode is the inverse of ParseMode. Unknown names map to Plain.
func ModeFromParseMode(s string) Mode {
	switch s {
	case "Markdown":
		return Markdown
	case "MarkdownV2":
		return MarkdownV2
	default:
		return Plain
	}
}

// Currency formats cents as "$ 50.000,00" (dot thousands, comma decimals).
// It works on the integer cents, so every int64 amount prints exactly.
func Currency(m core.Money) string {
	units, cents := m.Cents/100, m.Cents%100
	sign := ""
	if m.Cents < 0 {
		sign = "-"
		units, cents = -units, -cents
	}
	grouped := strings.ReplaceAll(humanize.Comma(units), ",", ".")
	return fmt.Sprintf("%s$ %s,%02d", sign, grouped, cents)
}

var markdownV2Escaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", "\\~", "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// Escape prepares text for mode. Only MarkdownV2 rewrites anything.
func Escape(mode Mode, s string) string {
	if mode != MarkdownV2 {
		return s
	}
	return markdownV2Escaper.Replace(s)
}

// boldMarkdown wraps s in legacy Markdown bold. That dialect has no escapes
// inside an entity, so each special character closes the entity, appears
// escaped, and the entity reopens after it.
func boldMarkdown(s string) string {
	var b, run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			b.WriteString("*" + run.String() + "*")
			run.Reset()
		}
	}
	for _, r := range s {
		switch r {
		case '_', '*', '`', '[':
			flush()
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			run.WriteRune(r)
		}
	}
	flush()
	return b.String()
}
