package report

import "strings"

var latexEscaper = strings.NewReplacer(
	`$`, `\$`,
	`%`, `\%`,
	`&`, `\&`,
	`#`, `\#`,
	`_`, `\_`,
)

// EscapeLaTeX escapes control characters commonly found in raw data so
// they can be embedded in a LaTeX document body.
func EscapeLaTeX(text string) string {
	return latexEscaper.Replace(text)
}

// RepairItemize appends missing \end{itemize} tags. Generated sections
// sometimes leave lists unclosed, which aborts the whole compile.
func RepairItemize(text string) string {
	open := strings.Count(text, `\begin{itemize}`)
	closed := strings.Count(text, `\end{itemize}`)
	for ; open > closed; closed++ {
		text += `\end{itemize}`
	}
	return text
}
