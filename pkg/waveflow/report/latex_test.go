package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLaTeX(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"dollar", "$100", `\$100`},
		{"percent", "15% growth", `15\% growth`},
		{"ampersand", "A&B", `A\&B`},
		{"hash", "#1", `\#1`},
		{"underscore", "units_sold", `units\_sold`},
		{"mixed", "R&D spend up 5% ($2M)", `R\&D spend up 5\% (\$2M)`},
		{"clean text", "nothing to do", "nothing to do"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EscapeLaTeX(tt.in))
		})
	}
}

func TestRepairItemize(t *testing.T) {
	t.Run("balanced untouched", func(t *testing.T) {
		in := `\begin{itemize}\item a\end{itemize}`
		assert.Equal(t, in, RepairItemize(in))
	})

	t.Run("one missing close", func(t *testing.T) {
		in := `\begin{itemize}\item a`
		out := RepairItemize(in)
		assert.Equal(t, 1, strings.Count(out, `\end{itemize}`))
	})

	t.Run("nested missing closes", func(t *testing.T) {
		in := `\begin{itemize}\item \begin{itemize}\item deep`
		out := RepairItemize(in)
		assert.Equal(t, 2, strings.Count(out, `\end{itemize}`))
	})

	t.Run("no lists", func(t *testing.T) {
		assert.Equal(t, "plain text", RepairItemize("plain text"))
	})
}
