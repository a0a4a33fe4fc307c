package display

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Markdown renders plugin documentation (README, command help) with
// terminal styling, falling back to the raw text when rendering fails
// or color is off.
func (r *Renderer) Markdown(content string) {
	if !r.color {
		fmt.Fprintln(r.w, content)
		return
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Fprintln(r.w, content)
		return
	}
	out, err := renderer.Render(content)
	if err != nil {
		fmt.Fprintln(r.w, content)
		return
	}
	fmt.Fprint(r.w, out)
}
