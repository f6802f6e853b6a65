package runtime

import (
	"fmt"
	"regexp"
)

// promptToken matches {{identifier}} references, with optional surrounding
// whitespace inside the braces.
var promptToken = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_.]*)\s*\}\}`)

// renderPrompt substitutes {{key}} tokens with the corresponding context
// data value. Missing keys render as empty strings so a half-filled context
// never leaks template syntax to the user.
func renderPrompt(template string, data map[string]any) string {
	if template == "" {
		return ""
	}
	return promptToken.ReplaceAllStringFunc(template, func(token string) string {
		key := promptToken.FindStringSubmatch(token)[1]
		if v, ok := data[key]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
		return ""
	})
}
