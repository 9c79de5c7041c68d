package templates

import (
	"fmt"
	"strings"
)

// Compile replaces every {{key}} for each key in vars with the value's string
// form, or "" for a nil value. Placeholders without a key are left as written.
// The replacement runs in a single pass over content, so a substituted value
// that itself contains a placeholder is never expanded again.
func Compile(content string, vars map[string]any) string {
	if len(vars) == 0 || !strings.Contains(content, "{{") {
		return content
	}
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", stringify(value))
	}
	return strings.NewReplacer(pairs...).Replace(content)
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case *int:
		if val == nil {
			return ""
		}
		return fmt.Sprint(*val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
