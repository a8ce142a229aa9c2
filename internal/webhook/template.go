package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Render substitutes every {{name}} occurrence in the template with the
// matching variable value and parses the result as JSON.
//
// Substitution is purely textual: string values are inserted as-is (the
// template author supplies the surrounding quotes), numbers and booleans as
// their literal form, and nil as the token null. Placeholders without a
// matching variable are left untouched. The rendered text must parse as
// JSON; the returned bytes are the re-serialized document.
func Render(template string, vars map[string]any) ([]byte, error) {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{{"+name+"}}", formatValue(value))
	}
	rendered := strings.NewReplacer(pairs...).Replace(template)

	var parsed any
	if err := json.Unmarshal([]byte(rendered), &parsed); err != nil {
		return nil, &TemplateError{Err: err}
	}
	return json.Marshal(parsed)
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
