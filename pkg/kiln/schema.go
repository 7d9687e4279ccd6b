package kiln

import (
	"encoding/json"
	"strings"
)

// SchemaContext is the @context of generated JSON-LD.
const SchemaContext = "https://schema.org"

// JSONLDScript renders v as a compact application/ld+json script
// element. The JSON is HTML-escaped so it cannot end the element early.
func JSONLDScript(v any) Raw {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return Raw(`<script type="application/ld+json">` + string(data) + `</script>`)
}

// MissingPropsError is returned by a generated props builder when
// required props were not set.
type MissingPropsError struct {
	Component string
	Props     []string
}

func (e *MissingPropsError) Error() string {
	return e.Component + ": missing required props: " + strings.Join(e.Props, ", ")
}
