package action

import (
	"fmt"
	"strings"

	"github.com/monoco-io/fabric/pkg/types"
)

// ExpandTemplate substitutes {key} placeholders with values from the
// event payload. Unknown placeholders are left intact so partially
// filled templates stay debuggable.
func ExpandTemplate(template string, event *types.Event) string {
	if event == nil || len(event.Payload) == 0 {
		return template
	}
	out := template
	for key, value := range event.Payload {
		placeholder := "{" + key + "}"
		if !strings.Contains(out, placeholder) {
			continue
		}
		out = strings.ReplaceAll(out, placeholder, fmt.Sprintf("%v", value))
	}
	if strings.Contains(out, "{event_type}") {
		out = strings.ReplaceAll(out, "{event_type}", string(event.Type))
	}
	return out
}
