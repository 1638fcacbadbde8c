package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-formdoc/pkg/harness"
)

const systemPrompt = `You fill structured forms by proposing patches.
Reply with a JSON array of patch objects and nothing else. Each object has
an "op" plus the fields that op needs:

  {"op":"set_string","field":ID,"value":TEXT}
  {"op":"set_number","field":ID,"value":"42"}
  {"op":"set_date","field":ID,"value":"2006-01-02"}
  {"op":"set_year","field":ID,"value":"1999"}
  {"op":"set_string_list","field":ID,"values":[ITEM,...]}
  {"op":"set_url_list","field":ID,"values":[URL,...]}
  {"op":"set_single_select","field":ID,"value":OPTION_ID}
  {"op":"set_multi_select","field":ID,"values":[OPTION_ID,...]}
  {"op":"set_checkboxes","field":ID,"checks":{OPTION_ID:MARK,...}}
  {"op":"set_table","field":ID,"rows":[{COLUMN_ID:CELL,...},...]}
  {"op":"clear_field","field":ID}
  {"op":"skip_field","field":ID,"reason":TEXT,"by":ROLE}
  {"op":"abort_field","field":ID,"reason":TEXT}
  {"op":"add_note","ref":ID,"text":TEXT}
  {"op":"remove_note","note":NOTE_ID}

Only address the issues you are shown. If an issue's answer cannot be
determined, use abort_field with a reason instead of guessing. Never exceed
the patch budget.`

// renderRequest turns a harness request into the user message. The payload
// is plain JSON; models handle it more reliably than prose.
func renderRequest(req harness.Request) (string, error) {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("openai: encode request: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Turn %d. Propose at most %d patches for the issues below.\n\n", req.Turn, req.MaxPatches)
	b.Write(payload)
	return b.String(), nil
}

// extractArray cuts the first JSON array out of a model reply, tolerating
// fenced code blocks and surrounding prose.
func extractArray(reply string) (string, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return "", fmt.Errorf("openai: reply contains no JSON array")
	}
	return reply[start : end+1], nil
}
