package client

import (
	"github.com/viant/mcp-protocol/schema"
)

// TextElement builds a text content element in the generic map shape the
// protocol wire format decodes to.
func TextElement(text string) schema.CallToolResultContentElem {
	return map[string]interface{}{"type": "text", "text": text}
}

// ContentText extracts the text from a content element; false for non-text
// or empty elements.
func ContentText(elem schema.CallToolResultContentElem) (string, bool) {
	content, ok := elem.(map[string]interface{})
	if !ok {
		return "", false
	}
	if kind, _ := content["type"].(string); kind != "text" {
		return "", false
	}
	text, ok := content["text"].(string)
	return text, ok && text != ""
}
