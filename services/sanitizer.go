package services

import "strings"

const FallbackResponse = "I couldn't generate a detailed response. Let me try a different approach. " +
	"Could you rephrase your question or provide more specific details about what you're looking for?"

// CleanResponse strips bold and italic markers. Blank output becomes
// FallbackResponse.
func CleanResponse(raw string) string {
	content := strings.ReplaceAll(raw, "**", "")
	content = strings.ReplaceAll(content, "*", "")
	if strings.TrimSpace(content) == "" {
		return FallbackResponse
	}
	return content
}
