package services

import (
	"grokchat/data"
	"grokchat/models"
)

const SystemPrompt = "You are GROK, a helpful assistant. Respond briefly and directly:\n" +
	"\n" +
	"For SIMPLE questions (name, greeting, basic info from our conversation):\n" +
	"- Give a short, direct answer (1 sentence maximum)\n" +
	"- Don't ask follow-up questions or elaborate\n" +
	"- Just answer what was asked\n" +
	"\n" +
	"For SERVICE PROVIDER questions (best service, who provides, recommendations):\n" +
	"- Start directly with specific recommendations\n" +
	"- Give 2-3 concrete options with names, locations, and contact info\n" +
	"- Include a short 'How to verify' section with 3-4 bullet points\n" +
	"- Total response should be 150-300 words maximum\n" +
	"\n" +
	"For GENERAL questions:\n" +
	"- Give clear, concise answers\n" +
	"- Don't over-explain or ask follow-ups unless requested\n" +
	"\n" +
	"ALWAYS:\n" +
	"- Be direct and to-the-point\n" +
	"- Don't ask unnecessary follow-up questions\n" +
	"- No markdown formatting\n" +
	"- Answer the question asked, nothing more"

const QueryPrefix = "Please provide a comprehensive, detailed answer: "

// DefaultGenerationParams are sent with every completion request.
var DefaultGenerationParams = models.GenerationParams{
	Temperature: 0.8,
	MaxTokens:   1200,
}

// BuildMessages lays out the system prompt, the recent exchanges as
// user/assistant pairs and the new query with its instruction prefix.
func BuildMessages(systemPrompt string, recent []data.Exchange, query string) []models.Message {
	messages := make([]models.Message, 0, 2+2*len(recent))
	messages = append(messages, models.Message{Role: models.RoleSystem, Content: systemPrompt})
	for _, ex := range recent {
		messages = append(messages,
			models.Message{Role: models.RoleUser, Content: ex.UserQuery},
			models.Message{Role: models.RoleAssistant, Content: ex.AssistantResponse},
		)
	}
	messages = append(messages, models.Message{Role: models.RoleUser, Content: QueryPrefix + query})
	return messages
}
