package prompts

import "strings"

// Built-in templates used when no stored prompt overrides them. Templates
// use single-brace placeholders matching the stored-prompt convention so a
// user-edited prompt and a default render the same way.
const (
	// DefaultRAGPrompt grounds an answer in retrieved passages. It renders
	// into the human message, never as a system message, so the context
	// travels with the question it belongs to.
	DefaultRAGPrompt = `You are a helpful AI assistant. Use the following pieces of context to answer the question at the end. If you don't know the answer, just say you don't know. DO NOT try to make up an answer. If the question is not related to the context, politely respond that you are tuned to only answer questions that are related to the context.

{context}

Question: {question}
Helpful answer:`

	// DefaultWebSearchPrompt grounds an answer in fetched search results.
	DefaultWebSearchPrompt = `You are a helpful assistant that can answer questions based on search results. Cite the sources you used in your answer.

Search results:

{search_results}

Current date: {current_date}

Question: {question}
Answer:`

	// DefaultRewritePrompt condenses a follow-up question into a
	// standalone query before retrieval or search.
	DefaultRewritePrompt = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question.

Chat History:
{chat_history}

Follow Up Input: {question}
Standalone question:`
)

// RenderTemplate substitutes {name} placeholders with the given values.
// Unknown placeholders are left untouched.
func RenderTemplate(template string, values map[string]string) string {
	result := template
	for name, value := range values {
		result = strings.ReplaceAll(result, "{"+name+"}", value)
	}
	return result
}
