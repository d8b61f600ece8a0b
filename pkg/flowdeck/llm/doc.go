// Package llm holds the language-model collaborators a flow is dispatched to.
//
// FlowiseClient talks to hosted Flowise prediction flows: one for prompt
// completion, and one each for document, CSV and URL retrieval.
// OpenAIClient streams chat completions through the OpenAI API.
// MockClient stands in for either in tests.
package llm
