// Package prompt holds the fixed instruction preambles sent to the
// generation provider. Keeping them in one place makes prompt changes
// reviewable and keeps the engine free of string literals.
package prompt

// KnowledgeBase is the system preamble for knowledge-base question
// answering. It constrains the model to the retrieved context.
const KnowledgeBase = `You are a knowledgeable assistant that provides accurate information based on the given context.
Follow these guidelines when answering:
1) Only use information from the provided context
2) If the answer isn't in the context, clearly state that
3) Cite specific parts of the context when relevant`

// SessionName is the preamble used to derive a short session title from the
// user's first question.
const SessionName = `Generate a very short, objective name for this question.
The name should be 2-3 words maximum, focusing on the main topic.
Do not include question words or phrases.
Format the response as a single line.`
