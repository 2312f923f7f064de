package app

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ragStatusPresent = "RAG evidence present: treat it as the ground truth."
	ragStatusEmpty   = "NO RAG EVIDENCE RETRIEVED: answer from general knowledge only, limited to widely accepted facts."

	generalKnowledgeUnavailable = "General knowledge lookup failed; no general knowledge is available for this question."
	generalKnowledgeSource      = "General knowledge"
)

const answerPreamble = `You are an expert assistant.
Answer the question using the data given below.
Strictly follow the instructions below when answering.`

const answerInstructions = `1. Data usage
- Use the RAG evidence as the primary source of facts and definitions.
- Use more information from items listed first; they are the closest matches.
- Each evidence item has "content" and "meta_data". Answer from "content"; use "meta_data" only to identify the source document and pages.

2. Missing information
- If neither the RAG evidence nor reliable general knowledge covers the topic of the question, reply in the language of the question:
  "The submitted documents do not contain information about <topic>."
- Never fabricate, guess or infer facts that are absent from the data.

3. Sources
- List the documents you used at the bottom of the answer, once each, as "Document: <file name>" with pages when known.
- Only list sources that are relevant to the answer. If none are relevant, omit the sources section.

4. Format and tone
- Structure the answer like a short technical document; use Markdown tables when a table helps.
- Answer only the question asked, in the language of the question, in a professional tone without emojis.
- If the data is ambiguous or incomplete, say so and cite only the relevant parts.`

const mergeInstructions = `1. The RAG evidence is the ground truth.
2. If the RAG evidence is EMPTY, answer only from the general knowledge block. Be concise and factual and restrict yourself to consensus facts.
3. If the RAG evidence is PRESENT, the general knowledge block may only add detail or wider context that does not contradict it.
4. When the general knowledge contradicts the RAG evidence, discard the general knowledge.
5. When general knowledge is used, add "General knowledge" to the sources next to the documents.`

type evidence struct {
	Content  string         `json:"content"`
	MetaData map[string]any `json:"meta_data"`
}

func generalKnowledgePrompt(question string) string {
	return fmt.Sprintf("Answer the question %q factually and briefly, using only your general knowledge.", question)
}

func titlePrompt(question string) string {
	return fmt.Sprintf("Create a short, clear title for a chat that starts with the message between brackets. Reply with the title only. (%s)", question)
}

// answerPrompt composes the single generation request: evidence, the
// general knowledge block, the evidence status flag and the merge rules.
func answerPrompt(question string, items []evidence, generalKnowledge string) (string, error) {
	if items == nil {
		items = []evidence{}
	}
	rag, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode evidence: %w", err)
	}
	gk, err := json.Marshal(map[string]string{
		"source":  generalKnowledgeSource,
		"content": generalKnowledge,
	})
	if err != nil {
		return "", fmt.Errorf("encode general knowledge: %w", err)
	}

	status := ragStatusPresent
	if len(items) == 0 {
		status = ragStatusEmpty
	}

	var b strings.Builder
	b.WriteString(answerPreamble)
	b.WriteString("\n\nRAG evidence (ground truth): ")
	b.Write(rag)
	b.WriteString("\nGeneral knowledge (context only): ")
	b.Write(gk)
	b.WriteString("\nRAG status: ")
	b.WriteString(status)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString(answerInstructions)
	b.WriteString("\n\nMerge instructions:\n")
	b.WriteString(mergeInstructions)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String(), nil
}
