package retrieval

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/perbu/ragstream/pkg/minirag"
	"github.com/perbu/ragstream/pkg/stripper"
)

const docsPromptTmpl = `You are an assistant that answers questions about a set of documents.

Answer the question using ONLY the information in the CONTEXT section below.
Do not use any knowledge outside of that context.
If the context does not contain the answer, reply with exactly this sentence and nothing else:
%s

CONTEXT:
%s`

const generalPrompt = "You are a helpful assistant. Answer clearly and concisely."

// BuildMessages assembles the docs-mode prompt from the chosen chunks.
func BuildMessages(question string, chunks []minirag.SearchResult) []openai.ChatCompletionMessage {
	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		if c.Chunk.Path != "" {
			fmt.Fprintf(&sb, "[%d] (%s)\n", i+1, c.Chunk.Path)
		} else {
			fmt.Fprintf(&sb, "[%d]\n", i+1)
		}
		sb.WriteString(c.Chunk.Content)
	}

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(docsPromptTmpl, stripper.FallbackSentence, sb.String())},
		{Role: openai.ChatMessageRoleUser, Content: question},
	}
}

// GeneralMessages assembles the general-knowledge prompt
func GeneralMessages(question string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: generalPrompt},
		{Role: openai.ChatMessageRoleUser, Content: question},
	}
}

// Messages returns the prompt for a decision
func (d Decision) Messages(question string) []openai.ChatCompletionMessage {
	if d.Mode == ModeDocs {
		return BuildMessages(question, d.Chunks)
	}
	return GeneralMessages(question)
}
