package inference

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"
)

const (
	transcriptionTemplate = "Transcribe this audio literally into {{.language}}. " +
		"Reply with the transcription only, without any additional comments."

	descriptionTemplate = "Describe this image in detail in {{.language}}. " +
		"If it contains any text, reproduce that text verbatim. Reply with the description only."

	summarySystemTemplate = `You are a personal assistant that keeps a running summary of a chat conversation.
You receive the previous summary and the newest messages. Merge them into one updated summary written in {{.language}}.
Keep what is still relevant from the previous summary, add what the new messages reveal and drop what they contradict.
Use short sections with emoji headings, for example:
🎯 Objective: what the other person wants
📌 Key points: facts, dates, amounts and names
✅ Pending: what still needs an answer or an action
Reply with the summary only.`
)

type taskPrompts struct {
	transcription string
	description   string
	summarySystem string
}

func renderPrompts(language string) (taskPrompts, error) {
	values := map[string]any{"language": language}

	var result taskPrompts

	for _, item := range []struct {
		name     string
		template string
		target   *string
	}{
		{"transcription", transcriptionTemplate, &result.transcription},
		{"description", descriptionTemplate, &result.description},
		{"summary", summarySystemTemplate, &result.summarySystem},
	} {
		template := prompts.PromptTemplate{
			Template:       item.template,
			InputVariables: []string{"language"},
			TemplateFormat: prompts.TemplateFormatGoTemplate,
		}

		rendered, err := template.Format(values)
		if err != nil {
			return taskPrompts{}, fmt.Errorf("failed to render %s prompt: %w", item.name, err)
		}

		*item.target = rendered
	}

	return result, nil
}
