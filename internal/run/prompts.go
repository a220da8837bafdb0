package run

import (
	"embed"
)

//go:embed prompts
var promptFS embed.FS

// loadPrompt returns an embedded prompt template by file name.
func loadPrompt(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name)
	if err != nil {
		// Embedded files are fixed at build time; a miss is a programming error.
		panic("missing embedded prompt: " + name)
	}
	return string(data)
}

// continuationPrompt is resent in the same session when a turn ends with
// no usable content, which happens when the model stops after tool calls
// without producing the report.
const continuationPrompt = "Your previous turn ended without the final report. " +
	"Continue where you left off and produce the complete report now, " +
	"using the required template."
