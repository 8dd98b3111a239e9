package turn

import "strings"

// DefaultDelimiter separates the echoed prompt from the model's reply in
// raw generation output.
const DefaultDelimiter = "<|assistant|>"

// ExtractReply returns the text after the last occurrence of delimiter,
// trimmed. Without a delimiter match the whole text is the reply.
func ExtractReply(raw, delimiter string) string {
	if delimiter != "" {
		if i := strings.LastIndex(raw, delimiter); i >= 0 {
			raw = raw[i+len(delimiter):]
		}
	}
	return strings.TrimSpace(raw)
}

// ErrorResponse is the text shown in place of a reply when generation fails.
func ErrorResponse(err error) string {
	return "Error: " + err.Error()
}
