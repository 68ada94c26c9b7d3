package model

// Message is one role/content pair of an assembled prompt.
type Message struct {
	Role    Role
	Content string
}

// Prompt is the ordered message list handed to the completion model for
// one interaction. It exists only for the duration of that interaction.
type Prompt []Message
