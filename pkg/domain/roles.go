package domain

// Role defines the sender of a conversation turn.
type Role string

const (
	// RoleUser indicates a message from the user.
	RoleUser Role = "user"
	// RoleAssistant indicates a response produced by the pipeline.
	RoleAssistant Role = "assistant"
)
