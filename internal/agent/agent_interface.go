package agent

import "context"

// Responder turns a player message plus game context into the sphinx's reply.
// Implementations may fail transiently; callers treat replies as best effort.
type Responder interface {
	Respond(ctx context.Context, p Prompt) (string, error)

	// Close releases resources
	Close()
}

var (
	_ Responder = (*GrpcResponder)(nil)
	_ Responder = (*GeminiResponder)(nil)
	_ Responder = (*ScriptedResponder)(nil)
)
