package interfaces

import "context"

// ImageDescriber turns an image into a caption. It never returns an empty caption without error.
type ImageDescriber interface {
	Describe(ctx context.Context, image []byte) (string, error)
}

// ImageEditor applies a natural language instruction to an image. The status text is opaque
// and surfaced verbatim to the user and to provenance records.
type ImageEditor interface {
	Edit(ctx context.Context, image []byte, instruction string) ([]byte, string, error)
}

// Generator produces the assistant reply for a fully built prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
