// Package embedding provides text embedding generation, caching, and the
// provider seam used by the profile and ranking flows.
package embedding

import "context"

// Provider generates embeddings from text. Implementations must be
// deterministic for identical input under the same model identifier.
type Provider interface {
	// Encode generates one embedding per input text, in input order.
	Encode(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Dimensions returns the vector dimensionality.
	Dimensions() int
}
