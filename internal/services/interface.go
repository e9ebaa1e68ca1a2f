package services

import "context"

// Tier selects the oracle model class for a completion.
type Tier string

const (
	// TierPro is the high-capability model used for skeleton discovery.
	TierPro Tier = "pro"
	// TierFlash is the fast model used for investigation and synthesis.
	TierFlash Tier = "flash"
)

// OracleClient is an interface for the generative-text oracle.
type OracleClient interface {
	// Complete sends a single prompt and returns the generated text.
	Complete(ctx context.Context, tier Tier, prompt string) (string, error)
}
