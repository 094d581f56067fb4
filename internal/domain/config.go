package domain

import "fmt"

// Hyperparams are the factorization settings shared by serving and evaluation models.
type Hyperparams struct {
	Rank           int
	Iterations     int
	Regularization float64
}

// DefaultHyperparams mirrors the MovieLens-tuned defaults of the reference deployment.
func DefaultHyperparams() Hyperparams {
	return Hyperparams{
		Rank:           8,
		Iterations:     10,
		Regularization: 0.1,
	}
}

// Validate checks rank > 0, iterations > 0 and regularization >= 0.
func (h Hyperparams) Validate() error {
	if h.Rank <= 0 {
		return fmt.Errorf("rank must be positive, got %d", h.Rank)
	}
	if h.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", h.Iterations)
	}
	if h.Regularization < 0 {
		return fmt.Errorf("regularization must be non-negative, got %g", h.Regularization)
	}
	return nil
}
