package agents

import "fmt"

// AdvocateInput is one batch element consumed by AdvocateIdeasBatch: the
// idea text plus the critic's evaluation of it (spec §4.4 "advocate
// requires {idea, evaluation}").
type AdvocateInput struct {
	Idea       string
	Evaluation string
}

// Validate reports a descriptive error when a required field is missing,
// mirroring spec.md's "missing keys raise ValueError before any API call".
func (in AdvocateInput) Validate() error {
	if in.Idea == "" || in.Evaluation == "" {
		return fmt.Errorf("advocate input must have 'idea' and 'evaluation' keys")
	}
	return nil
}

// SkepticInput is one batch element consumed by CriticizeIdeasBatch: the
// idea text plus the advocacy already made for it.
type SkepticInput struct {
	Idea     string
	Advocacy string
}

func (in SkepticInput) Validate() error {
	if in.Idea == "" || in.Advocacy == "" {
		return fmt.Errorf("skeptic input must have 'idea' and 'advocacy' keys")
	}
	return nil
}

// ImproveInput is one batch element consumed by ImproveIdeasBatch: the idea
// plus everything the earlier stages accumulated about it.
type ImproveInput struct {
	Idea       string
	Critique   string
	Advocacy   string
	Skepticism string
}

func (in ImproveInput) Validate() error {
	if in.Idea == "" || in.Critique == "" || in.Advocacy == "" || in.Skepticism == "" {
		return fmt.Errorf("improve input must have 'idea', 'critique', 'advocacy', and 'skepticism' keys")
	}
	return nil
}

func validateAll[T interface{ Validate() error }](items []T) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}
