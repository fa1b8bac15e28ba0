package orchestrator

import (
	"fmt"

	"github.com/ideagrid/orchestrator/model"
)

// The placeholder* functions back batch.WithFallback's per-item-failure
// path for stages whose agent already has its own degraded-mode text
// (see the agents package); these are the orchestrator's own because
// agents' equivalents are unexported.

func placeholderAdvocacy(index int, reason string) model.Advocacy {
	return model.Advocacy{
		IdeaIndex: index,
		Formatted: fmt.Sprintf("[DEGRADED MODE] advocacy unavailable: %s", reason),
	}
}

func placeholderSkepticism(index int, reason string) model.Skepticism {
	return model.Skepticism{
		IdeaIndex: index,
		Formatted: fmt.Sprintf("[DEGRADED MODE] skepticism unavailable: %s", reason),
	}
}

func placeholderImprovement(index int, reason string) model.Improvement {
	return model.Improvement{
		IdeaIndex:           index,
		ImprovedTitle:       "[DEGRADED MODE] improvement unavailable",
		ImprovedDescription: reason,
	}
}
