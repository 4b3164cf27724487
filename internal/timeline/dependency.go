package timeline

import (
	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
)

// Eligibility is the dependency resolver's verdict for one step. Blocking
// names feed actionable error messages, so they carry step names rather than
// IDs.
type Eligibility struct {
	Eligible bool
	Blocking []string
}

// CheckEligibility decides whether target may start/complete given the
// lead's full step set. Two rule families apply:
//
//   - sequence: every step ordered before the target must be completed;
//   - category: installation requires a completed payment OR loan step, and
//     closure requires every non-closure step completed.
//
// Category matching uses the template's category tag. Tags are assigned at
// template creation, so steps created at runtime (a loan step per provider)
// participate the moment they exist — the late binding the catalog needs
// without matching on step-name substrings.
func CheckEligibility(steps []repository.StepView, target repository.StepView) Eligibility {
	var blocking []string
	seen := make(map[string]bool)
	block := func(name string) {
		if !seen[name] {
			seen[name] = true
			blocking = append(blocking, name)
		}
	}

	// Sequence rule. Closure is exempt here; its category rule below
	// subsumes it with a clearer blocking list.
	if target.Template.Category != domain.CategoryClosure {
		for _, s := range steps {
			if s.Template.OrderIndex >= target.Template.OrderIndex {
				break
			}
			if s.Instance.Status != domain.StepCompleted {
				block(s.Template.Name)
			}
		}
	}

	switch target.Template.Category {
	case domain.CategoryInstallation:
		if !anyCompletedOfCategory(steps, domain.CategoryPayment) &&
			!anyCompletedOfCategory(steps, domain.CategoryLoan) {
			for _, s := range steps {
				if (s.Template.Category == domain.CategoryPayment ||
					s.Template.Category == domain.CategoryLoan) &&
					s.Instance.Status != domain.StepCompleted {
					block(s.Template.Name)
				}
			}
			if len(blocking) == 0 {
				// No payment or loan step exists at all.
				block("payment or loan step")
			}
		}
	case domain.CategoryClosure:
		for _, s := range steps {
			if s.Template.Category == domain.CategoryClosure {
				continue
			}
			if s.Instance.Status != domain.StepCompleted {
				block(s.Template.Name)
			}
		}
	}

	return Eligibility{Eligible: len(blocking) == 0, Blocking: blocking}
}

func anyCompletedOfCategory(steps []repository.StepView, c domain.StepCategory) bool {
	for _, s := range steps {
		if s.Template.Category == c && s.Instance.Status == domain.StepCompleted {
			return true
		}
	}
	return false
}
