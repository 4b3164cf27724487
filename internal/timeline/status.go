package timeline

import (
	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/repository"
)

// ComputeLeadStatus derives the aggregate lead status from the step set:
// all non-closure steps completed ⇒ lead_completed; any completed
// payment/loan/installation step ⇒ lead_processing; any completed step ⇒
// lead_interested; otherwise the base lead status.
//
// Closure is not a status value — it is the orthogonal Closed flag, so the
// closure step itself never influences the ladder.
func ComputeLeadStatus(steps []repository.StepView) domain.LeadStatus {
	var total, completed int
	var anyCompleted, anyProcessing bool
	for _, s := range steps {
		if s.Template.Category == domain.CategoryClosure {
			continue
		}
		total++
		if s.Instance.Status != domain.StepCompleted {
			continue
		}
		completed++
		anyCompleted = true
		switch s.Template.Category {
		case domain.CategoryPayment, domain.CategoryLoan, domain.CategoryInstallation:
			anyProcessing = true
		}
	}

	switch {
	case total > 0 && completed == total:
		return domain.LeadCompleted
	case anyProcessing:
		return domain.LeadProcessing
	case anyCompleted:
		return domain.LeadInterested
	default:
		return domain.LeadNew
	}
}

// AdvanceLeadStatus applies the monotonic rule: normal transitions never
// regress the ladder. Explicit regression (move_backward) bypasses this and
// applies the computed value directly.
func AdvanceLeadStatus(current, computed domain.LeadStatus) domain.LeadStatus {
	if domain.LeadStatusRank(current) < 0 {
		// Cancelled leads stay cancelled.
		return current
	}
	if domain.LeadStatusRank(computed) > domain.LeadStatusRank(current) {
		return computed
	}
	return current
}

// markerChange is one pending/upcoming marker rewrite produced by
// RecomputeMarkers.
type markerChange struct {
	instanceID string
	status     domain.StepStatus
}

// RecomputeMarkers derives the presentational pending/upcoming markers: the
// first non-completed step in catalog order is pending, every later
// non-completed step upcoming. Completed instances are untouched.
func RecomputeMarkers(steps []repository.StepView) []markerChange {
	var changes []markerChange
	pendingSeen := false
	for _, s := range steps {
		if s.Instance.Status == domain.StepCompleted {
			continue
		}
		want := domain.StepUpcoming
		if !pendingSeen {
			want = domain.StepPending
			pendingSeen = true
		}
		if s.Instance.Status != want {
			changes = append(changes, markerChange{instanceID: s.Instance.ID, status: want})
		}
	}
	return changes
}
