package domain

type Role string

const (
	RoleAgent     Role = "agent"
	RoleOffice    Role = "office"
	RoleAdmin     Role = "admin"
	RoleInstaller Role = "installer"
	RoleCustomer  Role = "customer"
)

// ValidRoles is the canonical set of accepted role strings.
var ValidRoles = map[string]bool{
	"agent": true, "office": true, "admin": true,
	"installer": true, "customer": true,
}

type LeadStatus string

const (
	LeadNew        LeadStatus = "lead"
	LeadInterested LeadStatus = "lead_interested"
	LeadProcessing LeadStatus = "lead_processing"
	LeadCompleted  LeadStatus = "lead_completed"
	LeadCancelled  LeadStatus = "lead_cancelled"
)

// leadStatusRank orders the progression ladder. Cancelled sits outside the
// ladder and never participates in monotonic advancement.
var leadStatusRank = map[LeadStatus]int{
	LeadNew:        0,
	LeadInterested: 1,
	LeadProcessing: 2,
	LeadCompleted:  3,
}

// LeadStatusRank returns the ladder position of s, or -1 for statuses
// outside the progression ladder (cancelled).
func LeadStatusRank(s LeadStatus) int {
	if r, ok := leadStatusRank[s]; ok {
		return r
	}
	return -1
}

type StepStatus string

const (
	StepUpcoming  StepStatus = "upcoming"
	StepPending   StepStatus = "pending"
	StepCompleted StepStatus = "completed"
)

// StepCategory is the explicit dependency tag assigned at template creation.
// Dependency rules match on this tag, never on step names, so templates
// created at runtime (one loan step per provider) participate in gating the
// moment they exist.
type StepCategory string

const (
	CategoryGeneral      StepCategory = "general"
	CategoryDocument     StepCategory = "document"
	CategoryPayment      StepCategory = "payment"
	CategoryLoan         StepCategory = "loan"
	CategoryInstallation StepCategory = "installation"
	CategoryClosure      StepCategory = "closure"
)

// ValidStepCategories is the canonical set of accepted category strings.
var ValidStepCategories = map[string]bool{
	"general": true, "document": true, "payment": true,
	"loan": true, "installation": true, "closure": true,
}

type DocumentStatus string

const (
	DocumentValid         DocumentStatus = "valid"
	DocumentRejected      DocumentStatus = "rejected"
	DocumentPendingReview DocumentStatus = "pending_review"
)

type TransitionAction string

const (
	ActionComplete TransitionAction = "complete"
	ActionReopen   TransitionAction = "reopen"
	ActionSkip     TransitionAction = "skip"

	// Override-only actions.
	ActionMoveForward   TransitionAction = "move_forward"
	ActionMoveBackward  TransitionAction = "move_backward"
	ActionCloseProject  TransitionAction = "close_project"
	ActionReopenProject TransitionAction = "reopen_project"
)

// Activity actions recorded in the audit trail.
const (
	ActivityStepCompleted    = "step_completed"
	ActivityStepReopened     = "step_reopened"
	ActivityStepSkipped      = "step_skipped"
	ActivityDuplicateAttempt = "duplicate_attempt"
	ActivityAdminOverride    = "admin_override"
	ActivityProjectClosed    = "project_closed"
	ActivityProjectReopened  = "project_reopened"
	ActivityLeadCreated      = "lead_created"
	ActivityLeadUpdated      = "lead_updated"
	ActivityLeadCancelled    = "lead_cancelled"
	ActivityInstallerSet     = "installer_assigned"
)
