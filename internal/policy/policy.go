// Package policy is the single authority for role-based access decisions:
// which applications a caller sees, which workflow actions they may trigger,
// and which administrative views they may navigate to. Handlers, services and
// repositories all consult this package instead of re-deriving role rules.
package policy

import (
	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/statemachine"
)

// Action kinds. Workflow kinds map one-to-one onto state machine events;
// reassign_owner and edit_details act on an application without moving its
// status.
const (
	ActionVerifyDocs          = statemachine.EventVerifyDocs
	ActionAdvanceToAudit      = statemachine.EventAdvanceToAudit
	ActionCreditCheckPass     = statemachine.EventCreditCheckPass
	ActionAuditPass           = statemachine.EventAuditPass
	ActionReturn              = statemachine.EventReturn
	ActionConfirmDisbursement = statemachine.EventConfirmDisbursement
	ActionVerifyPayment       = statemachine.EventVerifyPayment
	ActionDecline             = statemachine.EventDecline
	ActionResubmit            = statemachine.EventResubmit
	ActionReassignOwner       = "reassign_owner"
	ActionEditDetails         = "edit_details"
)

// Action describes one permitted operation together with the inputs the
// caller must supply when applying it.
type Action struct {
	Kind                   string `json:"kind"`
	Label                  string `json:"label"`
	RequiresComment        bool   `json:"requires_comment"`
	RequiresEligibleAmount bool   `json:"requires_eligible_amount"`
	RequiresNewOwner       bool   `json:"requires_new_owner"`
}

// QueueFilter is the role-derived visibility scope over the application
// collection. A zero filter matches nothing, so unknown roles fail closed.
type QueueFilter struct {
	All      bool
	Statuses []string
	Types    []string
	OwnerIDs []uint
}

// QueueFilterFor derives the visibility scope for a caller. teamMemberIDs is
// the set of user ids reporting to the caller (only consulted for sales team
// leads, one level deep).
func QueueFilterFor(role string, actorID uint, teamMemberIDs []uint) QueueFilter {
	switch role {
	case models.RoleSuperAdmin, models.RoleSalesManager, models.RoleInternalControl, models.RoleCustomerExperience:
		return QueueFilter{All: true}

	case models.RoleFinance:
		// global visibility on payouts only
		return QueueFilter{Statuses: []string{models.StatusPendingDisbursement, models.StatusApproved}}

	case models.RoleCredit:
		return QueueFilter{
			Types: []string{models.TypeLoan},
			Statuses: []string{
				models.StatusDocsVerification,
				models.StatusPendingReview,
				models.StatusReturned,
				models.StatusInternalAudit,
			},
		}

	case models.RoleSalesTeamLead:
		if len(teamMemberIDs) == 0 {
			return QueueFilter{}
		}
		return QueueFilter{OwnerIDs: teamMemberIDs}

	case models.RoleSalesOfficer:
		return QueueFilter{OwnerIDs: []uint{actorID}}
	}

	// unrecognized role: empty set, never fail open
	return QueueFilter{}
}

// Matches reports whether a single application falls inside the filter scope
func (f QueueFilter) Matches(app *models.Application) bool {
	if f.All {
		return true
	}
	if len(f.Statuses) == 0 && len(f.Types) == 0 && len(f.OwnerIDs) == 0 {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, app.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, app.Status) {
		return false
	}
	if len(f.OwnerIDs) > 0 {
		if app.OwnerID == nil {
			return false
		}
		found := false
		for _, id := range f.OwnerIDs {
			if *app.OwnerID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// VisibleTo reports whether the caller may see the application at all
func VisibleTo(role string, actorID uint, teamMemberIDs []uint, app *models.Application) bool {
	return QueueFilterFor(role, actorID, teamMemberIDs).Matches(app)
}

// FilterVisible returns the subset of applications visible to the caller,
// preserving input order
func FilterVisible(role string, actorID uint, teamMemberIDs []uint, apps []models.Application) []models.Application {
	filter := QueueFilterFor(role, actorID, teamMemberIDs)
	visible := make([]models.Application, 0, len(apps))
	for i := range apps {
		if filter.Matches(&apps[i]) {
			visible = append(visible, apps[i])
		}
	}
	return visible
}

// AvailableActions computes the set of actions the caller may perform on the
// application right now. An application the caller cannot see yields no
// actions, whatever the role.
func AvailableActions(role string, actorID uint, teamMemberIDs []uint, app *models.Application) []Action {
	if !models.KnownRole(role) || !VisibleTo(role, actorID, teamMemberIDs, app) {
		return nil
	}

	actions := make([]Action, 0, 4)
	isLoan := app.Type == models.TypeLoan
	sm := statemachine.NewApplicationFSM(app)

	if canEditDetails(role) && !app.IsLocked() {
		actions = append(actions, Action{Kind: ActionEditDetails, Label: "Edit applicant details"})
	}

	if canReassign(role) && !app.IsLocked() {
		actions = append(actions, Action{Kind: ActionReassignOwner, Label: "Re-assign owner", RequiresNewOwner: true})
	}

	if canInternalAudit(role) && app.Status == models.StatusInternalAudit {
		actions = append(actions,
			Action{Kind: ActionAuditPass, Label: "Audit pass"},
			Action{Kind: ActionReturn, Label: "Return to previous node", RequiresComment: true},
		)
	}

	if canFinance(role) && app.Status == models.StatusPendingDisbursement {
		if isLoan {
			actions = append(actions, Action{Kind: ActionConfirmDisbursement, Label: "Confirm disbursement"})
		} else {
			actions = append(actions, Action{Kind: ActionVerifyPayment, Label: "Confirm payment verified"})
		}
	}

	if canCreditReview(role) && isLoan && !app.HasEligibleAmount() && sm.Can(statemachine.EventCreditCheckPass) {
		actions = append(actions, Action{Kind: ActionCreditCheckPass, Label: "Verify credit check", RequiresEligibleAmount: true})
		if app.Status == models.StatusInternalAudit {
			actions = append(actions, Action{Kind: ActionReturn, Label: "Return to previous node", RequiresComment: true})
		}
	}

	if canDecline(role, app) && !app.IsFinalized() {
		actions = append(actions, Action{Kind: ActionDecline, Label: "Decline application", RequiresComment: true})
	}

	if canVerifyCustomer(role) && !isLoan && sm.Can(statemachine.EventVerifyDocs) {
		actions = append(actions, Action{Kind: ActionVerifyDocs, Label: "Verify & approve", RequiresComment: false})
	}

	// External progressions a super admin may drive by hand
	if role == models.RoleSuperAdmin {
		if isLoan && sm.Can(statemachine.EventVerifyDocs) {
			actions = append(actions, Action{Kind: ActionVerifyDocs, Label: "Mark docs verified"})
		}
		if sm.Can(statemachine.EventAdvanceToAudit) {
			actions = append(actions, Action{Kind: ActionAdvanceToAudit, Label: "Queue for internal audit"})
		}
		if sm.Can(statemachine.EventResubmit) {
			actions = append(actions, Action{Kind: ActionResubmit, Label: "Re-submit application"})
		}
	}

	return dedupe(actions)
}

// Authorize answers whether the role may request the given action kind on
// this application, independent of whether the transition is legal from the
// current status (the state machine owns that half of the decision).
func Authorize(role string, actorID uint, teamMemberIDs []uint, app *models.Application, kind string) bool {
	if !models.KnownRole(role) || !VisibleTo(role, actorID, teamMemberIDs, app) {
		return false
	}

	isLoan := app.Type == models.TypeLoan

	switch kind {
	case ActionEditDetails:
		return canEditDetails(role) && !app.IsLocked()
	case ActionReassignOwner:
		return canReassign(role) && !app.IsLocked()
	case ActionAuditPass:
		return canInternalAudit(role)
	case ActionReturn:
		if canInternalAudit(role) {
			return true
		}
		return role == models.RoleCredit && isLoan && !app.HasEligibleAmount()
	case ActionConfirmDisbursement:
		return isLoan && canFinance(role)
	case ActionVerifyPayment:
		return !isLoan && canFinance(role)
	case ActionCreditCheckPass:
		return canCreditReview(role) && isLoan && !app.HasEligibleAmount()
	case ActionDecline:
		return canDecline(role, app)
	case ActionVerifyDocs:
		if !isLoan && canVerifyCustomer(role) {
			return true
		}
		return role == models.RoleSuperAdmin
	case ActionAdvanceToAudit, ActionResubmit:
		return role == models.RoleSuperAdmin
	}

	return false
}

// CoreSystemViews are the administrative screens restricted to super admins
var CoreSystemViews = []string{"settings", "users", "security", "form-builder"}

// CanNavigate reports whether the role may open the named view. Rejections
// surface as an access-restricted notice, never a silent redirect.
func CanNavigate(role, view string) bool {
	if !models.KnownRole(role) {
		return false
	}
	if contains(CoreSystemViews, view) {
		return role == models.RoleSuperAdmin
	}
	if view == "investments" && role == models.RoleCredit {
		// the Credit team scope is limited to loan records
		return false
	}
	return true
}

func canEditDetails(role string) bool {
	return role == models.RoleSalesOfficer || role == models.RoleSalesTeamLead || role == models.RoleSuperAdmin
}

func canReassign(role string) bool {
	return role == models.RoleSalesManager || role == models.RoleSuperAdmin
}

func canInternalAudit(role string) bool {
	return role == models.RoleInternalControl || role == models.RoleSuperAdmin
}

func canFinance(role string) bool {
	return role == models.RoleFinance || role == models.RoleSuperAdmin
}

func canCreditReview(role string) bool {
	return role == models.RoleCredit || role == models.RoleSuperAdmin
}

func canDecline(role string, app *models.Application) bool {
	if role == models.RoleSuperAdmin || role == models.RoleSalesManager {
		return true
	}
	// Credit may decline a loan it is actively reviewing
	return role == models.RoleCredit && app.Type == models.TypeLoan && app.Status == models.StatusInternalAudit
}

func canVerifyCustomer(role string) bool {
	return role == models.RoleCustomerExperience || role == models.RoleSuperAdmin || role == models.RoleSalesManager
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func dedupe(actions []Action) []Action {
	seen := make(map[string]bool, len(actions))
	out := actions[:0]
	for _, a := range actions {
		if seen[a.Kind] {
			continue
		}
		seen[a.Kind] = true
		out = append(out, a)
	}
	return out
}
