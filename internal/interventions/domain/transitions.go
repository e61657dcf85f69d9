package domain

// transitionTable maps (current status, actor role) to the actions that role
// may perform. Admins mirror gestionnaires everywhere except startWork,
// completeWork and validateWork, which belong to the assigned prestataire or
// locataire alone.
var transitionTable = map[Status]map[Role][]Action{
	StatusDemande: {
		RoleGestionnaire: {ActionApprove, ActionReject},
		RoleAdmin:        {ActionApprove, ActionReject},
	},
	StatusApprouvee: {
		RoleGestionnaire: {ActionRequestQuote, ActionStartPlanning, ActionCancel},
		RoleAdmin:        {ActionRequestQuote, ActionStartPlanning, ActionCancel},
	},
	StatusDemandeDeDevis: {
		RoleGestionnaire: {ActionRequestQuote, ActionStartPlanning, ActionCancel},
		RoleAdmin:        {ActionRequestQuote, ActionStartPlanning, ActionCancel},
	},
	StatusPlanification: {
		RoleGestionnaire: {ActionConfirmSchedule, ActionCancel},
		RoleAdmin:        {ActionConfirmSchedule, ActionCancel},
	},
	StatusPlanifiee: {
		RolePrestataire:  {ActionStartWork},
		RoleGestionnaire: {ActionCancel},
		RoleAdmin:        {ActionCancel},
	},
	StatusEnCours: {
		RolePrestataire:  {ActionCompleteWork},
		RoleGestionnaire: {ActionCancel},
		RoleAdmin:        {ActionCancel},
	},
	StatusClotureePrestataire: {
		RoleLocataire:    {ActionValidateWork},
		RoleGestionnaire: {ActionCancel},
		RoleAdmin:        {ActionCancel},
	},
	StatusClotureeLocataire: {
		RoleGestionnaire: {ActionFinalize},
		RoleAdmin:        {ActionFinalize},
	},
}

// terminalStatuses define no actions for any role.
var terminalStatuses = map[Status]bool{
	StatusRejetee:              true,
	StatusAnnulee:              true,
	StatusClotureeGestionnaire: true,
}

// actionTargets maps actions to their target status. RequestQuote and
// ValidateWork are absent: requestQuote only moves approuvee to
// demande_de_devis, and validateWork resolves per decision (see TargetFor).
var actionTargets = map[Action]Status{
	ActionApprove:         StatusApprouvee,
	ActionReject:          StatusRejetee,
	ActionStartPlanning:   StatusPlanification,
	ActionConfirmSchedule: StatusPlanifiee,
	ActionStartWork:       StatusEnCours,
	ActionCompleteWork:    StatusClotureePrestataire,
	ActionFinalize:        StatusClotureeGestionnaire,
	ActionCancel:          StatusAnnulee,
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// CanPerform reports whether the role may perform the action in the given
// status. Missing entries (including every terminal status) deny.
func CanPerform(s Status, r Role, a Action) bool {
	for _, allowed := range transitionTable[s][r] {
		if allowed == a {
			return true
		}
	}
	return false
}

// AvailableActions returns the legal actions for (status, role). This is the
// read model a UI queries to render only permitted buttons.
func AvailableActions(s Status, r Role) []Action {
	allowed := transitionTable[s][r]
	actions := make([]Action, len(allowed))
	copy(actions, allowed)
	return actions
}

// TargetFor resolves the status an action leads to from the given status.
// Returns false when the action has no unconditional target there.
func TargetFor(s Status, a Action) (Status, bool) {
	switch a {
	case ActionRequestQuote:
		// Moves approuvee into the quote phase, otherwise stays put.
		if s == StatusApprouvee {
			return StatusDemandeDeDevis, true
		}
		return s, true
	case ActionValidateWork:
		// Resolved by the decision payload: approved or contested.
		return s, false
	}
	target, ok := actionTargets[a]
	return target, ok
}

// ValidationTarget resolves the validateWork target for a decision.
func ValidationTarget(d ValidationDecision) (Status, bool) {
	switch d {
	case DecisionApproved:
		return StatusClotureeLocataire, true
	case DecisionContested:
		return StatusPlanifiee, true
	default:
		return "", false
	}
}

// RoleFromString parses a role string, admitting only known roles.
func RoleFromString(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleGestionnaire, RolePrestataire, RoleLocataire, RoleAdmin:
		return Role(raw), true
	default:
		return "", false
	}
}

// UrgencyFromString parses an urgency string, admitting only known levels.
func UrgencyFromString(raw string) (Urgency, bool) {
	switch Urgency(raw) {
	case UrgencyFaible, UrgencyNormale, UrgencyHaute, UrgencyUrgente:
		return Urgency(raw), true
	default:
		return "", false
	}
}
