package notification

import (
	"fmt"

	"gestimmo_backend/internal/events"
	"gestimmo_backend/internal/interventions/domain"
)

// transitionMessage builds the user-facing French title and body for a
// completed transition. Reasons entered by actors are relayed verbatim to the
// tenant and provider.
func transitionMessage(e events.InterventionTransitioned, interventionType string) (title, body string) {
	label := interventionType
	if label == "" {
		label = "intervention"
	}

	switch e.Action {
	case domain.ActionApprove:
		return "Demande approuvée",
			fmt.Sprintf("Votre demande d'intervention %s a été approuvée.", label)
	case domain.ActionReject:
		return "Demande refusée",
			fmt.Sprintf("Votre demande d'intervention %s a été refusée. Motif : %s", label, e.Reason)
	case domain.ActionRequestQuote:
		return "Devis demandé",
			fmt.Sprintf("Un devis a été sollicité pour l'intervention %s.", label)
	case domain.ActionStartPlanning:
		return "Planification ouverte",
			fmt.Sprintf("La planification de l'intervention %s a commencé. Des créneaux vous seront proposés.", label)
	case domain.ActionConfirmSchedule:
		when := ""
		if e.ScheduledDate != nil {
			when = e.ScheduledDate.Format("02/01/2006 à 15h04")
		}
		return "Intervention planifiée",
			fmt.Sprintf("L'intervention %s est planifiée le %s.", label, when)
	case domain.ActionStartWork:
		return "Intervention en cours",
			fmt.Sprintf("Le prestataire a commencé l'intervention %s.", label)
	case domain.ActionCompleteWork:
		return "Travaux terminés",
			fmt.Sprintf("Le prestataire a déclaré l'intervention %s terminée. Merci de valider les travaux.", label)
	case domain.ActionValidateWork:
		if e.NewStatus == domain.StatusPlanifiee {
			return "Travaux contestés",
				fmt.Sprintf("Le locataire a contesté les travaux de l'intervention %s (contestation n°%d). Motif : %s",
					label, e.ContestCount, e.Reason)
		}
		return "Travaux validés",
			fmt.Sprintf("Le locataire a validé les travaux de l'intervention %s.", label)
	case domain.ActionFinalize:
		return "Intervention clôturée",
			fmt.Sprintf("L'intervention %s est clôturée par le gestionnaire.", label)
	case domain.ActionCancel:
		return "Intervention annulée",
			fmt.Sprintf("L'intervention %s a été annulée. Motif : %s", label, e.Reason)
	default:
		return "Intervention mise à jour",
			fmt.Sprintf("L'intervention %s est passée au statut %s.", label, e.NewStatus)
	}
}

// reminderWindowLabel names the reminder window in the message.
func reminderWindowLabel(window string) string {
	switch window {
	case "24h":
		return "demain"
	case "1h":
		return "dans une heure"
	default:
		return "prochainement"
	}
}
