package esign

import (
	"fmt"
	"pilotage/domain"
)

// AgreementMessage returns the subject and body sent to the signer.
func AgreementMessage(project *domain.Project, period *domain.Period) (string, string) {
	if project.Type == domain.ProjectTypeAT {
		label := ""
		if period != nil {
			label = period.Label()
		}
		subject := fmt.Sprintf("Bordereau d’avancement – %s (%s)", project.ProjectNumber, label)
		message := fmt.Sprintf("Bonjour,\n\nVeuillez trouver ci-joint le bordereau d’avancement pour la période %s.\n"+
			"Projet : %s – %s\n\nMerci de signer ce document.\n\nCordialement,", label, project.ProjectNumber, project.Designation)
		return subject, message
	}
	subject := fmt.Sprintf("Bordereau de livraison – %s", project.ProjectNumber)
	message := fmt.Sprintf("Bonjour,\n\nVeuillez trouver ci-joint le bordereau de livraison.\n"+
		"Projet : %s – %s\n\nMerci de signer ce document.\n\nCordialement,", project.ProjectNumber, project.Designation)
	return subject, message
}
