// internal/loan/messages.go
package loan

import (
	"fmt"

	"lending-engine/internal/models"
	"lending-engine/internal/notification"
)

const loansLink = "/loans"

func loanMessage(title, body string, severity models.Severity) notification.Message {
	link := loansLink
	return notification.Message{Title: title, Body: body, Severity: severity, Link: &link}
}

func newLoanRequestMessage(actor models.Actor, item *models.Item) notification.Message {
	return loanMessage("New Loan Request",
		fmt.Sprintf("%s wants to borrow '%s'.", actor.Name, item.Title),
		models.SeverityInfo)
}

func transitionMessage(op Operation, actor models.Actor, item *models.Item) notification.Message {
	switch op {
	case OpAccept:
		return loanMessage("Loan Request Accepted",
			fmt.Sprintf("Your request for '%s' has been accepted.", item.Title),
			models.SeveritySuccess)
	case OpReject:
		return loanMessage("Loan Request Rejected",
			fmt.Sprintf("Your request for '%s' has been rejected.", item.Title),
			models.SeverityWarning)
	case OpRatify:
		return loanMessage("Loan Ratified",
			fmt.Sprintf("%s confirmed they have received '%s'.", actor.Name, item.Title),
			models.SeverityInfo)
	case OpSignalReturn:
		return loanMessage("Return Signaled",
			fmt.Sprintf("%s signaled that they have returned '%s'. Please confirm receipt.", actor.Name, item.Title),
			models.SeverityInfo)
	case OpConfirmReturn:
		return loanMessage("Return Confirmed",
			fmt.Sprintf("%s confirmed receipt of '%s'.", actor.Name, item.Title),
			models.SeveritySuccess)
	default:
		return newLoanRequestMessage(actor, item)
	}
}
