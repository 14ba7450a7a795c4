package esign

type AgreementStatus string

const (
	StatusSent      AgreementStatus = "SENT"
	StatusSigned    AgreementStatus = "SIGNED"
	StatusCancelled AgreementStatus = "CANCELLED"
	StatusDeclined  AgreementStatus = "DECLINED"
	StatusExpired   AgreementStatus = "EXPIRED"
)

// Final reports whether no later event may move an agreement out of s.
func (s AgreementStatus) Final() bool {
	return s == StatusSigned || s == StatusCancelled || s == StatusDeclined || s == StatusExpired
}

var eventStatuses = map[string]AgreementStatus{
	"AGREEMENT_CREATED":          StatusSent,
	"AGREEMENT_ACTION_COMPLETED": StatusSigned,
	"AGREEMENT_SIGNED":           StatusSigned,
	"AGREEMENT_COMPLETED":        StatusSigned,
	"AGREEMENT_CANCELLED":        StatusCancelled,
	"AGREEMENT_DECLINED":         StatusDeclined,
	"AGREEMENT_EXPIRED":          StatusExpired,
}

// StatusOfEvent maps a provider event type to the agreement status it
// implies. Unknown events map to nothing and are ignored.
func StatusOfEvent(eventType string) (AgreementStatus, bool) {
	s, ok := eventStatuses[eventType]
	return s, ok
}
