package esign

import (
	"encoding/json"
	"strings"
)

// Event is one normalized provider notification.
type Event struct {
	Type        string `json:"type"`
	AgreementID string `json:"agreementId"`
}

// ParseEvents decodes a webhook body. The provider has shipped several
// shapes over time: a list under events, eventList or event_list, a single
// object under event, or a bare event at the top level. Agreement ids found
// at the top level apply to events that carry none.
func ParseEvents(body []byte) ([]Event, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	baseAgreementID := agreementIDOf(payload)

	raw := eventsOf(payload)
	if len(raw) == 0 {
		if baseAgreementID == "" {
			return nil, nil
		}
		return []Event{{Type: eventTypeOf(payload), AgreementID: baseAgreementID}}, nil
	}

	events := make([]Event, 0, len(raw))
	for _, e := range raw {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		id := agreementIDOf(m)
		if id == "" {
			id = baseAgreementID
		}
		events = append(events, Event{Type: eventTypeOf(m), AgreementID: id})
	}
	return events, nil
}

func eventsOf(payload map[string]interface{}) []interface{} {
	for _, key := range []string{"events", "eventList", "event_list"} {
		if list, ok := payload[key].([]interface{}); ok {
			return list
		}
	}
	if single, ok := payload["event"].(map[string]interface{}); ok {
		return []interface{}{single}
	}
	return nil
}

func agreementIDOf(m map[string]interface{}) string {
	if s := stringField(m, "agreementId"); s != "" {
		return s
	}
	if nested, ok := m["agreement"].(map[string]interface{}); ok {
		if s := stringField(nested, "id"); s != "" {
			return s
		}
		if s := stringField(nested, "agreementId"); s != "" {
			return s
		}
	}
	if s := stringField(m, "agreement_id"); s != "" {
		return s
	}
	if nested, ok := m["agreementId"].(map[string]interface{}); ok {
		return stringField(nested, "id")
	}
	return ""
}

func eventTypeOf(m map[string]interface{}) string {
	for _, key := range []string{"type", "eventType", "event_type", "eventName"} {
		if s := stringField(m, key); s != "" {
			return s
		}
	}
	return ""
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// EchoClientID picks the client id the provider expects to see echoed back:
// the one it sent, else the configured one.
func EchoClientID(provided, configured string) string {
	if provided != "" {
		return provided
	}
	return configured
}

// EchoBody is the JSON acknowledged to the provider.
func EchoBody(clientID string) map[string]interface{} {
	if clientID == "" {
		return map[string]interface{}{"ok": true}
	}
	return map[string]interface{}{"xAdobeSignClientId": clientID}
}
