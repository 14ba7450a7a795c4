package esign

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEvents(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []Event
	}{
		{"events list", `{"events":[{"type":"AGREEMENT_SIGNED","agreementId":"a1"}]}`,
			[]Event{{Type: "AGREEMENT_SIGNED", AgreementID: "a1"}}},
		{"eventList with nested agreement", `{"eventList":[{"eventType":"AGREEMENT_CREATED","agreement":{"id":"a2"}}]}`,
			[]Event{{Type: "AGREEMENT_CREATED", AgreementID: "a2"}}},
		{"event_list with snake case", `{"event_list":[{"event_type":"AGREEMENT_EXPIRED","agreement_id":"a3"}]}`,
			[]Event{{Type: "AGREEMENT_EXPIRED", AgreementID: "a3"}}},
		{"single event inherits top level agreement", `{"agreementId":"a4","event":{"eventName":"AGREEMENT_DECLINED"}}`,
			[]Event{{Type: "AGREEMENT_DECLINED", AgreementID: "a4"}}},
		{"bare top level event", `{"event":"x","type":"AGREEMENT_COMPLETED","agreement":{"agreementId":"a5"}}`,
			[]Event{{Type: "AGREEMENT_COMPLETED", AgreementID: "a5"}}},
		{"nested agreementId object", `{"type":"AGREEMENT_SIGNED","agreementId":{"id":"a6"}}`,
			[]Event{{Type: "AGREEMENT_SIGNED", AgreementID: "a6"}}},
		{"nothing to do", `{"hello":"world"}`, nil},
		{"non object entries skipped", `{"events":["x",{"type":"AGREEMENT_SIGNED","agreementId":"a7"}]}`,
			[]Event{{Type: "AGREEMENT_SIGNED", AgreementID: "a7"}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			events, err := ParseEvents([]byte(c.body))
			assert.NoError(t, err)
			assert.Equal(t, c.want, events)
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseEvents([]byte("not json"))
		assert.Error(t, err)
	})
}

func TestEchoClientID(t *testing.T) {
	assert.Equal(t, "sent", EchoClientID("sent", "configured"))
	assert.Equal(t, "configured", EchoClientID("", "configured"))
	assert.Equal(t, map[string]interface{}{"xAdobeSignClientId": "c"}, EchoBody("c"))
	assert.Equal(t, map[string]interface{}{"ok": true}, EchoBody(""))
}
