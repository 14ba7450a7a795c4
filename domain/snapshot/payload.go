package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"pilotage/domain/deliverable"
	"strconv"

	"github.com/fundwit/go-commons/types"
	"github.com/shopspring/decimal"
)

type PayloadKind string

const (
	KindAtPeriod           PayloadKind = "AT_PERIOD"
	KindBordereauGenerated PayloadKind = "BORDEREAU_GENERATED"
	KindBordereauSigned    PayloadKind = "BORDEREAU_SIGNED"
	KindRectificatif       PayloadKind = "RECTIFICATIF"
	KindManual             PayloadKind = "MANUAL"
)

const (
	ReasonRectificatifBordereau = "RECTIFICATIF_BORDEREAU"
	ReasonUnlockAfterSignature  = "UNLOCK_AFTER_SIGNATURE"
)

// Payload is the closed set of snapshot data shapes. The stored JSON carries
// a "kind" discriminant next to the payload fields.
type Payload interface {
	PayloadKind() PayloadKind
}

type SoldFigures struct {
	BoDays   decimal.Decimal `json:"boDays"`
	SiteDays decimal.Decimal `json:"siteDays"`
	BoRate   decimal.Decimal `json:"boRate"`
	SiteRate decimal.Decimal `json:"siteRate"`
}

type PeriodFigures struct {
	BoHours   decimal.Decimal `json:"boHours"`
	SiteHours decimal.Decimal `json:"siteHours"`
	BoDays    decimal.Decimal `json:"boDays"`
	SiteDays  decimal.Decimal `json:"siteDays"`
	Amount    decimal.Decimal `json:"amount"`
}

type RemainingFigures struct {
	BoDays   decimal.Decimal `json:"boDays"`
	SiteDays decimal.Decimal `json:"siteDays"`
	Amount   decimal.Decimal `json:"amount"`
}

type Alerts struct {
	ExceededSold bool `json:"exceededSold"`
}

type Source struct {
	ProjectID    types.ID   `json:"projectId"`
	Year         int        `json:"year"`
	Month        int        `json:"month"`
	TimeEntryIDs []types.ID `json:"timeEntryIds"`
}

// AtPeriodPayload is the month-end situation of a time-and-materials project.
type AtPeriodPayload struct {
	ProjectID  types.ID         `json:"projectId"`
	Year       int              `json:"year"`
	Month      int              `json:"month"`
	Sold       SoldFigures      `json:"sold"`
	MonthData  PeriodFigures    `json:"month"`
	Cumulative PeriodFigures    `json:"cumulative"`
	Remaining  RemainingFigures `json:"remaining"`
	Alerts     Alerts           `json:"alerts"`
	Source     Source           `json:"source"`
}

type FileRef struct {
	ID          types.ID `json:"id"`
	FileName    string   `json:"fileName"`
	ContentType string   `json:"contentType"`
	Size        int64    `json:"size"`
	Checksum    string   `json:"checksum"`
}

type BordereauGeneratedPayload struct {
	ProjectID     types.ID              `json:"projectId"`
	PeriodYear    *int                  `json:"periodYear"`
	PeriodMonth   *int                  `json:"periodMonth"`
	BordereauType string                `json:"type"`
	File          FileRef               `json:"file"`
	Totals        *AtPeriodPayload      `json:"totals,omitempty"`
	Deliverables  *deliverable.Progress `json:"deliverables,omitempty"`
}

type BordereauSignedPayload struct {
	BordereauID types.ID `json:"bordereauId"`
	Status      string   `json:"status"`
	SignedFile  *FileRef `json:"signedFile,omitempty"`
}

// RectificatifPayload marks a correction of a signed state. Bordereau
// fields are empty when the rectification comes from an unlock.
type RectificatifPayload struct {
	Reason           string    `json:"reason"`
	SignedSnapshotID *types.ID `json:"signedSnapshotId"`

	ProjectID     types.ID `json:"projectId,omitempty"`
	PeriodYear    *int     `json:"periodYear,omitempty"`
	PeriodMonth   *int     `json:"periodMonth,omitempty"`
	BordereauType string   `json:"type,omitempty"`
	File          *FileRef `json:"file,omitempty"`
}

type ManualPayload struct {
	Note   string          `json:"note"`
	Totals AtPeriodPayload `json:"totals"`
}

func (AtPeriodPayload) PayloadKind() PayloadKind           { return KindAtPeriod }
func (BordereauGeneratedPayload) PayloadKind() PayloadKind { return KindBordereauGenerated }
func (BordereauSignedPayload) PayloadKind() PayloadKind    { return KindBordereauSigned }
func (RectificatifPayload) PayloadKind() PayloadKind       { return KindRectificatif }
func (ManualPayload) PayloadKind() PayloadKind             { return KindManual }

// RawPayload is the stored JSON text of a payload. It is emitted as-is in
// JSON responses.
type RawPayload string

func (r RawPayload) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

func (r *RawPayload) UnmarshalJSON(b []byte) error {
	*r = RawPayload(b)
	return nil
}

func EncodePayload(p Payload) (RawPayload, error) {
	if p == nil {
		return "", errors.New("snapshot payload is required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", err
	}
	fields["kind"] = json.RawMessage(strconv.Quote(string(p.PayloadKind())))
	out, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return RawPayload(out), nil
}

// DecodePayload rejects data without a known kind.
func DecodePayload(data RawPayload) (Payload, error) {
	head := struct {
		Kind PayloadKind `json:"kind"`
	}{}
	if err := json.Unmarshal([]byte(data), &head); err != nil {
		return nil, err
	}

	var p Payload
	var err error
	switch head.Kind {
	case KindAtPeriod:
		v := AtPeriodPayload{}
		err = json.Unmarshal([]byte(data), &v)
		p = v
	case KindBordereauGenerated:
		v := BordereauGeneratedPayload{}
		err = json.Unmarshal([]byte(data), &v)
		p = v
	case KindBordereauSigned:
		v := BordereauSignedPayload{}
		err = json.Unmarshal([]byte(data), &v)
		p = v
	case KindRectificatif:
		v := RectificatifPayload{}
		err = json.Unmarshal([]byte(data), &v)
		p = v
	case KindManual:
		v := ManualPayload{}
		err = json.Unmarshal([]byte(data), &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown snapshot payload kind %q", head.Kind)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
