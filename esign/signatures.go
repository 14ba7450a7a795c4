package esign

import (
	"context"
	"errors"
	"fmt"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/bordereau"
	"pilotage/idgen"
	"pilotage/persistence"
	"pilotage/session"
	"pilotage/storage"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	serviceName   = "esign"
	providerActor = "Adobe Sign"
	dedupWindow   = 10 * time.Minute
)

var (
	agreementIdWorker = idgen.NewWorker()

	requestValidator = newValidator()

	ErrNotEnabled = errors.New("e-signature is not enabled")
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

type SignatureManagerTraits interface {
	SendForSignature(req SignatureRequest, sec *session.Context) (*SignatureAgreement, error)
	Remind(agreementID types.ID, req ReminderRequest, sec *session.Context) error
	QueryAgreements(bordereauID types.ID, sec *session.Context) ([]SignatureAgreement, error)
	HandleEvents(ctx context.Context, events []Event) (*SyncResult, error)
	ClientID() string
}

// SignatureManager sends bordereaux for e-signature and applies the
// provider's notifications back onto them.
type SignatureManager struct {
	dataSource *persistence.DataSourceManager
	bordereaux bordereau.BordereauManagerTraits
	store      *storage.Store
	provider   Provider
	clientID   string

	seen *cache.Cache
}

// NewSignatureManager wires the workflow. A nil provider disables sending,
// webhooks are still accepted.
func NewSignatureManager(ds *persistence.DataSourceManager, bordereaux bordereau.BordereauManagerTraits,
	store *storage.Store, provider Provider, clientID string) *SignatureManager {
	return &SignatureManager{dataSource: ds, bordereaux: bordereaux, store: store, provider: provider,
		clientID: clientID, seen: cache.New(dedupWindow, time.Minute)}
}

func (m *SignatureManager) ClientID() string {
	return m.clientID
}

// SendForSignature uploads the latest version of a GENERATED bordereau and
// creates an agreement with one signer.
func (m *SignatureManager) SendForSignature(req SignatureRequest, sec *session.Context) (*SignatureAgreement, error) {
	if err := requestValidator.Struct(req); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	detail, err := m.bordereaux.DetailBordereau(req.BordereauID, sec)
	if err != nil {
		return nil, err
	}
	if detail.Status != bordereau.StatusGenerated {
		return nil, bizerror.ErrInvalidTransition
	}
	if len(detail.Versions) == 0 {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("bordereau has no document")}
	}
	if m.provider == nil {
		return nil, bizerror.External(serviceName, ErrNotEnabled)
	}

	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	project, err := domain.FindProject(db, detail.ProjectID)
	if err != nil {
		return nil, err
	}
	latest := detail.Versions[len(detail.Versions)-1]
	f, data, err := m.bordereaux.ReadVersionFile(latest.ID, sec)
	if err != nil {
		return nil, err
	}

	ctx := sec.TraceContext()
	transientID, err := m.provider.CreateTransientDocument(ctx, f.FileName, data)
	if err != nil {
		return nil, bizerror.External(serviceName, err)
	}
	subject, message := AgreementMessage(project, detail.Period())
	created, err := m.provider.CreateAgreement(ctx, AgreementRequest{
		FileInfos: []FileInfo{{TransientDocumentID: transientID}},
		Name:      subject,
		Message:   message,
		ParticipantSetsInfo: []ParticipantSetInfo{{
			MemberInfos: []MemberInfo{{Email: req.RecipientEmail}}, Order: 1, Role: "SIGNER",
		}},
		SignatureType: "ESIGN",
		State:         "IN_PROCESS",
	})
	if err != nil {
		return nil, bizerror.External(serviceName, err)
	}

	now := time.Now()
	agreement := &SignatureAgreement{
		ID: idgen.NextID(agreementIdWorker), ProviderID: created.ID, BordereauID: detail.ID, VersionID: latest.ID,
		Status: StatusSent, RecipientEmail: req.RecipientEmail,
		CreatorID: sec.ActorID(), CreatorName: sec.ActorName(), CreateTime: now, UpdateTime: now,
	}
	rec := audit.Recorder{}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(agreement).Error; err != nil {
			return err
		}
		_, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityBordereau, EntityID: detail.ID.String(),
			Action: audit.ActionSendForSignature, Diff: audit.Diff{
				"agreementId": agreement.ID.String(), "providerId": created.ID,
				"versionId": latest.ID.String(), "recipientEmail": req.RecipientEmail,
			}}, sec)
		return err
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return agreement, nil
}

// Remind asks the provider to notify the signers who have not signed yet.
func (m *SignatureManager) Remind(agreementID types.ID, req ReminderRequest, sec *session.Context) error {
	if err := requestValidator.Struct(req); err != nil {
		return &bizerror.ErrBadParam{Cause: err}
	}
	agreement, err := findAgreement(m.dataSource.GormDBWithContext(sec.TraceContext()), "id = ?", agreementID)
	if err != nil {
		return err
	}
	if agreement == nil {
		return bizerror.ErrNotFound
	}
	if _, err := m.bordereaux.DetailBordereau(agreement.BordereauID, sec); err != nil {
		return err
	}
	if agreement.Status != StatusSent {
		return bizerror.ErrInvalidTransition
	}
	if m.provider == nil {
		return bizerror.External(serviceName, ErrNotEnabled)
	}

	ctx := sec.TraceContext()
	members, err := m.provider.Members(ctx, agreement.ProviderID)
	if err != nil {
		return bizerror.External(serviceName, err)
	}
	participants := pendingParticipants(members)
	if len(participants) == 0 {
		return &bizerror.ErrBadParam{Cause: errors.New("no participant is waiting to sign")}
	}
	if err := m.provider.SendReminder(ctx, agreement.ProviderID, participants, req.Note); err != nil {
		return bizerror.External(serviceName, err)
	}
	logrus.WithField("agreement", agreement.ProviderID).Infof("reminder sent to %d participant(s)", len(participants))
	return nil
}

func pendingParticipants(members *Members) []string {
	var waiting, all []string
	for _, set := range members.ParticipantSets {
		if set.ID == "" {
			continue
		}
		all = append(all, set.ID)
		if set.Status == "WAITING_FOR_MY_SIGNATURE" {
			waiting = append(waiting, set.ID)
		}
	}
	if len(waiting) > 0 {
		return waiting
	}
	return all
}

func (m *SignatureManager) QueryAgreements(bordereauID types.ID, sec *session.Context) ([]SignatureAgreement, error) {
	if _, err := m.bordereaux.DetailBordereau(bordereauID, sec); err != nil {
		return nil, err
	}
	agreements := []SignatureAgreement{}
	if err := m.dataSource.GormDBWithContext(sec.TraceContext()).Where("bordereau_id = ?", bordereauID).
		Order("create_time DESC").Find(&agreements).Error; err != nil {
		return nil, err
	}
	return agreements, nil
}

// HandleEvents applies provider notifications. Events without an agreement,
// with an unknown type, or for an agreement this service did not send are
// ignored. Deliveries repeated within the dedup window are ignored as well;
// MarkSigned is idempotent for the ones that slip through.
func (m *SignatureManager) HandleEvents(ctx context.Context, events []Event) (*SyncResult, error) {
	result := &SyncResult{}
	for _, e := range events {
		status, ok := StatusOfEvent(e.Type)
		if e.AgreementID == "" || !ok {
			result.Ignored++
			continue
		}
		key := e.AgreementID + "|" + e.Type
		if err := m.seen.Add(key, true, cache.DefaultExpiration); err != nil {
			result.Ignored++
			continue
		}
		signed, handled, err := m.applyEvent(ctx, e, status)
		if err != nil {
			m.seen.Delete(key)
			return result, err
		}
		if !handled {
			result.Ignored++
			continue
		}
		result.Processed++
		if signed {
			result.Signed++
		}
	}
	return result, nil
}

func (m *SignatureManager) applyEvent(ctx context.Context, e Event, status AgreementStatus) (bool, bool, error) {
	sec := session.SystemContext(providerActor)
	sec.Context = ctx
	db := m.dataSource.GormDBWithContext(ctx)

	agreement, err := findAgreement(db, "provider_id = ?", e.AgreementID)
	if err != nil {
		return false, false, err
	}
	if agreement == nil {
		logrus.WithField("agreement", e.AgreementID).Info("event for unknown agreement ignored")
		return false, false, nil
	}

	// deliveries are not ordered: a late AGREEMENT_CREATED must not reopen a signed agreement
	if agreement.Status != status && agreement.Status.Final() {
		logrus.WithField("agreement", e.AgreementID).WithField("status", agreement.Status).
			Infof("event %s ignored on final agreement", e.Type)
		return false, false, nil
	}
	if agreement.Status != status {
		rec := audit.Recorder{}
		from := agreement.Status
		err := db.Transaction(func(tx *gorm.DB) error {
			agreement.Status = status
			agreement.UpdateTime = time.Now()
			if err := tx.Save(agreement).Error; err != nil {
				return err
			}
			_, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityAgreement, EntityID: agreement.ID.String(),
				Action: audit.ActionAgreementStatus, Diff: audit.Diff{
					"from": string(from), "to": string(status), "event": e.Type, "providerId": agreement.ProviderID,
				}}, sec)
			return err
		})
		if err != nil {
			return false, false, err
		}
		rec.Publish()
	}

	if status != StatusSigned {
		return false, true, nil
	}
	r, err := m.bordereaux.MarkSigned(agreement.BordereauID, agreement.ProviderID, m, sec)
	if err != nil {
		return false, false, err
	}
	return r.Changed, true, nil
}

// FetchSignedDocuments downloads the signed PDF and the audit trail of an
// agreement and stores them. Each download is best effort.
func (m *SignatureManager) FetchSignedDocuments(ctx context.Context, b *bordereau.Bordereau, sourceRef string) bordereau.SignedDocuments {
	docs := bordereau.SignedDocuments{}
	if m.provider == nil || m.store == nil {
		return docs
	}
	log := logrus.WithField("agreement", sourceRef).WithField("bordereau", b.ID.String())

	if data, err := m.provider.SignedDocument(ctx, sourceRef); err != nil {
		log.Warnf("failed to download signed document: %v", err)
	} else if f, err := m.store.Write(ctx, data, fmt.Sprintf("%s-%s-signed.pdf", b.Type, b.ID.String()), "application/pdf"); err != nil {
		log.Warnf("failed to store signed document: %v", err)
	} else {
		docs.SignedFile = f
	}

	if data, err := m.provider.AuditTrail(ctx, sourceRef); err != nil {
		log.Warnf("failed to download audit trail: %v", err)
	} else if f, err := m.store.Write(ctx, data, fmt.Sprintf("%s-%s-audit-trail.pdf", b.Type, b.ID.String()), "application/pdf"); err != nil {
		log.Warnf("failed to store audit trail: %v", err)
	} else {
		docs.AuditTrail = f
	}
	return docs
}

// DiscardSignedDocuments deletes documents stored by FetchSignedDocuments
// that no bordereau references.
func (m *SignatureManager) DiscardSignedDocuments(ctx context.Context, docs bordereau.SignedDocuments) {
	if m.store == nil {
		return
	}
	for _, f := range []*storage.StoredFile{docs.SignedFile, docs.AuditTrail} {
		if f == nil {
			continue
		}
		if err := m.store.Delete(ctx, f.StorageKey); err != nil {
			logrus.WithField("storageKey", f.StorageKey).Warnf("failed to remove unrecorded signed document: %v", err)
		}
	}
}

func findAgreement(db *gorm.DB, where string, arg interface{}) (*SignatureAgreement, error) {
	var a SignatureAgreement
	err := db.Where(where, arg).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
