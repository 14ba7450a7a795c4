package bordereau

import (
	"context"
	"errors"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/deliverable"
	"pilotage/domain/snapshot"
	"pilotage/idgen"
	"pilotage/locker"
	"pilotage/persistence"
	"pilotage/session"
	"pilotage/storage"
	"time"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var (
	bordereauIdWorker = idgen.NewWorker()
	versionIdWorker   = idgen.NewWorker()
)

// SignedDocuments are the optional attachments of a signature event.
type SignedDocuments struct {
	SignedFile *storage.StoredFile
	AuditTrail *storage.StoredFile
}

// SignedDocumentFetcher downloads and stores the documents of an external
// signature. It is best effort: whatever could not be fetched is left nil.
// DiscardSignedDocuments removes stored documents that were not recorded.
type SignedDocumentFetcher interface {
	FetchSignedDocuments(ctx context.Context, b *Bordereau, sourceRef string) SignedDocuments
	DiscardSignedDocuments(ctx context.Context, docs SignedDocuments)
}

type BordereauManagerTraits interface {
	Generate(gen *BordereauGeneration, file *storage.StoredFile, sec *session.Context) (*GenerationResult, error)
	GenerateDocument(gen *BordereauGeneration, sec *session.Context) (*GenerationResult, error)
	MarkSigned(id types.ID, sourceRef string, fetcher SignedDocumentFetcher, sec *session.Context) (*SignResult, error)
	QueryBordereaux(projectID types.ID, sec *session.Context) ([]Bordereau, error)
	DetailBordereau(id types.ID, sec *session.Context) (*BordereauDetail, error)
	ReadVersionFile(versionID types.ID, sec *session.Context) (*storage.FileObject, []byte, error)
}

type BordereauManager struct {
	dataSource *persistence.DataSourceManager
	locker     locker.Locker
	store      *storage.Store
	renderer   DocumentRenderer
}

func NewBordereauManager(ds *persistence.DataSourceManager, l locker.Locker, store *storage.Store, renderer DocumentRenderer) *BordereauManager {
	return &BordereauManager{dataSource: ds, locker: l, store: store, renderer: renderer}
}

// Generate records a rendered document for (project, type, period):
//   - no live bordereau: a new one at version 1
//   - live and GENERATED: a new version max+1 on it
//   - live and SIGNED: a new RECTIFICATIF bordereau at version 1; the signed
//     one only loses its live slot
//
// The snapshot is written first, then the file record, then the bordereau
// rows and the GENERATE audit record, all in one transaction.
func (m *BordereauManager) Generate(gen *BordereauGeneration, file *storage.StoredFile, sec *session.Context) (*GenerationResult, error) {
	if err := validateGeneration(gen); err != nil {
		return nil, err
	}
	if file == nil {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("rendered file is required")}
	}
	if !sec.CanManageProject(gen.ProjectID) {
		return nil, bizerror.ErrForbidden
	}

	liveKey := LiveKey(gen.ProjectID, gen.Type, gen.Period)
	var result *GenerationResult
	rec := audit.Recorder{}
	err := locker.WithLock(sec.TraceContext(), m.locker, lockKey(liveKey), func() error {
		return m.dataSource.GormDBWithContext(sec.TraceContext()).Transaction(func(tx *gorm.DB) error {
			r, err := generateInTx(tx, gen, liveKey, file, &rec, sec)
			result = r
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}

func validateGeneration(gen *BordereauGeneration) error {
	if gen == nil {
		return &bizerror.ErrBadParam{Cause: errors.New("generation request is required")}
	}
	if gen.Type != TypeBA && gen.Type != TypeBL {
		return &bizerror.ErrBadParam{Cause: errors.New("bordereau type must be BA or BL")}
	}
	if gen.Period != nil && !gen.Period.Valid() {
		return &bizerror.ErrBadParam{Cause: errors.New("invalid period")}
	}
	return nil
}

func generateInTx(tx *gorm.DB, gen *BordereauGeneration, liveKey string, file *storage.StoredFile,
	rec *audit.Recorder, sec *session.Context) (*GenerationResult, error) {

	project, err := domain.FindProject(tx, gen.ProjectID)
	if err != nil {
		return nil, err
	}
	live, err := findLive(tx, liveKey)
	if err != nil {
		return nil, err
	}
	rectification := live != nil && live.Status == StatusSigned

	// 1. snapshot
	year, month := domain.PeriodColumns(gen.Period)
	fileRef := snapshot.FileRef{FileName: file.FileName, ContentType: file.ContentType, Size: file.Size, Checksum: file.Checksum}
	creation := snapshot.SnapshotCreation{ProjectID: gen.ProjectID, Period: gen.Period, ComputedBy: sec.ActorName()}
	if rectification {
		signed, err := snapshot.LatestSnapshot(tx, gen.ProjectID, snapshot.TypeBordereauSigned, gen.Period)
		if err != nil {
			return nil, err
		}
		var signedID *types.ID
		if signed != nil {
			signedID = &signed.ID
		}
		creation.Type = snapshot.TypeRectificatif
		creation.SupersedesSnapshotID = signedID
		creation.Payload = snapshot.RectificatifPayload{
			Reason: snapshot.ReasonRectificatifBordereau, SignedSnapshotID: signedID,
			ProjectID: gen.ProjectID, PeriodYear: year, PeriodMonth: month, BordereauType: string(gen.Type), File: &fileRef,
		}
	} else {
		payload := snapshot.BordereauGeneratedPayload{
			ProjectID: gen.ProjectID, PeriodYear: year, PeriodMonth: month, BordereauType: string(gen.Type), File: fileRef,
		}
		if err := enrichGeneratedPayload(tx, project, gen, &payload); err != nil {
			return nil, err
		}
		creation.Type = snapshot.TypeBordereauGenerated
		creation.Payload = payload
	}
	snap, err := snapshot.CreateSnapshot(tx, creation)
	if err != nil {
		return nil, err
	}

	// 2. file record
	fileObject, err := storage.SaveFileObject(tx, file, sec)
	if err != nil {
		return nil, err
	}

	// 3. bordereau and version
	now := time.Now()
	var b *Bordereau
	versionNumber := 1
	switch {
	case live == nil || rectification:
		if rectification {
			if err := tx.Model(&Bordereau{}).Where("id = ?", live.ID).
				Update("live_key", gorm.Expr("NULL")).Error; err != nil {
				return nil, err
			}
		}
		b = &Bordereau{
			ID: idgen.NextID(bordereauIdWorker), ProjectID: gen.ProjectID, Type: gen.Type, BaseType: gen.Type,
			Status: StatusGenerated, Year: year, Month: month, SnapshotID: snap.ID, LiveKey: &liveKey,
			CreatorID: sec.ActorID(), CreatorName: sec.ActorName(), CreateTime: now, UpdateTime: now,
		}
		if rectification {
			b.Type = TypeRectificatif
			b.SupersedesBordereauID = &live.ID
		}
		if err := tx.Create(b).Error; err != nil {
			return nil, err
		}
	default:
		b = live
		last, err := maxVersion(tx, b.ID)
		if err != nil {
			return nil, err
		}
		versionNumber = last + 1
		b.SnapshotID = snap.ID
		b.UpdateTime = now
		if err := tx.Save(b).Error; err != nil {
			return nil, err
		}
	}

	version := &BordereauVersion{
		ID: idgen.NextID(versionIdWorker), BordereauID: b.ID, VersionNumber: versionNumber,
		FileID: fileObject.ID, SnapshotID: snap.ID, CreatorName: sec.ActorName(), CreateTime: now,
	}
	if err := tx.Create(version).Error; err != nil {
		return nil, err
	}

	// 4. audit
	diff := audit.Diff{
		"projectId": gen.ProjectID.String(), "type": string(b.Type), "period": domain.PeriodKey(gen.Period),
		"snapshotId": snap.ID.String(), "fileId": fileObject.ID.String(),
		"versionId": version.ID.String(), "versionNumber": version.VersionNumber,
	}
	if rectification {
		diff["supersedesBordereauId"] = live.ID.String()
	}
	if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityBordereau, EntityID: b.ID.String(),
		Action: audit.ActionGenerate, Diff: diff}, sec); err != nil {
		return nil, err
	}

	return &GenerationResult{Bordereau: b, Version: version, SnapshotID: snap.ID, FileID: fileObject.ID,
		Rectification: rectification}, nil
}

// enrichGeneratedPayload embeds AT totals in period BA documents and the
// deliverable progress in BL documents.
func enrichGeneratedPayload(tx *gorm.DB, project *domain.Project, gen *BordereauGeneration,
	payload *snapshot.BordereauGeneratedPayload) error {

	switch {
	case gen.Type == TypeBA && project.Type == domain.ProjectTypeAT && gen.Period != nil:
		totals, err := snapshot.BuildAtPeriodTotals(tx, project.ID, gen.Period.Year, gen.Period.Month)
		if err != nil {
			return err
		}
		payload.Totals = totals
	case gen.Type == TypeBL:
		deliverables, err := deliverable.ListDeliverables(tx, project.ID)
		if err != nil {
			return err
		}
		progress := deliverable.ComputeProgress(project.OrderAmount, deliverables)
		payload.Deliverables = &progress
	}
	return nil
}

func findLive(tx *gorm.DB, liveKey string) (*Bordereau, error) {
	var b Bordereau
	err := tx.Where("live_key = ?", liveKey).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func maxVersion(tx *gorm.DB, bordereauID types.ID) (int, error) {
	var row struct{ Max *int }
	if err := tx.Model(&BordereauVersion{}).Select("MAX(version_number) AS max").
		Where("bordereau_id = ?", bordereauID).Scan(&row).Error; err != nil {
		return 0, err
	}
	if row.Max == nil {
		return 0, nil
	}
	return *row.Max, nil
}

// MarkSigned moves a GENERATED bordereau to SIGNED, records a
// BORDEREAU_SIGNED snapshot carrying sourceRef and writes the SIGNED audit
// record. A bordereau that is already signed is returned untouched and the
// fetcher is not called, so duplicate provider events download nothing twice.
//
// Documents are downloaded before the lock is taken; the lock only covers
// the transaction. Fetched documents that end up unrecorded are discarded.
func (m *BordereauManager) MarkSigned(id types.ID, sourceRef string, fetcher SignedDocumentFetcher, sec *session.Context) (*SignResult, error) {
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	current, err := findBordereau(db, id)
	if err != nil {
		return nil, err
	}
	if !sec.CanManageProject(current.ProjectID) {
		return nil, bizerror.ErrForbidden
	}
	if current.Status == StatusSigned || current.LiveKey == nil {
		return &SignResult{Bordereau: current, Changed: false}, nil
	}
	if _, err := BordereauStateMachine.Transit(current.Status, StatusSigned); err != nil {
		return nil, err
	}

	docs := SignedDocuments{}
	if fetcher != nil {
		docs = fetcher.FetchSignedDocuments(sec.TraceContext(), current, sourceRef)
	}

	var result *SignResult
	rec := audit.Recorder{}
	err = locker.WithLock(sec.TraceContext(), m.locker, lockKey(*current.LiveKey), func() error {
		b, err := findBordereau(db, id)
		if err != nil {
			return err
		}
		if b.Status == StatusSigned {
			result = &SignResult{Bordereau: b, Changed: false}
			return nil
		}
		if _, err := BordereauStateMachine.Transit(b.Status, StatusSigned); err != nil {
			return err
		}
		return db.Transaction(func(tx *gorm.DB) error {
			r, err := signInTx(tx, b, sourceRef, docs, &rec, sec)
			result = r
			return err
		})
	})
	if err != nil || !result.Changed {
		if fetcher != nil && (docs.SignedFile != nil || docs.AuditTrail != nil) {
			fetcher.DiscardSignedDocuments(sec.TraceContext(), docs)
		}
	}
	if err != nil {
		return nil, err
	}
	rec.Publish()
	return result, nil
}

func signInTx(tx *gorm.DB, b *Bordereau, sourceRef string, docs SignedDocuments,
	rec *audit.Recorder, sec *session.Context) (*SignResult, error) {

	var signedRef *snapshot.FileRef
	if docs.SignedFile != nil {
		f, err := storage.SaveFileObject(tx, docs.SignedFile, sec)
		if err != nil {
			return nil, err
		}
		b.SignedFileID = &f.ID
		signedRef = &snapshot.FileRef{ID: f.ID, FileName: f.FileName, ContentType: f.ContentType, Size: f.Size, Checksum: f.Checksum}
	}
	if docs.AuditTrail != nil {
		f, err := storage.SaveFileObject(tx, docs.AuditTrail, sec)
		if err != nil {
			return nil, err
		}
		b.AuditTrailFileID = &f.ID
	}

	snap, err := snapshot.CreateSnapshot(tx, snapshot.SnapshotCreation{
		ProjectID: b.ProjectID, Type: snapshot.TypeBordereauSigned, Period: b.Period(),
		ComputedBy: sec.ActorName(), SourceRef: sourceRef,
		Payload: snapshot.BordereauSignedPayload{BordereauID: b.ID, Status: StatusSigned, SignedFile: signedRef},
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	b.Status = StatusSigned
	b.SignatureRef = sourceRef
	b.SignedAt = &now
	b.UpdateTime = now
	if err := tx.Save(b).Error; err != nil {
		return nil, err
	}

	diff := audit.Diff{"snapshotId": snap.ID.String(), "sourceRef": sourceRef}
	if b.SignedFileID != nil {
		diff["signedFileId"] = b.SignedFileID.String()
	}
	if b.AuditTrailFileID != nil {
		diff["auditTrailFileId"] = b.AuditTrailFileID.String()
	}
	if _, err := rec.Write(tx, audit.Entry{EntityType: audit.EntityBordereau, EntityID: b.ID.String(),
		Action: audit.ActionSigned, Diff: diff}, sec); err != nil {
		return nil, err
	}
	return &SignResult{Bordereau: b, SnapshotID: &snap.ID, Changed: true}, nil
}

func findBordereau(db *gorm.DB, id types.ID) (*Bordereau, error) {
	var b Bordereau
	if err := db.Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (m *BordereauManager) QueryBordereaux(projectID types.ID, sec *session.Context) ([]Bordereau, error) {
	if !sec.CanManageProject(projectID) {
		return nil, bizerror.ErrForbidden
	}
	bordereaux := []Bordereau{}
	if err := m.dataSource.GormDBWithContext(sec.TraceContext()).Where("project_id = ?", projectID).
		Order("create_time DESC").Order("id DESC").Find(&bordereaux).Error; err != nil {
		return nil, err
	}
	return bordereaux, nil
}

func (m *BordereauManager) DetailBordereau(id types.ID, sec *session.Context) (*BordereauDetail, error) {
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	b, err := findBordereau(db, id)
	if err != nil {
		return nil, err
	}
	if !sec.CanManageProject(b.ProjectID) {
		return nil, bizerror.ErrForbidden
	}
	versions, err := ListVersions(db, id)
	if err != nil {
		return nil, err
	}
	return &BordereauDetail{Bordereau: *b, Versions: versions}, nil
}

func ListVersions(db *gorm.DB, bordereauID types.ID) ([]BordereauVersion, error) {
	versions := []BordereauVersion{}
	if err := db.Where("bordereau_id = ?", bordereauID).Order("version_number ASC").Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

// ReadVersionFile returns the stored document of a version.
func (m *BordereauManager) ReadVersionFile(versionID types.ID, sec *session.Context) (*storage.FileObject, []byte, error) {
	db := m.dataSource.GormDBWithContext(sec.TraceContext())
	var v BordereauVersion
	if err := db.Where("id = ?", versionID).First(&v).Error; err != nil {
		return nil, nil, err
	}
	b, err := findBordereau(db, v.BordereauID)
	if err != nil {
		return nil, nil, err
	}
	if !sec.CanManageProject(b.ProjectID) {
		return nil, nil, bizerror.ErrForbidden
	}
	f, err := storage.FindFileObject(db, v.FileID)
	if err != nil {
		return nil, nil, err
	}
	if m.store == nil {
		return nil, nil, bizerror.External("storage", errors.New("no file store configured"))
	}
	data, err := m.store.Read(sec.TraceContext(), f.StorageKey)
	if err != nil {
		logrus.WithField("storageKey", f.StorageKey).Warnf("failed to read stored document: %v", err)
		return nil, nil, bizerror.External("storage", err)
	}
	return f, data, nil
}
