package snapshot_test

import (
	"encoding/json"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/snapshot"
	"pilotage/domain/timeentry"
	"pilotage/session"
	"pilotage/testinfra"
	"testing"

	"github.com/fundwit/go-commons/types"
	. "github.com/onsi/gomega"
)

func setup(t *testing.T) *testinfra.TestDatabase {
	testDatabase := testinfra.StartTestDatabase("pilotage")
	if err := testDatabase.DS.GormDB().AutoMigrate(&domain.Project{}, &timeentry.TimeEntry{},
		&snapshot.Snapshot{}, &audit.AuditRecord{}).Error; err != nil {
		t.Fatal(err)
	}
	testinfra.CreateATProject(testDatabase.DS.GormDB(), 100, "P-100")
	return testDatabase
}

func TestCreateSnapshot(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := setup(t)
	defer testinfra.StopTestDatabase(testDatabase)
	db := testDatabase.DS.GormDB()

	signedID := types.ID(5)
	s, err := snapshot.CreateSnapshot(db, snapshot.SnapshotCreation{
		ProjectID: 100, Type: snapshot.TypeRectificatif, Period: &domain.Period{Year: 2024, Month: 3},
		ComputedBy: "alice", SourceRef: "ref-1", SupersedesSnapshotID: &signedID,
		Payload: snapshot.RectificatifPayload{Reason: "R", SignedSnapshotID: &signedID},
	})
	Expect(err).To(BeNil())

	var stored snapshot.Snapshot
	Expect(db.Where("id = ?", s.ID).First(&stored).Error).To(BeNil())
	Expect(stored.ComputedBy).To(Equal("alice"))
	Expect(stored.SourceRef).To(Equal("ref-1"))
	Expect(*stored.SupersedesSnapshotID).To(Equal(signedID))
	Expect(*stored.Period()).To(Equal(domain.Period{Year: 2024, Month: 3}))

	body, err := json.Marshal(stored)
	Expect(err).To(BeNil())
	fields := map[string]json.RawMessage{}
	Expect(json.Unmarshal(body, &fields)).To(BeNil())
	Expect(string(fields["data"])).To(MatchJSON(`{"kind":"RECTIFICATIF","reason":"R","signedSnapshotId":"5"}`))

	t.Run("latest snapshot should honour the optional period", func(t *testing.T) {
		first, err := snapshot.CreateSnapshot(db, snapshot.SnapshotCreation{ProjectID: 100, Type: snapshot.TypeBordereauSigned,
			ComputedBy: "a", Payload: snapshot.BordereauSignedPayload{BordereauID: 1, Status: "SIGNED"}})
		Expect(err).To(BeNil())
		second, err := snapshot.CreateSnapshot(db, snapshot.SnapshotCreation{ProjectID: 100, Type: snapshot.TypeBordereauSigned,
			ComputedBy: "a", Payload: snapshot.BordereauSignedPayload{BordereauID: 2, Status: "SIGNED"}})
		Expect(err).To(BeNil())
		Expect(second.ID).ToNot(Equal(first.ID))

		latest, err := snapshot.LatestSnapshot(db, 100, snapshot.TypeBordereauSigned, nil)
		Expect(err).To(BeNil())
		Expect(latest.ID).To(Equal(second.ID))

		latest, err = snapshot.LatestSnapshot(db, 100, snapshot.TypeBordereauSigned, &domain.Period{Year: 2024, Month: 3})
		Expect(err).To(BeNil())
		Expect(latest).To(BeNil())
	})
}

func TestBuildAtPeriodTotals(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := setup(t)
	defer testinfra.StopTestDatabase(testDatabase)

	_, err := snapshot.BuildAtPeriodTotals(testDatabase.DS.GormDB(), 404, 2024, 1)
	Expect(err).To(Equal(bizerror.ErrNotFound))

	totals, err := snapshot.BuildAtPeriodTotals(testDatabase.DS.GormDB(), 100, 2024, 1)
	Expect(err).To(BeNil())
	Expect(totals.Remaining.BoDays.String()).To(Equal("10"))
	Expect(totals.Source.TimeEntryIDs).To(BeEmpty())
}

func TestManualSnapshot(t *testing.T) {
	RegisterTestingT(t)

	testDatabase := setup(t)
	defer testinfra.StopTestDatabase(testDatabase)
	m := snapshot.NewSnapshotManager(testDatabase.DS)

	_, err := m.CreateManualSnapshot(snapshot.ManualSnapshotCreation{ProjectID: 100, Year: 2024, Month: 1, Note: "n"},
		testinfra.BuildSecCtx(2, "manager_3"))
	Expect(err).To(Equal(bizerror.ErrForbidden))

	sec := testinfra.BuildSecCtx(1, session.SystemAdminPerm)
	s, err := m.CreateManualSnapshot(snapshot.ManualSnapshotCreation{ProjectID: 100, Year: 2024, Month: 1, Note: "audit visit"}, sec)
	Expect(err).To(BeNil())
	Expect(s.Type).To(Equal(snapshot.TypeManual))
	p, err := s.Payload()
	Expect(err).To(BeNil())
	Expect(p.(snapshot.ManualPayload).Note).To(Equal("audit visit"))

	list, err := m.QuerySnapshots(snapshot.SnapshotQuery{ProjectID: 100, Type: snapshot.TypeManual}, sec)
	Expect(err).To(BeNil())
	Expect(len(list)).To(Equal(1))

	detail, err := m.DetailSnapshot(s.ID, sec)
	Expect(err).To(BeNil())
	Expect(detail.ID).To(Equal(s.ID))

	var count int
	Expect(testDatabase.DS.GormDB().Model(&audit.AuditRecord{}).Where("action = ?", audit.ActionManualSnapshot).
		Count(&count).Error).To(BeNil())
	Expect(count).To(Equal(1))
}
