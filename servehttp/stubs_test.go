package servehttp_test

import (
	"context"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/domain/bordereau"
	"pilotage/domain/client"
	"pilotage/domain/dashboard"
	"pilotage/domain/deliverable"
	"pilotage/domain/project"
	"pilotage/domain/timeentry"
	"pilotage/esign"
	"pilotage/session"
	"pilotage/storage"
	"pilotage/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// newRouter builds an engine the way main does, with a fixed session in
// place of the cookie filter.
func newRouter(sec *session.Context) (*gin.Engine, gin.HandlerFunc) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(bizerror.ErrorHandling())
	return router, func(c *gin.Context) {
		session.SaveSecurityContext(c, sec)
		c.Next()
	}
}

var adminSec = testinfra.BuildSecCtx(1, session.SystemAdminPerm)

type projectStub struct {
	project.ProjectManagerTraits
	queryProjects func(sec *session.Context) ([]domain.Project, error)
	createProject func(c *project.ProjectCreating, sec *session.Context) (*domain.Project, error)
	deleteProject func(id types.ID, sec *session.Context) error
	nextNumber    func(year int, sec *session.Context) (string, error)
}

func (s *projectStub) QueryProjects(sec *session.Context) ([]domain.Project, error) {
	return s.queryProjects(sec)
}
func (s *projectStub) CreateProject(c *project.ProjectCreating, sec *session.Context) (*domain.Project, error) {
	return s.createProject(c, sec)
}
func (s *projectStub) DeleteProject(id types.ID, sec *session.Context) error {
	return s.deleteProject(id, sec)
}
func (s *projectStub) NextProjectNumber(year int, sec *session.Context) (string, error) {
	return s.nextNumber(year, sec)
}

type deliverableStub struct {
	deliverable.DeliverableManagerTraits
	progress func(projectID types.ID, sec *session.Context) (*deliverable.Progress, error)
}

func (s *deliverableStub) ProjectProgress(projectID types.ID, sec *session.Context) (*deliverable.Progress, error) {
	return s.progress(projectID, sec)
}

type timeEntryStub struct {
	timeentry.TimeEntryManagerTraits
	upsert    func(u timeentry.TimeEntryUpsert, sec *session.Context) (*timeentry.TimeEntry, error)
	listMonth func(q timeentry.MonthQuery, sec *session.Context) ([]timeentry.TimeEntry, error)
}

func (s *timeEntryStub) Upsert(u timeentry.TimeEntryUpsert, sec *session.Context) (*timeentry.TimeEntry, error) {
	return s.upsert(u, sec)
}
func (s *timeEntryStub) ListMonth(q timeentry.MonthQuery, sec *session.Context) ([]timeentry.TimeEntry, error) {
	return s.listMonth(q, sec)
}

type exportStub struct {
	exportMonth    func(projectID types.ID, year, month int, sec *session.Context) (string, []byte, error)
	exportProjects func(sec *session.Context) (string, []byte, error)
}

func (s *exportStub) ExportMonth(projectID types.ID, year, month int, sec *session.Context) (string, []byte, error) {
	return s.exportMonth(projectID, year, month, sec)
}
func (s *exportStub) ExportProjects(sec *session.Context) (string, []byte, error) {
	return s.exportProjects(sec)
}

type bordereauStub struct {
	bordereau.BordereauManagerTraits
	generateDocument func(gen *bordereau.BordereauGeneration, sec *session.Context) (*bordereau.GenerationResult, error)
	readVersionFile  func(versionID types.ID, sec *session.Context) (*storage.FileObject, []byte, error)
}

func (s *bordereauStub) GenerateDocument(gen *bordereau.BordereauGeneration, sec *session.Context) (*bordereau.GenerationResult, error) {
	return s.generateDocument(gen, sec)
}
func (s *bordereauStub) ReadVersionFile(versionID types.ID, sec *session.Context) (*storage.FileObject, []byte, error) {
	return s.readVersionFile(versionID, sec)
}

type signatureStub struct {
	esign.SignatureManagerTraits
	clientID     string
	send         func(req esign.SignatureRequest, sec *session.Context) (*esign.SignatureAgreement, error)
	remind       func(agreementID types.ID, req esign.ReminderRequest, sec *session.Context) error
	handleEvents func(ctx context.Context, events []esign.Event) (*esign.SyncResult, error)
}

func (s *signatureStub) ClientID() string {
	return s.clientID
}
func (s *signatureStub) SendForSignature(req esign.SignatureRequest, sec *session.Context) (*esign.SignatureAgreement, error) {
	return s.send(req, sec)
}
func (s *signatureStub) Remind(agreementID types.ID, req esign.ReminderRequest, sec *session.Context) error {
	return s.remind(agreementID, req, sec)
}
func (s *signatureStub) HandleEvents(ctx context.Context, events []esign.Event) (*esign.SyncResult, error) {
	return s.handleEvents(ctx, events)
}

type auditStub struct {
	query func(q audit.AuditQuery, sec *session.Context) ([]audit.AuditRecord, error)
}

func (s *auditStub) QueryAuditRecords(q audit.AuditQuery, sec *session.Context) ([]audit.AuditRecord, error) {
	return s.query(q, sec)
}

type clientStub struct {
	client.ClientManagerTraits
	createClient  func(c *client.ClientSaving, sec *session.Context) (*domain.Client, error)
	deleteClient  func(id types.ID, sec *session.Context) error
	queryContacts func(clientID types.ID, sec *session.Context) ([]domain.Contact, error)
	updateContact func(id types.ID, u *client.ContactUpdating, sec *session.Context) (*domain.Contact, error)
}

func (s *clientStub) CreateClient(c *client.ClientSaving, sec *session.Context) (*domain.Client, error) {
	return s.createClient(c, sec)
}
func (s *clientStub) DeleteClient(id types.ID, sec *session.Context) error {
	return s.deleteClient(id, sec)
}
func (s *clientStub) QueryContacts(clientID types.ID, sec *session.Context) ([]domain.Contact, error) {
	return s.queryContacts(clientID, sec)
}
func (s *clientStub) UpdateContact(id types.ID, u *client.ContactUpdating, sec *session.Context) (*domain.Contact, error) {
	return s.updateContact(id, u, sec)
}

type commentStub struct {
	upsert func(u timeentry.CommentUpsert, sec *session.Context) (*timeentry.BordereauComment, error)
	list   func(q timeentry.CommentQuery, sec *session.Context) ([]timeentry.BordereauComment, error)
}

func (s *commentStub) UpsertComment(u timeentry.CommentUpsert, sec *session.Context) (*timeentry.BordereauComment, error) {
	return s.upsert(u, sec)
}
func (s *commentStub) ListComments(q timeentry.CommentQuery, sec *session.Context) ([]timeentry.BordereauComment, error) {
	return s.list(q, sec)
}

type dashboardStub struct {
	production func(year int, sec *session.Context) (*dashboard.Production, error)
}

func (s *dashboardStub) Production(year int, sec *session.Context) (*dashboard.Production, error) {
	return s.production(year, sec)
}
