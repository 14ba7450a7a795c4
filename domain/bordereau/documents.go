package bordereau

import (
	"context"
	"errors"
	"fmt"
	"pilotage/bizerror"
	"pilotage/domain"
	"pilotage/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

// DocumentRenderer turns the print view of a bordereau into PDF bytes.
type DocumentRenderer interface {
	RenderBordereau(ctx context.Context, projectID types.ID, docType string, period *domain.Period) ([]byte, error)
}

const pdfContentType = "application/pdf"

// GenerateDocument renders and stores the document, then records it with
// Generate. Renderer and store failures abort before anything is written to
// the database; when recording fails the stored bytes are removed.
func (m *BordereauManager) GenerateDocument(gen *BordereauGeneration, sec *session.Context) (*GenerationResult, error) {
	if err := validateGeneration(gen); err != nil {
		return nil, err
	}
	if !sec.CanManageProject(gen.ProjectID) {
		return nil, bizerror.ErrForbidden
	}
	if m.renderer == nil || m.store == nil {
		return nil, bizerror.External("renderer", errors.New("document generation is not configured"))
	}

	project, err := domain.FindProject(m.dataSource.GormDBWithContext(sec.TraceContext()), gen.ProjectID)
	if err != nil {
		return nil, err
	}

	ctx := sec.TraceContext()
	pdf, err := m.renderer.RenderBordereau(ctx, gen.ProjectID, string(gen.Type), gen.Period)
	if err != nil {
		return nil, bizerror.External("renderer", err)
	}
	stored, err := m.store.Write(ctx, pdf, DocumentFileName(project, gen.Type, gen.Period), pdfContentType)
	if err != nil {
		return nil, bizerror.External("storage", err)
	}

	result, err := m.Generate(gen, stored, sec)
	if err != nil {
		if delErr := m.store.Delete(ctx, stored.StorageKey); delErr != nil {
			logrus.WithField("storageKey", stored.StorageKey).Warnf("failed to remove orphan document: %v", delErr)
		}
		return nil, err
	}
	return result, nil
}

func DocumentFileName(project *domain.Project, t BordereauType, period *domain.Period) string {
	if period == nil {
		return fmt.Sprintf("%s-%s.pdf", t, project.ProjectNumber)
	}
	return fmt.Sprintf("%s-%s-%s.pdf", t, project.ProjectNumber, period.String())
}
