package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/fiscal"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
)

// FiscalUseCase fachada para la capa de presentación: resuelve el emisor del
// tenant y devuelve resultados con el error adentro en lugar de fallar.
type FiscalUseCase struct {
	companies repository.CompanyRepository
	orch      *FiscalOrchestrator
}

// NewFiscalUseCase construye el caso de uso.
func NewFiscalUseCase(companies repository.CompanyRepository, orch *FiscalOrchestrator) *FiscalUseCase {
	return &FiscalUseCase{companies: companies, orch: orch}
}

// Issue emite un documento para la empresa del tenant.
func (uc *FiscalUseCase) Issue(ctx context.Context, companyID string, in dto.IssueFiscalDocumentRequest) dto.IssueResult {
	res := dto.IssueResult{Reference: in.Reference}
	issuer, err := uc.issuer(ctx, companyID)
	if err != nil {
		res.Error, res.Errors = errorDetail(err), problems(err)
		return res
	}
	doc, err := uc.orch.Issue(ctx, issuer, toRequest(in))
	if err != nil {
		res.Error, res.Errors = errorDetail(err), problems(err)
		return res
	}
	res.Status = doc.Status
	res.Document = ToFiscalDocumentResponse(doc)
	return res
}

// Refresh consulta el estado en el gateway.
func (uc *FiscalUseCase) Refresh(ctx context.Context, companyID, reference string) dto.RefreshResult {
	issuer, err := uc.issuer(ctx, companyID)
	if err != nil {
		return dto.RefreshResult{Reference: reference, Error: errorDetail(err)}
	}
	doc, err := uc.orch.Refresh(ctx, issuer, reference)
	if err != nil {
		return dto.RefreshResult{Reference: reference, Status: uc.currentStatus(ctx, issuer, reference), Error: errorDetail(err)}
	}
	return refreshResult(doc)
}

// RefreshPending refresca los documentos pendientes del tenant.
func (uc *FiscalUseCase) RefreshPending(ctx context.Context, companyID string, limit int) ([]dto.RefreshResult, error) {
	issuer, err := uc.issuer(ctx, companyID)
	if err != nil {
		return nil, err
	}
	reports, err := uc.orch.RefreshPending(ctx, issuer, limit)
	out := make([]dto.RefreshResult, 0, len(reports))
	for _, r := range reports {
		if r.Err != nil {
			out = append(out, dto.RefreshResult{Reference: r.Reference, Status: entity.FiscalStatusPending, Error: errorDetail(r.Err)})
			continue
		}
		out = append(out, refreshResult(r.Document))
	}
	return out, err
}

// Cancel cancela un documento autorizado.
func (uc *FiscalUseCase) Cancel(ctx context.Context, companyID, reference, justification string) dto.CancelResult {
	issuer, err := uc.issuer(ctx, companyID)
	if err != nil {
		return dto.CancelResult{Reference: reference, Error: errorDetail(err)}
	}
	doc, err := uc.orch.Cancel(ctx, issuer, reference, justification)
	if err != nil {
		return dto.CancelResult{Reference: reference, Status: uc.currentStatus(ctx, issuer, reference), Error: errorDetail(err)}
	}
	return dto.CancelResult{Reference: doc.Reference, Status: doc.Status}
}

// Amend registra una carta de corrección.
func (uc *FiscalUseCase) Amend(ctx context.Context, companyID, reference, text string) dto.AmendResult {
	issuer, err := uc.issuer(ctx, companyID)
	if err != nil {
		return dto.AmendResult{Reference: reference, Error: errorDetail(err)}
	}
	doc, err := uc.orch.Amend(ctx, issuer, reference, text)
	if err != nil {
		res := dto.AmendResult{Reference: reference, Error: errorDetail(err)}
		if cur, gerr := uc.orch.Get(ctx, issuer, reference); gerr == nil {
			res.Status, res.AmendmentCount = cur.Status, cur.AmendmentCount
		}
		return res
	}
	return dto.AmendResult{Reference: doc.Reference, Status: doc.Status, AmendmentCount: doc.AmendmentCount}
}

// Get devuelve el registro almacenado.
func (uc *FiscalUseCase) Get(ctx context.Context, companyID, reference string) (*dto.FiscalDocumentResponse, error) {
	issuer, err := uc.issuer(ctx, companyID)
	if err != nil {
		return nil, err
	}
	doc, err := uc.orch.Get(ctx, issuer, reference)
	if err != nil {
		return nil, err
	}
	return ToFiscalDocumentResponse(doc), nil
}

// ListPending una página de documentos en SUBMITTED_PENDING del tenant.
func (uc *FiscalUseCase) ListPending(ctx context.Context, companyID string, page dto.PageRequest) (*dto.PendingPage, error) {
	issuer, err := uc.issuer(ctx, companyID)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()
	// un registro extra indica si hay otra página
	list, err := uc.orch.ListPending(ctx, issuer, page.Limit+1, page.Offset)
	if err != nil {
		return nil, err
	}
	out := &dto.PendingPage{
		Items:  make([]*dto.FiscalDocumentResponse, 0, len(list)),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	if len(list) > page.Limit {
		list, out.HasMore = list[:page.Limit], true
	}
	for _, d := range list {
		out.Items = append(out.Items, ToFiscalDocumentResponse(d))
	}
	return out, nil
}

// Protocol protocolo de autorización del XML autorizado.
func (uc *FiscalUseCase) Protocol(ctx context.Context, companyID, reference string) (*dto.ProtocolResponse, error) {
	issuer, err := uc.issuer(ctx, companyID)
	if err != nil {
		return nil, err
	}
	p, err := uc.orch.Protocol(ctx, issuer, reference)
	if err != nil {
		return nil, err
	}
	return &dto.ProtocolResponse{
		Reference:      reference,
		AccessKey:      p.AccessKey,
		ProtocolNumber: p.ProtocolNumber,
		StatusCode:     p.StatusCode,
		Reason:         p.Reason,
		ReceivedAt:     p.ReceivedAt,
		Environment:    p.Environment,
		IssuerTaxID:    p.IssuerTaxID,
		Total:          p.Total,
		Authorized:     p.Authorized(),
	}, nil
}

// Preview PDF borrador del documento, sin enviarlo.
func (uc *FiscalUseCase) Preview(ctx context.Context, companyID string, in dto.IssueFiscalDocumentRequest) ([]byte, error) {
	issuer, err := uc.issuer(ctx, companyID)
	if err != nil {
		return nil, err
	}
	pdf, _, err := uc.orch.Preview(ctx, issuer, toRequest(in))
	return pdf, err
}

// CanIssue indica si la empresa puede emitir; reason explica el motivo cuando no.
func (uc *FiscalUseCase) CanIssue(ctx context.Context, companyID string) (bool, string, error) {
	c, err := uc.companies.GetByID(ctx, companyID)
	if err != nil {
		return false, "", fmt.Errorf("fiscal: obtener empresa: %w", err)
	}
	switch {
	case c == nil:
		return false, "empresa no registrada como emisor", nil
	case c.Status != "" && c.Status != entity.CompanyStatusActive:
		return false, "empresa " + c.Status, nil
	case c.GatewayToken == "":
		return false, "la empresa no tiene token del gateway configurado", nil
	}
	return true, "", nil
}

// ── Internos ──────────────────────────────────────────────────────────────────

func (uc *FiscalUseCase) issuer(ctx context.Context, companyID string) (*entity.Company, error) {
	c, err := uc.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("fiscal: obtener empresa: %w", err)
	}
	if c == nil {
		return nil, &domain.FiscalError{Kind: domain.ErrNotFound, Message: fmt.Sprintf("empresa %q no encontrada", companyID)}
	}
	if c.Status != "" && c.Status != entity.CompanyStatusActive {
		return nil, &domain.FiscalError{Kind: domain.ErrForbidden, Message: fmt.Sprintf("empresa %q inactiva", companyID)}
	}
	return c, nil
}

func (uc *FiscalUseCase) currentStatus(ctx context.Context, issuer *entity.Company, reference string) string {
	cur, err := uc.orch.Get(ctx, issuer, reference)
	if err != nil {
		return ""
	}
	return cur.Status
}

func refreshResult(doc *entity.FiscalDocument) dto.RefreshResult {
	res := dto.RefreshResult{
		Reference: doc.Reference,
		Status:    doc.Status,
		LastError: doc.LastError,
		Document:  ToFiscalDocumentResponse(doc),
	}
	if doc.Status == entity.FiscalStatusAuthorized || doc.Status == entity.FiscalStatusCancelled {
		if doc.XMLURL != "" || doc.PDFURL != "" {
			res.Artifacts = &dto.FiscalArtifacts{XMLURL: doc.XMLURL, PDFURL: doc.PDFURL}
		}
	}
	return res
}

// ToFiscalDocumentResponse mapea la entidad a la respuesta.
func ToFiscalDocumentResponse(d *entity.FiscalDocument) *dto.FiscalDocumentResponse {
	return &dto.FiscalDocumentResponse{
		Reference:      d.Reference,
		Kind:           d.Kind,
		Status:         d.Status,
		Environment:    d.Environment,
		Number:         d.AssignedNumber,
		Series:         d.Series,
		AccessKey:      d.AccessKey,
		XMLURL:         d.XMLURL,
		PDFURL:         d.PDFURL,
		LastError:      d.LastError,
		AmendmentCount: d.AmendmentCount,
		Total:          d.TotalAmount,
		AuthorizedAt:   d.AuthorizedAt,
		CancelledAt:    d.CancelledAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func toRequest(in dto.IssueFiscalDocumentRequest) fiscal.Request {
	items := make([]fiscal.LineItemInput, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, fiscal.LineItemInput{
			Code:        it.Code,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Unit:        it.Unit,
			NCM:         it.NCM,
			CFOP:        it.CFOP,
		})
	}
	r := in.Recipient
	return fiscal.Request{
		Kind:      pkgfiscal.DocumentKind(in.Kind),
		Reference: in.Reference,
		Recipient: fiscal.Party{
			Name:                  r.Name,
			TaxID:                 r.TaxID,
			StateRegistration:     r.StateRegistration,
			MunicipalRegistration: r.MunicipalRegistration,
			Email:                 r.Email,
			Phone:                 r.Phone,
			Address: fiscal.Address{
				Street:           r.Address.Street,
				Number:           r.Address.Number,
				District:         r.Address.District,
				City:             r.Address.City,
				State:            r.Address.State,
				PostalCode:       r.Address.PostalCode,
				MunicipalityCode: r.Address.MunicipalityCode,
			},
		},
		Items:           items,
		OrderTotal:      in.OrderTotal,
		TaxRegime:       in.TaxRegime,
		Freight:         in.Freight,
		Insurance:       in.Insurance,
		Discount:        in.Discount,
		OperationNature: in.OperationNature,
		ServiceListItem: in.ServiceListItem,
		Notes:           in.Notes,
	}
}

// errorDetail traduce cualquier error al detalle expuesto.
func errorDetail(err error) *dto.FiscalErrorDetail {
	d := &dto.FiscalErrorDetail{
		Code:      domain.ErrorCode(err),
		Message:   err.Error(),
		Retryable: errors.Is(err, domain.ErrTransientGateway),
	}
	if fe, ok := domain.AsFiscalError(err); ok {
		if fe.Message != "" {
			d.Message = fe.Message
		}
		d.Fields = fe.Fields
		d.GatewayCode = fe.GatewayCode
		d.GatewayMessage = fe.GatewayMessage
	}
	return d
}

// problems lista de problemas legibles para IssueResult.Errors.
func problems(err error) []string {
	if fe, ok := domain.AsFiscalError(err); ok && len(fe.Fields) > 0 {
		return fe.Fields
	}
	return []string{err.Error()}
}
