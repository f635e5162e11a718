package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/fiscal"
	"github.com/jhoicas/nfe-emissor/internal/domain/repository"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/gateway"
	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
	"github.com/jhoicas/nfe-emissor/pkg/logger"
)

// OrchestratorConfig parámetros del ciclo de vida.
type OrchestratorConfig struct {
	// CancelWindow plazo de cancelación contado desde la autorización; 0 lo desactiva.
	CancelWindow time.Duration
}

// FiscalOrchestrator orquesta el ciclo de vida de un documento fiscal:
//
//	Issue → SUBMITTED_PENDING → Refresh → AUTHORIZED | REJECTED | DENIED
//	AUTHORIZED → Cancel → CANCELLED ; AUTHORIZED → Amend (hasta 20 correcciones)
//
// Cada operación hace como máximo una llamada al gateway y una escritura
// atómica en el almacén. Nunca se mantiene un lock durante la llamada de red y
// el almacén solo se escribe después de que la llamada terminó, así una
// cancelación del llamador deja el registro intacto. Las reglas de negocio
// (estado, justificación, texto) se validan antes de cualquier llamada.
type FiscalOrchestrator struct {
	docs     repository.FiscalDocumentRepository
	gateway  FiscalGateway
	builder  *fiscal.Builder
	renderer PreviewRenderer // nil = sin vista previa
	cfg      OrchestratorConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewFiscalOrchestrator construye el orquestador con todas sus dependencias.
func NewFiscalOrchestrator(
	docs repository.FiscalDocumentRepository,
	gw FiscalGateway,
	builder *fiscal.Builder,
	renderer PreviewRenderer,
	cfg OrchestratorConfig,
	log *logger.Logger,
) *FiscalOrchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &FiscalOrchestrator{
		docs:     docs,
		gateway:  gw,
		builder:  builder,
		renderer: renderer,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock reemplaza el reloj (tests).
func (o *FiscalOrchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// ── Issue ─────────────────────────────────────────────────────────────────────

// Issue construye y envía el documento. Es idempotente por referencia: si ya
// existe un registro para (emisor, referencia) se devuelve sin llamar al gateway;
// si el contenido difiere del registrado falla con ErrValidation.
func (o *FiscalOrchestrator) Issue(ctx context.Context, issuer *entity.Company, req fiscal.Request) (*entity.FiscalDocument, error) {
	req = o.prepareRequest(issuer, req)
	doc, err := o.builder.Build(req)
	if err != nil {
		return nil, err
	}
	for _, d := range doc.Diagnostics {
		o.log.Warn().Str("issuer_id", issuer.ID).Str("reference", doc.Reference).Msg("fiscal: " + d)
	}
	hash, err := doc.Hash()
	if err != nil {
		return nil, fmt.Errorf("fiscal: calcular hash del documento: %w", err)
	}

	existing, err := o.docs.Get(ctx, issuer.ID, doc.Reference)
	if err != nil {
		return nil, fmt.Errorf("fiscal: consultar referencia %s: %w", doc.Reference, err)
	}
	if existing != nil {
		o.log.Info().Str("reference", doc.Reference).Str("status", existing.Status).
			Msg("fiscal: referencia ya registrada, se devuelve el registro existente")
		return sameDocument(existing, hash)
	}

	cred, err := credentialsFor(issuer, doc.Environment)
	if err != nil {
		return nil, err
	}
	reply, err := o.gateway.Submit(ctx, cred, doc.Kind, doc.Reference, doc.Payload())
	if err != nil {
		o.log.Warn().Err(err).Str("reference", doc.Reference).Str("error_code", domain.ErrorCode(err)).
			Msg("fiscal: envío no aceptado")
		return nil, err
	}

	rec := &entity.FiscalDocument{
		IssuerID:    issuer.ID,
		Reference:   doc.Reference,
		Kind:        string(doc.Kind),
		Status:      entity.FiscalStatusPending,
		Environment: doc.Environment,
		PayloadHash: hash,
		TotalAmount: doc.Total,
	}
	stored, created, err := o.docs.CreateIfAbsent(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("fiscal: persistir documento %s: %w", doc.Reference, err)
	}
	if !created {
		o.log.Info().Str("reference", doc.Reference).Msg("fiscal: emisión concurrente con la misma referencia")
		return sameDocument(stored, hash)
	}
	o.log.Info().
		Str("issuer_id", issuer.ID).
		Str("reference", doc.Reference).
		Str("kind", string(doc.Kind)).
		Bool("duplicate", reply.Duplicate).
		Msg("fiscal: documento aceptado por el gateway")

	// respuesta síncrona (NFC-e): el resultado final ya viene en el envío
	if reply.Outcome != nil {
		return o.applyOutcome(ctx, stored, reply.Outcome)
	}
	return stored, nil
}

// ── Refresh ───────────────────────────────────────────────────────────────────

// Refresh consulta el gateway y aplica el estado informado. "Pendiente" no es
// un error: el registro queda igual. Los estados sin transiciones posibles se
// devuelven sin llamar al gateway.
func (o *FiscalOrchestrator) Refresh(ctx context.Context, issuer *entity.Company, reference string) (*entity.FiscalDocument, error) {
	rec, err := o.load(ctx, issuer, reference)
	if err != nil {
		return nil, err
	}
	if rec.IsFinal() {
		return rec, nil
	}
	cred, err := credentialsFor(issuer, rec.Environment)
	if err != nil {
		return nil, err
	}
	reply, err := o.gateway.Query(ctx, cred, pkgfiscal.DocumentKind(rec.Kind), rec.Reference)
	if err != nil {
		o.log.Warn().Err(err).Str("reference", rec.Reference).Str("error_code", domain.ErrorCode(err)).
			Msg("fiscal: consulta fallida")
		return nil, err
	}
	return o.applyOutcome(ctx, rec, reply.Outcome)
}

// RefreshReport resultado de un Refresh dentro de RefreshPending.
type RefreshReport struct {
	Reference string
	Document  *entity.FiscalDocument
	Err       error
}

// RefreshPending refresca, uno a uno, los documentos pendientes del emisor.
func (o *FiscalOrchestrator) RefreshPending(ctx context.Context, issuer *entity.Company, limit int) ([]RefreshReport, error) {
	pending, err := o.ListPending(ctx, issuer, limit, 0)
	if err != nil {
		return nil, err
	}
	reports := make([]RefreshReport, 0, len(pending))
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		doc, err := o.Refresh(ctx, issuer, p.Reference)
		reports = append(reports, RefreshReport{Reference: p.Reference, Document: doc, Err: err})
	}
	return reports, nil
}

// ── Cancel ────────────────────────────────────────────────────────────────────

// Cancel cancela un documento AUTHORIZED. La justificación (15–255 caracteres),
// el estado y el plazo se validan antes de llamar al gateway. Un fallo del
// gateway deja el estado intacto y se devuelve al llamador sin reintentos.
func (o *FiscalOrchestrator) Cancel(ctx context.Context, issuer *entity.Company, reference, justification string) (*entity.FiscalDocument, error) {
	justification = strings.TrimSpace(justification)
	if n := utf8.RuneCountInString(justification); n < pkgfiscal.MinJustificationLength || n > pkgfiscal.MaxJustificationLength {
		return nil, domain.NewValidationError(
			fmt.Sprintf("la justificación debe tener entre %d y %d caracteres (tiene %d)",
				pkgfiscal.MinJustificationLength, pkgfiscal.MaxJustificationLength, n),
			"justification")
	}
	rec, err := o.load(ctx, issuer, reference)
	if err != nil {
		return nil, err
	}
	if rec.Status != entity.FiscalStatusAuthorized {
		return nil, domain.NewStateError(fmt.Sprintf("solo se puede cancelar un documento AUTHORIZED (estado actual: %s)", rec.Status))
	}
	if o.cfg.CancelWindow > 0 && rec.AuthorizedAt != nil {
		if deadline := rec.AuthorizedAt.Add(o.cfg.CancelWindow); o.now().After(deadline) {
			return nil, domain.NewValidationError(
				fmt.Sprintf("plazo de cancelación vencido el %s", deadline.Format(time.RFC3339)),
				"authorized_at")
		}
	}
	cred, err := credentialsFor(issuer, rec.Environment)
	if err != nil {
		return nil, err
	}

	reply, err := o.gateway.Cancel(ctx, cred, pkgfiscal.DocumentKind(rec.Kind), rec.Reference, justification)
	if err != nil {
		o.log.Error().Err(err).Str("reference", rec.Reference).Msg("fiscal: cancelación fallida")
		return nil, err
	}
	if reply.Outcome != nil && reply.Outcome.Status != gateway.StatusCancelled {
		err := rejectionFrom(reply, "el gateway no confirmó la cancelación")
		o.log.Error().Err(err).Str("reference", rec.Reference).Msg("fiscal: cancelación rechazada")
		return nil, err
	}

	now := o.now()
	updated := *rec
	updated.Status = entity.FiscalStatusCancelled
	updated.CancelledAt = &now
	if err := o.docs.Update(ctx, &updated, entity.FiscalStatusAuthorized); err != nil {
		return o.afterConflict(ctx, rec, err)
	}
	o.log.Info().Str("reference", rec.Reference).Msg("fiscal: documento cancelado")
	return &updated, nil
}

// ── Amend ─────────────────────────────────────────────────────────────────────

// Amend registra una carta de corrección sobre un documento AUTHORIZED. El
// límite de correcciones lo impone el gateway y su rechazo se devuelve tal cual.
func (o *FiscalOrchestrator) Amend(ctx context.Context, issuer *entity.Company, reference, text string) (*entity.FiscalDocument, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewValidationError("el texto de corrección es obligatorio", "text")
	}
	if n := utf8.RuneCountInString(text); n > pkgfiscal.MaxCorrectionTextLength {
		return nil, domain.NewValidationError(
			fmt.Sprintf("el texto de corrección excede %d caracteres (tiene %d)", pkgfiscal.MaxCorrectionTextLength, n),
			"text")
	}
	rec, err := o.load(ctx, issuer, reference)
	if err != nil {
		return nil, err
	}
	if rec.Status != entity.FiscalStatusAuthorized {
		return nil, domain.NewStateError(fmt.Sprintf("solo se puede corregir un documento AUTHORIZED (estado actual: %s)", rec.Status))
	}
	cred, err := credentialsFor(issuer, rec.Environment)
	if err != nil {
		return nil, err
	}

	reply, err := o.gateway.Amend(ctx, cred, pkgfiscal.DocumentKind(rec.Kind), rec.Reference, text)
	if err != nil {
		o.log.Warn().Err(err).Str("reference", rec.Reference).Msg("fiscal: corrección fallida")
		return nil, err
	}
	if reply.Outcome != nil && (reply.Outcome.Status == gateway.StatusRejected || reply.Outcome.Status == gateway.StatusDenied) {
		return nil, rejectionFrom(reply, "el gateway rechazó la carta de corrección")
	}

	count, err := o.docs.IncrementAmendments(ctx, issuer.ID, rec.Reference)
	if err != nil {
		return nil, fmt.Errorf("fiscal: registrar corrección de %s: %w", rec.Reference, err)
	}
	rec.AmendmentCount = count
	o.log.Info().Str("reference", rec.Reference).Int("amendments", count).Msg("fiscal: carta de corrección registrada")
	return rec, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

// Get devuelve el registro almacenado sin consultar el gateway.
func (o *FiscalOrchestrator) Get(ctx context.Context, issuer *entity.Company, reference string) (*entity.FiscalDocument, error) {
	return o.load(ctx, issuer, reference)
}

// ListPending documentos del emisor que siguen en SUBMITTED_PENDING.
func (o *FiscalOrchestrator) ListPending(ctx context.Context, issuer *entity.Company, limit, offset int) ([]*entity.FiscalDocument, error) {
	list, err := o.docs.ListByStatus(ctx, issuer.ID, entity.FiscalStatusPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fiscal: listar pendientes: %w", err)
	}
	return list, nil
}

// Protocol descarga el XML autorizado y devuelve su protocolo de autorización.
func (o *FiscalOrchestrator) Protocol(ctx context.Context, issuer *entity.Company, reference string) (*gateway.ProtocolSummary, error) {
	rec, err := o.load(ctx, issuer, reference)
	if err != nil {
		return nil, err
	}
	if rec.XMLURL == "" {
		return nil, domain.NewStateError(fmt.Sprintf("el documento %s no tiene XML autorizado (estado: %s)", rec.Reference, rec.Status))
	}
	cred, err := credentialsFor(issuer, rec.Environment)
	if err != nil {
		return nil, err
	}
	raw, err := o.gateway.Download(ctx, cred, rec.XMLURL)
	if err != nil {
		return nil, err
	}
	summary, err := gateway.InspectProtocol(raw)
	if err != nil {
		return nil, &domain.FiscalError{Kind: domain.ErrMalformedResponse, Message: "XML autorizado ilegible", Err: err}
	}
	return summary, nil
}

// Preview construye el documento y genera un PDF borrador sin enviarlo ni persistirlo.
func (o *FiscalOrchestrator) Preview(ctx context.Context, issuer *entity.Company, req fiscal.Request) ([]byte, *fiscal.Document, error) {
	if o.renderer == nil {
		return nil, nil, errors.New("fiscal: vista previa no configurada")
	}
	doc, err := o.builder.Build(o.prepareRequest(issuer, req))
	if err != nil {
		return nil, nil, err
	}
	pdf, err := o.renderer.RenderPreview(doc, issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("fiscal: generar vista previa: %w", err)
	}
	return pdf, doc, nil
}

// ── Internos ──────────────────────────────────────────────────────────────────

// applyOutcome aplica el estado informado por el gateway respetando la máquina
// de estados. Pendiente y desconocido no cambian nada.
func (o *FiscalOrchestrator) applyOutcome(ctx context.Context, rec *entity.FiscalDocument, out *gateway.Outcome) (*entity.FiscalDocument, error) {
	if out == nil {
		return rec, nil
	}
	next, ok := recordStatus[out.Status]
	if !ok || next == rec.Status {
		return rec, nil
	}
	if !rec.CanTransitionTo(next) {
		o.log.Warn().Str("reference", rec.Reference).Str("current", rec.Status).Str("gateway_status", out.RawStatus).
			Msg("fiscal: transición no permitida informada por el gateway")
		return nil, domain.NewStateError(fmt.Sprintf("el gateway informa %q pero el documento está en %s", out.RawStatus, rec.Status))
	}

	now := o.now()
	updated := *rec
	updated.Status = next
	switch next {
	case entity.FiscalStatusAuthorized:
		updated.AssignedNumber = out.Number
		updated.Series = out.Series
		updated.AccessKey = out.AccessKey
		updated.XMLURL = o.gateway.ResolveLink(rec.Environment, out.XMLPath)
		updated.PDFURL = o.gateway.ResolveLink(rec.Environment, out.PDFPath)
		updated.LastError = ""
		updated.AuthorizedAt = &now
	case entity.FiscalStatusRejected, entity.FiscalStatusDenied:
		updated.LastError = out.Message.Text
		if updated.LastError == "" {
			updated.LastError = fmt.Sprintf("%s (%s)", gateway.GenericErrorMessage, out.RawStatus)
		}
	case entity.FiscalStatusCancelled:
		updated.CancelledAt = &now
	}

	if err := o.docs.Update(ctx, &updated, rec.Status); err != nil {
		return o.afterConflict(ctx, rec, err)
	}
	o.log.Info().
		Str("reference", rec.Reference).
		Str("from", rec.Status).
		Str("to", next).
		Str("gateway_status", out.RawStatus).
		Msg("fiscal: transición de estado")
	return &updated, nil
}

// afterConflict: si otra escritura ganó la carrera se devuelve el registro
// vigente; cualquier otro error se propaga.
func (o *FiscalOrchestrator) afterConflict(ctx context.Context, rec *entity.FiscalDocument, err error) (*entity.FiscalDocument, error) {
	if errors.Is(err, domain.ErrConflict) {
		fresh, gerr := o.docs.Get(ctx, rec.IssuerID, rec.Reference)
		if gerr == nil && fresh != nil {
			o.log.Info().Str("reference", rec.Reference).Str("status", fresh.Status).
				Msg("fiscal: escritura concurrente, se devuelve el estado almacenado")
			return fresh, nil
		}
	}
	return nil, fmt.Errorf("fiscal: actualizar documento %s: %w", rec.Reference, err)
}

func (o *FiscalOrchestrator) load(ctx context.Context, issuer *entity.Company, reference string) (*entity.FiscalDocument, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domain.NewValidationError("referencia requerida", "reference")
	}
	rec, err := o.docs.Get(ctx, issuer.ID, reference)
	if err != nil {
		return nil, fmt.Errorf("fiscal: consultar referencia %s: %w", reference, err)
	}
	if rec == nil {
		return nil, &domain.FiscalError{Kind: domain.ErrNotFound, Message: fmt.Sprintf("no existe documento con referencia %q", reference)}
	}
	return rec, nil
}

// prepareRequest fija la identidad del emisor y el ambiente desde el tenant.
func (o *FiscalOrchestrator) prepareRequest(issuer *entity.Company, req fiscal.Request) fiscal.Request {
	req.Issuer = IssuerParty(issuer)
	req.Environment = environmentOf(issuer)
	if strings.TrimSpace(req.TaxRegime) == "" {
		req.TaxRegime = issuer.TaxRegime
	}
	if req.IssuedAt.IsZero() {
		req.IssuedAt = o.now()
	}
	return req
}

var recordStatus = map[gateway.Status]string{
	gateway.StatusAuthorized: entity.FiscalStatusAuthorized,
	gateway.StatusRejected:   entity.FiscalStatusRejected,
	gateway.StatusDenied:     entity.FiscalStatusDenied,
	gateway.StatusCancelled:  entity.FiscalStatusCancelled,
}

// IssuerParty identidad fiscal del tenant como emisor del documento.
func IssuerParty(c *entity.Company) fiscal.Party {
	return fiscal.Party{
		Name:                  c.Name,
		TaxID:                 c.CNPJ,
		StateRegistration:     c.StateRegistration,
		MunicipalRegistration: c.MunicipalRegistration,
		Email:                 c.Email,
		Phone:                 c.Phone,
		Address: fiscal.Address{
			Street:           c.Street,
			Number:           c.Number,
			District:         c.District,
			City:             c.City,
			State:            c.State,
			PostalCode:       c.PostalCode,
			MunicipalityCode: c.MunicipalityCode,
		},
	}
}

func environmentOf(c *entity.Company) string {
	if c.FiscalEnvironment == pkgfiscal.EnvironmentProduction {
		return pkgfiscal.EnvironmentProduction
	}
	return pkgfiscal.EnvironmentSandbox
}

func credentialsFor(c *entity.Company, environment string) (gateway.Credentials, error) {
	if strings.TrimSpace(c.GatewayToken) == "" {
		return gateway.Credentials{}, domain.NewValidationError("el emisor no tiene token del gateway configurado", "gateway_token")
	}
	return gateway.Credentials{Token: c.GatewayToken, Environment: environment}, nil
}

// sameDocument devuelve el registro existente si corresponde al mismo documento lógico.
func sameDocument(existing *entity.FiscalDocument, hash string) (*entity.FiscalDocument, error) {
	if existing.PayloadHash != "" && existing.PayloadHash != hash {
		return nil, domain.NewValidationError(
			fmt.Sprintf("la referencia %q ya identifica otro documento; use una referencia nueva", existing.Reference),
			"reference")
	}
	return existing, nil
}

func rejectionFrom(reply *gateway.Reply, msg string) error {
	m := reply.Outcome.Message
	if m.Text == "" {
		m = reply.Body.ErrorMessage()
	}
	return &domain.FiscalError{
		Kind:           domain.ErrSubmissionRejected,
		Message:        msg,
		GatewayCode:    m.Code,
		GatewayMessage: m.Text,
		HTTPStatus:     reply.HTTPStatus,
	}
}
