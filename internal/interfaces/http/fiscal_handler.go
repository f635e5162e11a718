package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jhoicas/nfe-emissor/internal/application/billing"
	"github.com/jhoicas/nfe-emissor/internal/application/dto"
	"github.com/jhoicas/nfe-emissor/internal/domain"
)

// FiscalHandler maneja el ciclo de vida de documentos fiscales (protegido).
type FiscalHandler struct {
	uc *billing.FiscalUseCase
}

// NewFiscalHandler construye el handler.
func NewFiscalHandler(uc *billing.FiscalUseCase) *FiscalHandler {
	return &FiscalHandler{uc: uc}
}

// Issue godoc
// @Summary      Emitir documento fiscal
// @Description  Idempotente por referencia: repetir la llamada devuelve el registro existente.
// @Description  Sin reference se genera una; reintentar requiere reenviar la devuelta.
// @Tags         fiscal
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.IssueFiscalDocumentRequest  true  "kind, reference, recipient, items u order_total"
// @Success      201   {object}  dto.IssueResult
// @Failure      400   {object}  dto.IssueResult
// @Failure      422   {object}  dto.IssueResult
// @Failure      502   {object}  dto.IssueResult
// @Router       /api/fiscal-documents [post]
func (h *FiscalHandler) Issue(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.IssueFiscalDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if strings.TrimSpace(in.Reference) == "" {
		in.Reference = uuid.NewString()
	}
	res := h.uc.Issue(c.UserContext(), companyID, in)
	return c.Status(statusFor(res.Error, fiber.StatusCreated)).JSON(res)
}

// Get godoc
// @Summary      Consultar registro almacenado
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Param        reference  path      string  true  "referencia de idempotencia"
// @Success      200        {object}  dto.FiscalDocumentResponse
// @Failure      404        {object}  dto.ErrorResponse
// @Router       /api/fiscal-documents/{reference} [get]
func (h *FiscalHandler) Get(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	doc, err := h.uc.Get(c.UserContext(), companyID, c.Params("reference"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(doc)
}

// ListPending godoc
// @Summary      Listar documentos pendientes de autorización
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Param        limit   query     int  false  "máximo de registros (por defecto 20, máx 100)"
// @Param        offset  query     int  false  "registros a saltar"
// @Success      200     {object}  dto.PendingPage
// @Router       /api/fiscal-documents/pending [get]
func (h *FiscalHandler) ListPending(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	page, err := h.uc.ListPending(c.UserContext(), companyID, pageRequest(c))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(page)
}

// Refresh godoc
// @Summary      Refrescar estado en el gateway
// @Description  "Pendiente" no es error: el registro queda en SUBMITTED_PENDING.
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Param        reference  path      string  true  "referencia"
// @Success      200        {object}  dto.RefreshResult
// @Failure      404        {object}  dto.RefreshResult
// @Failure      502        {object}  dto.RefreshResult
// @Router       /api/fiscal-documents/{reference}/refresh [post]
func (h *FiscalHandler) Refresh(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	res := h.uc.Refresh(c.UserContext(), companyID, c.Params("reference"))
	return c.Status(statusFor(res.Error, fiber.StatusOK)).JSON(res)
}

// RefreshPending godoc
// @Summary      Refrescar todos los pendientes
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Param        limit  query     int  false  "máximo de documentos"
// @Success      200    {array}   dto.RefreshResult
// @Router       /api/fiscal-documents/pending/refresh [post]
func (h *FiscalHandler) RefreshPending(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	results, err := h.uc.RefreshPending(c.UserContext(), companyID, pageRequest(c).Limit)
	if err != nil && len(results) == 0 {
		return errorJSON(c, err)
	}
	return c.JSON(results)
}

// Cancel godoc
// @Summary      Cancelar documento autorizado
// @Tags         fiscal
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        reference  path      string                           true  "referencia"
// @Param        body       body      dto.CancelFiscalDocumentRequest  true  "justification (15 a 255 caracteres)"
// @Success      200        {object}  dto.CancelResult
// @Failure      400        {object}  dto.CancelResult
// @Failure      409        {object}  dto.CancelResult
// @Failure      422        {object}  dto.CancelResult
// @Router       /api/fiscal-documents/{reference}/cancel [post]
func (h *FiscalHandler) Cancel(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.CancelFiscalDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res := h.uc.Cancel(c.UserContext(), companyID, c.Params("reference"), in.Justification)
	return c.Status(statusFor(res.Error, fiber.StatusOK)).JSON(res)
}

// Amend godoc
// @Summary      Registrar carta de corrección
// @Tags         fiscal
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        reference  path      string                          true  "referencia"
// @Param        body       body      dto.AmendFiscalDocumentRequest  true  "text (hasta 1000 caracteres)"
// @Success      200        {object}  dto.AmendResult
// @Failure      400        {object}  dto.AmendResult
// @Failure      409        {object}  dto.AmendResult
// @Failure      422        {object}  dto.AmendResult
// @Router       /api/fiscal-documents/{reference}/amendments [post]
func (h *FiscalHandler) Amend(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.AmendFiscalDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res := h.uc.Amend(c.UserContext(), companyID, c.Params("reference"), in.Text)
	return c.Status(statusFor(res.Error, fiber.StatusOK)).JSON(res)
}

// Protocol godoc
// @Summary      Protocolo de autorización
// @Description  Descarga el XML autorizado y devuelve chave, protocolo y cStat.
// @Tags         fiscal
// @Security     Bearer
// @Produce      json
// @Param        reference  path      string  true  "referencia"
// @Success      200        {object}  dto.ProtocolResponse
// @Failure      409        {object}  dto.ErrorResponse
// @Failure      502        {object}  dto.ErrorResponse
// @Router       /api/fiscal-documents/{reference}/protocol [get]
func (h *FiscalHandler) Protocol(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	p, err := h.uc.Protocol(c.UserContext(), companyID, c.Params("reference"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(p)
}

// Preview godoc
// @Summary      Vista previa PDF (sin valor fiscal)
// @Tags         fiscal
// @Security     Bearer
// @Accept       json
// @Produce      application/pdf
// @Param        body  body  dto.IssueFiscalDocumentRequest  true  "mismo cuerpo que la emisión"
// @Success      200
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/fiscal-documents/preview [post]
func (h *FiscalHandler) Preview(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.IssueFiscalDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	pdf, err := h.uc.Preview(c.UserContext(), companyID, in)
	if err != nil {
		return errorJSON(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="previa-`+in.Reference+`.pdf"`)
	return c.Send(pdf)
}

// ── helpers ───────────────────────────────────────────────────────────────────

// statusFor status HTTP según el código del error del resultado.
func statusFor(detail *dto.FiscalErrorDetail, ok int) int {
	if detail == nil {
		return ok
	}
	return httpStatus(detail.Code)
}

func httpStatus(code string) int {
	switch code {
	case "VALIDATION":
		return fiber.StatusBadRequest
	case "NOT_FOUND":
		return fiber.StatusNotFound
	case "FORBIDDEN":
		return fiber.StatusForbidden
	case "INVALID_STATE", "CONFLICT":
		return fiber.StatusConflict
	case "SUBMISSION_REJECTED":
		return fiber.StatusUnprocessableEntity
	case "TRANSIENT_GATEWAY", "MALFORMED_RESPONSE":
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	code := domain.ErrorCode(err)
	msg := err.Error()
	if fe, ok := domain.AsFiscalError(err); ok && fe.Message != "" {
		msg = fe.Message
	}
	return c.Status(httpStatus(code)).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

func pageRequest(c *fiber.Ctx) dto.PageRequest {
	return dto.PageRequest{Limit: c.QueryInt("limit", 0), Offset: c.QueryInt("offset", 0)}.Normalize()
}
