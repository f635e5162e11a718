// Package gateway implementa el cliente HTTP del gateway de emisión fiscal
// (estilo Focus NFe) y la interpretación defensiva de sus respuestas.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
	"github.com/jhoicas/nfe-emissor/pkg/logger"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	DefaultSandboxURL    = "https://homologacao.focusnfe.com.br"
	DefaultProductionURL = "https://api.focusnfe.com.br"
	DefaultAPIVersion    = "v2"
	DefaultTimeout       = 30 * time.Second

	maxBodyBytes   = 4 << 20 // 4 MB
	maxLoggedBytes = 512
)

// códigos con los que el gateway informa una referencia ya recibida.
var duplicateCodes = map[string]bool{
	"already_processed":    true,
	"requisicao_duplicada": true,
	"referencia_duplicada": true,
}

// Config endpoints y timeout del gateway.
type Config struct {
	SandboxURL    string
	ProductionURL string
	APIVersion    string
	Timeout       time.Duration // por llamada
}

// Credentials token del emisor y ambiente que selecciona el endpoint.
type Credentials struct {
	Token       string
	Environment string // sandbox | production
}

// Reply respuesta 2xx (o duplicado reconocido) del gateway.
type Reply struct {
	HTTPStatus int
	Body       Body
	Outcome    *Outcome // nil si el cuerpo no trae estado
	Duplicate  bool     // el gateway ya conocía la referencia
}

// Client cliente del gateway. No guarda estado entre llamadas; es seguro para uso concurrente.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient construye el cliente. httpClient nil usa uno nuevo sin timeout propio:
// el límite lo impone cfg.Timeout en cada llamada.
func NewClient(cfg Config, httpClient *http.Client, log *logger.Logger) *Client {
	if cfg.SandboxURL == "" {
		cfg.SandboxURL = DefaultSandboxURL
	}
	if cfg.ProductionURL == "" {
		cfg.ProductionURL = DefaultProductionURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{cfg: cfg, httpClient: httpClient, log: log}
}

// BaseURL endpoint según el ambiente de las credenciales.
func (c *Client) BaseURL(environment string) string {
	if environment == pkgfiscal.EnvironmentProduction {
		return strings.TrimRight(c.cfg.ProductionURL, "/")
	}
	return strings.TrimRight(c.cfg.SandboxURL, "/")
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// Submit POST /{version}/{docKind}?ref={reference}. Cualquier 2xx es aceptación;
// un 409 o un código de duplicado devuelve Reply.Duplicate=true sin error.
func (c *Client) Submit(ctx context.Context, cred Credentials, kind pkgfiscal.DocumentKind, reference string, payload any) (*Reply, error) {
	endpoint := c.collectionURL(cred, kind) + "?ref=" + url.QueryEscape(reference)
	reply, err := c.do(ctx, cred, http.MethodPost, endpoint, payload, "submit")
	if err != nil {
		if fe, ok := domain.AsFiscalError(err); ok && isDuplicate(fe) {
			c.log.Info().Str("reference", reference).Str("gateway_code", fe.GatewayCode).
				Msg("gateway: referencia ya recibida, se trata como aceptada")
			return &Reply{HTTPStatus: fe.HTTPStatus, Duplicate: true}, nil
		}
		return nil, err
	}
	return reply, nil
}

// Query GET /{version}/{docKind}/{reference}. Un 2xx sin estado es MalformedResponse.
func (c *Client) Query(ctx context.Context, cred Credentials, kind pkgfiscal.DocumentKind, reference string) (*Reply, error) {
	reply, err := c.do(ctx, cred, http.MethodGet, c.documentURL(cred, kind, reference), nil, "query")
	if err != nil {
		return nil, err
	}
	if reply.Outcome == nil || reply.Outcome.Status == StatusUnknown {
		c.logMalformed("query", reply)
		return nil, &domain.FiscalError{
			Kind:       domain.ErrMalformedResponse,
			Message:    "la consulta no devolvió un estado reconocible",
			HTTPStatus: reply.HTTPStatus,
		}
	}
	return reply, nil
}

// Cancel DELETE /{version}/{docKind}/{reference} con {"justification"}.
func (c *Client) Cancel(ctx context.Context, cred Credentials, kind pkgfiscal.DocumentKind, reference, justification string) (*Reply, error) {
	body := map[string]string{"justification": justification}
	return c.do(ctx, cred, http.MethodDelete, c.documentURL(cred, kind, reference), body, "cancel")
}

// Amend POST /{version}/{docKind}/{reference}/amendment con {"text"}.
func (c *Client) Amend(ctx context.Context, cred Credentials, kind pkgfiscal.DocumentKind, reference, text string) (*Reply, error) {
	body := map[string]string{"text": text}
	return c.do(ctx, cred, http.MethodPost, c.documentURL(cred, kind, reference)+"/amendment", body, "amend")
}

// Download descarga un artefacto (XML/PDF). Solo envía credenciales al host del gateway.
func (c *Client) Download(ctx context.Context, cred Credentials, link string) ([]byte, error) {
	link = c.ResolveLink(cred.Environment, link)
	if link == "" {
		return nil, domain.NewValidationError("enlace de artefacto vacío")
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: crear request: %w", err)
	}
	if sameOrigin(req.URL, c.BaseURL(cred.Environment)) {
		req.SetBasicAuth(cred.Token, "")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, "download", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(ctx, "download", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyStatus(resp.StatusCode, Interpret(raw))
	}
	return raw, nil
}

// ResolveLink convierte una ruta relativa del gateway en URL absoluta.
func (c *Client) ResolveLink(environment, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.BaseURL(environment) + path
}

// ── Transporte ────────────────────────────────────────────────────────────────

func (c *Client) collectionURL(cred Credentials, kind pkgfiscal.DocumentKind) string {
	return c.BaseURL(cred.Environment) + "/" + c.cfg.APIVersion + "/" + kind.GatewayPath()
}

func (c *Client) documentURL(cred Credentials, kind pkgfiscal.DocumentKind, reference string) string {
	return c.collectionURL(cred, kind) + "/" + url.PathEscape(reference)
}

// do ejecuta una llamada con timeout propio y clasifica cualquier fallo en la
// taxonomía de dominio antes de devolver.
func (c *Client) do(ctx context.Context, cred Credentials, method, endpoint string, payload any, op string) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("gateway: serializar cuerpo: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: crear request: %w", err)
	}
	req.SetBasicAuth(cred.Token, "")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Str("method", method).Msg("gateway: llamada HTTP fallida")
		return nil, transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(ctx, op, err)
	}

	parsed := Interpret(raw)
	c.log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Str("body_kind", parsed.Kind.String()).
		Dur("elapsed", time.Since(start)).
		Msg("gateway: respuesta")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if parsed.Kind == BodyRaw {
			c.log.Warn().Str("op", op).Int("status", resp.StatusCode).
				Str("raw", truncate(parsed.Raw, maxLoggedBytes)).Msg("gateway: error con cuerpo no JSON")
		}
		return nil, classifyStatus(resp.StatusCode, parsed)
	}

	reply := &Reply{HTTPStatus: resp.StatusCode, Body: parsed}
	if o, ok := parsed.Outcome(); ok {
		reply.Outcome = o
	}
	if parsed.Kind == BodyRaw && strings.TrimSpace(parsed.Raw) != "" {
		c.logMalformed(op, reply)
	}
	return reply, nil
}

func (c *Client) logMalformed(op string, r *Reply) {
	c.log.Warn().
		Str("op", op).
		Int("status", r.HTTPStatus).
		Str("body_kind", r.Body.Kind.String()).
		Str("raw", truncate(r.Body.Raw, maxLoggedBytes)).
		Msg("gateway: respuesta sin JSON reconocible")
}

// classifyStatus: 5xx y 429 son transitorios; 404 es ErrNotFound; el resto de
// 4xx es rechazo del envío con el diagnóstico del gateway.
func classifyStatus(status int, body Body) error {
	msg := body.ErrorMessage()
	fe := &domain.FiscalError{
		GatewayCode:    msg.Code,
		GatewayMessage: msg.Text,
		HTTPStatus:     status,
	}
	switch {
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		fe.Kind = domain.ErrTransientGateway
		fe.Message = fmt.Sprintf("el gateway respondió %d", status)
	case status == http.StatusNotFound:
		fe.Kind = domain.ErrNotFound
		fe.Message = "el gateway no conoce la referencia"
	default:
		fe.Kind = domain.ErrSubmissionRejected
		fe.Message = fmt.Sprintf("el gateway rechazó la solicitud (%d)", status)
	}
	return fe
}

// transportError clasifica errores de red, timeout y cancelación como transitorios.
func transportError(ctx context.Context, op string, err error) error {
	msg := fmt.Sprintf("%s: llamada HTTP fallida", op)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		msg = fmt.Sprintf("%s: timeout", op)
	case errors.Is(ctx.Err(), context.Canceled):
		msg = fmt.Sprintf("%s: cancelada por el llamador", op)
	}
	return &domain.FiscalError{Kind: domain.ErrTransientGateway, Message: msg, Err: err}
}

func isDuplicate(fe *domain.FiscalError) bool {
	if fe.Kind != domain.ErrSubmissionRejected {
		return false
	}
	return fe.HTTPStatus == http.StatusConflict || duplicateCodes[strings.ToLower(fe.GatewayCode)]
}

// sameOrigin compara esquema y host:puerto exactos; un enlace con userinfo
// nunca recibe credenciales.
func sameOrigin(link *url.URL, base string) bool {
	b, err := url.Parse(base)
	if err != nil || link == nil || link.User != nil {
		return false
	}
	return strings.EqualFold(link.Scheme, b.Scheme) && strings.EqualFold(link.Host, b.Host)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
