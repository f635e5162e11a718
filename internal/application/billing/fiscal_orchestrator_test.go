package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/application/billing"
	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/domain/entity"
	"github.com/jhoicas/nfe-emissor/internal/domain/fiscal"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/gateway"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/memory"
	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fake del gateway: cuenta llamadas y responde con cuerpos JSON configurables.
// ──────────────────────────────────────────────────────────────────────────────

type fakeGateway struct {
	mu       sync.Mutex
	calls    map[string]int
	bodies   map[string]string
	errs     map[string]error
	lastCred gateway.Credentials
	lastText string
	xml      []byte
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{calls: map[string]int{}, bodies: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeGateway) respond(op, body string) { f.bodies[op] = body }
func (f *fakeGateway) fail(op string, err error) { f.errs[op] = err }

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeGateway) reply(op string, cred gateway.Credentials) (*gateway.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	f.lastCred = cred
	if err := f.errs[op]; err != nil {
		return nil, err
	}
	body := gateway.Interpret([]byte(f.bodies[op]))
	r := &gateway.Reply{HTTPStatus: 200, Body: body}
	if out, ok := body.Outcome(); ok {
		r.Outcome = out
	}
	return r, nil
}

func (f *fakeGateway) Submit(_ context.Context, cred gateway.Credentials, _ pkgfiscal.DocumentKind, _ string, _ any) (*gateway.Reply, error) {
	return f.reply("submit", cred)
}

func (f *fakeGateway) Query(_ context.Context, cred gateway.Credentials, _ pkgfiscal.DocumentKind, _ string) (*gateway.Reply, error) {
	return f.reply("query", cred)
}

func (f *fakeGateway) Cancel(_ context.Context, cred gateway.Credentials, _ pkgfiscal.DocumentKind, _, justification string) (*gateway.Reply, error) {
	f.mu.Lock()
	f.lastText = justification
	f.mu.Unlock()
	return f.reply("cancel", cred)
}

func (f *fakeGateway) Amend(_ context.Context, cred gateway.Credentials, _ pkgfiscal.DocumentKind, _, text string) (*gateway.Reply, error) {
	f.mu.Lock()
	f.lastText = text
	f.mu.Unlock()
	return f.reply("amend", cred)
}

func (f *fakeGateway) Download(_ context.Context, cred gateway.Credentials, _ string) ([]byte, error) {
	if _, err := f.reply("download", cred); err != nil {
		return nil, err
	}
	return f.xml, nil
}

func (f *fakeGateway) ResolveLink(_ string, path string) string {
	if path == "" {
		return ""
	}
	return "https://gateway.test" + path
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

const (
	bodyProcessing = `{"status":"processando_autorizacao","ref":"pedido-42"}`
	bodyAuthorized = `{"status":"autorizado","numero":"1001","serie":"1","chave_nfe":"NFe35240111222333000181550010000010011000010010",` +
		`"caminho_xml_nota_fiscal":"/arquivos/1001.xml","caminho_danfe":"/arquivos/1001.pdf"}`
	bodyRejected  = `{"status":"erro_autorizacao","status_sefaz":"539","mensagem_sefaz":"Duplicidade de NF-e com diferença na Chave de Acesso"}`
	bodyCancelled = `{"status":"cancelado","status_sefaz":"135","mensagem_sefaz":"Evento registrado e vinculado a NF-e"}`
)

var justification = "Pedido cancelado a pedido do cliente"

func testCompany() *entity.Company {
	return &entity.Company{
		ID:                "company-1",
		Name:              "Papelaria Central LTDA",
		CNPJ:              "11.222.333/0001-81",
		StateRegistration: "123456789110",
		Street:            "Rua Augusta",
		Number:            "100",
		District:          "Consolação",
		City:              "São Paulo",
		State:             "SP",
		PostalCode:        "01305-000",
		MunicipalityCode:  "3550308",
		TaxRegime:         "simplified",
		FiscalEnvironment: pkgfiscal.EnvironmentSandbox,
		GatewayToken:      "token-123",
	}
}

func issueRequest(ref string) fiscal.Request {
	return fiscal.Request{
		Kind:      pkgfiscal.KindGoodsInvoice,
		Reference: ref,
		Recipient: fiscal.Party{Name: "Maria Souza", TaxID: "123.456.789-09"},
		Items: []fiscal.LineItemInput{
			{Code: "CAD-1", Description: "Caderno", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("12.50")},
		},
	}
}

type fixture struct {
	gw    *fakeGateway
	docs  *memory.FiscalDocumentRepo
	orch  *billing.FiscalOrchestrator
	clock time.Time
}

func newFixture(t *testing.T, cfg billing.OrchestratorConfig) *fixture {
	t.Helper()
	f := &fixture{
		gw:    newFakeGateway(),
		docs:  memory.NewFiscalDocumentRepository(),
		clock: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	f.orch = billing.NewFiscalOrchestrator(f.docs, f.gw, fiscal.NewBuilder(fiscal.StandardDefaults()), nil, cfg, nil)
	f.orch.SetClock(func() time.Time { return f.clock })
	return f
}

// authorized emite y refresca hasta AUTHORIZED.
func (f *fixture) authorized(t *testing.T, ref string) *entity.FiscalDocument {
	t.Helper()
	f.gw.respond("submit", bodyProcessing)
	f.gw.respond("query", bodyAuthorized)
	_, err := f.orch.Issue(context.Background(), testCompany(), issueRequest(ref))
	require.NoError(t, err)
	doc, err := f.orch.Refresh(context.Background(), testCompany(), ref)
	require.NoError(t, err)
	require.Equal(t, entity.FiscalStatusAuthorized, doc.Status)
	return doc
}

// ──────────────────────────────────────────────────────────────────────────────
// Issue
// ──────────────────────────────────────────────────────────────────────────────

func TestIssue_PersistePendiente(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)

	doc, err := f.orch.Issue(context.Background(), testCompany(), issueRequest("pedido-42"))
	require.NoError(t, err)

	assert.Equal(t, entity.FiscalStatusPending, doc.Status)
	assert.Equal(t, "company-1", doc.IssuerID)
	assert.Equal(t, string(pkgfiscal.KindGoodsInvoice), doc.Kind)
	assert.Equal(t, pkgfiscal.EnvironmentSandbox, doc.Environment)
	assert.NotEmpty(t, doc.PayloadHash)
	assert.True(t, doc.TotalAmount.Equal(decimal.RequireFromString("25.00")))
	assert.Empty(t, doc.AssignedNumber)
	assert.Empty(t, doc.AccessKey)
	assert.Equal(t, "token-123", f.gw.lastCred.Token)
	assert.Equal(t, pkgfiscal.EnvironmentSandbox, f.gw.lastCred.Environment)
}

// Dos llamadas con la misma referencia: un único registro y un único envío.
func TestIssue_IdempotentePorReferencia(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)
	ctx := context.Background()

	first, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Minute) // la fecha de emisión no altera la identidad
	second, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.gw.count("submit"))
	pending, err := f.docs.ListByStatus(ctx, "company-1", entity.FiscalStatusPending, 0, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestIssue_ConcurrenteMismaReferencia(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
			if !assert.NoError(t, err) {
				return
			}
			ids <- doc.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1, "un solo documento lógico")
}

func TestIssue_MismaReferenciaOtroContenido(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)
	ctx := context.Background()

	_, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
	require.NoError(t, err)

	other := issueRequest("pedido-42")
	other.Items[0].Quantity = decimal.NewFromInt(5)
	_, err = f.orch.Issue(ctx, testCompany(), other)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 1, f.gw.count("submit"))
}

func TestIssue_ValidacionSinLlamarGateway(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	req := issueRequest("")
	_, err := f.orch.Issue(context.Background(), testCompany(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.gw.total())
}

func TestIssue_SinTokenDelEmisor(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	company := testCompany()
	company.GatewayToken = ""
	_, err := f.orch.Issue(context.Background(), company, issueRequest("pedido-42"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.gw.total())
}

// Rechazo del envío o fallo transitorio: no se persiste nada y se puede reintentar.
func TestIssue_FalloDelGatewayNoPersiste(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"rechazo", &domain.FiscalError{Kind: domain.ErrSubmissionRejected, Message: "requisição inválida", GatewayCode: "requisicao_invalida"}},
		{"transitorio", &domain.FiscalError{Kind: domain.ErrTransientGateway, Message: "timeout"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, billing.OrchestratorConfig{})
			f.gw.fail("submit", tc.err)
			ctx := context.Background()

			_, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.err))

			stored, err := f.docs.Get(ctx, "company-1", "pedido-42")
			require.NoError(t, err)
			assert.Nil(t, stored)
		})
	}
}

// NFC-e síncrona: el envío ya trae la autorización.
func TestIssue_AutorizacionSincrona(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyAuthorized)
	req := issueRequest("cupom-7")
	req.Kind = pkgfiscal.KindConsumerInvoice

	doc, err := f.orch.Issue(context.Background(), testCompany(), req)
	require.NoError(t, err)
	assert.Equal(t, entity.FiscalStatusAuthorized, doc.Status)
	assert.Equal(t, "1001", doc.AssignedNumber)
	assert.Equal(t, "https://gateway.test/arquivos/1001.xml", doc.XMLURL)
	assert.Equal(t, 1, f.gw.total())
}

// ──────────────────────────────────────────────────────────────────────────────
// Refresh
// ──────────────────────────────────────────────────────────────────────────────

func TestRefresh_PendienteNoCambiaNada(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)
	f.gw.respond("query", bodyProcessing)
	ctx := context.Background()
	_, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
	require.NoError(t, err)

	doc, err := f.orch.Refresh(ctx, testCompany(), "pedido-42")
	require.NoError(t, err)
	assert.Equal(t, entity.FiscalStatusPending, doc.Status)
	assert.Empty(t, doc.AssignedNumber)
	assert.Empty(t, doc.AccessKey)
	assert.Empty(t, doc.LastError)
}

func TestRefresh_Autorizado(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	doc := f.authorized(t, "pedido-42")

	assert.Equal(t, "1001", doc.AssignedNumber)
	assert.Equal(t, "1", doc.Series)
	assert.Equal(t, "NFe35240111222333000181550010000010011000010010", doc.AccessKey)
	assert.Equal(t, "https://gateway.test/arquivos/1001.xml", doc.XMLURL)
	assert.Equal(t, "https://gateway.test/arquivos/1001.pdf", doc.PDFURL)
	require.NotNil(t, doc.AuthorizedAt)
	assert.Equal(t, f.clock, *doc.AuthorizedAt)

	stored, err := f.docs.Get(context.Background(), "company-1", "pedido-42")
	require.NoError(t, err)
	assert.Equal(t, entity.FiscalStatusAuthorized, stored.Status)
	assert.Equal(t, "1001", stored.AssignedNumber)
}

func TestRefresh_RechazadoGuardaMensaje(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)
	f.gw.respond("query", bodyRejected)
	ctx := context.Background()
	_, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
	require.NoError(t, err)

	doc, err := f.orch.Refresh(ctx, testCompany(), "pedido-42")
	require.NoError(t, err, "un rechazo de autorización es un estado, no un error")
	assert.Equal(t, entity.FiscalStatusRejected, doc.Status)
	assert.Equal(t, "Duplicidade de NF-e com diferença na Chave de Acesso", doc.LastError)
	assert.Empty(t, doc.AssignedNumber)

	// estado final: no vuelve a consultar
	_, err = f.orch.Refresh(ctx, testCompany(), "pedido-42")
	require.NoError(t, err)
	assert.Equal(t, 1, f.gw.count("query"))
}

func TestRefresh_ErrorTransitorioNoModificaRegistro(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)
	ctx := context.Background()
	_, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
	require.NoError(t, err)

	f.gw.fail("query", &domain.FiscalError{Kind: domain.ErrMalformedResponse, Message: "sin estado"})
	_, err = f.orch.Refresh(ctx, testCompany(), "pedido-42")
	assert.ErrorIs(t, err, domain.ErrTransientGateway)

	stored, _ := f.docs.Get(ctx, "company-1", "pedido-42")
	assert.Equal(t, entity.FiscalStatusPending, stored.Status)
}

func TestRefresh_ReferenciaInexistente(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	_, err := f.orch.Refresh(context.Background(), testCompany(), "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.gw.total())
}

func TestRefreshPending(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)
	ctx := context.Background()
	for _, ref := range []string{"a", "b"} {
		_, err := f.orch.Issue(ctx, testCompany(), issueRequest(ref))
		require.NoError(t, err)
	}
	f.gw.respond("query", bodyAuthorized)

	reports, err := f.orch.RefreshPending(ctx, testCompany(), 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		require.NoError(t, r.Err)
		assert.Equal(t, entity.FiscalStatusAuthorized, r.Document.Status)
	}
	left, err := f.orch.ListPending(ctx, testCompany(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancel
// ──────────────────────────────────────────────────────────────────────────────

// Justificación corta: ValidationError y ninguna llamada de red.
func TestCancel_JustificacionCortaSinLlamadas(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.authorized(t, "pedido-42")
	before := f.gw.total()

	_, err := f.orch.Cancel(context.Background(), testCompany(), "pedido-42", "muito curta")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, before, f.gw.total())
	assert.Zero(t, f.gw.count("cancel"))
}

func TestCancel_LimitesDeJustificacion(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	long := make([]rune, pkgfiscal.MaxJustificationLength+1)
	for i := range long {
		long[i] = 'ã'
	}
	_, err := f.orch.Cancel(context.Background(), testCompany(), "pedido-42", string(long))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.gw.count("cancel"))
}

func TestCancel_Exitoso(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.authorized(t, "pedido-42")
	f.gw.respond("cancel", bodyCancelled)

	doc, err := f.orch.Cancel(context.Background(), testCompany(), "pedido-42", "  "+justification+"  ")
	require.NoError(t, err)
	assert.Equal(t, entity.FiscalStatusCancelled, doc.Status)
	require.NotNil(t, doc.CancelledAt)
	assert.Equal(t, justification, f.gw.lastText)
	assert.Equal(t, "1001", doc.AssignedNumber, "los identificadores se conservan")
}

func TestCancel_SoloDesdeAutorizado(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)
	ctx := context.Background()
	_, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
	require.NoError(t, err)

	_, err = f.orch.Cancel(ctx, testCompany(), "pedido-42", justification)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Zero(t, f.gw.count("cancel"))
}

func TestCancel_FalloDelGatewayNoCambiaEstado(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.authorized(t, "pedido-42")
	f.gw.fail("cancel", &domain.FiscalError{Kind: domain.ErrTransientGateway, Message: "timeout"})
	ctx := context.Background()

	_, err := f.orch.Cancel(ctx, testCompany(), "pedido-42", justification)
	assert.ErrorIs(t, err, domain.ErrTransientGateway)
	assert.Equal(t, 1, f.gw.count("cancel"), "sin reintentos silenciosos")

	stored, _ := f.docs.Get(ctx, "company-1", "pedido-42")
	assert.Equal(t, entity.FiscalStatusAuthorized, stored.Status)
}

func TestCancel_GatewayNoConfirma(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.authorized(t, "pedido-42")
	f.gw.respond("cancel", `{"status":"erro_cancelamento","status_sefaz":"501","mensagem_sefaz":"Prazo de cancelamento superior ao previsto"}`)

	_, err := f.orch.Cancel(context.Background(), testCompany(), "pedido-42", justification)
	require.ErrorIs(t, err, domain.ErrSubmissionRejected)
	fe, ok := domain.AsFiscalError(err)
	require.True(t, ok)
	assert.Equal(t, "501", fe.GatewayCode)
	assert.Equal(t, "Prazo de cancelamento superior ao previsto", fe.GatewayMessage)
}

func TestCancel_FueraDelPlazo(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{CancelWindow: 24 * time.Hour})
	f.authorized(t, "pedido-42")
	f.clock = f.clock.Add(25 * time.Hour)

	_, err := f.orch.Cancel(context.Background(), testCompany(), "pedido-42", justification)
	require.ErrorIs(t, err, domain.ErrValidation)
	fe, ok := domain.AsFiscalError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"authorized_at"}, fe.Fields)
	assert.Zero(t, f.gw.count("cancel"))

	stored, _ := f.docs.Get(context.Background(), "company-1", "pedido-42")
	assert.Equal(t, entity.FiscalStatusAuthorized, stored.Status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Amend
// ──────────────────────────────────────────────────────────────────────────────

func TestAmend_IncrementaUnaVezPorLlamada(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.authorized(t, "pedido-42")
	f.gw.respond("amend", `{"status":"autorizado","status_sefaz":"135"}`)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		doc, err := f.orch.Amend(ctx, testCompany(), "pedido-42", "Corrige o endereço do destinatário")
		require.NoError(t, err)
		assert.Equal(t, want, doc.AmendmentCount)
		assert.Equal(t, entity.FiscalStatusAuthorized, doc.Status)
	}
	stored, _ := f.docs.Get(ctx, "company-1", "pedido-42")
	assert.Equal(t, 3, stored.AmendmentCount)
}

func TestAmend_TextoInvalido(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	long := make([]byte, pkgfiscal.MaxCorrectionTextLength+1)
	for i := range long {
		long[i] = 'x'
	}
	for _, text := range []string{"", "   ", string(long)} {
		_, err := f.orch.Amend(context.Background(), testCompany(), "pedido-42", text)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
	assert.Zero(t, f.gw.total())
}

// El límite de correcciones lo decide el gateway; su rechazo no incrementa.
func TestAmend_RechazoDelGatewayNoIncrementa(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.authorized(t, "pedido-42")
	f.gw.fail("amend", &domain.FiscalError{
		Kind: domain.ErrSubmissionRejected, Message: "envío rechazado",
		GatewayCode: "limite_cce", GatewayMessage: "Limite de 20 cartas de correção atingido",
	})
	ctx := context.Background()

	_, err := f.orch.Amend(ctx, testCompany(), "pedido-42", "Corrige o endereço")
	require.ErrorIs(t, err, domain.ErrSubmissionRejected)
	fe, _ := domain.AsFiscalError(err)
	assert.Equal(t, "Limite de 20 cartas de correção atingido", fe.GatewayMessage)

	stored, _ := f.docs.Get(ctx, "company-1", "pedido-42")
	assert.Zero(t, stored.AmendmentCount)
}

func TestAmend_SoloDesdeAutorizado(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)
	ctx := context.Background()
	_, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
	require.NoError(t, err)

	_, err = f.orch.Amend(ctx, testCompany(), "pedido-42", "Corrige o endereço")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Zero(t, f.gw.count("amend"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Protocol
// ──────────────────────────────────────────────────────────────────────────────

func TestProtocol_LeeXMLAutorizado(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.authorized(t, "pedido-42")
	f.gw.xml = []byte(`<nfeProc><NFe><infNFe Id="NFe35240111222333000181550010000010011000010010"><emit><CNPJ>11222333000181</CNPJ></emit></infNFe></NFe>` +
		`<protNFe><infProt><tpAmb>2</tpAmb><chNFe>35240111222333000181550010000010011000010010</chNFe><dhRecbto>2024-01-10T12:00:00-03:00</dhRecbto>` +
		`<nProt>135240000000001</nProt><cStat>100</cStat><xMotivo>Autorizado o uso da NF-e</xMotivo></infProt></protNFe></nfeProc>`)

	p, err := f.orch.Protocol(context.Background(), testCompany(), "pedido-42")
	require.NoError(t, err)
	assert.True(t, p.Authorized())
	assert.Equal(t, "135240000000001", p.ProtocolNumber)
}

func TestProtocol_SinXML(t *testing.T) {
	f := newFixture(t, billing.OrchestratorConfig{})
	f.gw.respond("submit", bodyProcessing)
	ctx := context.Background()
	_, err := f.orch.Issue(ctx, testCompany(), issueRequest("pedido-42"))
	require.NoError(t, err)

	_, err = f.orch.Protocol(ctx, testCompany(), "pedido-42")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Zero(t, f.gw.count("download"))
}
