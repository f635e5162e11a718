package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfe-emissor/internal/domain"
	"github.com/jhoicas/nfe-emissor/internal/infrastructure/gateway"
	pkgfiscal "github.com/jhoicas/nfe-emissor/pkg/fiscal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

const testToken = "token-de-prueba"

var sandboxCred = gateway.Credentials{Token: testToken, Environment: pkgfiscal.EnvironmentSandbox}

func newTestClient(t *testing.T, h http.HandlerFunc) (*gateway.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := gateway.NewClient(gateway.Config{
		SandboxURL:    srv.URL,
		ProductionURL: srv.URL + "/prod",
		Timeout:       2 * time.Second,
	}, srv.Client(), nil)
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// ──────────────────────────────────────────────────────────────────────────────
// Submit
// ──────────────────────────────────────────────────────────────────────────────

func TestSubmit_EnviaRutaAuthYCuerpo(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/nfe", r.URL.Path)
		assert.Equal(t, "pedido 42", r.URL.Query().Get("ref"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, testToken, user)
		assert.Empty(t, pass, "la contraseña de basic-auth va vacía")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Venda", body["natureza_operacao"])

		writeJSON(w, http.StatusAccepted, `{"status":"processando_autorizacao","ref":"pedido 42"}`)
	})

	reply, err := client.Submit(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "pedido 42",
		map[string]string{"natureza_operacao": "Venda"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, reply.HTTPStatus)
	require.NotNil(t, reply.Outcome)
	assert.Equal(t, gateway.StatusPending, reply.Outcome.Status)
	assert.False(t, reply.Duplicate)
}

func TestSubmit_ProduccionUsaOtroEndpoint(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prod/v2/nfce", r.URL.Path)
		writeJSON(w, http.StatusCreated, `{"status":"autorizado"}`)
	})
	cred := gateway.Credentials{Token: testToken, Environment: pkgfiscal.EnvironmentProduction}
	_, err := client.Submit(context.Background(), cred, pkgfiscal.KindConsumerInvoice, "r1", map[string]string{})
	require.NoError(t, err)
}

func TestSubmit_ConflictoEsDuplicado(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"codigo":"already_processed","mensagem":"Nota já processada"}`)
	})
	reply, err := client.Submit(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "r1", map[string]string{})
	require.NoError(t, err)
	assert.True(t, reply.Duplicate)
}

func TestSubmit_CodigoDuplicadoEn422(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"codigo":"requisicao_duplicada","mensagem":"Ref em uso"}`)
	})
	reply, err := client.Submit(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "r1", map[string]string{})
	require.NoError(t, err)
	assert.True(t, reply.Duplicate)
}

func TestSubmit_RechazoConDiagnostico(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"codigo":"erro_validacao_schema","mensagem":"CNPJ do emitente inválido"}`)
	})
	_, err := client.Submit(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "r1", map[string]string{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubmissionRejected)

	fe, ok := domain.AsFiscalError(err)
	require.True(t, ok)
	assert.Equal(t, "erro_validacao_schema", fe.GatewayCode)
	assert.Equal(t, "CNPJ do emitente inválido", fe.GatewayMessage)
	assert.Equal(t, http.StatusUnprocessableEntity, fe.HTTPStatus)
}

func TestSubmit_5xxEsTransitorio(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>Bad Gateway</html>")
	})
	_, err := client.Submit(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "r1", map[string]string{})
	assert.ErrorIs(t, err, domain.ErrTransientGateway)
}

func TestSubmit_TimeoutEsTransitorio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := gateway.NewClient(gateway.Config{SandboxURL: srv.URL, Timeout: 50 * time.Millisecond}, srv.Client(), nil)
	_, err := client.Submit(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "r1", map[string]string{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransientGateway)
	assert.Contains(t, err.Error(), "timeout")
}

func TestSubmit_CancelacionDelLlamador(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Submit(ctx, sandboxCred, pkgfiscal.KindGoodsInvoice, "r1", map[string]string{})
	assert.ErrorIs(t, err, domain.ErrTransientGateway)
}

// ──────────────────────────────────────────────────────────────────────────────
// Query / Cancel / Amend
// ──────────────────────────────────────────────────────────────────────────────

func TestQuery_Autorizado(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/nfse/os-1", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"status":"autorizado","numero":"77","codigo_verificacao":"ABC123"}`)
	})
	reply, err := client.Query(context.Background(), sandboxCred, pkgfiscal.KindServiceInvoice, "os-1")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusAuthorized, reply.Outcome.Status)
	assert.Equal(t, "77", reply.Outcome.Number)
	assert.Equal(t, "ABC123", reply.Outcome.AccessKey)
}

func TestQuery_CuerpoIlegibleEsMalformado(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "tente novamente")
	})
	_, err := client.Query(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "r1")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.ErrorIs(t, err, domain.ErrTransientGateway, "una respuesta malformada se puede reintentar")
}

func TestQuery_NoEncontrado(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"codigo":"nao_encontrado","mensagem":"Nota fiscal não encontrada"}`)
	})
	_, err := client.Query(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "r1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancel_EnviaJustificacion(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/v2/nfe/r1", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Erro de digitação no pedido", body["justification"])
		writeJSON(w, http.StatusOK, `{"status":"cancelado","status_sefaz":"135"}`)
	})
	reply, err := client.Cancel(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "r1", "Erro de digitação no pedido")
	require.NoError(t, err)
	assert.Equal(t, gateway.StatusCancelled, reply.Outcome.Status)
}

func TestAmend_EnviaTexto(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/nfe/r1/amendment", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Corrige endereço", body["text"])
		writeJSON(w, http.StatusOK, `{"status":"autorizado","numero_carta_correcao":1}`)
	})
	_, err := client.Amend(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "r1", "Corrige endereço")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAmend_LimiteDelGatewaySeDevuelveTalCual(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"message":"{\"code\":\"limite_cce\",\"message\":\"Limite de 20 cartas de correção atingido\"}"}`)
	})
	_, err := client.Amend(context.Background(), sandboxCred, pkgfiscal.KindGoodsInvoice, "r1", "texto")
	require.Error(t, err)
	fe, ok := domain.AsFiscalError(err)
	require.True(t, ok)
	assert.Equal(t, "limite_cce", fe.GatewayCode)
	assert.Equal(t, "Limite de 20 cartas de correção atingido", fe.GatewayMessage)
}

// ──────────────────────────────────────────────────────────────────────────────
// Artefactos
// ──────────────────────────────────────────────────────────────────────────────

func TestResolveLinkYDownload(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/arquivos/1.xml", r.URL.Path)
		user, _, _ := r.BasicAuth()
		assert.Equal(t, testToken, user)
		_, _ = io.WriteString(w, "<nfeProc/>")
	})
	assert.Equal(t, srv.URL+"/arquivos/1.xml", client.ResolveLink(pkgfiscal.EnvironmentSandbox, "/arquivos/1.xml"))
	assert.Equal(t, "https://cdn/x.pdf", client.ResolveLink(pkgfiscal.EnvironmentSandbox, "https://cdn/x.pdf"))

	raw, err := client.Download(context.Background(), sandboxCred, "/arquivos/1.xml")
	require.NoError(t, err)
	assert.Equal(t, "<nfeProc/>", string(raw))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestDownload_CredencialesSoloAlHostDelGateway(t *testing.T) {
	var gotAuth atomic.Value
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		user, _, ok := r.BasicAuth()
		if !ok {
			user = ""
		}
		gotAuth.Store(user)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("<nfeProc/>")),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})
	client := gateway.NewClient(gateway.Config{
		SandboxURL:    "https://api.gw.test",
		ProductionURL: "https://api.gw.test",
		Timeout:       2 * time.Second,
	}, &http.Client{Transport: transport}, nil)

	cases := []struct {
		name string
		link string
		auth bool
	}{
		{"ruta relativa", "/arquivos/1.xml", true},
		{"url absoluta del gateway", "https://api.gw.test/arquivos/1.xml", true},
		{"host parecido", "https://api.gw.test.evil.net/arquivos/1.xml", false},
		{"userinfo con el host", "https://api.gw.test@evil.net/arquivos/1.xml", false},
		{"otro puerto", "https://api.gw.test:8443/arquivos/1.xml", false},
		{"otro esquema", "http://api.gw.test/arquivos/1.xml", false},
		{"cdn externo", "https://cdn.example.com/1.xml", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotAuth.Store("")
			_, err := client.Download(context.Background(), sandboxCred, tc.link)
			require.NoError(t, err)
			if tc.auth {
				assert.Equal(t, testToken, gotAuth.Load())
			} else {
				assert.Equal(t, "", gotAuth.Load())
			}
		})
	}
}
