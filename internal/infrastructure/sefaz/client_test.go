package sefaz_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inovapos/pdv-fiscal/internal/infrastructure/sefaz"
	"github.com/inovapos/pdv-fiscal/pkg/logger"
)

const testAccessKey = "35231111222333000181650010000001231320890495"

func signedNFe() []byte {
	return []byte(`<NFe xmlns="http://www.portalfiscal.inf.br/nfe">` +
		`<infNFe versao="4.00" Id="NFe` + testAccessKey + `"><ide><cUF>35</cUF></ide></infNFe>` +
		`<Signature xmlns="http://www.w3.org/2000/09/xmldsig#"><SignatureValue>abc</SignatureValue></Signature>` +
		`</NFe>`)
}

func soapResponse(inner string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<nfeResultMsg xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4">` +
		inner +
		`</nfeResultMsg></soap:Body></soap:Envelope>`
}

func retEnviNFe(batchCStat, protInner string) string {
	body := `<retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">` +
		`<tpAmb>2</tpAmb><cStat>` + batchCStat + `</cStat><xMotivo>Lote processado</xMotivo>`
	if protInner != "" {
		body += `<protNFe versao="4.00"><infProt>` + protInner + `</infProt></protNFe>`
	}
	return body + `</retEnviNFe>`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*sefaz.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	log := logger.New(logger.Config{Env: "development", Level: "error"})
	c := sefaz.NewClient(srv.Client(), sefaz.EnvironmentHomologation, "35", log,
		sefaz.WithBaseURL(srv.URL))
	return c, srv
}

// ── Submit ────────────────────────────────────────────────────────────────────

func TestSubmit_Autorizada(t *testing.T) {
	var gotBody string
	var gotContentType string
	var gotPath string

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		io.WriteString(w, soapResponse(retEnviNFe("104",
			`<tpAmb>2</tpAmb><cStat>100</cStat><xMotivo>Autorizado o uso da NF-e</xMotivo>`+
				`<chNFe>`+testAccessKey+`</chNFe>`+
				`<dhRecbto>2023-11-29T14:31:02-03:00</dhRecbto>`+
				`<nProt>135230001234567</nProt>`)))
	})

	res, err := c.Submit(context.Background(), signedNFe())
	require.NoError(t, err)

	assert.Equal(t, sefaz.OutcomeAuthorized, res.Outcome)
	assert.True(t, res.Authorized())
	assert.Equal(t, "100", res.CStat)
	assert.Equal(t, "135230001234567", res.Protocol)
	assert.Equal(t, 2023, res.AuthorizedAt.Year())

	// Request: path, SOAP 1.2 com action no Content-Type, enviNFe síncrono.
	assert.Equal(t, "/ws/NFeAutorizacao4.asmx", gotPath)
	assert.Contains(t, gotContentType, "application/soap+xml")
	assert.Contains(t, gotContentType, `action="http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4/nfeAutorizacaoLote"`)
	assert.Contains(t, gotBody, `<indSinc>1</indSinc>`)
	assert.Contains(t, gotBody, string(signedNFe()), "a NFe assinada deve ir byte a byte no lote")

	// idLote com exatamente 15 dígitos.
	start := strings.Index(gotBody, "<idLote>")
	end := strings.Index(gotBody, "</idLote>")
	require.Greater(t, end, start)
	assert.Len(t, gotBody[start+len("<idLote>"):end], 15)
}

func TestSubmit_ProcXMLMontado(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, soapResponse(retEnviNFe("104",
			`<cStat>100</cStat><xMotivo>Autorizado</xMotivo><nProt>135230001234567</nProt>`)))
	})

	res, err := c.Submit(context.Background(), signedNFe())
	require.NoError(t, err)

	proc := string(res.ProcXML)
	assert.Contains(t, proc, `<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">`)
	assert.Contains(t, proc, string(signedNFe()))
	assert.Contains(t, proc, `<nProt>135230001234567</nProt>`)
	// Uma única declaração XML, no início.
	assert.Equal(t, 1, strings.Count(proc, "<?xml"))
}

func TestSubmit_AutorizadaForaDePrazo(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, soapResponse(retEnviNFe("104",
			`<cStat>150</cStat><xMotivo>Autorizado fora de prazo</xMotivo><nProt>135230009999999</nProt>`)))
	})

	res, err := c.Submit(context.Background(), signedNFe())
	require.NoError(t, err)
	assert.Equal(t, sefaz.OutcomeAuthorized, res.Outcome)
	assert.Equal(t, "135230009999999", res.Protocol)
}

func TestSubmit_Duplicidade(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, soapResponse(retEnviNFe("104",
			`<cStat>204</cStat><xMotivo>Duplicidade de NF-e</xMotivo>`)))
	})

	res, err := c.Submit(context.Background(), signedNFe())
	require.NoError(t, err)
	assert.Equal(t, sefaz.OutcomeDuplicate, res.Outcome)
	assert.False(t, res.Authorized())
	assert.Empty(t, res.Protocol)
	assert.Nil(t, res.ProcXML)
}

func TestSubmit_DocumentoRejeitado(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, soapResponse(retEnviNFe("104",
			`<cStat>539</cStat><xMotivo>Duplicidade de NF-e com diferenca na Chave de Acesso</xMotivo>`)))
	})

	res, err := c.Submit(context.Background(), signedNFe())
	require.NoError(t, err)
	assert.Equal(t, sefaz.OutcomeRejected, res.Outcome)
	assert.Equal(t, "539", res.CStat)
}

func TestSubmit_LoteRecusado(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, soapResponse(
			`<retEnviNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">`+
				`<cStat>225</cStat><xMotivo>Falha no Schema XML</xMotivo></retEnviNFe>`))
	})

	res, err := c.Submit(context.Background(), signedNFe())
	require.NoError(t, err)
	assert.Equal(t, sefaz.OutcomeRejected, res.Outcome)
	assert.Equal(t, "225", res.CStat)
	assert.Equal(t, "Falha no Schema XML", res.XMotivo)
}

func TestSubmit_ErroDeTransporte(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Submit(context.Background(), signedNFe())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestSubmit_CircuitBreakerAbreAposFalhas(t *testing.T) {
	var calls int
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 3; i++ {
		_, err := c.Submit(context.Background(), signedNFe())
		require.Error(t, err)
	}
	require.Equal(t, 3, calls)

	// Circuito aberto: a quarta tentativa falha sem ir à rede.
	_, err := c.Submit(context.Background(), signedNFe())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, 3, calls)
}

func TestSubmit_NFeVazia(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.Submit(context.Background(), nil)
	assert.Error(t, err)
}

func TestSubmit_ContextoCancelado(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Submit(ctx, signedNFe())
	assert.Error(t, err)
}

// ── CheckStatus ───────────────────────────────────────────────────────────────

func statusResponse(cStat, xMotivo string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>` +
		`<nfeResultMsg xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeStatusServico4">` +
		`<retConsStatServ xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">` +
		`<tpAmb>2</tpAmb><cStat>` + cStat + `</cStat><xMotivo>` + xMotivo + `</xMotivo><cUF>35</cUF>` +
		`</retConsStatServ></nfeResultMsg></soap:Body></soap:Envelope>`
}

func TestCheckStatus_Online(t *testing.T) {
	var gotPath, gotBody, gotContentType string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		io.WriteString(w, statusResponse("107", "Servico em Operacao"))
	})

	res, err := c.CheckStatus(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Online)
	assert.Equal(t, "107", res.CStat)

	assert.Equal(t, "/ws/NFeStatusServico4.asmx", gotPath)
	assert.Contains(t, gotContentType, `action="http://www.portalfiscal.inf.br/nfe/wsdl/NFeStatusServico4/nfeStatusServicoNF"`)
	assert.Contains(t, gotBody, "<tpAmb>2</tpAmb>")
	assert.Contains(t, gotBody, "<cUF>35</cUF>")
	assert.Contains(t, gotBody, "<xServ>STATUS</xServ>")
}

func TestCheckStatus_ForaDoAr(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, statusResponse("108", "Servico Paralisado Momentaneamente"))
	})

	res, err := c.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Online)
	assert.Equal(t, "108", res.CStat)
}

func TestCheckStatus_ErroDeTransporte(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := c.CheckStatus(context.Background())
	assert.Error(t, err)
}
