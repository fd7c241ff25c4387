// Cliente SOAP 1.2 do webservice de autorização da NFC-e (NFeAutorizacao4).
// O envelope é montado por concatenação para não tocar na NFe assinada: a
// assinatura XML-DSig invalida com qualquer reserialização.

package sefaz

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/sony/gobreaker"

	"github.com/inovapos/pdv-fiscal/pkg/logger"
)

const (
	nfeNamespace = "http://www.portalfiscal.inf.br/nfe"

	soapNS = "http://www.w3.org/2003/05/soap-envelope"

	authorizationPath   = "/ws/NFeAutorizacao4.asmx"
	authorizationWsdlNS = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeAutorizacao4"
	authorizationAction = authorizationWsdlNS + "/nfeAutorizacaoLote"

	maxResponseBytes = 4 << 20
)

// Client implementa Authorizer contra o WS SOAP da SEFAZ.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	environment string
	ufCode      string
	breaker     *gobreaker.CircuitBreaker
	log         *logger.Logger
	now         func() time.Time
}

var _ Authorizer = (*Client)(nil)

// Option ajusta o cliente na construção.
type Option func(*Client)

// WithBaseURL troca a URL base do webservice (usado em tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithClock troca a fonte de tempo (usado em tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient constrói o cliente para o ambiente informado. O httpClient deve
// vir de NewHTTPClient para carregar o certificado de cliente.
func NewClient(httpClient *http.Client, environment, ufCode string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:  httpClient,
		environment: environment,
		ufCode:      ufCode,
		log:         log,
		now:         time.Now,
	}
	if environment == EnvironmentProduction {
		c.baseURL = baseURLProduction
	} else {
		c.baseURL = baseURLHomologation
	}
	// Circuit breaker: depois de falhas de transporte consecutivas o PDV
	// para de esperar 60 s por tentativa e cai direto para contingência.
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "sefaz-autorizacao",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit envia a NFe assinada em lote síncrono e classifica o retorno.
func (c *Client) Submit(ctx context.Context, signedNFe []byte) (*AuthorizationResult, error) {
	if len(signedNFe) == 0 {
		return nil, fmt.Errorf("sefaz: NFe assinada vazia")
	}

	envelope := c.buildAuthorizationEnvelope(signedNFe)

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, authorizationPath, authorizationAction, envelope, submitTimeout)
	})
	if err != nil {
		return nil, fmt.Errorf("sefaz: envio do lote falhou: %w", err)
	}

	return c.parseAuthorizationResponse(raw.([]byte), signedNFe)
}

// buildAuthorizationEnvelope monta o envelope soap12 com o enviNFe. O idLote
// é derivado do relógio; a SEFAZ exige exatamente 15 dígitos.
func (c *Client) buildAuthorizationEnvelope(signedNFe []byte) []byte {
	idLote := c.now().UnixNano() % 1_000_000_000_000_000

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	sb.WriteString(`<soap12:Envelope xmlns:soap12="` + soapNS + `"><soap12:Body>`)
	sb.WriteString(`<nfeDadosMsg xmlns="` + authorizationWsdlNS + `">`)
	sb.WriteString(`<enviNFe xmlns="` + nfeNamespace + `" versao="4.00">`)
	fmt.Fprintf(&sb, "<idLote>%015d</idLote>", idLote)
	sb.WriteString(`<indSinc>1</indSinc>`)
	sb.Write(stripXMLDeclaration(signedNFe))
	sb.WriteString(`</enviNFe>`)
	sb.WriteString(`</nfeDadosMsg></soap12:Body></soap12:Envelope>`)
	return []byte(sb.String())
}

// parseAuthorizationResponse extrai o retEnviNFe e aplica a classificação em
// duas camadas: primeiro o cStat do lote (104 = processado), depois o cStat
// do protNFe/infProt do documento.
func (c *Client) parseAuthorizationResponse(raw, signedNFe []byte) (*AuthorizationResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("sefaz: resposta SOAP ilegível: %w", err)
	}

	ret := doc.FindElement("//retEnviNFe")
	if ret == nil {
		if fault := doc.FindElement("//Fault"); fault != nil {
			return nil, fmt.Errorf("sefaz: SOAP Fault: %s", elementText(fault, "Reason/Text", "faultstring"))
		}
		return nil, fmt.Errorf("sefaz: resposta sem retEnviNFe")
	}

	batchCStat := childText(ret, "cStat")
	batchXMotivo := childText(ret, "xMotivo")
	if batchCStat != CStatBatchProcessed {
		c.log.Warn().Str("cStat", batchCStat).Str("xMotivo", batchXMotivo).Msg("lote recusado pela SEFAZ")
		return &AuthorizationResult{
			Outcome: OutcomeRejected,
			CStat:   batchCStat,
			XMotivo: batchXMotivo,
		}, nil
	}

	infProt := ret.FindElement("protNFe/infProt")
	if infProt == nil {
		return nil, fmt.Errorf("sefaz: lote processado sem protNFe")
	}

	result := &AuthorizationResult{
		CStat:   childText(infProt, "cStat"),
		XMotivo: childText(infProt, "xMotivo"),
	}

	switch result.CStat {
	case CStatAuthorized, CStatAuthorizedOutTime:
		result.Outcome = OutcomeAuthorized
		result.Protocol = childText(infProt, "nProt")
		if dh := childText(infProt, "dhRecbto"); dh != "" {
			if t, err := time.Parse(time.RFC3339, dh); err == nil {
				result.AuthorizedAt = t
			}
		}
		proc, err := buildProcXML(signedNFe, ret.FindElement("protNFe"))
		if err != nil {
			return nil, err
		}
		result.ProcXML = proc
	case CStatDuplicate:
		result.Outcome = OutcomeDuplicate
	default:
		result.Outcome = OutcomeRejected
	}

	c.log.Info().
		Str("outcome", string(result.Outcome)).
		Str("cStat", result.CStat).
		Str("nProt", result.Protocol).
		Msg("retorno da SEFAZ")
	return result, nil
}

// buildProcXML monta o nfeProc de distribuição: a NFe assinada byte a byte
// como foi enviada, seguida do protNFe devolvido pela SEFAZ.
func buildProcXML(signedNFe []byte, protNFe *etree.Element) ([]byte, error) {
	if protNFe == nil {
		return nil, fmt.Errorf("sefaz: protNFe ausente")
	}
	protDoc := etree.NewDocument()
	clone := protNFe.Copy()
	if clone.SelectAttr("xmlns") == nil {
		clone.CreateAttr("xmlns", nfeNamespace)
	}
	protDoc.SetRoot(clone)
	protXML, err := protDoc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("sefaz: serializar protNFe: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	buf.WriteString(`<nfeProc xmlns="` + nfeNamespace + `" versao="4.00">`)
	buf.Write(stripXMLDeclaration(signedNFe))
	buf.Write(stripXMLDeclaration(protXML))
	buf.WriteString(`</nfeProc>`)
	return buf.Bytes(), nil
}

// post executa a chamada SOAP 1.2. O action vai no parâmetro do Content-Type,
// como manda o SOAP 1.2 (não há header SOAPAction).
func (c *Client) post(ctx context.Context, path, action string, envelope []byte, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("criar request: %w", err)
	}
	req.Header.Set("Content-Type", fmt.Sprintf(`application/soap+xml; charset=utf-8; action=%q`, action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("timeout ou cancelamento: %w", ctx.Err())
		}
		return nil, fmt.Errorf("chamada HTTP falhou: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("ler resposta: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d do webservice", resp.StatusCode)
	}
	return body, nil
}

// stripXMLDeclaration remove a declaração <?xml ...?> para embutir o
// documento dentro de outro.
func stripXMLDeclaration(xmlBytes []byte) []byte {
	trimmed := bytes.TrimLeft(xmlBytes, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		if end := bytes.Index(trimmed, []byte("?>")); end >= 0 {
			return bytes.TrimLeft(trimmed[end+2:], " \t\r\n")
		}
	}
	return trimmed
}

func childText(parent *etree.Element, tag string) string {
	if el := parent.SelectElement(tag); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

// elementText devolve o texto do primeiro caminho existente sob parent.
func elementText(parent *etree.Element, paths ...string) string {
	for _, p := range paths {
		if el := parent.FindElement(p); el != nil {
			return strings.TrimSpace(el.Text())
		}
	}
	return ""
}
