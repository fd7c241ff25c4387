package sefaz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
)

const (
	statusPath   = "/ws/NFeStatusServico4.asmx"
	statusWsdlNS = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeStatusServico4"
	statusAction = statusWsdlNS + "/nfeStatusServicoNF"

	// statusTimeout é curto de propósito: a consulta de status antecede o
	// reenvio de contingência e não pode segurar o caixa.
	statusTimeout = 5 * time.Second
)

// CheckStatus consulta o consStatServ. Qualquer falha de transporte ou cStat
// diferente de 107 é tratada como serviço fora do ar.
func (c *Client) CheckStatus(ctx context.Context) (*StatusResult, error) {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	sb.WriteString(`<soap12:Envelope xmlns:soap12="` + soapNS + `"><soap12:Body>`)
	sb.WriteString(`<nfeDadosMsg xmlns="` + statusWsdlNS + `">`)
	sb.WriteString(`<consStatServ xmlns="` + nfeNamespace + `" versao="4.00">`)
	sb.WriteString(`<tpAmb>` + c.environment + `</tpAmb>`)
	sb.WriteString(`<cUF>` + c.ufCode + `</cUF>`)
	sb.WriteString(`<xServ>STATUS</xServ>`)
	sb.WriteString(`</consStatServ>`)
	sb.WriteString(`</nfeDadosMsg></soap12:Body></soap12:Envelope>`)

	raw, err := c.post(ctx, statusPath, statusAction, []byte(sb.String()), statusTimeout)
	if err != nil {
		return nil, fmt.Errorf("sefaz: consulta de status falhou: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("sefaz: resposta de status ilegível: %w", err)
	}
	ret := doc.FindElement("//retConsStatServ")
	if ret == nil {
		return nil, fmt.Errorf("sefaz: resposta sem retConsStatServ")
	}

	result := &StatusResult{
		CStat:   childText(ret, "cStat"),
		XMotivo: childText(ret, "xMotivo"),
	}
	result.Online = result.CStat == CStatServiceUp

	c.log.Debug().Bool("online", result.Online).Str("cStat", result.CStat).Msg("status do serviço SEFAZ")
	return result, nil
}
