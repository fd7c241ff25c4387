package nfe

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
)

// DefaultContingencyReason justificativa usada quando o chamador não informa.
const DefaultContingencyReason = "Falha de comunicação com a SEFAZ"

// RewriteForContingency ajusta um XML já assinado para emissão em
// contingência off-line: upsert de tpEmis=9, dhCont e xJust como filhos do
// ide. A mutação acontece depois da assinatura e o documento não é
// reassinado; o XML resultante passa a ser o documento de registro e é
// retransmitido sem alteração na reconciliação.
func RewriteForContingency(xmlBytes []byte, dhCont time.Time, xJust string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("nfe: parse do XML para contingência: %w", err)
	}

	ide := doc.FindElement("//infNFe/ide")
	if ide == nil {
		return nil, fmt.Errorf("nfe: elemento ide não encontrado no XML")
	}

	if xJust == "" {
		xJust = DefaultContingencyReason
	}

	upsert(ide, "tpEmis", "9")
	upsert(ide, "dhCont", dhCont.Format("2006-01-02T15:04:05-07:00"))
	upsert(ide, "xJust", xJust)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("nfe: serializar XML de contingência: %w", err)
	}
	return out, nil
}

// ReplaceQRCode troca o conteúdo do qrCode do infNFeSupl pelo QR de
// contingência (que carrega dia, vNF e digest). O infNFeSupl fica fora da
// referência assinada, então a troca não invalida a assinatura.
func ReplaceQRCode(xmlBytes []byte, qrCode string) ([]byte, error) {
	if qrCode == "" {
		return nil, fmt.Errorf("nfe: qrCode vazio")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("nfe: parse do XML para troca de QR: %w", err)
	}
	qr := doc.FindElement("//infNFeSupl/qrCode")
	if qr == nil {
		return nil, fmt.Errorf("nfe: elemento qrCode não encontrado no XML")
	}
	qr.SetCData(qrCode)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("nfe: serializar XML com novo QR: %w", err)
	}
	return out, nil
}

func upsert(parent *etree.Element, name, value string) {
	el := parent.SelectElement(name)
	if el == nil {
		el = parent.CreateElement(name)
	}
	el.SetText(value)
}
