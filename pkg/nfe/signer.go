// Package nfe: interface para assinatura digital de documentos XML (XML-DSig, NF-e).

package nfe

import "crypto/tls"

// Signer assina o XML da NFC-e e devolve o documento com a assinatura injetada.
type Signer interface {
	// Sign recebe o XML da nota (sem assinatura), o certificado com chave
	// privada e os valores do infNFeSupl (qrCode e urlChave), e retorna o XML
	// com Signature e infNFeSupl como irmãos posteriores do infNFe.
	Sign(xmlBytes []byte, cert tls.Certificate, qrCode, urlChave string) ([]byte, error)
}
