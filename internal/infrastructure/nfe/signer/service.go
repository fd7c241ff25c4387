// Serviço de assinatura XML-DSig da NFC-e. Assina o subtree infNFe por
// referência de Id e anexa infNFeSupl e Signature como irmãos posteriores
// do infNFe, dentro do elemento NFe.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	pkgnfe "github.com/inovapos/pdv-fiscal/pkg/nfe"
)

// SignOutput resultado da assinatura.
type SignOutput struct {
	XML          []byte
	DigestBase64 string // DigestValue do infNFe; usado no QR Code de contingência
}

// SignatureService implementa pkg/nfe.Signer.
type SignatureService struct{}

// NewSignatureService cria o serviço.
func NewSignatureService() *SignatureService {
	return &SignatureService{}
}

var _ pkgnfe.Signer = (*SignatureService)(nil)

// Sign assina o XML e anexa infNFeSupl e Signature. Implementa pkg/nfe.Signer.
func (s *SignatureService) Sign(xmlBytes []byte, cert tls.Certificate, qrCode, urlChave string) ([]byte, error) {
	out, err := s.SignWithDetails(xmlBytes, cert, qrCode, urlChave)
	if err != nil {
		return nil, err
	}
	return out.XML, nil
}

// SignWithDetails assina e devolve também o DigestValue do infNFe.
func (s *SignatureService) SignWithDetails(xmlBytes []byte, cert tls.Certificate, qrCode, urlChave string) (*SignOutput, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("nfe: XML vazio")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("nfe: o certificado deve incluir chave privada RSA")
	}
	x509Cert, err := leafCertificate(cert)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("nfe: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "NFe" {
		return nil, fmt.Errorf("nfe: documento sem elemento raiz NFe")
	}
	infNFe := root.SelectElement("infNFe")
	if infNFe == nil {
		return nil, fmt.Errorf("nfe: elemento infNFe não encontrado")
	}
	id := infNFe.SelectAttrValue("Id", "")
	if id == "" {
		return nil, fmt.Errorf("nfe: infNFe sem atributo Id")
	}

	// 1) Digest do subtree infNFe (C14N + SHA-1)
	subtree, err := serializeSubtree(infNFe)
	if err != nil {
		return nil, err
	}
	canonical, err := canonicalizeXML(subtree)
	if err != nil {
		canonical = subtree
	}
	digest := sha1.Sum(canonical)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	// 2) SignedInfo (C14N, Reference #Id, Digest SHA-1, assinatura RSA-SHA1)
	signedInfoXML := buildSignedInfo(id, digestB64)
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		canonicalSignedInfo = []byte(signedInfoXML)
	}
	signedInfoHash := sha1.Sum(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA1, signedInfoHash[:])
	if err != nil {
		return nil, fmt.Errorf("nfe: assinar SignedInfo: %w", err)
	}

	// 3) Signature completa com KeyInfo (certificado X.509)
	certB64 := base64.StdEncoding.EncodeToString(x509Cert.Raw)
	signatureXML := buildFullSignature(signedInfoXML, base64.StdEncoding.EncodeToString(signatureValue), certB64)

	// 4) infNFeSupl (qrCode em CDATA + urlChave) antes da Signature
	if err := appendInfNFeSupl(root, infNFe, qrCode, urlChave); err != nil {
		return nil, err
	}
	if err := appendSignature(root, signatureXML); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("nfe: serializar XML assinado: %w", err)
	}
	return &SignOutput{XML: out.Bytes(), DigestBase64: digestB64}, nil
}

func leafCertificate(cert tls.Certificate) (*x509.Certificate, error) {
	if cert.Leaf != nil {
		return cert.Leaf, nil
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("nfe: certificado sem cadeia X.509")
	}
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("nfe: parsear certificado: %w", err)
	}
	return parsed, nil
}

// serializeSubtree serializa o infNFe como documento próprio, garantindo a
// declaração do namespace herdado do NFe (necessária para o C14N).
func serializeSubtree(infNFe *etree.Element) ([]byte, error) {
	clone := infNFe.Copy()
	if clone.SelectAttr("xmlns") == nil {
		clone.CreateAttr("xmlns", "http://www.portalfiscal.inf.br/nfe")
	}
	sub := etree.NewDocument()
	sub.SetRoot(clone)
	out, err := sub.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("nfe: serializar infNFe: %w", err)
	}
	return out, nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(id, digestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<SignedInfo xmlns="` + NamespaceDS + `">`)
	sb.WriteString(`<CanonicalizationMethod Algorithm="` + AlgC14N + `"/>`)
	sb.WriteString(`<SignatureMethod Algorithm="` + AlgRSASHA1 + `"/>`)
	sb.WriteString(`<Reference URI="#` + id + `">`)
	sb.WriteString(`<Transforms><Transform Algorithm="` + TransformEnveloped + `"/>`)
	sb.WriteString(`<Transform Algorithm="` + AlgC14N + `"/></Transforms>`)
	sb.WriteString(`<DigestMethod Algorithm="` + AlgSHA1 + `"/>`)
	sb.WriteString(`<DigestValue>` + digestB64 + `</DigestValue>`)
	sb.WriteString(`</Reference>`)
	sb.WriteString(`</SignedInfo>`)
	return sb.String()
}

func buildFullSignature(signedInfoXML, signatureValueB64, certB64 string) string {
	// O SignedInfo dentro da Signature herda o namespace do pai.
	inner := strings.Replace(signedInfoXML, ` xmlns="`+NamespaceDS+`"`, "", 1)

	var sb strings.Builder
	sb.WriteString(`<Signature xmlns="` + NamespaceDS + `">`)
	sb.WriteString(inner)
	sb.WriteString(`<SignatureValue>` + signatureValueB64 + `</SignatureValue>`)
	sb.WriteString(`<KeyInfo><X509Data><X509Certificate>` + certB64 + `</X509Certificate></X509Data></KeyInfo>`)
	sb.WriteString(`</Signature>`)
	return sb.String()
}

func appendInfNFeSupl(root, infNFe *etree.Element, qrCode, urlChave string) error {
	if qrCode == "" || urlChave == "" {
		return fmt.Errorf("nfe: qrCode e urlChave são obrigatórios no infNFeSupl")
	}
	supl := etree.NewElement("infNFeSupl")
	qr := supl.CreateElement("qrCode")
	qr.SetCData(qrCode)
	supl.CreateElement("urlChave").SetText(urlChave)

	insertAfter(root, infNFe, supl)
	return nil
}

func appendSignature(root *etree.Element, signatureXML string) error {
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return fmt.Errorf("nfe: parsear Signature: %w", err)
	}
	sigRoot := sigDoc.Root()
	if sigRoot == nil {
		return fmt.Errorf("nfe: Signature vazia")
	}
	root.AddChild(sigRoot)
	return nil
}

// insertAfter posiciona el como irmão imediatamente posterior a ref.
func insertAfter(parent, ref, el *etree.Element) {
	parent.AddChild(el)
	idx := -1
	children := parent.ChildElements()
	for i, c := range children {
		if c == ref {
			idx = i
			break
		}
	}
	// AddChild anexa no fim; reordena apenas se houver elementos entre ref e el.
	if idx >= 0 && idx+1 < len(children) {
		tail := make([]*etree.Element, 0, len(children)-idx-1)
		for _, c := range children[idx+1:] {
			if c == el {
				continue
			}
			tail = append(tail, c)
		}
		for _, c := range tail {
			parent.RemoveChild(c)
		}
		for _, c := range tail {
			parent.AddChild(c)
		}
	}
}
