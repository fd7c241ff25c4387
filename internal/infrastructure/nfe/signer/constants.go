// Constantes para assinatura XML-DSig da NFC-e (layout 4.00).

package signer

// Namespaces e algoritmos XMLDSig. A SEFAZ ainda exige SHA-1/RSA-SHA1 no
// leiaute 4.00; não trocar por SHA-256 sem mudança do Manual.
const (
	NamespaceDS = "http://www.w3.org/2000/09/xmldsig#"

	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA1         = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgSHA1            = "http://www.w3.org/2000/09/xmldsig#sha1"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)
