package sefaz

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"time"
)

// submitTimeout é o timeout de rede da autorização. O WS da SEFAZ pode levar
// vários segundos para processar o lote síncrono.
const submitTimeout = 60 * time.Second

// homologationHost único host isento da validação de cadeia no ambiente de
// homologação; qualquer outro servidor continua sob a verificação padrão.
const homologationHost = "homologacao.nfce.fazenda.sp.gov.br"

// NewHTTPClient monta o cliente HTTP com TLS mútuo exigido pela SEFAZ: o
// certificado A1 do emitente é apresentado como certificado de cliente.
//
// No ambiente de homologação a validação da cadeia do servidor é relaxada
// apenas para o host de homologação, porque vários estados o servem com
// cadeias ICP-Brasil que não estão nos trust stores padrão. Todo outro host
// passa pela verificação completa de cadeia e hostname; em produção a
// validação é sempre estrita.
func NewHTTPClient(cert tls.Certificate, environment string) *http.Client {
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if environment == EnvironmentHomologation {
		// InsecureSkipVerify desliga a verificação automática; o callback a
		// refaz para todo host que não seja o de homologação.
		tlsCfg.InsecureSkipVerify = true
		tlsCfg.VerifyConnection = verifyWithHomologationException
	}
	return &http.Client{
		Timeout: submitTimeout,
		Transport: &http.Transport{
			TLSClientConfig:     tlsCfg,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// verifyWithHomologationException aceita o host de homologação sem validar a
// cadeia e aplica a verificação padrão (cadeia + hostname) a qualquer outro.
func verifyWithHomologationException(cs tls.ConnectionState) error {
	if cs.ServerName == homologationHost {
		return nil
	}
	if len(cs.PeerCertificates) == 0 {
		return fmt.Errorf("sefaz: servidor não apresentou certificado")
	}
	opts := x509.VerifyOptions{
		DNSName:       cs.ServerName,
		Intermediates: x509.NewCertPool(),
	}
	for _, ic := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(ic)
	}
	if _, err := cs.PeerCertificates[0].Verify(opts); err != nil {
		return fmt.Errorf("sefaz: certificado do servidor %q rejeitado: %w", cs.ServerName, err)
	}
	return nil
}
