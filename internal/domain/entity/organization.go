package entity

import "time"

// Company é a empresa emitente (grupo emit).
type Company struct {
	ID       string
	ClientID string

	CNPJ      string
	Name      string // xNome (razão social)
	TradeName string // xFant
	IE        string // inscrição estadual
	Regime    string // SimplesNacional, SimplesNacionalExcesso, Normal (mapeado para CRT)

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Branch é a filial/loja onde o PDV opera (endereço do emitente, cMunFG).
type Branch struct {
	ID        string
	CompanyID string

	UFCode       string // código IBGE da UF (cUF)
	CityCode     string // código IBGE do município (cMun/cMunFG)
	CityName     string
	Street       string
	Number       string
	District     string
	ZipCode      string
	Phone        string
	CountryState string // sigla da UF, usada na determinação de CFOP

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Customer é o consumidor identificado na venda (opcional na NFC-e).
type Customer struct {
	ID       string
	ClientID string

	CPF  string
	Name string

	CreatedAt time.Time
}
