package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type SignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,min=2,max=20,alphanum"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type SymbolRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,min=2,max=20,alphanum"`
	TF     string `query:"tf" json:"tf" default:"5m" validate:"oneof=1m 5m 15m 1h 4h"`
}
