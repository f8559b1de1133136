package models

// Requests for pipeline HTTP endpoints. Defined in domain for consistency and reuse.

type DecisionsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"20" validate:"gte=1,lte=500"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	N      int    `query:"n" json:"n" default:"100" validate:"gte=1,lte=5000"`
}

type StatusRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
}
