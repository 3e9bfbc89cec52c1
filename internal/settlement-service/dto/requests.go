package dto

// SettleRequest informa o resultado oficial do mercado
// advance/win usam Winners; prop usa Results (proposição -> aconteceu?)
type SettleRequest struct {
	Winners []string        `json:"winners,omitempty"`
	Results map[string]bool `json:"results,omitempty"`
	Close   bool            `json:"close,omitempty"` // fecha o mercado antes de liquidar
}
