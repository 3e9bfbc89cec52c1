package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Market: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type   string `json:"type"`   // subscribe | unsubscribe | ping
	Market string `json:"market"` // advance | win | prop
}

// OddsUpdate representa uma atualização de odds enviada para clientes WebSocket
type OddsUpdate struct {
	Type    string `json:"type"` // "snapshot" na inscrição, "update" depois
	Market  string `json:"market"`
	Payload any    `json:"payload"`
}
