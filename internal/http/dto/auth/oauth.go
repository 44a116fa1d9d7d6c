package auth

// OAuthStartResponse se usa cuando el cliente pide la URL en vez del redirect.
type OAuthStartResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// OAuthCallbackResponse agrega el destino guardado en el ticket.
type OAuthCallbackResponse struct {
	TokenResponse
	ReturnTo   string `json:"return_to,omitempty"`
	Correlator string `json:"correlator,omitempty"`
}
