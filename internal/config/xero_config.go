package config

type XeroConfig interface {
	GetXeroClientID() string
	GetXeroClientSecret() string
	GetXeroTokenURL() string
	GetXeroAuthURL() string
	GetXeroAPIBaseURL() string
	GetXeroScopes() string
}

type Xero struct{}

var _ XeroConfig = Xero{}

func (Xero) GetXeroClientID() string {
	return GetEnv("XERO_CLIENT_ID", "")
}

func (Xero) GetXeroClientSecret() string {
	return GetEnv("XERO_CLIENT_SECRET", "")
}

func (Xero) GetXeroTokenURL() string {
	return GetEnv("XERO_TOKEN_URL", "https://identity.xero.com/connect/token")
}

func (Xero) GetXeroAuthURL() string {
	return GetEnv("XERO_AUTH_URL", "https://login.xero.com/identity/connect/authorize")
}

func (Xero) GetXeroAPIBaseURL() string {
	return GetEnv("XERO_API_BASE_URL", "https://api.xero.com/api.xro/2.0")
}

func (Xero) GetXeroScopes() string {
	return GetEnv("XERO_SCOPES", "offline_access accounting.transactions accounting.contacts accounting.settings")
}
