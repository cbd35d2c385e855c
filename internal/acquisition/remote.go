package acquisition

import "context"

// Remote is the explore API consumed by the acquisition flow.
type Remote interface {
	CheckAccess(ctx context.Context, modpackID, token string) (AccessResponse, error)
	ValidatePassword(ctx context.Context, modpackID, token, password string) (PasswordResponse, error)
	Purchase(ctx context.Context, modpackID, token string, req PurchaseRequest) (PurchaseResponse, error)
	AcquireTwitch(ctx context.Context, modpackID, token string) (TwitchResponse, error)
}

// AccessInfo is the modpack metadata returned by check-access.
type AccessInfo struct {
	ID                         string   `json:"id"`
	Name                       string   `json:"name"`
	Price                      string   `json:"price"`
	Currency                   string   `json:"currency"`
	AccessMethod               string   `json:"accessMethod"`
	RequiresPassword           bool     `json:"requiresPassword"`
	RequiresTwitchSubscription bool     `json:"requiresTwitchSubscription"`
	TwitchChannels             []string `json:"requiredTwitchChannels,omitempty"`
}

// AccessResponse is the body of GET /explore/modpacks/{id}/check-access.
type AccessResponse struct {
	CanAccess         bool        `json:"canAccess"`
	Reason            string      `json:"reason,omitempty"`
	ModpackAccessInfo *AccessInfo `json:"modpackAccessInfo,omitempty"`
}

// PasswordResponse is the body of POST validate-password.
type PasswordResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// PurchaseRequest is the body of POST acquire/purchase.
type PurchaseRequest struct {
	GatewayType string `json:"gatewayType,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

// PurchaseResponse is the body returned by acquire/purchase.
type PurchaseResponse struct {
	Success     bool              `json:"success"`
	IsFree      bool              `json:"isFree,omitempty"`
	PaymentID   string            `json:"paymentId,omitempty"`
	ApprovalURL string            `json:"approvalUrl,omitempty"`
	QRCode      string            `json:"qrCode,omitempty"`
	GatewayType string            `json:"gatewayType,omitempty"`
	Amount      string            `json:"amount,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	Status      string            `json:"status,omitempty"`
	Message     string            `json:"message,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TwitchResponse is the body returned by acquire/twitch.
type TwitchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SubjectFromInfo converts check-access metadata into a Subject snapshot.
func SubjectFromInfo(info AccessInfo) Subject {
	method := GatingMethod(info.AccessMethod)
	if !method.Valid() {
		switch {
		case info.RequiresPassword:
			method = MethodPassword
		case info.RequiresTwitchSubscription:
			method = MethodTwitch
		case info.Price != "" && info.Price != "0" && info.Price != "0.00":
			method = MethodPaid
		default:
			method = MethodFree
		}
	}
	channels := make([]string, len(info.TwitchChannels))
	copy(channels, info.TwitchChannels)
	return Subject{
		ID:                         info.ID,
		Name:                       info.Name,
		Price:                      info.Price,
		Currency:                   info.Currency,
		Method:                     method,
		RequiresPassword:           info.RequiresPassword,
		RequiresTwitchSubscription: info.RequiresTwitchSubscription,
		TwitchChannels:             channels,
	}
}
