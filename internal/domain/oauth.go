package domain

import "encoding/json"

// OAuthCardContentType marks an attachment as an authentication card.
const OAuthCardContentType = "application/vnd.microsoft.card.oauth"

// tokenExchangeResource is the exchangeable-resource declaration inside
// an OAuth card's content.
type tokenExchangeResource struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// oauthCardContent is the subset of an OAuth card's content this layer
// inspects.
type oauthCardContent struct {
	ConnectionName        string                 `json:"connectionName"`
	TokenExchangeResource *tokenExchangeResource `json:"tokenExchangeResource"`
}

// OAuthChallenge is extracted from an inbound activity that asks the user
// to prove their identity. It is derived, never stored.
type OAuthChallenge struct {
	ResourceURI    string
	ExchangeID     string
	ConnectionName string
}

// ExtractOAuthChallenge inspects an inbound activity for an authentication
// challenge. A challenge is present only when the activity comes from the
// bot and carries exactly one attachment that is an OAuth card declaring a
// token-exchange resource.
func ExtractOAuthChallenge(a Activity) (OAuthChallenge, bool) {
	if !a.IsFromBot() || len(a.Attachments) != 1 {
		return OAuthChallenge{}, false
	}
	att := a.Attachments[0]
	if att.ContentType != OAuthCardContentType || len(att.Content) == 0 {
		return OAuthChallenge{}, false
	}

	var card oauthCardContent
	if err := json.Unmarshal(att.Content, &card); err != nil {
		return OAuthChallenge{}, false
	}
	if card.TokenExchangeResource == nil {
		return OAuthChallenge{}, false
	}

	return OAuthChallenge{
		ResourceURI:    card.TokenExchangeResource.URI,
		ExchangeID:     card.TokenExchangeResource.ID,
		ConnectionName: card.ConnectionName,
	}, true
}
