package common

// AccessTokenHeaderName is the HTTP header used to carry the access token on
// outbound requests to the sync authority.
const AccessTokenHeaderName = "Authorization"
