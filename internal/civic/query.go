package civic

import "net/url"

const (
	FieldAccessToken  = "access_token"
	FieldIDToken      = "id_token"
	FieldRefreshToken = "refresh_token"
	FieldUserID       = "user_id"
	FieldEmail        = "email"
	FieldCode         = "code"
)

var recognizedFields = []string{
	FieldAccessToken,
	FieldIDToken,
	FieldRefreshToken,
	FieldUserID,
	FieldEmail,
	FieldCode,
}

// ExtractFields returns the recognized, non-empty query parameters of
// rawURL. Anything unparseable yields an empty map.
func ExtractFields(rawURL string) map[string]string {
	fields := make(map[string]string)

	u, err := url.Parse(rawURL)
	if err != nil {
		return fields
	}
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil && len(query) == 0 {
		return fields
	}

	for _, key := range recognizedFields {
		if v := query.Get(key); v != "" {
			fields[key] = v
		}
	}
	return fields
}

// oauthError returns the error and error_description parameters of a
// redirect, if any.
func oauthError(rawURL string) (string, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	q, _ := url.ParseQuery(u.RawQuery)
	return q.Get("error"), q.Get("error_description")
}
