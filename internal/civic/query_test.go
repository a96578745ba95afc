package civic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFields(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want map[string]string
	}{
		{
			name: "tokens",
			url:  "https://x/cb?access_token=AAA&id_token=BBB",
			want: map[string]string{"access_token": "AAA", "id_token": "BBB"},
		},
		{
			name: "unknown params dropped",
			url:  "https://x/cb?code=C1&state=s&foo=bar",
			want: map[string]string{"code": "C1"},
		},
		{
			name: "percent decoded",
			url:  "https://x/cb?email=a%40b.test&user_id=u%201",
			want: map[string]string{"email": "a@b.test", "user_id": "u 1"},
		},
		{
			name: "empty values dropped",
			url:  "https://x/cb?code=&refresh_token=R",
			want: map[string]string{"refresh_token": "R"},
		},
		{
			name: "custom scheme",
			url:  "civic-auth-demo://callback?code=xyz",
			want: map[string]string{"code": "xyz"},
		},
		{
			name: "not a url",
			url:  "not a url",
			want: map[string]string{},
		},
		{
			name: "broken escape",
			url:  "https://x/%zz?code=1",
			want: map[string]string{},
		},
		{
			name: "empty",
			url:  "",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFields(tt.url))
		})
	}
}
