package rules_test

import (
	"net/http"
	"testing"

	"github.com/netinterceptor/blockfilter/rules"
	"github.com/stretchr/testify/assert"
)

func TestNewRequest(t *testing.T) {
	t.Parallel()

	r := rules.NewRequest("https://ads.example.org/track?id=1", "", http.MethodGet)
	assert.Equal(t, "https://ads.example.org/track?id=1", r.URL)
	assert.Equal(t, "ads.example.org", r.Hostname)
	assert.Equal(t, "example.org", r.Domain)
	assert.Equal(t, http.MethodGet, r.Method)

	r = rules.NewRequest("http://sub.example.org.uk:8080/", "", http.MethodPost)
	assert.Equal(t, "sub.example.org.uk", r.Hostname)
	assert.Equal(t, "example.org.uk", r.Domain)

	r = rules.NewRequest("http://localhost/", "", http.MethodGet)
	assert.Equal(t, "localhost", r.Hostname)
	assert.Equal(t, "localhost", r.Domain)

	r = rules.NewRequest("http://example.org/", "other.example.com", http.MethodGet)
	assert.Equal(t, "other.example.com", r.Hostname)
	assert.Equal(t, "example.com", r.Domain)
}

func TestNewRequest_longURL(t *testing.T) {
	t.Parallel()

	url := "https://example.org/" + string(make([]byte, 8*1024))
	r := rules.NewRequest(url, "", http.MethodGet)
	assert.Equal(t, url, r.URL)
}
