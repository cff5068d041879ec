package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateHostURL(t *testing.T) {
	t.Parallel()

	valid := []string{
		"http://localhost:8080",
		"https://gw.scout.internal",
		"http://127.0.0.1:9090",
		"https://gw.scout.internal:8443/",
	}
	for _, host := range valid {
		assert.NoError(t, validateHostURL(host), host)
	}

	invalid := []string{
		"",
		"localhost:8080",
		"gw.scout.internal",
		"ftp://gw.scout.internal",
		"http://",
		"http://gw.scout.internal/api",
		"http://gw.scout.internal?tls=off",
		"http://gw.scout.internal#frag",
	}
	for _, host := range invalid {
		assert.Error(t, validateHostURL(host), host)
	}
}
