package dnsname

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CESNET/ft-generator/internal/ftrand"
)

// Matches §8 scenario 1: for every L in [4,255], generate(L) returns
// length L and matches the domain-name shape.
var domainRe = regexp.MustCompile(`^([a-z0-9]+-)*[a-z0-9]+(\.([a-z0-9]+-)*[a-z0-9]+)*\.[a-z0-9]+$`)

func TestGenerateExactLengthAndShape(t *testing.T) {
	r := ftrand.New(1)
	for l := minTotalLen; l <= maxTotalLen; l++ {
		name, err := Generate(r, l)
		assert.NoError(t, err, "length %d", l)
		assert.Len(t, name, l, "length %d: %q", l, name)
		assert.Regexp(t, domainRe, name, "length %d: %q", l, name)
	}
}

func TestGenerateRejectsOutOfRange(t *testing.T) {
	r := ftrand.New(1)
	_, err := Generate(r, 3)
	assert.Error(t, err)
	_, err = Generate(r, 256)
	assert.Error(t, err)
}
