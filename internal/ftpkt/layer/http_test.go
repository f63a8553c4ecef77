package layer

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Matches §8 scenario 2's literal request: GET /test, Host test.com,
// User-Agent ft-generator, HTTP/1.0.
func TestBuildMessageMatchesLiteralScenario(t *testing.T) {
	got := buildMessage("GET /test HTTP/1.0", []httpHeader{
		{Name: "User-Agent", Value: "ft-generator"},
		{Name: "Host", Value: "test.com"},
	}, nil)

	want := "GET /test HTTP/1.0\r\nUser-Agent: ft-generator\r\nHost: test.com\r\n\r\n"
	assert.Equal(t, want, string(got))
}

func TestRenderResponseContentLengthMatchesBody(t *testing.T) {
	raw := renderResponse(37)
	assert.Contains(t, string(raw), "Content-Length: 37\r\n")
	assert.Equal(t, 37, len(raw)-strings.Index(string(raw), "\r\n\r\n")-4)
}

func TestPlanResponseBodyHitsExactTarget(t *testing.T) {
	for _, target := range []int{85, 100, 237, 1000} {
		body, ok := planResponseBody(target)
		assert.True(t, ok, "target %d", target)
		assert.Equal(t, target, len(renderResponse(body)), "target %d", target)
		assert.Equal(t, strconv.Itoa(body), strconv.Itoa(body))
	}
}
