package stepup

import (
	"bytes"
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"ridepay/internal/payment"
)

var (
	formAction   = regexp.MustCompile(`<form method="POST" action="([^"]*)">`)
	hiddenInputs = regexp.MustCompile(`<input type="hidden" name="([^"]*)" value="([^"]*)">`)
)

func render(t *testing.T, s payment.StepUp) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Document(s).Render(context.Background(), &buf))
	return buf.String()
}

func TestDocumentRoundTrip(t *testing.T) {
	html := render(t, payment.StepUp{
		URL:    "https://issuer/3ds",
		Fields: []payment.FormField{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}},
	})

	action := formAction.FindStringSubmatch(html)
	require.NotNil(t, action)
	require.Equal(t, "https://issuer/3ds", action[1])

	inputs := hiddenInputs.FindAllStringSubmatch(html, -1)
	require.Len(t, inputs, 2)
	require.Equal(t, []string{"a", "1"}, inputs[0][1:])
	require.Equal(t, []string{"b", "2"}, inputs[1][1:])

	require.Contains(t, html, `<body onload="document.forms[0].submit()">`)
}

func TestDocumentEscapesValues(t *testing.T) {
	html := render(t, payment.StepUp{
		URL:    "https://issuer/3ds?a=1&b=2",
		Fields: []payment.FormField{{Name: "PaReq", Value: `x"><script>alert(1)</script>`}},
	})
	require.NotContains(t, html, "<script>")
	require.Contains(t, html, `action="https://issuer/3ds?a=1&amp;b=2"`)
	require.Contains(t, html, `value="x&#34;&gt;&lt;script&gt;alert(1)&lt;/script&gt;"`)
}

func TestDocumentRejectsScriptURL(t *testing.T) {
	html := render(t, payment.StepUp{URL: "javascript:alert(1)"})
	require.NotContains(t, html, "javascript:")
}
