package stepup

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"ridepay/internal/payment"
)

// Document renders the page that forwards the step-up parameters to the issuer:
// a POST form with one hidden input per field, submitted as soon as the body loads.
func Document(s payment.StepUp) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>Verifying your card</title></head>`)
		b.WriteString(`<body onload="document.forms[0].submit()">`)
		b.WriteString(`<form method="POST" action="`)
		b.WriteString(templ.EscapeString(string(templ.URL(s.URL))))
		b.WriteString(`">`)
		for _, f := range s.Fields {
			b.WriteString(`<input type="hidden" name="`)
			b.WriteString(templ.EscapeString(f.Name))
			b.WriteString(`" value="`)
			b.WriteString(templ.EscapeString(f.Value))
			b.WriteString(`">`)
		}
		b.WriteString(`<noscript><button type="submit">Continue</button></noscript>`)
		b.WriteString(`</form></body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
