// Package templates holds the HTML components served by the web layer.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// ErrorAlert renders an error fragment for partial page updates.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		b.WriteString(`<p class="alert-message">` + templ.EscapeString(message) + `</p>`)
		if action != "" {
			b.WriteString(`<p class="alert-action">` + templ.EscapeString(action) + `</p>`)
		}
		b.WriteString(`<p class="alert-code">Código: ` + templ.EscapeString(code) + `</p>`)
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// StatusData is what the session status page shows.
type StatusData struct {
	SessionID    string
	ClientName   string
	ClientOK     bool
	FacilitiesOK bool
	Facilities   []string
	Users        int
	Submitted    bool
	Issue        string
}

// StatusPage renders the progress of one onboarding session.
func StatusPage(d StatusData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="es"><head><meta charset="UTF-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1.0">`)
		b.WriteString(`<title>Solicitud ` + templ.EscapeString(d.SessionID) + `</title></head><body>`)

		title := d.ClientName
		if title == "" {
			title = "Cliente sin registrar"
		}
		b.WriteString(`<h1>` + templ.EscapeString(title) + `</h1>`)
		b.WriteString(`<ul class="status">`)
		b.WriteString(statusItem("Datos del cliente", d.ClientOK))
		b.WriteString(statusItem(fmt.Sprintf("Sedes (%d)", len(d.Facilities)), d.FacilitiesOK))
		b.WriteString(statusItem(fmt.Sprintf("Usuarios (%d)", d.Users), d.Users > 0))
		b.WriteString(`</ul>`)

		if len(d.Facilities) > 0 {
			b.WriteString(`<h2>Sedes</h2><ul class="facilities">`)
			for _, f := range d.Facilities {
				b.WriteString(`<li>` + templ.EscapeString(f) + `</li>`)
			}
			b.WriteString(`</ul>`)
		}

		switch {
		case d.Submitted:
			b.WriteString(`<p class="submitted">Solicitud enviada.</p>`)
		case d.Issue != "":
			b.WriteString(`<p class="issue">` + templ.EscapeString(d.Issue) + `</p>`)
		default:
			b.WriteString(`<p class="ready">Lista para enviar.</p>`)
		}
		b.WriteString(`</body></html>`)

		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		return nil
	})
}

func statusItem(label string, ok bool) string {
	mark, class := "✗", "pending"
	if ok {
		mark, class = "✓", "done"
	}
	return `<li class="` + class + `">` + mark + " " + templ.EscapeString(label) + `</li>`
}
