package notify

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"github.com/sievert/ingreso/internal/core"
)

// WelcomeData feeds the welcome e-mail templates.
type WelcomeData struct {
	ClientName  string
	Responsible string
	Username    string
	Password    string
	PortalURL   string
	Facilities  int
	Users       int
}

// AlertData feeds the internal alert.
type AlertData struct {
	ClientName string
	TaxID      string
	Email      string
	Phone      string
	Facilities int
	Users      int
	SessionID  string
}

func welcomeData(n core.Notice, creds core.Credentials, portalURL string) WelcomeData {
	return WelcomeData{
		ClientName:  n.Client.LegalName,
		Responsible: n.Client.ResponsibleName,
		Username:    creds.Username,
		Password:    creds.Password,
		PortalURL:   portalURL,
		Facilities:  n.Facilities,
		Users:       n.Users,
	}
}

func alertData(n core.Notice) AlertData {
	return AlertData{
		ClientName: n.Client.LegalName,
		TaxID:      n.Client.TaxID,
		Email:      n.Client.Email,
		Phone:      n.Client.Phone,
		Facilities: n.Facilities,
		Users:      n.Users,
		SessionID:  n.SessionID,
	}
}

var (
	welcomeHTML = template.Must(template.New("welcome").Parse(welcomeHTMLTemplate))
	welcomeText = texttemplate.Must(texttemplate.New("welcome").Parse(welcomeTextTemplate))
	alertText   = texttemplate.Must(texttemplate.New("alert").Parse(alertTextTemplate))
)

// WelcomeSubject is the subject line of the client welcome e-mail.
func WelcomeSubject(clientName string) string {
	return fmt.Sprintf("Bienvenido al servicio de dosimetría - %s", clientName)
}

// AlertSubject is the subject line of the internal alert.
func AlertSubject(clientName string) string {
	return fmt.Sprintf("Nuevo cliente registrado: %s", clientName)
}

func buildWelcome(d WelcomeData) (text, html string, err error) {
	var tb, hb bytes.Buffer
	if err := welcomeText.Execute(&tb, d); err != nil {
		return "", "", fmt.Errorf("render welcome text: %w", err)
	}
	if err := welcomeHTML.Execute(&hb, d); err != nil {
		return "", "", fmt.Errorf("render welcome html: %w", err)
	}
	return tb.String(), hb.String(), nil
}

func buildAlert(d AlertData) (string, error) {
	var b bytes.Buffer
	if err := alertText.Execute(&b, d); err != nil {
		return "", fmt.Errorf("render alert: %w", err)
	}
	return b.String(), nil
}

const welcomeTextTemplate = `Estimado(a) {{if .Responsible}}{{.Responsible}}{{else}}cliente{{end}},

{{.ClientName}} quedó registrado en nuestro servicio de dosimetría personal
con {{.Facilities}} sede(s) y {{.Users}} usuario(s).

Sus credenciales de acceso al portal son:

  Usuario:    {{.Username}}
  Contraseña: {{.Password}}
{{if .PortalURL}}
Ingrese en {{.PortalURL}} y cambie la contraseña en su primer acceso.
{{else}}
Cambie la contraseña en su primer acceso.
{{end}}
Adjuntamos la política de tratamiento de datos.

Cordialmente,
Equipo de Atención al Cliente
`

const alertTextTemplate = `Se registró un nuevo cliente.

Razón social: {{.ClientName}}
NIT:          {{.TaxID}}
Correo:       {{.Email}}
Teléfono:     {{.Phone}}
Sedes:        {{.Facilities}}
Usuarios:     {{.Users}}
Solicitud:    {{.SessionID}}
`

const welcomeHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Bienvenido</title>
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 520px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 22px; color: #1F4E78;">Bienvenido, {{.ClientName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px; font-size: 15px; color: #374151; line-height: 1.5;">
              <p style="margin: 0 0 16px;">Estimado(a) {{if .Responsible}}{{.Responsible}}{{else}}cliente{{end}},</p>
              <p style="margin: 0 0 16px;">Su registro quedó completo con {{.Facilities}} sede(s) y {{.Users}} usuario(s).</p>
              <div style="background-color: #f3f4f6; border-radius: 8px; padding: 20px; margin-bottom: 16px; font-family: 'Courier New', monospace;">
                Usuario: <strong>{{.Username}}</strong><br>
                Contraseña: <strong>{{.Password}}</strong>
              </div>
              {{if .PortalURL}}<p style="margin: 0 0 16px;"><a href="{{.PortalURL}}" style="color: #1F4E78;">Ingresar al portal</a></p>{{end}}
              <p style="margin: 0;">Cambie la contraseña en su primer acceso.</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; font-size: 12px; color: #9ca3af;">
              Adjuntamos la política de tratamiento de datos.
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
