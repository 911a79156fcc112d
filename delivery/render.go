package delivery

import (
	"bytes"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strings"
	"time"

	"github.com/kfimusic/beatstore/models"
	"github.com/kfimusic/beatstore/policy"
	"github.com/microcosm-cc/bluemonday"
)

const defaultProductName = "Your Beat"

// Brand carries the links and contact details shown in every email.
type Brand struct {
	FrontendURL  string
	InstagramURL string
	LogoURL      string
	SupportEmail string
}

// DownloadEmail is the input to Render.
type DownloadEmail struct {
	ProductName string
	Files       []models.DeliverableFile
	Expiry      time.Duration
}

// Rendered is a subject with its HTML and plain-text bodies.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
	Files   []models.DeliverableFile
}

// Renderer turns a DownloadEmail into a Rendered message.
type Renderer struct {
	brand    Brand
	policy   policy.Policy
	sanitize *bluemonday.Policy
	html     *htmltemplate.Template
}

func NewRenderer(brand Brand, p policy.Policy) *Renderer {
	return &Renderer{
		brand:    brand,
		policy:   p,
		sanitize: bluemonday.StrictPolicy(),
		html:     htmltemplate.Must(htmltemplate.New("download.html").Parse(downloadHTML)),
	}
}

type templateData struct {
	ProductName string
	Files       []models.DeliverableFile
	Hours       int
	Plural      bool
	Brand       Brand
	StoreURL    string
	Year        int
}

// Render filters and orders the files by download policy before rendering.
func (r *Renderer) Render(email DownloadEmail) (Rendered, error) {
	files := r.policy.Deliverable(email.Files)
	hours := expiryHours(email.Expiry)
	name := r.displayName(email.ProductName)

	data := templateData{
		ProductName: name,
		Files:       files,
		Hours:       hours,
		Plural:      hours != 1,
		Brand:       r.brand,
		StoreURL:    strings.TrimRight(r.brand.FrontendURL, "/") + "/store",
		Year:        time.Now().Year(),
	}

	var htmlBuf bytes.Buffer
	if err := r.html.Execute(&htmlBuf, data); err != nil {
		return Rendered{}, fmt.Errorf("failed to render HTML body: %w", err)
	}
	text, err := htmlToText(htmlBuf.String())
	if err != nil {
		return Rendered{}, fmt.Errorf("failed to render text body: %w", err)
	}

	return Rendered{
		Subject: "Your download: " + name,
		HTML:    htmlBuf.String(),
		Text:    text,
		Files:   files,
	}, nil
}

// displayName strips markup and returns plain text. The templates escape it
// again for their own context.
func (r *Renderer) displayName(raw string) string {
	clean := strings.TrimSpace(html.UnescapeString(r.sanitize.Sanitize(raw)))
	clean = strings.NewReplacer("<", "", ">", "").Replace(clean)
	if clean == "" {
		return defaultProductName
	}
	return clean
}

func expiryHours(d time.Duration) int {
	if d <= 0 {
		return 24
	}
	h := int((d + 30*time.Minute) / time.Hour)
	if h < 1 {
		return 1
	}
	return h
}

const downloadHTML = `<!doctype html>
<html>
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
</head>
<body style="margin:0;padding:0;background:#0b0b0b;color:#e5e7eb;">
  <div style="display:none;max-height:0;overflow:hidden;">Your download: {{.ProductName}}. Links expire in about {{.Hours}} hour{{if .Plural}}s{{end}}.</div>
  <table role="presentation" cellpadding="0" cellspacing="0" width="100%" style="background:#0b0b0b;">
    <tr>
      <td align="center" style="padding:32px 16px;">
        <table role="presentation" cellpadding="0" cellspacing="0" width="100%" style="max-width:680px;background:#111111;border-radius:16px;border:1px solid #1f2937;">
          {{if .Brand.LogoURL}}<tr>
            <td align="center" style="padding:28px 24px 8px 24px;">
              <img src="{{.Brand.LogoURL}}" width="72" height="72" alt="KFI Music" style="display:block;border:0;border-radius:12px;" />
            </td>
          </tr>{{end}}
          <tr>
            <td align="left" style="padding:8px 24px 0 24px;font-family:Inter,Segoe UI,Arial,sans-serif;">
              <h1 style="margin:16px 0 8px 0;font-size:24px;color:#ffffff;">Your download: {{.ProductName}}</h1>
              <p style="margin:0 0 12px 0;color:#d1d5db;font-size:15px;">Thanks for your purchase! Your files are ready below. Links expire in about {{.Hours}} hour{{if .Plural}}s{{end}}.</p>
            </td>
          </tr>
          <tr>
            <td align="center" style="padding:8px 24px 20px 24px;">
              <table role="presentation" cellpadding="0" cellspacing="0" width="100%" style="max-width:460px;">
                {{range .Files}}<tr>
                  <td style="padding:10px 0" align="center">
                    <a href="{{.URL}}" style="display:inline-block;background:#FBBF24;color:#111;font-weight:700;text-decoration:none;padding:14px 18px;border-radius:10px;min-width:240px;text-align:center;">Download {{.Name}}</a>
                  </td>
                </tr>{{end}}
              </table>
            </td>
          </tr>
          <tr>
            <td align="center" style="padding:0 24px 24px 24px;">
              <a href="{{.StoreURL}}" style="display:inline-block;color:#FBBF24;border:1px solid #FBBF24;font-weight:700;text-decoration:none;padding:12px 16px;border-radius:9999px;">View in store</a>
            </td>
          </tr>
          <tr>
            <td align="left" style="padding:16px 24px 24px 24px;color:#9ca3af;font-size:13px;font-family:Inter,Segoe UI,Arial,sans-serif;">
              <p style="margin:0 0 10px 0;">If these links expire, reply to this email and we'll help you out.</p>
              <p style="margin:0 0 10px 0;">Having trouble? Try another browser or copy the link address directly.</p>
              {{if .Brand.SupportEmail}}<p style="margin:0;">Support: <a href="mailto:{{.Brand.SupportEmail}}" style="color:#FBBF24;">{{.Brand.SupportEmail}}</a></p>{{end}}
            </td>
          </tr>
          <tr>
            <td align="center" style="padding:6px 24px 18px 24px;font-size:12px;">
              <a href="{{.Brand.FrontendURL}}" style="color:#9ca3af;text-decoration:none;margin-right:14px;">Store</a>
              {{if .Brand.InstagramURL}}<a href="{{.Brand.InstagramURL}}" style="color:#9ca3af;text-decoration:none;">Instagram</a>{{end}}
            </td>
          </tr>
        </table>
        <div style="color:#6b7280;font-size:12px;margin-top:14px;">&copy; {{.Year}} KFI Music</div>
      </td>
    </tr>
  </table>
</body>
</html>
`
