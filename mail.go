package authcore

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type mailKind int

const (
	mailPasswordReset mailKind = iota
	mailSetPassword
	mailEmailVerify
)

var mailSubjects = map[mailKind]string{
	mailPasswordReset: "Reset your %s password",
	mailSetPassword:   "Set a password for your %s account",
	mailEmailVerify:   "Verify your %s email address",
}

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "layout"}}<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
{{template "body" .}}
<p><a href="{{.Link}}">{{.Action}}</a></p>
<p>This link expires in {{.Expires}}. If you did not ask for it, you can ignore this email.</p>
<p>{{.Product}}</p>
</body></html>{{end}}
{{define "body"}}<p>{{.Lead}}</p>{{end}}
`))

type mailData struct {
	Name    string
	Lead    string
	Action  string
	Link    string
	Expires string
	Product string
}

var mailCopy = map[mailKind]struct{ lead, action string }{
	mailPasswordReset: {"We received a request to reset the password of your account.", "Reset password"},
	mailSetPassword:   {"Your account does not have a password yet. Use the link below to set one.", "Set password"},
	mailEmailVerify:   {"Please confirm that this is your email address.", "Verify email"},
}

// tokenLink appends token as the "token" query parameter of callbackURL.
func tokenLink(callbackURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(callbackURL))
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", ValidationError("callbackUrl", "callback url must be an absolute http(s) url")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// validity renders ttl as "1 day", "3 days" or "10 minutes".
func validity(ttl time.Duration) string {
	var epoch time.Time
	return strings.TrimSpace(humanize.RelTime(epoch, epoch.Add(ttl), "", ""))
}

func renderMail(kind mailKind, product, to, name, link string, ttl time.Duration) (MailMessage, error) {
	c := mailCopy[kind]
	var buf bytes.Buffer
	err := mailTemplates.ExecuteTemplate(&buf, "layout", mailData{
		Name:    name,
		Lead:    c.lead,
		Action:  c.action,
		Link:    link,
		Expires: validity(ttl),
		Product: product,
	})
	if err != nil {
		return MailMessage{}, fmt.Errorf("render mail: %w", err)
	}
	return MailMessage{
		To:      to,
		Subject: fmt.Sprintf(mailSubjects[kind], product),
		HTML:    buf.String(),
	}, nil
}
