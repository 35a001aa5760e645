package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Message es un correo ya renderizado, listo para cualquier transporte.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// LoginMeta describe el request que completó la verificación.
type LoginMeta struct {
	IP        string
	UserAgent string
	When      time.Time
}

const brandName = "MegaMart"

var otpHTML = template.Must(template.New("otp").Parse(`<div style="font-family:Arial,Helvetica,sans-serif;line-height:1.55;color:#111">
  <h2 style="margin:0 0 10px">Your {{.Brand}} verification code</h2>
  <p>Hi {{.Name}},</p>
  <p>Your one-time verification code is:</p>
  <div style="font-size:28px;font-weight:700;letter-spacing:4px;margin:10px 0 6px">{{.Code}}</div>
  <p style="margin:0 0 10px;color:#444">This code will expire in {{.Minutes}} minutes.</p>
  <p style="color:#666;font-size:12px">If you did not attempt to log in, you can safely ignore this email.</p>
</div>`))

var loginHTML = template.Must(template.New("login").Parse(`<div style="font-family:Arial,Helvetica,sans-serif;line-height:1.55;color:#111">
  <h2 style="margin:0 0 10px">Successful verification - Welcome to {{.Brand}}</h2>
  <p>Hi {{.Name}},</p>
  <p>Your login has been verified successfully. Welcome back to {{.Brand}}!</p>
  <ul>
    <li><strong>Time:</strong> {{.When}}</li>
    <li><strong>IP:</strong> {{.IP}}</li>
    <li><strong>Device:</strong> {{.UserAgent}}</li>
  </ul>
  <p>If this wasn't you, please reset your password immediately.</p>
  <p style="color:#666;font-size:12px;margin-top:16px">This is an automated message. Please do not reply.</p>
</div>`))

// RenderOTP arma el correo con el código de verificación.
func RenderOTP(to, name, code string, ttl time.Duration) (Message, error) {
	name = displayName(name)
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	text := fmt.Sprintf(
		"Hi %s,\n\nYour one-time verification code is: %s\nThis code will expire in %d minutes.\n\nIf you did not attempt to log in, please ignore this email.",
		name, code, minutes,
	)
	var html bytes.Buffer
	err := otpHTML.Execute(&html, map[string]any{
		"Brand":   brandName,
		"Name":    name,
		"Code":    code,
		"Minutes": minutes,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your %s verification code: %s", brandName, code),
		Text:    text,
		HTML:    html.String(),
	}, nil
}

// RenderLoginVerified arma el aviso de login verificado.
func RenderLoginVerified(to, name string, meta LoginMeta) (Message, error) {
	name = displayName(name)
	when := meta.When
	if when.IsZero() {
		when = time.Now()
	}
	whenStr := when.UTC().Format(time.RFC1123)
	ip := orUnknown(meta.IP)
	ua := orUnknown(meta.UserAgent)

	text := fmt.Sprintf(
		"Hi %s,\n\nYour login has been verified successfully. Welcome back to %s!\n\nTime: %s\nIP: %s\nDevice: %s\n\nIf this wasn't you, please reset your password immediately.",
		name, brandName, whenStr, ip, ua,
	)
	var html bytes.Buffer
	err := loginHTML.Execute(&html, map[string]any{
		"Brand":     brandName,
		"Name":      name,
		"When":      whenStr,
		"IP":        ip,
		"UserAgent": ua,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Successful verification - Welcome to %s", brandName),
		Text:    text,
		HTML:    html.String(),
	}, nil
}

func displayName(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return "there"
}

func orUnknown(s string) string {
	if v := strings.TrimSpace(s); v != "" {
		return v
	}
	return "unknown"
}
