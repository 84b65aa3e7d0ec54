package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

type templatePair struct {
	subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

var templates = map[Purpose]templatePair{
	PurposeVerify: {
		subject: "Verify your email address",
		text: texttemplate.Must(texttemplate.New("verify.txt").Parse(
			`Hello {{.name}},

Your verification code is {{.otp}}.
It expires in 10 minutes. If you did not create an account, ignore this message.
`)),
		html: htmltemplate.Must(htmltemplate.New("verify.html").Parse(
			`<div style="font-family: Arial, sans-serif; max-width: 520px; margin: 0 auto;">
  <h2>Hello {{.name}},</h2>
  <p>Your verification code is:</p>
  <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">{{.otp}}</div>
  <p>It expires in 10 minutes. If you did not create an account, ignore this message.</p>
</div>`)),
	},
	PurposeReset: {
		subject: "Password reset request",
		text: texttemplate.Must(texttemplate.New("reset.txt").Parse(
			`Hello {{.name}},

Use the code {{.otp}} to reset your password.
It expires in 10 minutes. If you did not request this change, you can ignore this email.
`)),
		html: htmltemplate.Must(htmltemplate.New("reset.html").Parse(
			`<div style="font-family: Arial, sans-serif; max-width: 520px; margin: 0 auto;">
  <h3>Password reset requested</h3>
  <p>Hello {{.name}}, use the following code to reset your password:</p>
  <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">{{.otp}}</div>
  <p>It expires in 10 minutes. If you did not request this change, you can ignore this email.</p>
</div>`)),
	},
}

// Render returns subject, plain text and HTML bodies for msg.
func Render(msg Message) (subject, text, html string, err error) {
	tp, ok := templates[msg.Purpose]
	if !ok {
		return "", "", "", fmt.Errorf("unknown mail purpose %q", msg.Purpose)
	}
	var tb, hb bytes.Buffer
	if err := tp.text.Execute(&tb, msg.Context); err != nil {
		return "", "", "", fmt.Errorf("render text %s: %w", msg.Purpose, err)
	}
	if err := tp.html.Execute(&hb, msg.Context); err != nil {
		return "", "", "", fmt.Errorf("render html %s: %w", msg.Purpose, err)
	}
	subject = msg.Subject
	if subject == "" {
		subject = tp.subject
	}
	return subject, tb.String(), hb.String(), nil
}
