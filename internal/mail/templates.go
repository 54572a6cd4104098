package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

var (
	activationTmpl = template.Must(template.New("activation").Parse(`<h1>Welcome {{.FirstName}}!</h1>
<p>Please use the following link to activate your account:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>The link expires in {{.Expiry}}.</p>`))

	resetTmpl = template.Must(template.New("reset").Parse(`<h1>Password reset</h1>
<p>Please use the following link to reset your password:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>The link expires in {{.Expiry}}. If you did not ask for a reset you can ignore this mail.</p>`))
)

// Templates renders the account mails. Links point at the client
// application, which posts the token back to the API.
type Templates struct {
	ClientURL string
}

type linkData struct {
	FirstName string
	Link      string
	Expiry    string
}

func (t Templates) ActivationLink(token string) string {
	return strings.TrimRight(t.ClientURL, "/") + "/users/activate/" + token
}

func (t Templates) ResetLink(token string) string {
	return strings.TrimRight(t.ClientURL, "/") + "/users/password/reset/" + token
}

// Activation builds the mail sent after registration.
func (t Templates) Activation(to, firstName, token, expiry string) (Message, error) {
	var b bytes.Buffer
	if err := activationTmpl.Execute(&b, linkData{FirstName: firstName, Link: t.ActivationLink(token), Expiry: expiry}); err != nil {
		return Message{}, fmt.Errorf("render activation mail: %w", err)
	}
	return Message{To: to, Subject: "Account activation link", HTML: b.String()}, nil
}

// Reset builds the forgot-password mail.
func (t Templates) Reset(to, token, expiry string) (Message, error) {
	var b bytes.Buffer
	if err := resetTmpl.Execute(&b, linkData{Link: t.ResetLink(token), Expiry: expiry}); err != nil {
		return Message{}, fmt.Errorf("render reset mail: %w", err)
	}
	return Message{To: to, Subject: "Password reset link", HTML: b.String()}, nil
}
