package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const googleTokenURL = "https://oauth2.googleapis.com/token"

// SMTPConfig configures the SMTP transport. OAuth fields take precedence
// over Username/Password when ClientID and RefreshToken are set.
type SMTPConfig struct {
	Host         string `env:"HOST"`
	Port         int    `env:"PORT" envDefault:"465"`
	ImplicitTLS  bool   `env:"IMPLICIT_TLS" envDefault:"true"`
	From         string `env:"FROM"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	ClientID     string `env:"OAUTH_CLIENT_ID"`
	ClientSecret string `env:"OAUTH_CLIENT_SECRET"`
	RefreshToken string `env:"OAUTH_REFRESH_TOKEN"`
	TokenURL     string `env:"OAUTH_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
}

// Enabled reports whether enough is configured to talk to a server.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

func (c SMTPConfig) usesOAuth() bool {
	return c.ClientID != "" && c.RefreshToken != ""
}

// SMTPNotifier sends mail through an SMTP server, one connection per
// message.
type SMTPNotifier struct {
	cfg    SMTPConfig
	tokens oauth2.TokenSource
	dialer net.Dialer

	mu     sync.RWMutex
	closed bool
}

// NewSMTPNotifier validates cfg and prepares the OAuth2 token source when
// configured. Release it with Close.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if !cfg.Enabled() {
		return nil, errors.New("smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	n := &SMTPNotifier{cfg: cfg, dialer: net.Dialer{Timeout: 10 * time.Second}}
	if cfg.usesOAuth() {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = googleTokenURL
		}
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		}
		// the refresh token never changes; access tokens are cached until expiry
		n.tokens = oauth2.ReuseTokenSource(nil, oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken}))
	}
	return n, nil
}

// Close releases the notifier. Sends after Close fail with ErrClosed.
func (n *SMTPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return nil
}

func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	n.mu.RLock()
	closed := n.closed
	n.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	auth, err := n.auth()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	conn, err := n.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	tlsCfg := &tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}
	if n.cfg.ImplicitTLS {
		conn = tls.Client(conn, tlsCfg)
	}

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if !n.cfg.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsCfg); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(n.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(composeMessage(n.cfg.From, msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

func (n *SMTPNotifier) auth() (smtp.Auth, error) {
	if n.tokens != nil {
		tok, err := n.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("oauth2 access token: %w", err)
		}
		return xoauth2Auth{username: n.cfg.From, accessToken: tok.AccessToken}, nil
	}
	if n.cfg.Username != "" {
		return smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host), nil
	}
	return nil, nil
}

// xoauth2Auth implements the SASL XOAUTH2 mechanism used by Gmail.
type xoauth2Auth struct {
	username    string
	accessToken string
}

func (a xoauth2Auth) Start(*smtp.ServerInfo) (string, []byte, error) {
	return "XOAUTH2", []byte("user=" + a.username + "\x01auth=Bearer " + a.accessToken + "\x01\x01"), nil
}

func (a xoauth2Auth) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		// the server sent an error challenge; an empty reply makes it fail the exchange
		return []byte{}, nil
	}
	return nil, nil
}

func composeMessage(from string, msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString("\r\n")
	encoded := base64.StdEncoding.EncodeToString([]byte(msg.HTML))
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
	return b.Bytes()
}
