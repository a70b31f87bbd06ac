package email

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (s *captureSender) DialAndSend(m ...*gomail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, m...)
	return nil
}

func newTestProvider(t *testing.T) (*SMTPProvider, *captureSender) {
	t.Helper()
	tm := NewTemplateManager()
	require.NoError(t, tm.AddTemplate("payout", "Booking #{{.BookingID}} net {{.Net}}"))

	p := NewSMTPProvider(&SMTPConfig{
		Host:      "smtp.test",
		Port:      587,
		FromEmail: "noreply@thetravelwild.com",
		FromName:  "The Travel Wild",
	}, tm)
	s := &captureSender{}
	p.dialer = s
	return p, s
}

func TestSMTPProvider_Send(t *testing.T) {
	p, s := newTestProvider(t)

	err := p.Send(context.Background(), &Email{
		To:      []string{"finance@thetravelwild.com"},
		Subject: "Payout Pending - Booking #42",
		Body:    "hello",
	})
	require.NoError(t, err)
	require.Len(t, s.messages, 1)

	m := s.messages[0]
	assert.Equal(t, []string{"Payout Pending - Booking #42"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"finance@thetravelwild.com"}, m.GetHeader("To"))
	assert.Contains(t, m.GetHeader("From")[0], "noreply@thetravelwild.com")

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "hello")
}

func TestSMTPProvider_SendTemplate(t *testing.T) {
	p, s := newTestProvider(t)

	err := p.SendTemplate(context.Background(), []string{"school@example.com"}, "subj", "payout",
		TemplateData{"BookingID": 7, "Net": "80.00"})
	require.NoError(t, err)
	require.Len(t, s.messages, 1)

	var buf bytes.Buffer
	_, err = s.messages[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Booking #7 net 80.00")

	err = p.SendTemplate(context.Background(), []string{"school@example.com"}, "subj", "missing", nil)
	assert.Error(t, err)
}

func TestSMTPProvider_Errors(t *testing.T) {
	p, s := newTestProvider(t)

	assert.ErrorIs(t, p.Send(context.Background(), &Email{Subject: "x"}), ErrNoRecipients)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Send(ctx, &Email{To: []string{"a@b.c"}}), context.Canceled)

	s.err = errors.New("connection refused")
	err := p.Send(context.Background(), &Email{To: []string{"a@b.c"}})
	assert.ErrorContains(t, err, "connection refused")

	bad := NewSMTPProvider(&SMTPConfig{Port: 25}, nil)
	assert.Error(t, bad.Validate())
}

func TestTemplateManager_LoadTemplates(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/release.txt": {Data: []byte("Transaction {{.ID}} released")},
		"templates/readme.md":   {Data: []byte("ignored")},
	}

	tm := NewTemplateManager()
	require.NoError(t, tm.LoadTemplates(fsys, "templates"))
	assert.Equal(t, []string{"release"}, tm.TemplateNames())

	out, err := tm.Render("release", TemplateData{"ID": "t-1"})
	require.NoError(t, err)
	assert.Equal(t, "Transaction t-1 released", out)

	_, err = tm.Render("release", TemplateData{})
	assert.Error(t, err, "missing keys must fail rendering")
}
