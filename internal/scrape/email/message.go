package email

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const maxBodyBytes = 8 << 20

// Body is the decoded content of one message.
type Body struct {
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	Text      string
	HTML      string
}

// ParseMessage decodes an RFC 822 message, keeping the first text/plain and
// text/html parts. Attachments are skipped.
func ParseMessage(raw []byte) (Body, error) {
	var b Body
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return b, err
	}
	defer mr.Close()

	h := mr.Header
	b.MessageID, _ = h.MessageID()
	b.Subject, _ = h.Subject()
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		b.From = from[0].Address
	}
	b.Date, _ = h.Date()

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// keep whatever decoded before the broken part
			if b.Text == "" && b.HTML == "" {
				return b, err
			}
			break
		}
		ih, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := ih.ContentType()
		data, err := io.ReadAll(io.LimitReader(p.Body, maxBodyBytes))
		if err != nil {
			continue
		}
		switch strings.ToLower(ct) {
		case "text/html":
			if b.HTML == "" {
				b.HTML = string(data)
			}
		case "text/plain", "":
			if b.Text == "" {
				b.Text = string(data)
			}
		}
	}
	return b, nil
}
