package transport

import (
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"
)

// buildMIME renders a Message as an RFC 5322 message with a
// multipart/alternative body when both text and HTML parts are present.
func buildMIME(msg *Message) ([]byte, error) {
	var b strings.Builder

	writeHeader(&b, "From", msg.From)
	writeHeader(&b, "To", msg.To)
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&b, "Date", time.Now().Format(time.RFC1123Z))
	if msg.ID != "" {
		writeHeader(&b, "Message-ID", fmt.Sprintf("<%s@newsletter>", msg.ID))
	}
	for k, v := range msg.Headers {
		writeHeader(&b, k, v)
	}
	writeHeader(&b, "MIME-Version", "1.0")

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		var body strings.Builder
		w := multipart.NewWriter(&body)
		writeHeader(&b, "Content-Type", `multipart/alternative; boundary="`+w.Boundary()+`"`)
		b.WriteString("\r\n")

		if err := writePart(w, "text/plain; charset=utf-8", msg.TextBody); err != nil {
			return nil, err
		}
		if err := writePart(w, "text/html; charset=utf-8", msg.HTMLBody); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("close multipart body: %w", err)
		}
		b.WriteString(body.String())

	case msg.HTMLBody != "":
		writeHeader(&b, "Content-Type", "text/html; charset=utf-8")
		b.WriteString("\r\n")
		b.WriteString(msg.HTMLBody)

	default:
		writeHeader(&b, "Content-Type", "text/plain; charset=utf-8")
		b.WriteString("\r\n")
		b.WriteString(msg.TextBody)
	}

	return []byte(b.String()), nil
}

func writeHeader(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

func writePart(w *multipart.Writer, contentType, body string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create MIME part: %w", err)
	}
	if _, err := part.Write([]byte(body)); err != nil {
		return fmt.Errorf("write MIME part: %w", err)
	}
	return nil
}
