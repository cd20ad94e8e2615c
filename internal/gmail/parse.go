package gmail

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"

	"mailsweep/internal/model"
)

var (
	headerLinkRe = regexp.MustCompile(`<(https?://[^>]+)>`)
	bodyLinkRe   = regexp.MustCompile(`(?i)https?://[^\s"'<>]*unsubscribe[^\s"'<>]*`)
)

// headerValue performs a case-insensitive lookup for a header value.
func headerValue(headers []messageHeader, name string) string {
	lower := strings.ToLower(name)
	for _, h := range headers {
		if strings.ToLower(h.Name) == lower {
			return h.Value
		}
	}
	return ""
}

// parseFrom splits a From header into display name and address. An
// unparseable header degrades to the raw string as the sender name rather
// than dropping the message.
func parseFrom(s string) (name, email string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}

	addr, err := mail.ParseAddress(s)
	if err != nil {
		if strings.Contains(s, "@") && !strings.ContainsAny(s, "<> ") {
			return s, strings.ToLower(s)
		}
		return s, ""
	}

	name = addr.Name
	if name == "" {
		name = addr.Address
	}
	return name, strings.ToLower(addr.Address)
}

// unsubscribeLinkFromHeader extracts the first http(s) URL from a
// List-Unsubscribe header. mailto entries are skipped.
func unsubscribeLinkFromHeader(value string) string {
	if m := headerLinkRe.FindStringSubmatch(value); m != nil {
		return m[1]
	}
	return ""
}

// unsubscribeLinkFromBody is the best-effort fallback scan over decoded body
// text for an unsubscribe URL.
func unsubscribeLinkFromBody(body string) string {
	return bodyLinkRe.FindString(body)
}

// decodeBodyText collects the decoded text content of a message payload,
// recursing into multipart messages. Undecodable parts are skipped.
func decodeBodyText(part *messagePart) string {
	if part == nil {
		return ""
	}

	var b strings.Builder
	collectBodyText(part, &b)
	return b.String()
}

func collectBodyText(part *messagePart, b *strings.Builder) {
	if part.MimeType == "text/plain" || part.MimeType == "text/html" {
		if part.Body != nil && part.Body.Data != "" {
			if data, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data); err == nil {
				b.Write(data)
				b.WriteByte('\n')
			}
		}
	}
	for i := range part.Parts {
		collectBodyText(&part.Parts[i], b)
	}
}

// summarize maps a raw message detail to the transient MessageSummary the
// pipeline works with.
func summarize(msg *messageDetail, accountID, sourceLabel string) model.MessageSummary {
	var headers []messageHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	name, email := parseFrom(headerValue(headers, "From"))

	unsubHeader := headerValue(headers, "List-Unsubscribe")
	link := unsubscribeLinkFromHeader(unsubHeader)
	if link == "" {
		link = unsubscribeLinkFromBody(decodeBodyText(msg.Payload))
	}

	return model.MessageSummary{
		ID:                 msg.ID,
		Sender:             name,
		SenderEmail:        email,
		Subject:            headerValue(headers, "Subject"),
		Snippet:            msg.Snippet,
		HasListUnsubscribe: unsubHeader != "",
		UnsubscribeLink:    link,
		SourceLabel:        sourceLabel,
		AccountID:          accountID,
	}
}
