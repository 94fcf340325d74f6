package filter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// maxMultipartDepth bounds recursion into nested multipart bodies
const maxMultipartDepth = 5

var (
	htmlTagPattern = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)
	wordDecoder    = &mime.WordDecoder{CharsetReader: charsetReader}
)

// charsetReader converts r from the named charset to UTF-8
func charsetReader(charset string, r io.Reader) (io.Reader, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(r), nil
}

// decodeEncodedHeader decodes RFC 2047 encoded words in a header value
func decodeEncodedHeader(value string) (string, error) {
	return wordDecoder.DecodeHeader(value)
}

// extractTextFromMessage returns the readable text of a message.
// text/plain parts are preferred; text/html parts are used with tags stripped when no plain part exists.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	header := textproto.MIMEHeader(msg.Header)
	plain, markup, err := extractParts(header, msg.Body, 0)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(plain) != "" {
		return plain, nil
	}
	if strings.TrimSpace(markup) != "" {
		return stripHTML(markup), nil
	}
	return "", nil
}

// extractParts walks a MIME entity and collects its plain and html text
func extractParts(header textproto.MIMEHeader, body io.Reader, depth int) (string, string, error) {
	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		// Missing or malformed Content-Type defaults to text/plain
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" || depth >= maxMultipartDepth {
			return "", "", nil
		}
		return extractMultipart(multipart.NewReader(body, boundary), depth)
	}

	if mediaType != "text/plain" && mediaType != "text/html" {
		return "", "", nil
	}
	if strings.EqualFold(header.Get("Content-Disposition"), "attachment") ||
		strings.HasPrefix(strings.ToLower(header.Get("Content-Disposition")), "attachment;") {
		return "", "", nil
	}

	text, err := decodeBody(body, header.Get("Content-Transfer-Encoding"), params["charset"])
	if err != nil {
		return "", "", err
	}
	if mediaType == "text/html" {
		return "", text, nil
	}
	return text, "", nil
}

func extractMultipart(mr *multipart.Reader, depth int) (string, string, error) {
	var plain, markup strings.Builder
	for {
		part, err := mr.NextRawPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A truncated multipart body still yields the parts read so far
			if plain.Len() > 0 || markup.Len() > 0 {
				break
			}
			return "", "", fmt.Errorf("failed to read multipart body: %w", err)
		}

		p, h, err := extractParts(part.Header, part, depth+1)
		part.Close()
		if err != nil {
			continue
		}
		appendText(&plain, p)
		appendText(&markup, h)
	}
	return plain.String(), markup.String(), nil
}

func appendText(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(text)
}

// decodeBody undoes the transfer encoding and converts the charset to UTF-8
func decodeBody(body io.Reader, transferEncoding, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	}

	decoded, err := charsetReader(charset, body)
	if err != nil {
		// Unknown charsets are read as-is
		decoded = body
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, decoded); err != nil {
		return "", fmt.Errorf("failed to decode body: %w", err)
	}
	return buf.String(), nil
}

// stripHTML removes markup so tag and attribute names are not classified as words
func stripHTML(markup string) string {
	return html.UnescapeString(htmlTagPattern.ReplaceAllString(markup, " "))
}
