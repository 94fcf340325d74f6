package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/coastguard/svm-spam-filter/internal/utils"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

const analysisErrorHeader = "X-Spam-Analysis-Error"

// PostfixConfig holds the content filter settings
type PostfixConfig struct {
	ListenAddress    string
	BlockSpam        bool
	SpamHeader       string
	ScoreHeader      string
	ConfidenceHeader string
	PostfixAddress   string
	PostfixPort      int
	PostfixEnabled   bool
	SubjectPrefix    string
	ModifySubject    bool
	AnalysisTimeout  time.Duration
}

// PostfixFilter implements a Postfix content filter
type PostfixFilter struct {
	service *core.SpamFilterService
	limiter *utils.TextLimiter
	logger  *zap.Logger
	cfg     PostfixConfig
	server  *smtp.Server
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(
	service *core.SpamFilterService,
	limiter *utils.TextLimiter,
	logger *zap.Logger,
	cfg PostfixConfig,
) *PostfixFilter {
	// If subject prefix is not set but modify subject is enabled, use default prefix
	if cfg.SubjectPrefix == "" && cfg.ModifySubject {
		cfg.SubjectPrefix = "[**SPAM**] "
	}
	if cfg.SpamHeader == "" {
		cfg.SpamHeader = "X-Spam-Status"
	}
	if cfg.ScoreHeader == "" {
		cfg.ScoreHeader = "X-Spam-Score"
	}
	if cfg.ConfidenceHeader == "" {
		cfg.ConfidenceHeader = "X-Spam-Confidence"
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = 10 * time.Second
	}

	return &PostfixFilter{
		service: service,
		limiter: limiter,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start starts the Postfix filter service
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.cfg.ListenAddress
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50

	listener, err := net.Listen("tcp", f.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.cfg.ListenAddress, err)
	}

	f.logger.Info("Postfix filter starting", zap.String("address", listener.Addr().String()))

	go func() {
		if err := f.server.Serve(listener); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the Postfix filter service
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail classifies an email without relaying it
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.EmailVerdict, error) {
	return f.service.AnalyzeEmail(ctx, email)
}

// sendToPostfix re-injects the processed message into Postfix
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.cfg.PostfixAddress, fmt.Sprint(f.cfg.PostfixPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message has already been accepted
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// buildEmail parses raw message data into the classifier's Email
func (f *PostfixFilter) buildEmail(sender string, recipients []string, msg *mail.Message) (*core.Email, error) {
	text, err := extractTextFromMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text content: %w", err)
	}

	subject := msg.Header.Get("Subject")
	if decoded, err := decodeEncodedHeader(subject); err == nil {
		subject = decoded
	}

	email := &core.Email{
		From:    sender,
		To:      recipients,
		Subject: f.limiter.Sanitize(subject),
		Body:    f.limiter.Limit(text),
		Headers: make(map[string][]string, len(msg.Header)),
	}
	for key, values := range msg.Header {
		email.Headers[key] = values
	}
	return email, nil
}

// headerBlock adds the verdict headers and optionally tags the subject
func (f *PostfixFilter) headerBlock(rawHeader []byte, verdict *core.EmailVerdict, analysisErr error) []byte {
	var out bytes.Buffer

	fmt.Fprintf(&out, "%s: %t\r\n", f.cfg.SpamHeader, verdict.IsSpam)
	if verdict.Result != nil {
		fmt.Fprintf(&out, "%s: %.4f\r\n", f.cfg.ScoreHeader, verdict.Result.RawScore)
		fmt.Fprintf(&out, "%s: %.2f\r\n", f.cfg.ConfidenceHeader, verdict.Result.ConfidencePercentage)
	}
	if analysisErr != nil {
		fmt.Fprintf(&out, "%s: %s\r\n", analysisErrorHeader, sanitizeHeaderValue(analysisErr.Error()))
	}

	// Verdict headers supplied by the sender are dropped
	ours := []string{f.cfg.SpamHeader, f.cfg.ScoreHeader, f.cfg.ConfidenceHeader, analysisErrorHeader}
	tagSubject := verdict.IsSpam && f.cfg.ModifySubject && f.cfg.SubjectPrefix != ""

	for _, field := range splitHeaderFields(rawHeader) {
		name := field.name
		switch {
		case containsFold(ours, name):
			continue
		case tagSubject && strings.EqualFold(name, "Subject"):
			subject, err := decodeEncodedHeader(field.value())
			if err != nil {
				subject = field.value()
			}
			if strings.HasPrefix(subject, f.cfg.SubjectPrefix) {
				out.Write(field.raw)
				continue
			}
			fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", f.cfg.SubjectPrefix+subject))
			tagSubject = false
		default:
			out.Write(field.raw)
		}
	}
	if tagSubject {
		// Message had no Subject header
		fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", strings.TrimSpace(f.cfg.SubjectPrefix)))
	}

	out.WriteString("\r\n")
	return out.Bytes()
}

// headerField is one header including its folded continuation lines
type headerField struct {
	name string
	raw  []byte
}

func (h headerField) value() string {
	_, v, _ := strings.Cut(string(h.raw), ":")
	v = strings.ReplaceAll(v, "\r\n", "")
	v = strings.ReplaceAll(v, "\n", "")
	return strings.TrimSpace(v)
}

// splitHeaderFields splits a raw header block into fields, preserving order and bytes
func splitHeaderFields(raw []byte) []headerField {
	var fields []headerField
	for len(raw) > 0 {
		end := bytes.IndexByte(raw, '\n')
		var line []byte
		if end < 0 {
			line, raw = raw, nil
		} else {
			line, raw = raw[:end+1], raw[end+1:]
		}
		if len(bytes.TrimRight(line, "\r\n")) == 0 {
			continue
		}

		if (line[0] == ' ' || line[0] == '\t') && len(fields) > 0 {
			last := &fields[len(fields)-1]
			last.raw = append(last.raw, line...)
			continue
		}

		name, _, _ := bytes.Cut(line, []byte(":"))
		fields = append(fields, headerField{
			name: strings.TrimSpace(string(name)),
			raw:  append([]byte(nil), line...),
		})
	}

	// Every field ends in CRLF on the wire
	for i := range fields {
		r := bytes.TrimRight(fields[i].raw, "\r\n")
		fields[i].raw = append(r, '\r', '\n')
	}
	return fields
}

// splitMessage separates the raw header block from the body
func splitMessage(raw []byte) ([]byte, []byte) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+2], raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return raw[:i+1], raw[i+2:]
	}
	return raw, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func sanitizeHeaderValue(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

func senderDomain(sender string) string {
	if i := strings.LastIndex(sender, "@"); i >= 0 && i < len(sender)-1 {
		return sender[i+1:]
	}
	return "unknown"
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data classifies the message, then rejects or tags and relays it
func (s *smtpSession) Data(r io.Reader) error {
	f := s.filter

	rawData, err := io.ReadAll(r)
	if err != nil {
		f.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		f.logger.Error("Failed to parse email message", zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}

	domain := senderDomain(s.sender)

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.AnalysisTimeout)
	defer cancel()

	var verdict *core.EmailVerdict
	email, analysisErr := f.buildEmail(s.sender, s.recipients, msg)
	if analysisErr == nil {
		verdict, analysisErr = f.service.AnalyzeEmail(ctx, email)
	}
	if analysisErr != nil {
		// Analysis failures never reject mail
		f.logger.Error("Failed to analyze email",
			zap.Error(analysisErr),
			zap.String("sender", s.sender),
			zap.String("sender_domain", domain))
		verdict = &core.EmailVerdict{AnalyzedAt: time.Now().UTC()}
	}

	if verdict.IsSpam && f.cfg.BlockSpam {
		f.logger.Info("Rejecting spam email",
			zap.String("from", s.sender),
			zap.String("sender_domain", domain),
			zap.Float64("raw_score", verdict.Result.RawScore),
			zap.Float64("confidence_percentage", verdict.Result.ConfidencePercentage))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as spam (confidence: %.2f%%)", verdict.Result.ConfidencePercentage),
		}
	}

	rawHeader, body := splitMessage(rawData)
	var modified bytes.Buffer
	modified.Write(f.headerBlock(rawHeader, verdict, analysisErr))
	modified.Write(body)

	if f.cfg.PostfixEnabled {
		if err := f.sendToPostfix(s.sender, s.recipients, modified.Bytes()); err != nil {
			f.logger.Error("Failed to send email back to Postfix",
				zap.Error(err),
				zap.String("sender", s.sender))
			return &smtp.SMTPError{
				Code:         451,
				EnhancedCode: smtp.EnhancedCode{4, 4, 1},
				Message:      "Temporary relay failure",
			}
		}
	} else {
		f.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
	}

	fields := []zap.Field{
		zap.String("from", s.sender),
		zap.String("sender_domain", domain),
		zap.Bool("is_spam", verdict.IsSpam),
		zap.Bool("whitelisted", verdict.Whitelisted),
	}
	if verdict.Result != nil {
		fields = append(fields, zap.Float64("raw_score", verdict.Result.RawScore))
	}
	f.logger.Info("Processed email", fields...)

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
