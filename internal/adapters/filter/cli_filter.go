package filter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/coastguard/svm-spam-filter/internal/core"
	"github.com/coastguard/svm-spam-filter/internal/utils"
	"go.uber.org/zap"
)

// CliFilter implements a command-line interface for spam detection
type CliFilter struct {
	service *core.SpamFilterService
	limiter *utils.TextLimiter
	logger  *zap.Logger
	out     io.Writer
	verbose bool
}

// NewCliFilter creates a new CLI filter that reports to out
func NewCliFilter(service *core.SpamFilterService, limiter *utils.TextLimiter, logger *zap.Logger, out io.Writer, verbose bool) *CliFilter {
	return &CliFilter{
		service: service,
		limiter: limiter,
		logger:  logger,
		out:     out,
		verbose: verbose,
	}
}

// ReadEmail parses an RFC 5322 message
func (f *CliFilter) ReadEmail(r io.Reader) (*core.Email, error) {
	msg, err := mail.ReadMessage(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}

	text, err := extractTextFromMessage(msg)
	if err != nil {
		return nil, err
	}

	subject := msg.Header.Get("Subject")
	if decoded, err := decodeEncodedHeader(subject); err == nil {
		subject = decoded
	}

	var to []string
	if list, err := msg.Header.AddressList("To"); err == nil {
		for _, addr := range list {
			to = append(to, addr.Address)
		}
	}

	from := msg.Header.Get("From")
	if addr, err := mail.ParseAddress(from); err == nil {
		from = addr.Address
	}

	email := &core.Email{
		From:    from,
		To:      to,
		Subject: f.limiter.Sanitize(subject),
		Body:    f.limiter.Limit(text),
		Headers: make(map[string][]string, len(msg.Header)),
	}
	for k, v := range msg.Header {
		email.Headers[k] = v
	}
	return email, nil
}

// ProcessEmail processes an email and displays the results
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.EmailVerdict, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.From))

	fmt.Fprintf(f.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(f.out, "From: %s\n", email.From)
	fmt.Fprintf(f.out, "To: %s\n", strings.Join(email.To, ", "))
	fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))

	if f.verbose {
		preview := []rune(email.Body)
		if len(preview) > 500 {
			preview = append(preview[:500], []rune("...")...)
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", string(preview))
	}

	startTime := time.Now()
	verdict, err := f.service.AnalyzeEmail(ctx, email)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		fmt.Fprintf(f.out, "Error: %v\n", err)
		return nil, err
	}
	duration := time.Since(startTime)

	fmt.Fprintf(f.out, "\n=== Results ===\n")
	if verdict.Whitelisted {
		fmt.Fprintf(f.out, "Is spam: false (sender domain is whitelisted)\n")
		fmt.Fprintf(f.out, "Processing time: %v\n", duration)
		return verdict, nil
	}

	fmt.Fprintf(f.out, "Prediction: %s\n", verdict.Result.Prediction)
	fmt.Fprintf(f.out, "Is spam: %t\n", verdict.IsSpam)
	fmt.Fprintf(f.out, "Raw score: %.4f\n", verdict.Result.RawScore)
	fmt.Fprintf(f.out, "Confidence: %.2f%%\n", verdict.Result.ConfidencePercentage)
	fmt.Fprintf(f.out, "Processing time: %v\n", duration)

	return verdict, nil
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
