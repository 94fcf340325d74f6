package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether a sender bypasses classification.
// An entry "example.com" matches that domain only; ".example.com" also matches its subdomains.
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		if domain = strings.ToLower(strings.TrimSpace(domain)); domain != "" {
			normalizedDomains = append(normalizedDomains, domain)
		}
	}

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Info("Initialized whitelist checker", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// Domains returns the normalized whitelist entries
func (c *Checker) Domains() []string {
	return c.domains
}

// IsWhitelisted checks if the sender's domain is in the whitelist
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	domain, ok := senderDomain(from)
	if !ok {
		return false
	}

	for _, whitelisted := range c.domains {
		if matches(domain, whitelisted) {
			if c.logger != nil {
				c.logger.Debug("Domain is whitelisted",
					zap.String("domain", domain),
					zap.String("email", from))
			}
			return true
		}
	}

	return false
}

// senderDomain extracts the lowercased domain from a bare or display-name address
func senderDomain(from string) (string, bool) {
	address := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	}
	address = strings.Trim(address, "<>")

	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return "", false
	}
	return strings.ToLower(address[at+1:]), true
}

func matches(domain, entry string) bool {
	if strings.HasPrefix(entry, ".") {
		return domain == entry[1:] || strings.HasSuffix(domain, entry)
	}
	return domain == entry
}
