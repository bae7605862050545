package pdfview

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrSourceNotAllowed is returned for document links outside the allowed hosts
var ErrSourceNotAllowed = errors.New("document source not allowed")

// SourcePolicy lists the hosts documents may be fetched from. Only http
// and https links are accepted.
type SourcePolicy struct {
	hosts map[string]struct{}
}

// NewSourcePolicy creates a policy from hosts ("cdn.example.com",
// "files.example.com:8443") or base URLs whose host is allowed. Empty
// entries are skipped.
func NewSourcePolicy(entries ...string) *SourcePolicy {
	p := &SourcePolicy{hosts: make(map[string]struct{})}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "://") {
			u, err := url.Parse(entry)
			if err != nil || u.Host == "" {
				continue
			}
			entry = u.Host
		}
		p.hosts[strings.ToLower(entry)] = struct{}{}
	}
	return p
}

// Hosts returns the number of allowed hosts
func (p *SourcePolicy) Hosts() int {
	if p == nil {
		return 0
	}
	return len(p.hosts)
}

// Allow checks raw against the policy. A nil policy allows nothing.
func (p *SourcePolicy) Allow(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceNotAllowed, err)
	}
	return p.allowURL(u)
}

func (p *SourcePolicy) allowURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrSourceNotAllowed, u.Scheme)
	}
	if p == nil || u.Host == "" || u.User != nil {
		return fmt.Errorf("%w: host %q", ErrSourceNotAllowed, u.Host)
	}
	host := strings.ToLower(u.Host)
	if _, ok := p.hosts[host]; ok {
		return nil
	}
	// "cdn.example.com" also covers "cdn.example.com:443"
	if _, ok := p.hosts[strings.ToLower(u.Hostname())]; ok {
		return nil
	}
	return fmt.Errorf("%w: host %q", ErrSourceNotAllowed, u.Host)
}
