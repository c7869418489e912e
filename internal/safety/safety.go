// Package safety screens targets before a mapping is committed. The
// contract is fail-closed: when a classifier cannot decide, the target is
// treated as unsafe.
package safety

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

type Verdict struct {
	Safe   bool
	Reason string
}

// Classifier decides whether a target may be shortened. Implementations may
// call out to external reputation services; callers must wrap them with
// Classify so errors and timeouts read as unsafe.
type Classifier interface {
	Classify(ctx context.Context, target string) (Verdict, error)
}

// Classify applies the fail-closed contract around any classifier.
func Classify(ctx context.Context, c Classifier, target string) Verdict {
	v, err := c.Classify(ctx, target)
	if err != nil {
		return Verdict{Safe: false, Reason: "unable to verify target safety"}
	}
	return v
}

var maliciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)phish(ing)?`),
	regexp.MustCompile(`(?i)\.(ru|cn)/login`),
	regexp.MustCompile(`(?i)bank.*\.tk`),
	regexp.MustCompile(`(?i)secure.*\.cf`),
}

// PatternClassifier screens targets against known malicious patterns.
type PatternClassifier struct{}

func (PatternClassifier) Classify(_ context.Context, target string) (Verdict, error) {
	for _, p := range maliciousPatterns {
		if p.MatchString(target) {
			return Verdict{Safe: false, Reason: "target matches known malicious patterns"}, nil
		}
	}
	return Verdict{Safe: true}, nil
}

// ValidateTarget rejects targets that are not plain http(s) resources or
// that point at internal infrastructure.
func ValidateTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http and https targets are allowed")
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("invalid url")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("internal targets are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("internal targets are not allowed")
		}
	}
	return nil
}
