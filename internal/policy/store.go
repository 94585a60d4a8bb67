package policy

import (
	"fmt"
	"regexp"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Policy is the static safety configuration consulted by the gateway.
// It is loaded once at startup and never mutated afterwards.
type Policy struct {
	// ForbiddenTerms are matched as lower-case substrings, in this order.
	ForbiddenTerms []string `yaml:"forbiddenTerms"`
	// AllowedHosts is the exact, case-sensitive destination allowlist.
	AllowedHosts []string `yaml:"allowedHosts"`
	// PrivatePatterns are hostname patterns that are always blocked.
	PrivatePatterns []string `yaml:"privatePatterns"`
	// MaxRequestsPerMinute is the per-caller ceiling of the rate limiter.
	MaxRequestsPerMinute int `yaml:"maxRequestsPerMinute"`
}

// Default returns the built-in policy.
func Default() *Policy {
	return &Policy{
		ForbiddenTerms: []string{
			"shame", "stupid", "idiot", "worthless", "failure", "pathetic", "loser",
		},
		AllowedHosts: []string{
			"api.notion.com",
			"notion.so",
			"api.anthropic.com",
			"api.perplexity.ai",
			"thedankoe.com",
			"letters.thedankoe.com",
			"api.github.com",
			"raw.githubusercontent.com",
		},
		PrivatePatterns: []string{
			`^127\.`,
			`^192\.168\.`,
			`^10\.`,
			`^172\.(1[6-9]|2[0-9]|3[0-1])\.`,
			`(?i)^localhost$`,
			`^0\.0\.0\.0$`,
		},
		MaxRequestsPerMinute: 60,
	}
}

// Load reads a YAML policy file and overlays it on the defaults. Lists present
// in the file replace the default list rather than extending it. An empty path
// yields the defaults.
func Load(fs afero.Fs, path string) (*Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var override Policy
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	if override.ForbiddenTerms != nil {
		p.ForbiddenTerms = override.ForbiddenTerms
	}
	if override.AllowedHosts != nil {
		p.AllowedHosts = override.AllowedHosts
	}
	if override.PrivatePatterns != nil {
		p.PrivatePatterns = override.PrivatePatterns
	}
	if override.MaxRequestsPerMinute > 0 {
		p.MaxRequestsPerMinute = override.MaxRequestsPerMinute
	}

	if _, err := p.CompilePrivatePatterns(); err != nil {
		return nil, err
	}
	return p, nil
}

// CompilePrivatePatterns compiles PrivatePatterns in order.
func (p *Policy) CompilePrivatePatterns() ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(p.PrivatePatterns))
	for _, pat := range p.PrivatePatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid private pattern %q: %w", pat, err)
		}
		out = append(out, re)
	}
	return out, nil
}
