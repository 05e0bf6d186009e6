package version

import (
	"strings"
	"testing"
)

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	if !strings.HasPrefix(ua, "venice-go/") {
		t.Errorf("UserAgent = %q", ua)
	}
	if strings.TrimPrefix(ua, "venice-go/") == "" {
		t.Errorf("UserAgent missing version: %q", ua)
	}
}

func TestVersionOverride(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "9.9.9"
	if got := UserAgent(); got != "venice-go/9.9.9" {
		t.Errorf("UserAgent = %q", got)
	}
}
