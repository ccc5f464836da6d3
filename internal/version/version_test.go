package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	v := Get()
	if v == "" {
		t.Fatal("version is empty")
	}
	if strings.ContainsAny(v, " \n\t") {
		t.Errorf("version %q contains whitespace", v)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "sillysearch/"+Get() {
		t.Errorf("UserAgent() = %q", got)
	}
}
