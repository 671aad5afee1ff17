package routepath_test

import (
	"testing"

	"github.com/hamrah-app/hamrah/pkg/routepath"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/admin", "/admin"},
		{"/admin/", "/admin"},
		{"/admin//users", "/admin/users"},
		{"/admin/./users", "/admin/users"},
		{"/blog/../admin", "/admin"},
		{"admin", "/admin"},
		{"/admin?tab=2", "/admin"},
		{"/a/b/../../c", "/c"},
	}
	for _, tt := range tests {
		got, err := routepath.Canonicalize(tt.input)
		if err != nil {
			t.Errorf("Canonicalize(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCanonicalize_Rejections(t *testing.T) {
	for _, input := range []string{
		"/admin\\users",
		"/admin\x00",
		"/admin%00",
		"/admin%2",
		"/admin%GG",
		"/../secret",
		"/a/../../b",
	} {
		if _, err := routepath.Canonicalize(input); err == nil {
			t.Errorf("Canonicalize(%q) accepted a hostile path", input)
		}
	}
}

func TestValidateLocalRedirect(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"/dashboard", "/dashboard"},
		{"/admin/users?tab=2", "/admin/users?tab=2"},
		{"/a//b", "/a/b"},
	}
	for _, tt := range tests {
		got, err := routepath.ValidateLocalRedirect(tt.input)
		if err != nil {
			t.Errorf("ValidateLocalRedirect(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateLocalRedirect(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidateLocalRedirect_RejectsOpenRedirects(t *testing.T) {
	for _, input := range []string{
		"//evil.example",
		"https://evil.example/login",
		"http://evil.example",
		"dashboard",
		"",
	} {
		if _, err := routepath.ValidateLocalRedirect(input); err == nil {
			t.Errorf("ValidateLocalRedirect(%q) accepted an external target", input)
		}
	}
}
