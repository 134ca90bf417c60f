package main

import (
	"testing"

	"saripos/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.Config
	}{
		{"short secret", config.Config{AuthSecret: "short", ManagerPIN: "739154"}},
		{"sequential pin", config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "123456"}},
		{"repeated pin", config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "777777"}},
		{"short pin", config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "12"}},
	}
	for _, tc := range cases {
		if err := validateSecurityConfig(tc.cfg); err == nil {
			t.Fatalf("%s: expected weak security config to be rejected", tc.name)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
