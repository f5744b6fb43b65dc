// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"net"
	"strings"
	"testing"
)

func TestIsPrivateIP(t *testing.T) {
	private := []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.1.1", "169.254.1.1", "100.64.0.1", "::1", "fe80::1", "fc00::1"}
	for _, s := range private {
		if !IsPrivateIP(net.ParseIP(s)) {
			t.Errorf("IsPrivateIP(%s) = false, want true", s)
		}
	}
	public := []string{"8.8.8.8", "1.1.1.1", "2606:4700:4700::1111"}
	for _, s := range public {
		if IsPrivateIP(net.ParseIP(s)) {
			t.Errorf("IsPrivateIP(%s) = true, want false", s)
		}
	}
}

func TestValidateWebhookURLRejects(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"bad scheme", "ftp://example.com/hook"},
		{"no hostname", "https:///hook"},
		{"localhost", "http://localhost:8080/hook"},
		{"localhost subdomain", "http://api.localhost/hook"},
		{"loopback ip", "http://127.0.0.1/hook"},
		{"private ip", "http://192.168.0.10/hook"},
		{"ipv6 loopback", "http://[::1]/hook"},
		{"too long", "https://example.com/" + strings.Repeat("a", MaxWebhookURLLength)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateWebhookURL(tt.url); err == nil {
				t.Errorf("ValidateWebhookURL(%q) = nil, want error", tt.url)
			}
		})
	}
}

func TestValidateWebhookURLAcceptsPublicIP(t *testing.T) {
	// A raw public IP skips DNS resolution, keeping the test hermetic.
	if err := ValidateWebhookURL("https://8.8.8.8/hook"); err != nil {
		t.Errorf("ValidateWebhookURL(public IP) = %v, want nil", err)
	}
}
