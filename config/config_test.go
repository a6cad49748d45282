package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseFullConfig(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
pings:
  - name: gateway
    host: 192.168.1.1
    types: [icmp]
  - name: resolver
    host: 8.8.8.8
    types: [icmp, dns-udp, dns-tcp]
    interval: 30s
  - name: web
    host: example.com
    types: [tcp]
    port: 443
modem:
  host: 192.168.100.1
  password: hunter2
ip: true
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(cfg.Pings) != 3 {
		t.Fatalf("got %d pings, want 3", len(cfg.Pings))
	}
	if cfg.Pings[0].Interval != DefaultPingInterval {
		t.Fatalf("pings[0].Interval = %v, want default %v", cfg.Pings[0].Interval, DefaultPingInterval)
	}
	if cfg.Pings[1].Interval != 30*time.Second {
		t.Fatalf("pings[1].Interval = %v, want 30s", cfg.Pings[1].Interval)
	}
	if cfg.Pings[2].Port != 443 {
		t.Fatalf("pings[2].Port = %d, want 443", cfg.Pings[2].Port)
	}
	if cfg.Modem == nil || cfg.Modem.Host != "192.168.100.1" {
		t.Fatalf("modem = %+v", cfg.Modem)
	}
	if cfg.Modem.Interval != DefaultModemInterval {
		t.Fatalf("modem.Interval = %v, want default %v", cfg.Modem.Interval, DefaultModemInterval)
	}
	if !cfg.IP {
		t.Fatal("ip job not enabled")
	}
}

func TestParseRejectsBadConfigs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		yaml   string
		reason string
	}{
		{
			name:   "empty",
			yaml:   "",
			reason: "no pings, modem, or ip jobs",
		},
		{
			name:   "ping without name",
			yaml:   "pings:\n  - host: 1.2.3.4\n    types: [icmp]\n",
			reason: `missing key "name"`,
		},
		{
			name:   "ping without host",
			yaml:   "pings:\n  - name: x\n    types: [icmp]\n",
			reason: `missing key "host"`,
		},
		{
			name:   "ping without types",
			yaml:   "pings:\n  - name: x\n    host: 1.2.3.4\n",
			reason: `missing key "types"`,
		},
		{
			name:   "unknown ping type",
			yaml:   "pings:\n  - name: x\n    host: 1.2.3.4\n    types: [udp]\n",
			reason: `unknown type "udp"`,
		},
		{
			name:   "tcp ping without port",
			yaml:   "pings:\n  - name: x\n    host: 1.2.3.4\n    types: [tcp]\n",
			reason: `requires a valid "port"`,
		},
		{
			name:   "tcp ping with out-of-range port",
			yaml:   "pings:\n  - name: x\n    host: 1.2.3.4\n    types: [tcp]\n    port: 70000\n",
			reason: `requires a valid "port"`,
		},
		{
			name:   "modem without host",
			yaml:   "modem:\n  password: hunter2\n",
			reason: `modem: missing key "host"`,
		},
		{
			name:   "modem without password",
			yaml:   "modem:\n  host: 192.168.100.1\n",
			reason: `modem: missing key "password"`,
		},
		{
			name:   "not yaml at all",
			yaml:   "{pings: [",
			reason: "",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tc.yaml))
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("got %v, want *SchemaError", err)
			}
			if !strings.Contains(schemaErr.Reason, tc.reason) {
				t.Fatalf("reason %q does not mention %q", schemaErr.Reason, tc.reason)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load("/nonexistent/config.yml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
