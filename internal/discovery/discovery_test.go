package discovery

import (
	"strings"
	"testing"
)

func TestAdvertiseRejectsInvalidPort(t *testing.T) {
	if _, err := Advertise("demo", 0, "http://127.0.0.1:8080"); err == nil {
		t.Fatal("expected error for port 0")
	}
	if _, err := Advertise("demo", -1, "http://127.0.0.1:8080"); err == nil {
		t.Fatal("expected error for negative port")
	}
}

func TestAdvertiseDefaultsBlankName(t *testing.T) {
	server, err := Advertise("  ", 19999, "http://127.0.0.1:19999")
	if err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	defer server.Shutdown()
}

func TestQRCodeStringRendersNonEmpty(t *testing.T) {
	s, err := QRCodeString("http://127.0.0.1:8080/pair?token=abc123")
	if err != nil {
		t.Fatalf("QRCodeString: %v", err)
	}
	if strings.TrimSpace(s) == "" {
		t.Fatal("expected non-empty rendered QR code")
	}
}
