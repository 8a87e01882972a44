// Package discovery advertises a running supervisor's companion dashboard
// on the local network via mDNS and renders a QR code for pairing a phone
// or second terminal to it.
package discovery

import (
	"fmt"
	"strings"

	"github.com/hashicorp/mdns"
	qrcode "github.com/skip2/go-qrcode"
)

// serviceType is the mDNS service type advertised for the dashboard.
const serviceType = "_agentsup._tcp"

// Advertise starts an mDNS responder advertising name on port, with the
// dashboard's URL carried as a TXT record so a browser-based scanner can
// read it without a follow-up query. The caller must Shutdown the
// returned server when the dashboard stops.
func Advertise(name string, port int, url string) (*mdns.Server, error) {
	if port <= 0 {
		return nil, fmt.Errorf("discovery: invalid port %d", port)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "agentsup"
	}

	txtRecords := []string{
		fmt.Sprintf("project=%s", name),
		fmt.Sprintf("url=%s", url),
	}
	service, err := mdns.NewMDNSService(name, serviceType, "local", "", port, nil, txtRecords)
	if err != nil {
		return nil, fmt.Errorf("discovery: build mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("discovery: start mdns server: %w", err)
	}
	return server, nil
}

// QRCodeString renders url as a terminal-printable QR code at medium error
// correction, for pairing a dashboard without typing the address by hand.
func QRCodeString(url string) (string, error) {
	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("discovery: render qr code: %w", err)
	}
	return code.ToString(false), nil
}
