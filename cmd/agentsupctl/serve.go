package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentsup/agentsup/internal/discovery"
	"github.com/agentsup/agentsup/internal/uiemit"
)

// shutdownGrace bounds how long serve waits, after SIGINT/SIGTERM closes the
// listener, for open HTTP connections to finish; upgraded websocket
// connections are not waited on.
const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a websocket dashboard for attached sessions",
	Long: `Start a websocket server for dashboard clients, optionally advertised on
the local network via mDNS and paired via a printed QR code. Inbound
cancel-session and write-pty-input frames act on sessions running in this
same process (see 'attach'). This command does not forward any session's
UI events to connected clients.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:4173", "Listen address")
	serveCmd.Flags().Bool("mdns", false, "Advertise the dashboard on the local network via mDNS")
	serveCmd.Flags().Bool("qr", false, "Print a QR code for pairing a phone or second terminal")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	enableMDNS, _ := cmd.Flags().GetBool("mdns")
	printQR, _ := cmd.Flags().GetBool("qr")

	hub := uiemit.NewWebSocketHub(func(msg uiemit.ControlMessage) {
		switch msg.Type {
		case "cancel-session":
			if proc, ok := sessionHub.processes[msg.SessionID]; ok {
				proc.Unregister(msg.SessionID)
			}
		case "write-pty-input":
			if writer, ok := sessionHub.ptyWriters[msg.SessionID]; ok {
				writer.Write(msg.SessionID, []byte(msg.Input))
			}
		}
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("serve: listen %s: %w", addr, err)
	}

	url := fmt.Sprintf("http://%s/ws", listener.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "serving dashboard websocket at %s\n", url)

	if enableMDNS {
		_, port := splitHostPort(listener.Addr().String())
		server, err := discovery.Advertise("agentsup", port, url)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: mdns advertise failed: %v\n", err)
		} else {
			defer server.Shutdown()
		}
	}

	if printQR {
		code, err := discovery.QRCodeString(url)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: qr render failed: %v\n", err)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), code)
		}
	}

	httpServer := &http.Server{Handler: mux}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func splitHostPort(addr string) (string, int) {
	host, rawPort, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0
	}
	var port int
	fmt.Sscanf(rawPort, "%d", &port)
	return host, port
}
