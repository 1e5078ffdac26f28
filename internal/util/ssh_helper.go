package util

import (
	"fmt"
	"io"
	"net"
	"os"

	log "github.com/sirupsen/logrus"
)

// getOutboundIP retrieves the preferred outbound IP address of this machine.
// Dialing UDP sends no packets; it only asks the kernel which local address it would use.
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warnf("Failed to close UDP connection: %v", closeErr)
		}
	}()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("could not assert UDP address type")
	}

	return localAddr.IP.String(), nil
}

// GetIPAddress returns the local outbound address, or 127.0.0.1 when none is found.
func GetIPAddress() string {
	outboundIP, err := getOutboundIP()
	if err == nil {
		log.Debugf("Outbound IP detected: %s", outboundIP)
		return outboundIP
	}
	log.Debugf("Failed to get outbound IP address: %v", err)
	return "127.0.0.1"
}

// IsRemoteSession reports whether the process runs inside an SSH session.
func IsRemoteSession() bool {
	for _, key := range []string{"SSH_CONNECTION", "SSH_CLIENT", "SSH_TTY"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

// PrintSSHTunnelInstructions writes the commands a user runs on their own machine to
// forward the callback port to this host.
func PrintSSHTunnelInstructions(w io.Writer, port int) {
	ipAddress := GetIPAddress()
	user := os.Getenv("USER")
	if user == "" {
		user = "<user>"
	}
	border := "================================================================================"
	_, _ = fmt.Fprintln(w, "To authenticate from a remote machine, an SSH tunnel may be required.")
	_, _ = fmt.Fprintln(w, border)
	_, _ = fmt.Fprintln(w, "  Run one of the following commands on your local machine (NOT the server):")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "  # Standard SSH command (assumes SSH port 22):\n")
	_, _ = fmt.Fprintf(w, "  ssh -L %d:127.0.0.1:%d %s@%s -p 22\n", port, port, user, ipAddress)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "  # If using an SSH key (assumes SSH port 22):\n")
	_, _ = fmt.Fprintf(w, "  ssh -i <path_to_your_key> -L %d:127.0.0.1:%d %s@%s -p 22\n", port, port, user, ipAddress)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "  NOTE: If your server's SSH port is not 22, please modify the '-p 22' part accordingly.")
	_, _ = fmt.Fprintln(w, border)
}
