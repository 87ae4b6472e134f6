package license

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"runtime"
	"strings"
)

// MachineID derives a stable identifier for the host a license is bound to.
// It hashes traits that survive reboots but change when the install moves to
// another machine.
func MachineID() string {
	hostname, _ := os.Hostname()

	traits := []string{
		strings.ToLower(hostname),
		runtime.GOOS,
		runtime.GOARCH,
	}
	if raw, err := os.ReadFile("/etc/machine-id"); err == nil {
		traits = append(traits, strings.TrimSpace(string(raw)))
	}

	sum := sha256.Sum256([]byte(strings.Join(traits, "|")))
	return hex.EncodeToString(sum[:16])
}
