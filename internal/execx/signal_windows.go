//go:build windows

package execx

import "os"

// Windows has no SIGINT for child processes; kill directly.
func interrupt(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}
