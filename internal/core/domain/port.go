package domain

import (
	"regexp"
	"strconv"
)

// DefaultBasePort is the floor of the SSH port range; the first allocatable port is DefaultBasePort+1.
const DefaultBasePort = 2200

var sshPortPattern = regexp.MustCompile(`0\.0\.0\.0:(\d+)->22/tcp`)

// ParseSSHPort extracts the host port mapped to container port 22 from a
// docker ps Ports column. It returns 0 when there is no such mapping.
func ParseSSHPort(ports string) int {
	m := sshPortPattern.FindStringSubmatch(ports)
	if m == nil {
		return 0
	}
	port, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return port
}

// NextAvailablePort returns the lowest port above base that no container maps to SSH.
// Containers without a parsed SSH port do not reserve anything.
func NextAvailablePort(existing []Container, base int) int {
	if len(existing) == 0 {
		return base + 1
	}

	used := make(map[int]struct{}, len(existing))
	for _, c := range existing {
		if c.SSHPort > 0 {
			used[c.SSHPort] = struct{}{}
		}
	}

	next := base + 1
	for {
		if _, taken := used[next]; !taken {
			return next
		}
		next++
	}
}
