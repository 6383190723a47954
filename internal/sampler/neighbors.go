package sampler

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Neighbors lists devices visible on the local network.
type Neighbors interface {
	Scan(ctx context.Context) ([]string, error)
}

// ARP runs the system ARP table listing and returns its non-empty output
// lines unparsed. The zero value runs "arp -a".
type ARP struct {
	Command string
	Args    []string
}

func (a ARP) Scan(ctx context.Context) ([]string, error) {
	name, args := a.Command, a.Args
	if name == "" {
		name, args = "arp", []string{"-a"}
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
