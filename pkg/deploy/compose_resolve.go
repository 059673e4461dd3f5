package deploy

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// ComposeRunner invokes the compose tool; production code shells out to the
// real `docker compose` binary, tests substitute a fake.
type ComposeRunner interface {
	RenderConfig(ctx context.Context, composeFile string, env map[string]string) ([]byte, error)
}

// SubprocessComposeRunner shells out to `docker compose config`, the
// canonical compose parser, instead of reimplementing `${VAR:-default}`
// substitution (spec.md §4.4.1 rationale).
type SubprocessComposeRunner struct {
	// Binary defaults to "docker"; overridable for environments with a
	// standalone docker-compose binary instead of the compose v2 plugin.
	Binary string
}

func (r SubprocessComposeRunner) RenderConfig(ctx context.Context, composeFile string, env map[string]string) ([]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = "docker"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	args := []string{"compose", "-f", composeFile, "config"}
	if strings.HasSuffix(bin, "docker-compose") {
		args = args[1:]
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = osEnvironPlus(env)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		klog.Errorf("deploy: compose config failed for %s: %v: %s", composeFile, err, stderr.String())
		return nil, fmt.Errorf("service resolution failed: %s", firstLine(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "unknown compose error"
	}
	return s
}

type composeRenderedDocument struct {
	Services map[string]composeRenderedService `yaml:"services"`
}

type composeRenderedService struct {
	Image       string            `yaml:"image"`
	Ports       []composePort     `yaml:"ports"`
	Environment map[string]string `yaml:"environment"`
	Volumes     []string          `yaml:"volumes"`
	Networks    []string          `yaml:"networks"`
	Command     composeCommand    `yaml:"command"`
	Restart     string            `yaml:"restart"`
}

// composePort accepts both the short string form ("3000:3000") and the long
// mapping form compose config sometimes emits.
type composePort struct {
	raw string
}

func (p *composePort) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.raw = node.Value
		return nil
	}
	var long struct {
		Target    int    `yaml:"target"`
		Published string `yaml:"published"`
	}
	if err := node.Decode(&long); err != nil {
		return err
	}
	if long.Published != "" {
		p.raw = fmt.Sprintf("%s:%d", long.Published, long.Target)
	} else {
		p.raw = strconv.Itoa(long.Target)
	}
	return nil
}

// composeCommand accepts both the string and list-of-strings compose forms.
type composeCommand struct {
	value string
}

func (c *composeCommand) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.value = node.Value
		return nil
	}
	var parts []string
	if err := node.Decode(&parts); err != nil {
		return err
	}
	c.value = strings.Join(parts, " ")
	return nil
}

// Resolve runs the resolution pipeline for one compose service: render via
// the compose tool, extract the named service, normalize its fields
// (spec.md §4.4.1 steps 3-5).
func Resolve(ctx context.Context, runner ComposeRunner, composeFile, serviceName string, env map[string]string, requires []string) (ResolvedServiceDefinition, error) {
	raw, err := runner.RenderConfig(ctx, composeFile, env)
	if err != nil {
		return ResolvedServiceDefinition{}, err
	}

	var doc composeRenderedDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return ResolvedServiceDefinition{}, fmt.Errorf("parse rendered compose config: %w", err)
	}
	svc, ok := doc.Services[serviceName]
	if !ok {
		return ResolvedServiceDefinition{}, fmt.Errorf("service %q not present in rendered compose config", serviceName)
	}

	ports := make([]string, 0, len(svc.Ports))
	for _, p := range svc.Ports {
		ports = append(ports, p.raw)
	}
	sort.Strings(ports)

	network := ""
	if len(svc.Networks) > 0 {
		network = svc.Networks[0]
	}

	restart := svc.Restart
	if restart == "" {
		restart = "unless-stopped"
	}

	return ResolvedServiceDefinition{
		ServiceID:   serviceName,
		Image:       svc.Image,
		Ports:       ports,
		Env:         svc.Environment,
		Volumes:     svc.Volumes,
		Command:     svc.Command.value,
		Restart:     restart,
		Network:     network,
		ComposeFile: composeFile,
		Requires:    requires,
	}, nil
}

func osEnvironPlus(extra map[string]string) []string {
	base := os.Environ()
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	for k, v := range extra {
		out = append(out, k+"="+v)
	}
	return out
}
