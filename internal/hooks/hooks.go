// Package hooks runs external commands as query hooks. A command receives
// the statement on stdin and answers with a JSON verdict on stdout.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const waitDelay = 500 * time.Millisecond

// Config describes one command hook as read from configuration.
type Config struct {
	Name    string   `yaml:"name"`
	Pattern string   `yaml:"pattern"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	// TimeoutSeconds of 0 falls back to the engine's default hook timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Verdict is the JSON a hook command prints.
type Verdict struct {
	Accept        bool   `json:"accept"`
	ModifiedQuery string `json:"modified_query,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// Command is a hook backed by an external process.
type Command struct {
	name    string
	pattern *regexp.Regexp
	command string
	args    []string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewCommand compiles cfg. Panics on an invalid pattern or a missing command.
func NewCommand(cfg Config, logger zerolog.Logger) *Command {
	if cfg.Command == "" {
		panic(fmt.Sprintf("hooks: hook %q has no command", cfg.Name))
	}
	if cfg.TimeoutSeconds < 0 {
		panic(fmt.Sprintf("hooks: hook %q has negative timeout", cfg.Name))
	}
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = ".*"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		panic(fmt.Sprintf("hooks: invalid regex pattern %q: %v", cfg.Pattern, err))
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Command
	}
	return &Command{
		name:    name,
		pattern: re,
		command: cfg.Command,
		args:    cfg.Args,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logger,
	}
}

// Name returns the hook's display name.
func (c *Command) Name() string { return c.name }

// Timeout returns the configured timeout, 0 when unset.
func (c *Command) Timeout() time.Duration { return c.timeout }

// Run passes query through untouched when the pattern does not match.
// Otherwise the command decides: reject, rewrite, or accept as is.
func (c *Command) Run(ctx context.Context, query string) (string, error) {
	if !c.pattern.MatchString(query) {
		return query, nil
	}
	output, err := c.exec(ctx, query)
	if err != nil {
		return "", err
	}

	var verdict Verdict
	if err := json.Unmarshal(output, &verdict); err != nil {
		return "", fmt.Errorf("hook returned unparseable response (command: %s): %w", c.command, err)
	}
	if !verdict.Accept {
		if verdict.ErrorMessage != "" {
			return "", errors.New(verdict.ErrorMessage)
		}
		return "", errors.New("query rejected by hook")
	}
	if verdict.ModifiedQuery != "" {
		return verdict.ModifiedQuery, nil
	}
	return query, nil
}

func (c *Command) exec(ctx context.Context, input string) ([]byte, error) {
	// No shell: the binary is executed directly with its own argv.
	cmd := exec.CommandContext(ctx, c.command, c.args...)
	cmd.Stdin = strings.NewReader(input)
	// Children of a killed hook may hold stdout open.
	cmd.WaitDelay = waitDelay
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if stderr.Len() > 0 {
		level := zerolog.DebugLevel
		if err != nil {
			level = zerolog.WarnLevel
		}
		c.logger.WithLevel(level).Str("hook", c.name).Str("stderr", stderr.String()).Msg("hook stderr output")
	}
	if err != nil {
		// Any failure, including a non-zero exit, stops the pipeline.
		return nil, fmt.Errorf("hook failed (command: %s): %w", c.command, err)
	}
	return output, nil
}
