package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"alphaflex/internal/domain"
)

// ScriptBroker talks to the brokerage through an external trading script.
// Each call spawns the script with a command verb and reads one JSON
// document from stdout. The script owns credentials and session handling,
// so this process never sees them.
type ScriptBroker struct {
	python string
	script string
}

// NewScriptBroker creates a ScriptBroker
func NewScriptBroker(python, script string) *ScriptBroker {
	return &ScriptBroker{
		python: python,
		script: script,
	}
}

// QueryOrder asks the brokerage for the current state of an order
func (b *ScriptBroker) QueryOrder(ctx context.Context, orderID string) (*domain.OrderStatusPayload, error) {
	out, err := b.runScript(ctx, "check", orderID)
	if err != nil {
		return nil, fmt.Errorf("order status check failed: %w", err)
	}

	payload := &domain.OrderStatusPayload{}
	if err := json.Unmarshal(out, payload); err != nil {
		return nil, fmt.Errorf("failed to parse order status output: %w", err)
	}

	return payload, nil
}

// SubmitOrder places a new order and returns the broker-assigned order ID
func (b *ScriptBroker) SubmitOrder(ctx context.Context, side string, spec domain.OrderSpec) (*domain.SubmitResult, error) {
	args, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order spec: %w", err)
	}

	out, err := b.runScript(ctx, side, string(args))
	if err != nil {
		return nil, fmt.Errorf("order submission failed: %w", err)
	}

	result := &domain.SubmitResult{}
	if err := json.Unmarshal(out, result); err != nil {
		return nil, fmt.Errorf("failed to parse submission output: %w", err)
	}

	return result, nil
}

func (b *ScriptBroker) runScript(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, b.python, append([]string{b.script}, args...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}

	// The script may log progress lines before the result document. The
	// JSON document is always the last non-empty line of stdout.
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return nil, fmt.Errorf("empty response from trading script")
	}

	return []byte(last), nil
}
