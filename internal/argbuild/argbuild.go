// Package argbuild constructs argv/env for the external agent CLI. Every
// function here is pure and total: given the same Params it always returns
// the same (argv, env), and there is no failure mode — argument ordering is
// policy, and policy is exhaustively enumerated, never inferred.
package argbuild

import (
	"fmt"
	"strings"
)

// Mode selects the approval/sandbox policy applied to the run.
type Mode int

const (
	ModePlan Mode = iota
	ModeBuild
	ModeYolo
)

// Style selects detached (backgrounded, stdin from a file) vs interactive
// (PTY, prompt on argv) invocation.
type Style int

const (
	StyleDetached Style = iota
	StyleInteractive
)

// Params are the inputs to argument construction, corresponding exactly to
// the Argument Builder's documented contract.
type Params struct {
	SessionID   string
	WorktreeID  string
	AgentTag    string // diagnostic env var; defaults to the CLI name if empty
	ResumeToken string
	Model       string
	ReasoningEffort string
	Mode        Mode
	Style       Style
	WorkingDir  string
	AILanguage  string
	Prompt      string // interactive only; detached always uses "-"
}

// normalizeReasoningEffort rewrites "minimal" to "low" (the CLI rejects
// minimal when tools are enabled) and treats blank/whitespace as absent.
func normalizeReasoningEffort(effort string) (string, bool) {
	trimmed := strings.TrimSpace(effort)
	if trimmed == "" {
		return "", false
	}
	if strings.EqualFold(trimmed, "minimal") {
		return "low", true
	}
	return trimmed, true
}

func baseEnv(p Params, agentTag string) map[string]string {
	env := map[string]string{
		"AGENTSUP_SESSION_ID":  p.SessionID,
		"AGENTSUP_WORKTREE_ID": p.WorktreeID,
		"AGENTSUP_AGENT":       agentTag,
	}
	if strings.TrimSpace(p.AILanguage) != "" {
		env["AGENTSUP_AI_LANGUAGE"] = p.AILanguage
	}
	return env
}

// BuildCodex builds argv/env for the Codex CLI. Ordering laws (spec
// invariants 1-3) are enforced by construction, not by post-hoc sorting:
// exec-level options are appended before any resume token, which is in
// turn appended before the trailing prompt positional.
func BuildCodex(p Params) ([]string, map[string]string) {
	agentTag := p.AgentTag
	if agentTag == "" {
		agentTag = "codex"
	}

	var argv []string
	argv = append(argv, "exec", "--color", "never", "--skip-git-repo-check", "--cd", p.WorkingDir)

	switch p.Mode {
	case ModePlan:
		argv = append(argv, "--ask-for-approval", "never", "--sandbox", "read-only")
	case ModeBuild:
		if p.Style == StyleInteractive {
			argv = append(argv, "--sandbox", "workspace-write")
		} else {
			argv = append(argv, "--ask-for-approval", "never", "--sandbox", "workspace-write",
				"--config", "sandbox_workspace_write.network_access=true")
		}
	case ModeYolo:
		argv = append(argv, "--dangerously-bypass-approvals-and-sandbox")
	}

	if model := strings.TrimSpace(p.Model); model != "" {
		argv = append(argv, "--model", model)
	}

	if effort, ok := normalizeReasoningEffort(p.ReasoningEffort); ok {
		argv = append(argv, "--config", fmt.Sprintf(`model_reasoning_effort="%s"`, effort))
	}

	// --json is mandatory: without it the CLI emits human-readable text
	// instead of one NDJSON event per line, and the supervisor sees nothing.
	argv = append(argv, "--json")

	if strings.TrimSpace(p.ResumeToken) != "" {
		argv = append(argv, "resume", p.ResumeToken)
	}

	if p.Style == StyleInteractive {
		argv = append(argv, p.Prompt)
	} else {
		argv = append(argv, "-")
	}

	return argv, baseEnv(p, agentTag)
}

// BuildClaude builds argv/env for the Claude CLI, by symmetry with Codex.
// Claude takes the prompt over stdin in both modes (its argv size limits
// are tighter), so the trailing positional rule only governs Codex.
func BuildClaude(p Params) ([]string, map[string]string) {
	agentTag := p.AgentTag
	if agentTag == "" {
		agentTag = "claude"
	}

	argv := []string{"--print", "--output-format", "stream-json", "--verbose"}

	switch p.Mode {
	case ModePlan:
		argv = append(argv, "--permission-mode", "plan")
	case ModeBuild:
		if p.Style == StyleInteractive {
			argv = append(argv, "--permission-mode", "acceptEdits")
		} else {
			argv = append(argv, "--permission-mode", "bypassPermissions")
		}
	case ModeYolo:
		argv = append(argv, "--dangerously-skip-permissions")
	}

	if model := strings.TrimSpace(p.Model); model != "" {
		argv = append(argv, "--model", model)
	}

	if strings.TrimSpace(p.ResumeToken) != "" {
		argv = append(argv, "--resume", p.ResumeToken)
	}

	return argv, baseEnv(p, agentTag)
}
