package argbuild

import (
	"strings"
	"testing"
)

func indexOf(argv []string, tok string) int {
	for i, a := range argv {
		if a == tok {
			return i
		}
	}
	return -1
}

// TestS1PlanResume is scenario S1.
func TestS1PlanResume(t *testing.T) {
	argv, _ := BuildCodex(Params{
		SessionID:   "s1",
		WorkingDir:  "/tmp",
		Model:       "gpt-5.2-codex",
		ResumeToken: "019c0af8",
		Mode:        ModePlan,
		Style:       StyleDetached,
	})

	execIdx := indexOf(argv, "exec")
	cdIdx := indexOf(argv, "--cd")
	sandboxIdx := indexOf(argv, "--sandbox")
	readOnlyIdx := indexOf(argv, "read-only")
	jsonIdx := indexOf(argv, "--json")
	resumeIdx := indexOf(argv, "resume")

	if execIdx != 0 {
		t.Fatalf("exec index = %d, want 0", execIdx)
	}
	if cdIdx < execIdx {
		t.Fatalf("--cd must come after exec")
	}
	if sandboxIdx < execIdx || readOnlyIdx < sandboxIdx {
		t.Fatalf("--sandbox read-only must follow exec: argv=%v", argv)
	}
	if jsonIdx == -1 || jsonIdx < readOnlyIdx {
		t.Fatalf("--json must follow --sandbox read-only: argv=%v", argv)
	}
	if resumeIdx < jsonIdx {
		t.Fatalf("resume must come after --json: argv=%v", argv)
	}
	if argv[resumeIdx+1] != "019c0af8" {
		t.Fatalf("resume token = %q, want 019c0af8", argv[resumeIdx+1])
	}
	if argv[len(argv)-1] != "-" {
		t.Fatalf("last token = %q, want \"-\" for detached mode", argv[len(argv)-1])
	}
}

// TestS2MinimalToLow is scenario S2.
func TestS2MinimalToLow(t *testing.T) {
	argv, _ := BuildCodex(Params{
		WorkingDir:      "/tmp",
		Mode:            ModePlan,
		ReasoningEffort: "minimal",
	})
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, `--config model_reasoning_effort="low"`) {
		t.Fatalf("argv = %v, missing rewritten reasoning effort", argv)
	}
}

func TestReasoningEffortPassthrough(t *testing.T) {
	argv, _ := BuildCodex(Params{WorkingDir: "/tmp", Mode: ModePlan, ReasoningEffort: "high"})
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, `--config model_reasoning_effort="high"`) {
		t.Fatalf("argv = %v", argv)
	}
}

func TestReasoningEffortBlankOmitted(t *testing.T) {
	argv, _ := BuildCodex(Params{WorkingDir: "/tmp", Mode: ModePlan, ReasoningEffort: "   "})
	for _, a := range argv {
		if a == "--config" {
			t.Fatalf("unexpected --config for blank reasoning effort: argv=%v", argv)
		}
	}
}

func TestEmptyModelOmitsFlag(t *testing.T) {
	argv, _ := BuildCodex(Params{WorkingDir: "/tmp", Mode: ModePlan, Model: "  "})
	if indexOf(argv, "--model") != -1 {
		t.Fatalf("argv = %v, expected no --model", argv)
	}
}

// TestInvariant1Ordering is invariant 1: exec < resume; all exec-level
// options precede resume; last token is the prompt sentinel or prompt text.
func TestInvariant1Ordering(t *testing.T) {
	cases := []Params{
		{WorkingDir: "/w", Mode: ModePlan, ResumeToken: "abc", Style: StyleDetached},
		{WorkingDir: "/w", Mode: ModeBuild, ResumeToken: "abc", Style: StyleDetached},
		{WorkingDir: "/w", Mode: ModeYolo, ResumeToken: "abc", Style: StyleDetached},
		{WorkingDir: "/w", Mode: ModeBuild, Style: StyleInteractive, Prompt: "hello"},
	}
	for _, p := range cases {
		argv, _ := BuildCodex(p)
		execIdx := indexOf(argv, "exec")
		resumeIdx := indexOf(argv, "resume")
		if resumeIdx != -1 && execIdx >= resumeIdx {
			t.Fatalf("exec must precede resume: argv=%v", argv)
		}
		last := argv[len(argv)-1]
		if p.Style == StyleDetached && last != "-" {
			t.Fatalf("detached last token = %q, want \"-\": argv=%v", last, argv)
		}
		if p.Style == StyleInteractive && last != p.Prompt {
			t.Fatalf("interactive last token = %q, want %q: argv=%v", last, p.Prompt, argv)
		}
	}
}

// TestInvariant2ModeFlags is invariant 2.
func TestInvariant2ModeFlags(t *testing.T) {
	for _, mode := range []Mode{ModePlan, ModeBuild} {
		argv, _ := BuildCodex(Params{WorkingDir: "/w", Mode: mode, Style: StyleDetached})
		idx := indexOf(argv, "--ask-for-approval")
		if idx == -1 || argv[idx+1] != "never" {
			t.Fatalf("mode %v: expected --ask-for-approval never, argv=%v", mode, argv)
		}
	}

	argv, _ := BuildCodex(Params{WorkingDir: "/w", Mode: ModeYolo})
	if indexOf(argv, "--dangerously-bypass-approvals-and-sandbox") == -1 {
		t.Fatalf("yolo: missing bypass flag, argv=%v", argv)
	}
	if indexOf(argv, "--sandbox") != -1 {
		t.Fatalf("yolo: unexpected --sandbox, argv=%v", argv)
	}
}

func TestBuildModeInteractiveOmitsForcedNever(t *testing.T) {
	argv, _ := BuildCodex(Params{WorkingDir: "/w", Mode: ModeBuild, Style: StyleInteractive, Prompt: "go"})
	if indexOf(argv, "--ask-for-approval") != -1 {
		t.Fatalf("interactive build mode must not force --ask-for-approval never: argv=%v", argv)
	}
	if indexOf(argv, "--sandbox") == -1 {
		t.Fatalf("interactive build mode still needs --sandbox workspace-write: argv=%v", argv)
	}
}

func TestEnvAlwaysSetsDiagnosticVars(t *testing.T) {
	_, env := BuildCodex(Params{SessionID: "s1", WorktreeID: "w1", WorkingDir: "/w", Mode: ModePlan})
	if env["AGENTSUP_SESSION_ID"] != "s1" || env["AGENTSUP_WORKTREE_ID"] != "w1" || env["AGENTSUP_AGENT"] != "codex" {
		t.Fatalf("env = %v", env)
	}
	if _, ok := env["AGENTSUP_AI_LANGUAGE"]; ok {
		t.Fatalf("env = %v, expected no language var when unset", env)
	}
}

func TestEnvLanguageWhenProvided(t *testing.T) {
	_, env := BuildCodex(Params{WorkingDir: "/w", Mode: ModePlan, AILanguage: "es"})
	if env["AGENTSUP_AI_LANGUAGE"] != "es" {
		t.Fatalf("env = %v", env)
	}
}

func TestBuildClaudeResumeFlag(t *testing.T) {
	argv, env := BuildClaude(Params{WorkingDir: "/w", Mode: ModePlan, ResumeToken: "tok1", AgentTag: "claude"})
	idx := indexOf(argv, "--resume")
	if idx == -1 || argv[idx+1] != "tok1" {
		t.Fatalf("argv = %v", argv)
	}
	if env["AGENTSUP_AGENT"] != "claude" {
		t.Fatalf("env = %v", env)
	}
}
