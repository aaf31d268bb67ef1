package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Plantit/internal/domain"
)

const fullDescriptor = `
id: run-42
workdir: /tmp/plantit/run-42
clone:
  repo: https://github.com/Computational-Plant-Science/plantit-example
  branch: main
image: docker://alpine:latest
commands:
  - cat "$INPUT" | tee "$OUTPUT"
params:
  threshold: "0.5"
input:
  kind: file
  path: /iplant/home/alice/data
  include_patterns: ["*.txt"]
  exclude_names: [skip.txt]
output:
  from: input
  to: /iplant/home/alice/results
  include_patterns: ["*.output"]
`

func TestParseRun_Full(t *testing.T) {
	run, err := ParseRun([]byte(fullDescriptor))
	require.NoError(t, err)

	assert.Equal(t, "run-42", run.ID)
	assert.Equal(t, "/tmp/plantit/run-42", run.Workdir)
	require.True(t, run.HasClone())
	assert.Equal(t, "main", run.Clone.Branch)
	assert.Equal(t, domain.InputFile, run.InputKind())
	assert.Equal(t, []string{"*.txt"}, run.Input.IncludePatterns)
	assert.Equal(t, []string{"skip.txt"}, run.Input.ExcludeNames)
	assert.Equal(t, "input", run.Input.DestDir())
	assert.Equal(t, []string{"*.output"}, run.Output.IncludePatterns)
	assert.Equal(t, "0.5", run.Params["threshold"])
}

func TestParseRun_GeneratesID(t *testing.T) {
	run, err := ParseRun([]byte("workdir: /tmp/x\nimage: alpine\ncommands: [echo hi]\n"))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, domain.InputNone, run.InputKind())
}

func TestParseRun_UnknownField(t *testing.T) {
	_, err := ParseRun([]byte("workdir: /tmp/x\nimage: alpine\ncommands: [echo]\nbogus: 1\n"))
	require.Error(t, err)
}

func TestParseRun_Empty(t *testing.T) {
	_, err := ParseRun(nil)
	assert.ErrorIs(t, err, ErrEmptyRunID)
}

func TestLoadRun(t *testing.T) {
	p := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(p, []byte(fullDescriptor), 0o644))

	run, err := LoadRun(p)
	require.NoError(t, err)
	assert.Equal(t, "run-42", run.ID)

	_, err = LoadRun(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func validRun() *domain.Run {
	return &domain.Run{
		ID:       "r1",
		Workdir:  "/tmp/wd",
		Image:    "alpine",
		Commands: []string{"echo hi"},
	}
}

func TestValidateRun(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *domain.Run)
		want   error
	}{
		{"valid", func(r *domain.Run) {}, nil},
		{"empty id", func(r *domain.Run) { r.ID = "" }, ErrEmptyRunID},
		{"relative workdir", func(r *domain.Run) { r.Workdir = "wd" }, ErrInvalidWorkdir},
		{"empty image", func(r *domain.Run) { r.Image = " " }, ErrEmptyImage},
		{"no commands", func(r *domain.Run) { r.Commands = nil }, ErrEmptyCommands},
		{"blank command", func(r *domain.Run) { r.Commands = []string{"ls", ""} }, ErrEmptyCommands},
		{"unknown input kind", func(r *domain.Run) {
			r.Input = &domain.InputSpec{Kind: "stream"}
		}, ErrUnknownInputKind},
		{"file input without path", func(r *domain.Run) {
			r.Input = &domain.InputSpec{Kind: domain.InputFile}
		}, ErrMissingInputPath},
		{"none input without path", func(r *domain.Run) {
			r.Input = &domain.InputSpec{Kind: domain.InputNone}
		}, nil},
		{"bad pattern", func(r *domain.Run) {
			r.Input = &domain.InputSpec{Kind: domain.InputDirectory, Path: "/d",
				Filter: domain.Filter{IncludePatterns: []string{"[x"}}}
		}, ErrInvalidPattern},
		{"dest escapes workdir", func(r *domain.Run) {
			r.Input = &domain.InputSpec{Kind: domain.InputDirectory, Path: "/d", Dest: "../x"}
		}, ErrInvalidPath},
		{"output without to", func(r *domain.Run) {
			r.Output = &domain.OutputSpec{From: "out"}
		}, ErrMissingOutputPath},
		{"absolute output from", func(r *domain.Run) {
			r.Output = &domain.OutputSpec{From: "/etc", To: "/remote"}
		}, ErrInvalidPath},
		{"clone target escapes", func(r *domain.Run) {
			r.Clone = &domain.CloneSpec{Repo: "https://x", Target: "../.."}
		}, ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRun()
			tt.mutate(r)

			err := ValidateRun(r)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "expected %v, got %v", tt.want, err)

			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestValidateRun_Nil(t *testing.T) {
	assert.ErrorIs(t, ValidateRun(nil), ErrEmptyRunID)
}
