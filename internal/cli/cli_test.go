package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shaiso/Plantit/internal/config"
	"github.com/shaiso/Plantit/internal/domain"
	"github.com/shaiso/Plantit/internal/mq"
	"github.com/shaiso/Plantit/internal/repo"
	"github.com/shaiso/Plantit/internal/reporter"
	"github.com/shaiso/Plantit/internal/store"
	"github.com/shaiso/Plantit/internal/store/storetest"
)

// testConfig возвращает конфигурацию из map вместо окружения процесса.
func testConfig(t *testing.T, env map[string]string) func() (*config.Config, error) {
	t.Helper()
	return func() (*config.Config, error) {
		return config.LoadFrom(func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		})
	}
}

// execute запускает корневую команду и возвращает stdout и stderr.
func execute(t *testing.T, env map[string]string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCmd(RootOptions{
		Version:    "test",
		LoadConfig: testConfig(t, env),
		Stdout:     &stdout,
		Stderr:     &stderr,
		Logger:     zap.NewNop(),
	})
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

// --- Output ---

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutputTo(false, &buf, &bytes.Buffer{})

	out.Print([]string{"ID", "STATUS"}, [][]string{{"r1", "SUCCEEDED"}}, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "--"))
	assert.Contains(t, lines[2], "SUCCEEDED")
}

func TestOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutputTo(true, &buf, &bytes.Buffer{})

	out.Print([]string{"ID"}, [][]string{{"r1"}}, map[string]string{"id": "r1"})

	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "r1", got["id"])
}

func TestOutput_KeyValuesSorted(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutputTo(false, &buf, &bytes.Buffer{})

	out.KeyValues(map[string]string{"species": "arabidopsis", "experiment": "e1"})

	assert.Equal(t, "experiment=e1\nspecies=arabidopsis\n", buf.String())
}

func TestOutput_MessagesGoToStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := NewOutputTo(false, &stdout, &stderr)

	out.Success("done")
	out.Error("broken")

	assert.Empty(t, stdout.String())
	assert.Equal(t, "done\nError: broken\n", stderr.String())
}

// --- Factories ---

func TestBuildReporter(t *testing.T) {
	ctx := context.Background()

	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		r, closeFn, err := BuildReporter(ctx, config.ReporterConfig{Backends: []string{"console"}}, &buf, zap.NewNop())
		require.NoError(t, err)
		defer closeFn()

		assert.IsType(t, &reporter.Console{}, r)
		require.NoError(t, r.UpdateStatus(ctx, domain.StateOK, "hello"))
		assert.Equal(t, "Status (OK): hello\n", buf.String())
	})

	t.Run("multi", func(t *testing.T) {
		r, closeFn, err := BuildReporter(ctx, config.ReporterConfig{
			Backends: []string{"console", "rest"},
			APIURL:   "https://plantit.example.org/apis/v1/",
			JobID:    "job-1",
		}, &bytes.Buffer{}, zap.NewNop())
		require.NoError(t, err)
		defer closeFn()

		assert.IsType(t, &reporter.Multi{}, r)
	})

	t.Run("rest without job id", func(t *testing.T) {
		_, _, err := BuildReporter(ctx, config.ReporterConfig{
			Backends: []string{"rest"},
			APIURL:   "https://plantit.example.org/apis/v1/",
		}, &bytes.Buffer{}, zap.NewNop())
		assert.ErrorIs(t, err, reporter.ErrMissingJobID)
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := BuildReporter(ctx, config.ReporterConfig{Backends: []string{"pigeon"}}, &bytes.Buffer{}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := BuildReporter(ctx, config.ReporterConfig{}, &bytes.Buffer{}, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()

	s, err := BuildStore(ctx, config.StoreConfig{Backend: "terrain", TerrainURL: "https://de.example.org/terrain"}, "tok", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &store.TerrainClient{}, s)

	_, err = BuildStore(ctx, config.StoreConfig{Backend: "s3"}, "", zap.NewNop())
	assert.Error(t, err)

	_, err = BuildStore(ctx, config.StoreConfig{Backend: "ftp"}, "", zap.NewNop())
	assert.Error(t, err)
}

// --- run / validate ---

func TestRunCmd_ConsoleLocal(t *testing.T) {
	requireShell(t)

	workdir := t.TempDir()
	descriptor := writeDescriptor(t, `
id: r1
workdir: `+workdir+`
image: docker://alpine:3.19
commands:
  - echo "hello {{ .RunID }}" > greeting.txt
`)

	stdout, _, err := execute(t, map[string]string{"PLANTIT_RUNTIME": "local"}, "run", descriptor)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Status (OK): Starting run 'r1' with 'in-process' executor.")
	assert.Contains(t, stdout, "Status (OK): Running 'docker://alpine:3.19' container(s).")
	assert.Contains(t, stdout, "Task r1 complete")
	assert.Contains(t, stdout, "SUCCEEDED")

	data, err := os.ReadFile(filepath.Join(workdir, "greeting.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello r1\n", string(data))
}

func TestRunCmd_Failure(t *testing.T) {
	requireShell(t)

	descriptor := writeDescriptor(t, `
id: r2
workdir: `+t.TempDir()+`
image: alpine
commands:
  - exit 7
`)

	stdout, _, err := execute(t, map[string]string{"PLANTIT_RUNTIME": "local"}, "run", descriptor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunFailed)

	assert.Contains(t, stdout, "Status (FAILED): Run 'r2' failed")
	assert.NotContains(t, stdout, "Task r2 complete")
	assert.Equal(t, 1, strings.Count(stdout, "Status (FAILED)"))
}

func TestRunCmd_InputFromTerrain(t *testing.T) {
	requireShell(t)

	terrain := storetest.NewTerrain(t)
	terrain.Token = "tok"
	terrain.AddFile("/iplant/home/alice/data/a.txt", "leaf")
	terrain.AddFile("/iplant/home/alice/data/b.txt", "root")
	terrain.AddDir("/iplant/home/alice/results")

	workdir := t.TempDir()
	descriptor := writeDescriptor(t, `
id: r3
workdir: `+workdir+`
image: alpine
token: tok
commands:
  - cat {{ .Input }} > {{ .Input }}.out
input:
  kind: file
  path: /iplant/home/alice/data
  include_patterns: ["*.txt"]
output:
  from: input
  to: /iplant/home/alice/results
  include_patterns: ["*.out"]
`)

	env := map[string]string{
		"PLANTIT_RUNTIME": "local",
		"TERRAIN_URL":     terrain.URL,
	}
	stdout, _, err := execute(t, env, "run", descriptor)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "Task r3 complete")

	got, ok := terrain.File("/iplant/home/alice/results/a.txt/a.txt.out")
	require.True(t, ok, "uploaded paths: %v", terrain.Paths())
	assert.Equal(t, "leaf", got)
	got, ok = terrain.File("/iplant/home/alice/results/b.txt/b.txt.out")
	require.True(t, ok)
	assert.Equal(t, "root", got)
}

func TestRunCmd_InvalidReporterFlag(t *testing.T) {
	descriptor := writeDescriptor(t, "id: r4\nworkdir: /tmp\nimage: alpine\ncommands: [\"true\"]\n")

	_, _, err := execute(t, nil, "run", descriptor, "--reporter", "telegraph")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestValidateCmd(t *testing.T) {
	descriptor := writeDescriptor(t, `
id: r5
workdir: /scratch/r5
image: alpine
commands: ["true", "echo done"]
input:
  kind: directory
  path: /iplant/home/alice/data
output:
  from: out
  to: /iplant/home/alice/results
`)

	stdout, stderr, err := execute(t, nil, "validate", descriptor)
	require.NoError(t, err)
	assert.Contains(t, stdout, "r5")
	assert.Contains(t, stdout, "directory")
	assert.Contains(t, stdout, "/iplant/home/alice/results")
	assert.Contains(t, stderr, "is valid")
}

func TestValidateCmd_Invalid(t *testing.T) {
	descriptor := writeDescriptor(t, "id: r6\nworkdir: relative/dir\nimage: alpine\ncommands: [\"true\"]\n")

	_, _, err := execute(t, nil, "validate", descriptor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workdir")
}

// --- terrain ---

func TestTerrainCmd_ListStatExists(t *testing.T) {
	terrain := storetest.NewTerrain(t)
	terrain.Token = "tok"
	terrain.AddFile("/iplant/home/alice/data/a.txt", "leaf")
	terrain.AddDir("/iplant/home/alice/data/sub")

	env := map[string]string{"TERRAIN_URL": terrain.URL, "TERRAIN_TOKEN": "tok"}

	stdout, _, err := execute(t, env, "terrain", "list", "/iplant/home/alice/data")
	require.NoError(t, err)
	assert.Contains(t, stdout, "/iplant/home/alice/data/a.txt")
	assert.Contains(t, stdout, "/iplant/home/alice/data/sub")

	stdout, _, err = execute(t, env, "--json", "terrain", "stat", "/iplant/home/alice/data/a.txt")
	require.NoError(t, err)
	var entry store.Entry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entry))
	assert.Equal(t, store.KindFile, entry.Kind)
	assert.EqualValues(t, 4, entry.Size)

	stdout, _, err = execute(t, env, "terrain", "exists", "/iplant/home/alice/data/missing.txt")
	require.NoError(t, err)
	assert.Equal(t, "false\n", stdout)

	_, _, err = execute(t, env, "terrain", "exists", "/iplant/home/alice/data", "--type", "symlink")
	assert.Error(t, err)
}

func TestTerrainCmd_TokenFlagOverridesEnv(t *testing.T) {
	terrain := storetest.NewTerrain(t)
	terrain.Token = "right"
	terrain.AddDir("/iplant/home/alice")

	env := map[string]string{"TERRAIN_URL": terrain.URL, "TERRAIN_TOKEN": "wrong"}

	_, _, err := execute(t, env, "terrain", "list", "/iplant/home/alice")
	require.Error(t, err)

	_, _, err = execute(t, env, "terrain", "list", "/iplant/home/alice", "-t", "right")
	require.NoError(t, err)
}

func TestTerrainCmd_Token(t *testing.T) {
	terrain := storetest.NewTerrain(t)

	env := map[string]string{"TERRAIN_URL": terrain.URL}
	stdout, _, err := execute(t, env, "terrain", "token", "--username", "alice", "--password", "secret")
	require.NoError(t, err)
	assert.Equal(t, "token-alice\n", stdout)

	_, _, err = execute(t, env, "terrain", "token", "--username", "alice", "--password", "nope")
	assert.Error(t, err)
}

func TestTerrainCmd_CreateUploadDownload(t *testing.T) {
	terrain := storetest.NewTerrain(t)
	terrain.AddDir("/iplant/home/alice")
	env := map[string]string{"TERRAIN_URL": terrain.URL}

	_, stderr, err := execute(t, env, "terrain", "create", "/iplant/home/alice/results")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Created /iplant/home/alice/results")

	local := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(local, "keep.csv"), []byte("a,b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(local, "skip.log"), []byte("noise"), 0o644))

	_, _, err = execute(t, env, "terrain", "upload", "/iplant/home/alice/results",
		"-p", local, "--exclude-pattern", "*.log")
	require.NoError(t, err)

	got, ok := terrain.File("/iplant/home/alice/results/keep.csv")
	require.True(t, ok)
	assert.Equal(t, "a,b", got)
	_, ok = terrain.File("/iplant/home/alice/results/skip.log")
	assert.False(t, ok)

	dest := t.TempDir()
	_, stderr, err = execute(t, env, "terrain", "download", "/iplant/home/alice/results/keep.csv", "-p", dest)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Downloaded")

	data, err := os.ReadFile(filepath.Join(dest, "keep.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b", string(data))
}

func TestTerrainCmd_ShareUnshare(t *testing.T) {
	terrain := storetest.NewTerrain(t)
	terrain.AddDir("/iplant/home/alice/data")
	env := map[string]string{"TERRAIN_URL": terrain.URL}

	_, _, err := execute(t, env, "terrain", "share", "/iplant/home/alice/data", "-u", "bob", "-p", "read")
	require.NoError(t, err)
	assert.Equal(t, "read", terrain.Shares("/iplant/home/alice/data")["bob"])

	_, _, err = execute(t, env, "terrain", "unshare", "/iplant/home/alice/data", "-u", "bob")
	require.NoError(t, err)
	assert.NotContains(t, terrain.Shares("/iplant/home/alice/data"), "bob")

	_, _, err = execute(t, env, "terrain", "share", "/iplant/home/alice/data", "-u", "bob", "-p", "admin")
	assert.ErrorIs(t, err, store.ErrInvalidPermission)
}

func TestTerrainCmd_TagTags(t *testing.T) {
	terrain := storetest.NewTerrain(t)
	env := map[string]string{"TERRAIN_URL": terrain.URL}

	_, stderr, err := execute(t, env, "terrain", "tag", "obj-1", "-a", "species=arabidopsis", "-a", "plot=7")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Tagged data object with ID obj-1")

	stdout, _, err := execute(t, env, "terrain", "tags", "obj-1")
	require.NoError(t, err)
	assert.Equal(t, "plot=7\nspecies=arabidopsis\n", stdout)

	_, _, err = execute(t, env, "terrain", "tag", "obj-1", "-a", "novalue")
	assert.Error(t, err)
}

func TestParseAttributes(t *testing.T) {
	got, err := ParseAttributes([]string{"a=1", " b =x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y", "c": ""}, got)

	_, err = ParseAttributes([]string{"=1"})
	assert.Error(t, err)
}

// --- status ---

func TestFormatMessage(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	status := mq.NewMessage(mq.MessageTypeStatusUpdated, "job-1", map[string]any{
		"status_set": []any{map[string]any{"state": 4, "date": "x", "description": "No output files matched"}},
	})
	status.Timestamp = ts
	assert.Equal(t, "2024-03-01T12:00:00Z [job-1] Status (WARN): No output files matched", FormatMessage(status))

	task := mq.NewMessage(mq.MessageTypeTaskUpdated, "job-1", map[string]any{"task_set": []any{map[string]any{"pk": "r1", "complete": true}}})
	task.Timestamp = ts
	assert.Equal(t, `2024-03-01T12:00:00Z [job-1] task.updated {"task_set":[{"complete":true,"pk":"r1"}]}`, FormatMessage(task))
}

func TestWatchHandler_FiltersJob(t *testing.T) {
	var buf bytes.Buffer
	h := WatchHandler(&buf, "job-1")

	mine := &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeJobUpdated, "job-1", map[string]any{"k": "v"})}
	other := &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeJobUpdated, "job-2", map[string]any{"k": "v"})}

	require.NoError(t, h(context.Background(), mine))
	require.NoError(t, h(context.Background(), other))

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "[job-1]")
}

func TestHistoryRows(t *testing.T) {
	warn := int(domain.StateWarn)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := HistoryRows([]repo.StatusRecord{
		{JobID: "job-1", Kind: repo.RecordStatus, State: &warn, Description: "careful", CreatedAt: ts},
		{JobID: "job-1", Kind: repo.RecordTask, TaskID: "r1", Props: map[string]any{"complete": true}, CreatedAt: ts},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2024-03-01T12:00:00Z", "status", "WARN", "", "careful"}, rows[0])
	assert.Equal(t, []string{"2024-03-01T12:00:00Z", "task", "", "r1", `{"complete":true}`}, rows[1])
}
