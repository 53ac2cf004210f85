package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Acquire/internal/domain"
)

const gridSpec = `
name: grid
description: two point grid
parameters:
  - name: num
    type: int
    default: 2
steps:
  - type: open_run
  - type: loop
    count: '{{ .Params.num }}'
    steps:
      - type: trigger
        device: det1
      - type: read
        device: det1
  - type: close_run
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLibrary_Builtins(t *testing.T) {
	lib := New(Config{})

	names := make([]string, 0)
	for _, info := range lib.List() {
		names = append(names, info.Name)
		assert.Equal(t, SourceBuiltin, info.Source)
		assert.NotEmpty(t, info.Parameters)
	}
	assert.Equal(t, []string{"count", "list_scan", "scan"}, names)

	plan, err := lib.Get("count")
	require.NoError(t, err)
	_, ok := domain.IsParameterized(plan)
	assert.True(t, ok)
}

func TestLibrary_RegisterGetRemove(t *testing.T) {
	lib := New(Config{})
	plan := domain.NewPlan("align", domain.Command{Type: domain.CommandCheckpoint})

	require.NoError(t, lib.Register(plan))
	got, err := lib.Get("align")
	require.NoError(t, err)
	assert.Same(t, plan, got)

	info, err := lib.Info("align")
	require.NoError(t, err)
	assert.Equal(t, SourceCode, info.Source)

	require.NoError(t, lib.Remove("align"))
	_, err = lib.Get("align")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestLibrary_BuiltinsProtected(t *testing.T) {
	lib := New(Config{})

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{name: "remove builtin", call: func() error { return lib.Remove("count") }, want: ErrBuiltinPlan},
		{name: "replace builtin", call: func() error { return lib.Register(domain.NewPlan("scan")) }, want: ErrBuiltinPlan},
		{name: "remove unknown", call: func() error { return lib.Remove("nope") }, want: ErrPlanNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.want)
		})
	}
}

func TestLibrary_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grid.yaml", gridSpec)
	writeFile(t, dir, "broken.yml", "name: broken\nsteps: []\n")
	writeFile(t, dir, "notes.txt", "not a plan")

	var changed []string
	lib := New(Config{OnChange: func(name string, removed bool) {
		if !removed {
			changed = append(changed, name)
		}
	}})

	loaded, err := lib.LoadDir(dir)
	assert.Equal(t, 1, loaded)
	assert.Error(t, err, "broken file should be reported")
	assert.Equal(t, []string{"grid"}, changed)

	info, err := lib.Info("grid")
	require.NoError(t, err)
	assert.Equal(t, SourceFile, info.Source)
	assert.Equal(t, "two point grid", info.Description)

	plan, err := lib.Get("grid")
	require.NoError(t, err)
	p, ok := domain.IsParameterized(plan)
	require.True(t, ok)

	bound, err := p.Bind(map[string]any{"num": 3})
	require.NoError(t, err)
	n := 0
	for range bound.Commands() {
		n++
	}
	// open + 3 × (trigger, read) + close
	assert.Equal(t, 8, n)
}

func TestLibrary_LoadFileRenamedPlan(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "grid.yaml", gridSpec)

	lib := New(Config{})
	_, err := lib.LoadFile(path)
	require.NoError(t, err)

	writeFile(t, dir, "grid.yaml", "name: grid2"+gridSpec[len("\nname: grid"):])
	_, err = lib.LoadFile(path)
	require.NoError(t, err)

	_, err = lib.Get("grid")
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, err = lib.Get("grid2")
	assert.NoError(t, err)
}

func TestLibrary_Watch(t *testing.T) {
	dir := t.TempDir()
	lib := New(Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, lib.Watch(ctx, dir))

	path := writeFile(t, dir, "grid.yaml", gridSpec)
	require.Eventually(t, func() bool {
		_, err := lib.Get("grid")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, err := lib.Get("grid")
		return err != nil
	}, 3*time.Second, 20*time.Millisecond)
}

func TestLibrary_WatchMissingDir(t *testing.T) {
	lib := New(Config{})
	err := lib.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
