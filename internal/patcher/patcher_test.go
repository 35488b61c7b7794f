package patcher

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/llm2fs/internal/fs"
	"github.com/sokinpui/llm2fs/internal/marker"
	"github.com/sokinpui/llm2fs/model"
)

const mainRS = "fn main() {\n    println!(\"hi\");\n}"

func setup(t *testing.T, files map[string]string, opts Options) (billy.Filesystem, *Applier, context.Context) {
	t.Helper()
	mem := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(mem, name, []byte(content), 0o644))
	}
	ctx := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).WithContext(context.Background())
	return mem, New(fs.NewWorkspaceFS(mem), opts), ctx
}

func read(t *testing.T, mem billy.Filesystem, name string) string {
	t.Helper()
	data, err := util.ReadFile(mem, name)
	require.NoError(t, err)
	return string(data)
}

func TestApply_Edits(t *testing.T) {
	tests := []struct {
		name    string
		content string
		op      model.Operation
		want    string
		lines   int
	}{
		{
			name:    "insert_before_closing_brace",
			content: mainRS,
			op: model.InsertBefore{
				Insert: model.NewLines(`    println!("bye");`),
				Marker: model.NewLines("}"),
			},
			want:  "fn main() {\n    println!(\"hi\");\n    println!(\"bye\");\n}",
			lines: 1,
		},
		{
			name:    "insert_after_marker_with_drifted_indent",
			content: mainRS,
			op: model.InsertAfter{
				Insert: model.NewLines(`    println!("bye");`),
				Marker: model.NewLines(`  println!("hi");`),
			},
			want:  "fn main() {\n    println!(\"hi\");\n    println!(\"bye\");\n}",
			lines: 1,
		},
		{
			name:    "delete_line",
			content: mainRS,
			op:      model.Delete{Target: model.NewLines(`    println!("hi");`)},
			want:    "fn main() {\n}",
			lines:   1,
		},
		{
			name:    "insert_after_blank_marker_on_empty_file",
			content: "",
			op: model.InsertAfter{
				Insert: model.NewLines("line one"),
				Marker: model.NewLines(""),
			},
			want:  "line one",
			lines: 1,
		},
		{
			name:    "insert_before_blank_marker_prepends",
			content: "b\n",
			op: model.InsertBefore{
				Insert: model.NewLines("a"),
				Marker: model.NewLines("  "),
			},
			want:  "a\nb\n",
			lines: 1,
		},
		{
			name:    "insert_after_drops_echoed_marker",
			content: "a\nb\nc\n",
			op: model.InsertAfter{
				Insert: model.NewLines(" b", "x"),
				Marker: model.NewLines("b"),
			},
			want:  "a\nb\nx\nc\n",
			lines: 1,
		},
		{
			name:    "insert_before_drops_leading_echo",
			content: "a\nb\n",
			op: model.InsertBefore{
				Insert: model.NewLines("b", "x"),
				Marker: model.NewLines("b"),
			},
			want:  "a\nx\nb\n",
			lines: 1,
		},
		{
			name:    "partial_echo_kept",
			content: "a\nb\nc\n",
			op: model.InsertAfter{
				Insert: model.NewLines("a"),
				Marker: model.NewLines("a", "b"),
			},
			want:  "a\nb\na\nc\n",
			lines: 1,
		},
		{
			name:    "crlf_preserved",
			content: "one\r\ntwo\r\n",
			op: model.InsertAfter{
				Insert: model.NewLines("mid"),
				Marker: model.NewLines("one"),
			},
			want:  "one\r\nmid\r\ntwo\r\n",
			lines: 1,
		},
		{
			name:    "delete_multiple_lines",
			content: "a\nb\nc\nd\n",
			op:      model.Delete{Target: model.NewLines("b", "c")},
			want:    "a\nd\n",
			lines:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, a, ctx := setup(t, map[string]string{"f.txt": tt.content}, Options{})

			out, err := a.Apply(ctx, model.Change{Path: "f.txt", Op: tt.op})
			require.NoError(t, err)
			assert.Equal(t, tt.lines, out.Lines)
			assert.Equal(t, tt.want, read(t, mem, "f.txt"))
			require.NotNil(t, out.Before)
			require.NotNil(t, out.After)
			assert.Equal(t, tt.content, string(out.Before.Content))
			assert.Equal(t, tt.want, string(out.After.Content))
		})
	}
}

func TestApply_RoundTrip(t *testing.T) {
	original := "package main\n\nfunc main() {\n\treturn\n}\n"
	mem, a, ctx := setup(t, map[string]string{"main.go": original}, Options{})
	insert := model.NewLines("\tprintln(\"one\")", "\tprintln(\"two\")")

	_, err := a.Apply(ctx, model.Change{Path: "main.go", Op: model.InsertAfter{Insert: insert, Marker: model.NewLines("func main() {")}})
	require.NoError(t, err)
	assert.NotEqual(t, original, read(t, mem, "main.go"))

	_, err = a.Apply(ctx, model.Change{Path: "main.go", Op: model.Delete{Target: insert}})
	require.NoError(t, err)
	assert.Equal(t, original, read(t, mem, "main.go"))
}

func TestApply_MarkerNotFound(t *testing.T) {
	mem, a, ctx := setup(t, map[string]string{"f.txt": mainRS}, Options{})

	_, err := a.Apply(ctx, model.Change{Path: "f.txt", Op: model.InsertBefore{
		Insert: model.NewLines("x"),
		Marker: model.NewLines("something else entirely"),
	}})
	require.ErrorIs(t, err, model.ErrMarkerNotFound)

	var nf *marker.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.GreaterOrEqual(t, nf.Best, 0)
	assert.Equal(t, mainRS, read(t, mem, "f.txt"))
}

func TestApply_DeleteBlankTargetRefused(t *testing.T) {
	mem, a, ctx := setup(t, map[string]string{"f.txt": mainRS}, Options{})

	_, err := a.Apply(ctx, model.Change{Path: "f.txt", Op: model.Delete{Target: model.NewLines("", " ")}})
	require.ErrorIs(t, err, model.ErrMarkerNotFound)
	assert.Equal(t, mainRS, read(t, mem, "f.txt"))
}

func TestApply_EditMissingFile(t *testing.T) {
	_, a, ctx := setup(t, nil, Options{})

	_, err := a.Apply(ctx, model.Change{Path: "nope.txt", Op: model.InsertAfter{Insert: model.NewLines("x")}})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApply_CreateFile(t *testing.T) {
	t.Run("creates_parents", func(t *testing.T) {
		mem, a, ctx := setup(t, nil, Options{})

		out, err := a.Apply(ctx, model.Change{Path: "pkg/sub/new.go", Op: model.CreateFile{Content: model.NewLines("package sub", "")}})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Lines)
		assert.Nil(t, out.Before)
		assert.Equal(t, "package sub\n", read(t, mem, "pkg/sub/new.go"))
	})

	t.Run("existing_file_untouched", func(t *testing.T) {
		mem, a, ctx := setup(t, map[string]string{"f.txt": "keep me"}, Options{})

		_, err := a.Apply(ctx, model.Change{Path: "f.txt", Op: model.CreateFile{Content: model.NewLines("overwrite")}})
		require.ErrorIs(t, err, model.ErrAlreadyExists)
		assert.Equal(t, "keep me", read(t, mem, "f.txt"))
	})
}

func TestApply_RenameFile(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		to      string
		wantErr error
	}{
		{name: "moves_into_new_dir", files: map[string]string{"a.txt": "A"}, to: "dir/b.txt"},
		{name: "missing_source", files: nil, to: "b.txt", wantErr: model.ErrNotFound},
		{name: "existing_destination", files: map[string]string{"a.txt": "A", "b.txt": "B"}, to: "b.txt", wantErr: model.ErrAlreadyExists},
		{name: "escaping_destination", files: map[string]string{"a.txt": "A"}, to: "../b.txt", wantErr: model.ErrPathEscapesRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, a, ctx := setup(t, tt.files, Options{})

			_, err := a.Apply(ctx, model.Change{Path: "a.txt", Op: model.RenameFile{NewPath: tt.to}})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "A", read(t, mem, tt.to))
			_, err = mem.Stat("a.txt")
			assert.Error(t, err)
		})
	}
}

func TestApply_DeleteFile(t *testing.T) {
	mem, a, ctx := setup(t, map[string]string{"f.txt": "a\nb\n"}, Options{})

	out, err := a.Apply(ctx, model.Change{Path: "f.txt", Op: model.DeleteFile{}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Lines)
	assert.Nil(t, out.After)
	_, err = mem.Stat("f.txt")
	assert.Error(t, err)

	_, err = a.Apply(ctx, model.Change{Path: "f.txt", Op: model.DeleteFile{}})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApply_PathGuard(t *testing.T) {
	guard, err := fs.NewGuard(fs.DefaultProtected)
	require.NoError(t, err)
	_, a, ctx := setup(t, nil, Options{Guard: guard})

	_, err = a.Apply(ctx, model.Change{Path: "/etc/passwd", Op: model.DeleteFile{}})
	assert.ErrorIs(t, err, model.ErrPathEscapesRoot)
	assert.True(t, model.IsSkip(err))

	_, err = a.Apply(ctx, model.Change{Path: ".git/HEAD", Op: model.CreateFile{Content: model.NewLines("x")}})
	assert.ErrorIs(t, err, model.ErrPathProtected)
	assert.True(t, model.IsSkip(err))
}

func TestApply_DryRun(t *testing.T) {
	mem, a, ctx := setup(t, map[string]string{"f.txt": "a\nc\n"}, Options{DryRun: true})

	out, err := a.Apply(ctx, model.Change{Path: "f.txt", Op: model.InsertAfter{
		Insert: model.NewLines("b"),
		Marker: model.NewLines("a"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "a\nc\n", read(t, mem, "f.txt"))
	assert.Equal(t, "  a\n+ b\n  c\n", out.Preview)

	_, err = a.Apply(ctx, model.Change{Path: "new.txt", Op: model.CreateFile{Content: model.NewLines("x")}})
	require.NoError(t, err)
	_, err = mem.Stat("new.txt")
	assert.Error(t, err)
}

func TestApply_ChangeNotMutated(t *testing.T) {
	_, a, ctx := setup(t, map[string]string{"f.txt": "a\nb\n"}, Options{})
	insert := model.NewLines("a", "x")
	change := model.Change{Path: "./f.txt", Op: model.InsertAfter{Insert: insert, Marker: model.NewLines("a")}}

	_, err := a.Apply(ctx, change)
	require.NoError(t, err)
	assert.Equal(t, "./f.txt", change.Path)
	assert.Equal(t, model.NewLines("a", "x"), change.Op.(model.InsertAfter).Insert)
}
