package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/github-user-browser/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestRow(t *testing.T) {
	tests := []struct {
		name   string
		record model.Record
		want   []string
	}{
		{
			name: "full user hireable",
			record: model.Record{Full: &model.User{
				ID: 1, Login: "octocat", Name: "The Octocat", Email: "octo@example.com",
				Company: "GitHub", URL: "https://api.github.com/users/octocat", Hireable: boolPtr(true),
			}},
			want: []string{"octocat", "The Octocat", "octo@example.com", "GitHub", "https://api.github.com/users/octocat", "True"},
		},
		{
			name:   "full user not hireable",
			record: model.Record{Full: &model.User{ID: 2, Login: "dev", Hireable: boolPtr(false)}},
			want:   []string{"dev", "", "", "", "", "False"},
		},
		{
			name:   "hireable unknown",
			record: model.Record{Full: &model.User{ID: 3, Login: "anon"}},
			want:   []string{"anon", "", "", "", "", ""},
		},
		{
			name:   "summary only",
			record: model.Record{Summary: model.SummaryUser{ID: 4, Login: "lazy", URL: "https://api.github.com/users/lazy"}},
			want:   []string{"lazy", "", "", "", "https://api.github.com/users/lazy", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Row(tt.record))
		})
	}
}

func TestWrite(t *testing.T) {
	records := []model.Record{
		{Full: &model.User{ID: 1, Login: "a", Name: "Smith, Jane", Company: "Acme"}},
		{Summary: model.SummaryUser{ID: 2, Login: "b"}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))

	want := "Login,Name,Email,Company,URL,Hireable\n" +
		"a,\"Smith, Jane\",,Acme,,\n" +
		"b,,,,,\n"
	assert.Equal(t, want, buf.String())
}

func TestWrite_HeaderOnlyForNoRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Equal(t, "Login,Name,Email,Company,URL,Hireable\n", buf.String())
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("old content"), 0o644))

	err := WriteFile(path, []model.Record{{Full: &model.User{ID: 1, Login: "a"}}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Login,Name,Email,Company,URL,Hireable\na,,,,,\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "users.csv")
	assert.Error(t, WriteFile(path, nil))
}
