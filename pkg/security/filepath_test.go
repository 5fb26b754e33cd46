package security

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestJoinWithin(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		rel     string
		want    string
		wantErr error
	}{
		{name: "nested key", rel: "blog/42/cover.png", want: filepath.Join(base, "blog", "42", "cover.png")},
		{name: "dot segments inside", rel: "a/./b/../c.txt", want: filepath.Join(base, "a", "c.txt")},
		{name: "empty", rel: "", wantErr: ErrInvalidPath},
		{name: "absolute", rel: "/etc/passwd", wantErr: ErrInvalidPath},
		{name: "escapes", rel: "../outside.txt", wantErr: ErrPathTraversal},
		{name: "escapes after descending", rel: "a/../../outside.txt", wantErr: ErrPathTraversal},
		{name: "resolves to base", rel: "a/..", wantErr: ErrPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinWithin(base, tt.rel)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("JoinWithin() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("JoinWithin() = %q, want %q", got, tt.want)
			}
		})
	}
}
