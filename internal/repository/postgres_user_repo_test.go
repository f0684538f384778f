package repository

import (
	"testing"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestNullString(t *testing.T) {
	if ns := nullString(""); ns.Valid {
		t.Error("empty string should map to NULL")
	}
	if ns := nullString("v"); !ns.Valid || ns.String != "v" {
		t.Errorf("nullString(%q) = %+v", "v", ns)
	}
}
