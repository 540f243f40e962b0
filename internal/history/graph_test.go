package history

import "testing"

func TestGraph_Role(t *testing.T) {
	// 1 <- 2 <- 3, and 4 derived from 2
	g := NewGraph([][2]int64{{2, 1}, {3, 2}, {4, 2}})

	tests := []struct {
		id   int64
		want VersionRole
	}{
		{1, RoleOriginal},
		{2, RoleIntermediate},
		{3, RoleCurrent},
		{4, RoleCurrent},
		{99, RoleNone},
	}
	for _, tt := range tests {
		if got := g.Role(tt.id); got != tt.want {
			t.Errorf("Role(%d) = %v, want %v", tt.id, got, tt.want)
		}
	}

	vs := g.Vertices()
	if len(vs) != 4 || vs[0] != 1 || vs[3] != 4 {
		t.Errorf("Vertices() = %v", vs)
	}
}

func TestGraph_SelfEdgeIgnored(t *testing.T) {
	g := NewGraph([][2]int64{{5, 5}})
	if len(g.Vertices()) != 0 {
		t.Errorf("Vertices() = %v, want none", g.Vertices())
	}
	if g.Role(5) != RoleNone {
		t.Errorf("Role(5) = %v", g.Role(5))
	}
}

func TestParseDescription(t *testing.T) {
	d, err := ParseDescription([]byte(`{"uuid":"a","derived_from":[{"hash":"h","size":3}]}`))
	if err != nil {
		t.Fatalf("ParseDescription() error = %v", err)
	}
	if d.UUID != "a" || !d.HasReferences() || d.DerivedFrom[0].FileSize != 3 {
		t.Errorf("description = %+v", d)
	}

	if _, err := ParseDescription([]byte("not json")); err == nil {
		t.Error("ParseDescription() expected error for invalid input")
	}
}
