package patterns

import "testing"

func TestLookupFirstMatchWins(t *testing.T) {
	m, err := Compile([]Entry[string]{
		{Key: "METEOSAT_EUROPA.*", Value: "europa"},
		{Key: "METEOSAT.*", Value: "any"},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	v, ok := m.Lookup("METEOSAT_EUROPA_GESAMT_IR108_xxx")
	if !ok || v != "europa" {
		t.Fatalf("lookup: got %q ok=%v", v, ok)
	}
	v, ok = m.Lookup("METEOSAT_ASIEN_IR108")
	if !ok || v != "any" {
		t.Fatalf("lookup: got %q ok=%v", v, ok)
	}
}

func TestLookupMatchesFromStartOnly(t *testing.T) {
	m, err := Compile([]Entry[int]{{Key: "EUROPA", Value: 1}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := m.Lookup("METEOSAT_EUROPA"); ok {
		t.Fatalf("pattern should not match mid-string")
	}
	if _, ok := m.Lookup("EUROPA_GESAMT"); !ok {
		t.Fatalf("pattern should match prefix")
	}
}

func TestLookupNoMatch(t *testing.T) {
	m, err := Compile([]Entry[int]{{Key: "ABC", Value: 1}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := m.Lookup("XYZ"); ok {
		t.Fatalf("unexpected match")
	}
	var empty *Map[int]
	if _, ok := empty.Lookup("ABC"); ok {
		t.Fatalf("nil map should not match")
	}
	if !empty.Empty() {
		t.Fatalf("nil map should be empty")
	}
}

func TestCompileInvalidPattern(t *testing.T) {
	if _, err := Compile([]Entry[int]{{Key: "[", Value: 1}}); err == nil {
		t.Fatalf("expected compile error")
	}
}
