package seedsource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/conorfennell/archpad/internal/domain"
)

type memStore struct {
	terms    []domain.Term
	formulas []domain.Formula
}

func (m *memStore) GetAllTerms() ([]domain.Term, error)       { return m.terms, nil }
func (m *memStore) GetAllFormulas() ([]domain.Formula, error) { return m.formulas, nil }

func (m *memStore) PutTerm(t domain.Term) error {
	m.terms = append(m.terms, t)
	return nil
}

func (m *memStore) PutFormula(f domain.Formula) error {
	m.formulas = append(m.formulas, f)
	return nil
}

func writeSeed(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write seed file %s: %v", name, err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("reads both seed files", func(t *testing.T) {
		dir := t.TempDir()
		writeSeed(t, dir, "terms.json", `[{"id":1,"term":"Atrium","definition":"d","category":"Design"}]`)
		writeSeed(t, dir, "formulas.json", `[{"id":1,"name":"Area","formula":"l*w","description":"","variables":["l","w"]}]`)

		terms, formulas, err := Load(dir)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(terms) != 1 || terms[0].Term != "Atrium" {
			t.Errorf("Expected the seed term, got %+v", terms)
		}
		if len(formulas) != 1 || formulas[0].Name != "Area" {
			t.Errorf("Expected the seed formula, got %+v", formulas)
		}
	})

	t.Run("missing files yield empty collections", func(t *testing.T) {
		terms, formulas, err := Load(t.TempDir())
		if err != nil {
			t.Fatalf("Expected missing seed files to be fine, got %v", err)
		}
		if len(terms) != 0 || len(formulas) != 0 {
			t.Errorf("Expected empty seeds, got %d terms and %d formulas", len(terms), len(formulas))
		}
	})

	t.Run("malformed JSON is an error", func(t *testing.T) {
		dir := t.TempDir()
		writeSeed(t, dir, "terms.json", `{not json`)

		if _, _, err := Load(dir); err == nil {
			t.Error("Expected an error for malformed seed JSON")
		}
	})
}

func TestProvision(t *testing.T) {
	t.Run("fills empty mirrors", func(t *testing.T) {
		dir := t.TempDir()
		writeSeed(t, dir, "terms.json", `[{"id":1,"term":"Atrium","definition":"d","category":"Design"}]`)

		store := &memStore{}
		if err := Provision(store, dir); err != nil {
			t.Fatalf("Provision failed: %v", err)
		}
		if len(store.terms) != 1 {
			t.Errorf("Expected 1 provisioned term, got %d", len(store.terms))
		}
	})

	t.Run("never overwrites a non-empty mirror", func(t *testing.T) {
		dir := t.TempDir()
		writeSeed(t, dir, "terms.json", `[{"id":1,"term":"Seed","definition":"d","category":"c"}]`)

		store := &memStore{terms: []domain.Term{{ID: 1, Term: "Synced", Definition: "d", Category: "c"}}}
		if err := Provision(store, dir); err != nil {
			t.Fatalf("Provision failed: %v", err)
		}
		if len(store.terms) != 1 || store.terms[0].Term != "Synced" {
			t.Errorf("Expected synced data to be untouched, got %+v", store.terms)
		}
	})
}
