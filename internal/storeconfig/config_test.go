package storeconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReloadResolvesExtendsChain(t *testing.T) {
	r := NewRegistry()

	base := []byte(`{"chain_id":"tnt_ca","identification":{"primary_name":"T&T Supermarket"},"pipeline":{"skew_correction":true,"row_epsilon":0.01}}`)
	child := []byte(`{"chain_id":"tnt_us","extends":"tnt_ca","identification":{"primary_name":"T&T Supermarket (US)"},"pipeline":{"skew_correction":true,"row_epsilon":0.02}}`)

	if e := r.Reload(map[string][]byte{"tnt_ca": base, "tnt_us": child}); e != nil {
		t.Fatalf("Reload returned error: %v", e)
	}

	resolved, ok := r.Get("tnt_us")
	if !ok {
		t.Fatal("expected tnt_us to resolve")
	}
	if resolved.Identification.PrimaryName != "T&T Supermarket (US)" {
		t.Errorf("child's own primary_name should win, got %q", resolved.Identification.PrimaryName)
	}
	if !resolved.Pipeline.SkewCorrection || resolved.Pipeline.RowEpsilon != 0.02 {
		t.Errorf("expected the child's own pipeline settings (row_epsilon set) to replace the base's, got %+v", resolved.Pipeline)
	}
}

func TestReloadRejectsCircularExtends(t *testing.T) {
	r := NewRegistry()
	a := []byte(`{"chain_id":"a","extends":"b"}`)
	b := []byte(`{"chain_id":"b","extends":"a"}`)

	if e := r.Reload(map[string][]byte{"a": a, "b": b}); e == nil {
		t.Fatal("expected a circular extends chain to be rejected")
	}
}

func TestMatchMerchantPrefersLongestAlias(t *testing.T) {
	r := NewRegistry()
	costco := []byte(`{"chain_id":"costco_us_digital","identification":{"primary_name":"costco wholesale","aliases":["costco"]}}`)
	if e := r.Reload(map[string][]byte{"costco_us_digital": costco}); e != nil {
		t.Fatalf("Reload returned error: %v", e)
	}

	cfg, ok := r.MatchMerchant("COSTCO WHOLESALE #123")
	if !ok || cfg.ChainID != "costco_us_digital" {
		t.Fatalf("expected a match on costco_us_digital, got %+v, %v", cfg, ok)
	}
}

func TestMatchMerchantNoMatch(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.MatchMerchant("Some Unknown Store"); ok {
		t.Fatal("expected no match against an empty registry")
	}
}

func TestReloadDirKeysByFilenameStem(t *testing.T) {
	dir := t.TempDir()
	doc := []byte(`{"identification":{"primary_name":"Costco Wholesale"}}`)
	if err := os.WriteFile(filepath.Join(dir, "costco_ca_digital.json"), doc, 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	r := NewRegistry()
	if e := r.ReloadDir(dir); e != nil {
		t.Fatalf("ReloadDir returned error: %v", e)
	}

	cfg, ok := r.Get("costco_ca_digital")
	if !ok {
		t.Fatal("expected costco_ca_digital to be loaded from costco_ca_digital.json")
	}
	if cfg.ChainID != "costco_ca_digital" {
		t.Errorf("expected ChainID defaulted from the filename stem, got %q", cfg.ChainID)
	}
}

func TestReloadDirMissingDirectoryIsNotAnError(t *testing.T) {
	r := NewRegistry()
	if e := r.ReloadDir(filepath.Join(t.TempDir(), "does-not-exist")); e != nil {
		t.Fatalf("expected a missing directory to be a no-op, got %v", e)
	}
	if _, ok := r.Get("anything"); ok {
		t.Fatal("expected the registry to remain empty")
	}
}
