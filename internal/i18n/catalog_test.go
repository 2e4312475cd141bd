package i18n

import "testing"

func TestLoadSupportedLocales(t *testing.T) {
	catalog := NewCatalog("en")

	english, err := catalog.Load("en")
	if err != nil {
		t.Fatalf("failed to load en: %v", err)
	}
	if english.Get("home.title") == "home.title" {
		t.Fatal("expected en bundle to define home.title")
	}

	spanish, err := catalog.Load("es")
	if err != nil {
		t.Fatalf("failed to load es: %v", err)
	}
	if spanish.Get("home.title") == english.Get("home.title") {
		t.Fatal("expected es bundle to differ from en")
	}
}

func TestLoadFallsBackToDefault(t *testing.T) {
	catalog := NewCatalog("en")

	bundle, err := catalog.Load("xx")
	if err != nil {
		t.Fatalf("unknown locale must fall back, got error: %v", err)
	}
	english, _ := catalog.Load("en")
	if bundle.Get("home.title") != english.Get("home.title") {
		t.Fatal("fallback bundle must equal the default locale bundle")
	}

	if _, err := catalog.Load(""); err != nil {
		t.Fatalf("empty locale must load the default, got error: %v", err)
	}
}

func TestBundleGetFallsBackToKey(t *testing.T) {
	bundle := Bundle{"known": "value"}
	if got := bundle.Get("known"); got != "value" {
		t.Fatalf("unexpected value %q", got)
	}
	if got := bundle.Get("missing.key"); got != "missing.key" {
		t.Fatalf("missing keys must render as themselves, got %q", got)
	}
}

func TestLoadCachesBundles(t *testing.T) {
	catalog := NewCatalog("en")
	first, err := catalog.Load("en")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	second, err := catalog.Load("EN")
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if first.Get("home.title") != second.Get("home.title") {
		t.Fatal("case-insensitive loads must hit the same bundle")
	}
}
