package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP:    HTTPConfig{Port: 3004},
		Dataset: DatasetConfig{Path: "/data/records.csv", Delimiter: ",", Encoding: "utf-8"},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingDatasetPath(t *testing.T) {
	cfg := validConfig()
	cfg.Dataset.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing dataset.path")
	}
}

func TestValidate_BadDelimiter(t *testing.T) {
	for _, delim := range []string{"", ",,", "ab"} {
		cfg := validConfig()
		cfg.Dataset.Delimiter = delim
		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for delimiter %q", delim)
		}
	}
}

func TestValidate_BadEncoding(t *testing.T) {
	cfg := validConfig()
	cfg.Dataset.Encoding = "utf-16"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 3004},
		Dataset: DatasetConfig{Path: "/data/records.csv"},
		Geo:     GeoConfig{RegionsFile: "/data/geo/regions.geojson"},
	}
	cfg.ApplyDefaults()

	if cfg.Dataset.Delimiter != "," {
		t.Errorf("expected default delimiter ',', got %q", cfg.Dataset.Delimiter)
	}
	if cfg.Dataset.Encoding != "utf-8" {
		t.Errorf("expected default encoding utf-8, got %q", cfg.Dataset.Encoding)
	}
	if cfg.Geo.CustomDir != "/data/geo/custom_aoi" {
		t.Errorf("expected custom dir next to regions file, got %q", cfg.Geo.CustomDir)
	}
	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected default read timeout 10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
}

func TestDelimiterRune(t *testing.T) {
	cfg := validConfig()
	cfg.Dataset.Delimiter = ";"
	if r := cfg.DelimiterRune(); r != ';' {
		t.Errorf("expected ';', got %q", r)
	}
}
