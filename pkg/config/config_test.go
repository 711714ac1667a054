package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strptr(s string) *string   { return &s }
func f32ptr(f float32) *float32 { return &f }

func Test_Load_With_No_Files_Returns_Defaults(t *testing.T) {
	dir := t.TempDir()

	got, err := Load(map[string]string{}, dir, "", Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func Test_Load_Precedence_Global_Then_Project_Then_Flag(t *testing.T) {
	home := t.TempDir()
	globalDir := filepath.Join(home, ".config", "ringdb")
	if err := os.MkdirAll(globalDir, 0o755); err != nil {
		t.Fatalf("mkdir global: %v", err)
	}

	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), []byte(`{
		"listenAddr": "0.0.0.0:9000",
		"authKey": "global-key"
	}`), 0o644); err != nil {
		t.Fatalf("write global config: %v", err)
	}

	projectDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(projectDir, ConfigFileName), []byte(`{
		// project overrides the auth key only
		"authKey": "project-key",
	}`), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	env := map[string]string{"HOME": home}

	got, err := Load(env, projectDir, "", Overrides{AuthKey: strptr("flag-key")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("ListenAddr = %q, want global value", got.ListenAddr)
	}

	if got.Sources.ListenAddr != SourceGlobal {
		t.Errorf("Sources.ListenAddr = %v, want SourceGlobal", got.Sources.ListenAddr)
	}

	if got.AuthKey != "flag-key" {
		t.Errorf("AuthKey = %q, want flag value to win", got.AuthKey)
	}

	if got.Sources.AuthKey != SourceFlag {
		t.Errorf("Sources.AuthKey = %v, want SourceFlag", got.Sources.AuthKey)
	}
}

func Test_Load_Discovers_Project_Config_By_Walking_Up(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ConfigFileName), []byte(`{"baseDir": "/data/ringdb"}`), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}

	got, err := Load(map[string]string{}, nested, "", Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.BaseDir != "/data/ringdb" {
		t.Errorf("BaseDir = %q, want /data/ringdb", got.BaseDir)
	}

	if got.Sources.BaseDir != SourceProject {
		t.Errorf("Sources.BaseDir = %v, want SourceProject", got.Sources.BaseDir)
	}
}

func Test_Load_Explicit_Path_Skips_Discovery(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.json")

	if err := os.WriteFile(explicit, []byte(`{"defaultThreshold": 0.9}`), 0o644); err != nil {
		t.Fatalf("write explicit config: %v", err)
	}

	got, err := Load(map[string]string{}, dir, explicit, Overrides{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.DefaultThreshold != 0.9 {
		t.Errorf("DefaultThreshold = %v, want 0.9", got.DefaultThreshold)
	}
}

func Test_Load_Flag_Override_Wins_Without_Any_File(t *testing.T) {
	dir := t.TempDir()

	got, err := Load(map[string]string{}, dir, "", Overrides{DefaultThreshold: f32ptr(0.1)})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.DefaultThreshold != 0.1 {
		t.Errorf("DefaultThreshold = %v, want 0.1", got.DefaultThreshold)
	}

	if got.Sources.DefaultThreshold != SourceFlag {
		t.Errorf("Sources.DefaultThreshold = %v, want SourceFlag", got.Sources.DefaultThreshold)
	}
}
