package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pickctx/pickctx/internal/utils"
)

func boolPointer(value bool) *bool {
	pointer := value
	return &pointer
}

func TestLoadApplicationConfigurationMergesSources(t *testing.T) {
	testCases := []struct {
		name              string
		globalContent     string
		localContent      string
		explicitPath      string
		expectSummary     *bool
		expectClipboard   *bool
		expectTokens      *bool
		expectModel       string
		expectMapJSON     *bool
		expectPackExclude []string
	}{
		{
			name:            "local_overrides_global",
			globalContent:   "pack:\n  summary: false\n  tokens:\n    model: gpt-4\n",
			localContent:    "pack:\n  clipboard: true\n  tokens:\n    enabled: true\n    model: custom\n",
			expectSummary:   boolPointer(false),
			expectClipboard: boolPointer(true),
			expectTokens:    boolPointer(true),
			expectModel:     "custom",
		},
		{
			name:          "explicit_path_wins_over_missing_local",
			globalContent: "pack:\n  tokens:\n    model: gpt-4\n",
			explicitPath:  "custom.yaml",
			expectModel:   "from-explicit",
		},
		{
			name:          "map_section_is_independent",
			globalContent: "map:\n  json: true\n",
			expectMapJSON: boolPointer(true),
		},
		{
			name:              "exclude_patterns_deduplicated",
			globalContent:     "pack:\n  paths:\n    exclude:\n      - node_modules\n      - node_modules\n      - dist\n",
			expectPackExclude: []string{"node_modules", "dist"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			homeDir := t.TempDir()
			workingDir := t.TempDir()
			configDir := filepath.Join(homeDir, utils.GlobalConfigDirectoryName)
			if err := os.MkdirAll(configDir, 0o755); err != nil {
				t.Fatalf("create config dir: %v", err)
			}
			if testCase.globalContent != "" {
				globalPath := filepath.Join(configDir, utils.ConfigFileName)
				if err := os.WriteFile(globalPath, []byte(testCase.globalContent), 0o600); err != nil {
					t.Fatalf("write global config: %v", err)
				}
			}
			if testCase.localContent != "" {
				localPath := filepath.Join(workingDir, utils.ConfigFileName)
				if err := os.WriteFile(localPath, []byte(testCase.localContent), 0o600); err != nil {
					t.Fatalf("write local config: %v", err)
				}
			}
			if testCase.explicitPath != "" {
				target := filepath.Join(workingDir, testCase.explicitPath)
				if err := os.WriteFile(target, []byte("pack:\n  tokens:\n    model: from-explicit\n"), 0o600); err != nil {
					t.Fatalf("write explicit config: %v", err)
				}
			}

			t.Setenv("HOME", homeDir)
			t.Setenv("USERPROFILE", homeDir)

			loadedConfig, err := LoadApplicationConfiguration(LoadOptions{
				WorkingDirectory: workingDir,
				ExplicitFilePath: testCase.explicitPath,
			})
			if err != nil {
				t.Fatalf("LoadApplicationConfiguration error: %v", err)
			}

			assertBoolPointer(t, "pack.summary", loadedConfig.Pack.Summary, testCase.expectSummary)
			assertBoolPointer(t, "pack.clipboard", loadedConfig.Pack.Clipboard, testCase.expectClipboard)
			assertBoolPointer(t, "pack.tokens.enabled", loadedConfig.Pack.Tokens.Enabled, testCase.expectTokens)
			assertBoolPointer(t, "map.json", loadedConfig.Map.JSON, testCase.expectMapJSON)
			if loadedConfig.Pack.Tokens.Model != testCase.expectModel {
				t.Fatalf("expected model %q, got %q", testCase.expectModel, loadedConfig.Pack.Tokens.Model)
			}
			if testCase.expectPackExclude != nil {
				if len(loadedConfig.Pack.Paths.Exclude) != len(testCase.expectPackExclude) {
					t.Fatalf("expected exclude %v, got %v", testCase.expectPackExclude, loadedConfig.Pack.Paths.Exclude)
				}
				for index, pattern := range testCase.expectPackExclude {
					if loadedConfig.Pack.Paths.Exclude[index] != pattern {
						t.Fatalf("expected exclude %v, got %v", testCase.expectPackExclude, loadedConfig.Pack.Paths.Exclude)
					}
				}
			}
		})
	}
}

func assertBoolPointer(t *testing.T, field string, got, want *bool) {
	t.Helper()
	if want == nil {
		if got != nil {
			t.Fatalf("expected no %s override, got %v", field, *got)
		}
		return
	}
	if got == nil || *got != *want {
		t.Fatalf("unexpected %s value", field)
	}
}

func TestCommandConfigurationMergeClonesPointers(t *testing.T) {
	overrideValue := true
	override := CommandConfiguration{Clipboard: &overrideValue}
	merged := CommandConfiguration{}.merge(override)

	overrideValue = false
	if merged.Clipboard == nil || !*merged.Clipboard {
		t.Fatalf("merged configuration should hold a cloned pointer")
	}
}

func TestPathConfigurationMergeKeepsBaseWhenOverrideEmpty(t *testing.T) {
	base := PathConfiguration{
		Exclude:      []string{"dist"},
		UseGitignore: boolPointer(false),
	}
	merged := base.merge(PathConfiguration{})

	if len(merged.Exclude) != 1 || merged.Exclude[0] != "dist" {
		t.Fatalf("expected base exclude patterns to survive, got %v", merged.Exclude)
	}
	if merged.UseGitignore == nil || *merged.UseGitignore {
		t.Fatalf("expected base use_gitignore to survive")
	}
}
