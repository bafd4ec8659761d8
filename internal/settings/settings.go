// Package settings persists user preferences between runs as a small JSON
// record in the user configuration directory.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

const (
	applicationDirectoryName = "pickctx"
	settingsFileName         = "settings.json"
	lockFileName             = "settings.lock"
	defaultModelName         = "gpt-4o"
	settingsDirPermissions   = 0o755

	lockAcquireTimeout    = 10 * time.Second
	lockPollInterval      = 250 * time.Millisecond
	jsonIndent            = "  "
	fallbackLastDirectory = "."

	resolveConfigDirErrorFormat  = "resolving user config directory: %w"
	createSettingsDirErrorFormat = "creating settings directory %s: %w"
	readSettingsErrorFormat      = "reading settings file %s: %w"
	parseSettingsErrorFormat     = "parsing settings file %s: %w"
	encodeSettingsErrorFormat    = "encoding settings: %w"
	writeSettingsErrorFormat     = "writing settings file %s: %w"
	acquireLockErrorFormat       = "acquiring settings lock %s: %w"
	lockHeldErrorFormat          = "settings lock %s is held by another process"
)

// Settings is the persisted preference record. Field defaults come from
// Default; a settings file may carry any subset of the keys and the missing
// ones keep their defaults on load.
type Settings struct {
	ShowHiddenFiles     bool   `json:"show_hidden_files"`
	FollowSymlinks      bool   `json:"follow_symlinks"`
	ApplyGitignoreRules bool   `json:"apply_gitignore_rules"`
	CopyFileTreeOnly    bool   `json:"copy_file_tree_only"`
	LastDirectory       string `json:"last_directory"`
	Model               string `json:"model"`
}

// Default returns the settings used when no file has been saved yet.
func Default() Settings {
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil {
		homeDirectory = fallbackLastDirectory
	}
	return Settings{
		ApplyGitignoreRules: true,
		LastDirectory:       homeDirectory,
		Model:               defaultModelName,
	}
}

// Store reads and writes the settings file. Writes are atomic, and Update
// serializes concurrent load-modify-save cycles through a lock file next to
// the settings file.
type Store struct {
	directoryPath string
	filePath      string
	lockPath      string
}

// NewStore resolves the settings location under the user configuration
// directory.
func NewStore() (*Store, error) {
	configDirectory, configError := os.UserConfigDir()
	if configError != nil {
		return nil, fmt.Errorf(resolveConfigDirErrorFormat, configError)
	}
	return NewStoreAt(filepath.Join(configDirectory, applicationDirectoryName)), nil
}

// NewStoreAt places the settings file in an explicit directory.
func NewStoreAt(directoryPath string) *Store {
	return &Store{
		directoryPath: directoryPath,
		filePath:      filepath.Join(directoryPath, settingsFileName),
		lockPath:      filepath.Join(directoryPath, lockFileName),
	}
}

// FilePath returns the absolute path of the settings file.
func (store *Store) FilePath() string {
	return store.filePath
}

// Load reads the settings file. A missing file yields the defaults without an
// error; an unreadable or malformed file yields the defaults together with an
// error the caller can report before proceeding.
func (store *Store) Load() (Settings, error) {
	loadedSettings := Default()
	fileContent, readError := os.ReadFile(store.filePath)
	if readError != nil {
		if os.IsNotExist(readError) {
			return loadedSettings, nil
		}
		return loadedSettings, fmt.Errorf(readSettingsErrorFormat, store.filePath, readError)
	}
	if unmarshalError := json.Unmarshal(fileContent, &loadedSettings); unmarshalError != nil {
		return Default(), fmt.Errorf(parseSettingsErrorFormat, store.filePath, unmarshalError)
	}
	return loadedSettings, nil
}

// Save writes the settings file atomically, creating the settings directory
// when needed.
func (store *Store) Save(currentSettings Settings) error {
	if directoryError := store.ensureDirectory(); directoryError != nil {
		return directoryError
	}
	encodedSettings, marshalError := json.MarshalIndent(currentSettings, "", jsonIndent)
	if marshalError != nil {
		return fmt.Errorf(encodeSettingsErrorFormat, marshalError)
	}
	encodedSettings = append(encodedSettings, '\n')
	if writeError := atomic.WriteFile(store.filePath, strings.NewReader(string(encodedSettings))); writeError != nil {
		return fmt.Errorf(writeSettingsErrorFormat, store.filePath, writeError)
	}
	return nil
}

// Update runs a load-modify-save cycle under the lock file so concurrent
// processes do not clobber each other's writes. A malformed existing file is
// replaced by mutated defaults rather than blocking the update.
func (store *Store) Update(mutate func(*Settings)) (Settings, error) {
	if directoryError := store.ensureDirectory(); directoryError != nil {
		return Default(), directoryError
	}
	unlock, lockError := store.acquireLock()
	if lockError != nil {
		return Default(), lockError
	}
	defer unlock()

	currentSettings, _ := store.Load()
	mutate(&currentSettings)
	if saveError := store.Save(currentSettings); saveError != nil {
		return currentSettings, saveError
	}
	return currentSettings, nil
}

func (store *Store) ensureDirectory() error {
	if directoryError := os.MkdirAll(store.directoryPath, settingsDirPermissions); directoryError != nil {
		return fmt.Errorf(createSettingsDirErrorFormat, store.directoryPath, directoryError)
	}
	return nil
}

func (store *Store) acquireLock() (func(), error) {
	fileLock := flock.New(store.lockPath)
	lockContext, cancelLock := context.WithTimeout(context.Background(), lockAcquireTimeout)
	defer cancelLock()
	locked, lockError := fileLock.TryLockContext(lockContext, lockPollInterval)
	if lockError != nil {
		return nil, fmt.Errorf(acquireLockErrorFormat, store.lockPath, lockError)
	}
	if !locked {
		return nil, fmt.Errorf(lockHeldErrorFormat, store.lockPath)
	}
	return func() { _ = fileLock.Unlock() }, nil
}
