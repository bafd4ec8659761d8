// Package engine ties the scanner, ignore rules, selection state, token
// accounting and document rendering together over one open root directory.
// Every mutation funnels through the engine; subscribers observe a snapshot
// after each completed selection pass, never a partial one.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pickctx/pickctx/internal/ignore"
	"github.com/pickctx/pickctx/internal/output"
	"github.com/pickctx/pickctx/internal/scan"
	"github.com/pickctx/pickctx/internal/selection"
	"github.com/pickctx/pickctx/internal/tokenizer"
	"github.com/pickctx/pickctx/internal/tokens"
	"github.com/pickctx/pickctx/internal/tree"
	"github.com/pickctx/pickctx/internal/types"
)

const (
	resolveRootErrorFormat   = "resolve root %s: %w"
	compileRulesErrorFormat  = "compile ignore rules for %s: %w"
	scanRootErrorFormat      = "scan %s: %w"
	expandScanErrorFormat    = "expand %s: %w"
	expandNotDirectoryFormat = "expand %s: not a directory"
	unknownPathErrorFormat   = "no node at path %s"
)

// ErrNoOpenRoot is returned by operations that need an open root when none is.
var ErrNoOpenRoot = errors.New("no root is open")

// ErrNoTokenCounter is returned by token operations when the engine was built
// without a counter.
var ErrNoTokenCounter = errors.New("no token counter configured")

// ErrSuperseded is returned by an open or rescan whose result was discarded
// because a newer root was opened while it ran.
var ErrSuperseded = errors.New("superseded by a newer open")

// Config carries the engine's collaborators and initial options.
type Config struct {
	// Provider supplies directory entries. Nil selects the filesystem
	// scanner, rebuilt per scan so option changes take effect.
	Provider scan.Provider
	// Counter prices file content in tokens. Nil disables token accounting.
	Counter tokenizer.Counter

	ShowHidden        bool
	FollowSymlinks    bool
	ApplyIgnoreRules  bool
	UseGitignoreFiles bool
	ExtraPatterns     []string

	// CacheSize and WorkerCount tune the token accountant; zero values pick
	// its defaults.
	CacheSize   int
	WorkerCount int

	// Warn receives non-fatal messages such as skipped ignore files.
	Warn func(string)
}

// Subscriber receives the selection snapshot after each completed mutation.
type Subscriber func(types.SelectionSnapshot)

// Engine owns one root's tree and serializes every operation on it.
type Engine struct {
	mutex  sync.Mutex
	config Config

	showHidden     bool
	followSymlinks bool
	rulesActive    bool

	rootPath        string
	scannedRecursed bool
	matcher         *ignore.Matcher
	manager         *selection.Manager
	accountant      *tokens.Accountant

	generation      int
	lifetimeCancel  context.CancelFunc
	lifetimeContext context.Context

	subscribers      map[int]Subscriber
	nextSubscriberID int
}

// New builds an engine from config. No root is open yet.
func New(config Config) (*Engine, error) {
	engine := &Engine{
		config:         config,
		showHidden:     config.ShowHidden,
		followSymlinks: config.FollowSymlinks,
		rulesActive:    config.ApplyIgnoreRules,
		subscribers:    make(map[int]Subscriber),
	}
	if config.Counter != nil {
		accountant, accountantError := tokens.NewAccountant(config.Counter, config.CacheSize, config.WorkerCount)
		if accountantError != nil {
			return nil, accountantError
		}
		engine.accountant = accountant
	}
	return engine, nil
}

// Subscribe registers a subscriber and returns its cancel function.
// Subscribers run synchronously, in registration order, outside the engine
// lock.
func (engine *Engine) Subscribe(subscriber Subscriber) func() {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	engine.nextSubscriberID++
	subscriberID := engine.nextSubscriberID
	engine.subscribers[subscriberID] = subscriber
	return func() {
		engine.mutex.Lock()
		defer engine.mutex.Unlock()
		delete(engine.subscribers, subscriberID)
	}
}

// OpenRoot scans rootPath and installs a fresh tree, discarding any previous
// one wholesale. An open still running for an older root is canceled. With
// recursive false only the top level is scanned; deeper levels load through
// ExpandDirectory.
func (engine *Engine) OpenRoot(executionContext context.Context, rootPath string, recursive bool) (types.SelectionSnapshot, error) {
	absoluteRoot, absError := filepath.Abs(rootPath)
	if absError != nil {
		return types.SelectionSnapshot{}, fmt.Errorf(resolveRootErrorFormat, rootPath, absError)
	}
	return engine.reload(executionContext, absoluteRoot, recursive, nil)
}

// Rescan rebuilds the tree for the open root with the current options and
// restores the surviving checked paths.
func (engine *Engine) Rescan(executionContext context.Context) (types.SelectionSnapshot, error) {
	engine.mutex.Lock()
	manager := engine.manager
	rootPath := engine.rootPath
	recursive := engine.scannedRecursed
	engine.mutex.Unlock()
	if manager == nil {
		return types.SelectionSnapshot{}, ErrNoOpenRoot
	}
	previousSnapshot := manager.Snapshot()
	return engine.reload(executionContext, rootPath, recursive, &previousSnapshot)
}

// reload performs the scan-build-install cycle shared by OpenRoot and Rescan.
// A restore snapshot, when given, is re-applied to the new tree by relative
// path, so entries that vanished simply drop out of the checked set.
func (engine *Engine) reload(executionContext context.Context, absoluteRoot string, recursive bool, restore *types.SelectionSnapshot) (types.SelectionSnapshot, error) {
	engine.mutex.Lock()
	if engine.lifetimeCancel != nil {
		engine.lifetimeCancel()
	}
	lifetimeContext, lifetimeCancel := context.WithCancel(context.Background())
	engine.lifetimeCancel = lifetimeCancel
	engine.generation++
	currentGeneration := engine.generation
	useGitignoreFiles := engine.config.UseGitignoreFiles
	extraPatterns := engine.config.ExtraPatterns
	warn := engine.config.Warn
	rulesActive := engine.rulesActive
	showHidden := engine.showHidden
	provider := engine.providerLocked()
	engine.mutex.Unlock()

	scanContext, cancelScan := context.WithCancel(executionContext)
	defer cancelScan()
	stopLifetimeWatch := context.AfterFunc(lifetimeContext, cancelScan)
	defer stopLifetimeWatch()

	matcher, compileError := ignore.Compile(absoluteRoot, ignore.Config{
		UseGitignoreFiles: useGitignoreFiles,
		ExtraPatterns:     extraPatterns,
		Warn:              warn,
	})
	if compileError != nil {
		lifetimeCancel()
		return types.SelectionSnapshot{}, fmt.Errorf(compileRulesErrorFormat, absoluteRoot, compileError)
	}

	entries, scanError := provider.Scan(scanContext, absoluteRoot, recursive)
	if scanError != nil {
		lifetimeCancel()
		return types.SelectionSnapshot{}, fmt.Errorf(scanRootErrorFormat, absoluteRoot, scanError)
	}

	// Ignored flags are baked from the full rule set regardless of the
	// toggle; the selection manager gates their effect.
	builtTree := tree.Build(absoluteRoot, entries, matcher, showHidden, recursive)
	manager := selection.NewManager(builtTree, rulesActive)
	var snapshot types.SelectionSnapshot
	if restore != nil {
		snapshot = manager.RestoreChecked(restore.CheckedFiles, restore.CheckedDirectories)
	} else {
		snapshot = manager.Snapshot()
	}

	engine.mutex.Lock()
	if engine.generation != currentGeneration {
		engine.mutex.Unlock()
		lifetimeCancel()
		return types.SelectionSnapshot{}, ErrSuperseded
	}
	engine.rootPath = absoluteRoot
	engine.scannedRecursed = recursive
	engine.matcher = matcher
	engine.manager = manager
	engine.lifetimeContext = lifetimeContext
	if engine.accountant != nil {
		engine.accountant.Reset()
	}
	engine.mutex.Unlock()

	engine.emit(snapshot)
	return snapshot, nil
}

// SetChecked applies one check mutation and notifies subscribers once the
// propagation completes.
func (engine *Engine) SetChecked(relativePath string, checked bool) (types.SelectionSnapshot, error) {
	manager := engine.currentManager()
	if manager == nil {
		return types.SelectionSnapshot{}, ErrNoOpenRoot
	}
	snapshot, setError := manager.SetChecked(relativePath, checked)
	if setError != nil {
		return snapshot, setError
	}
	engine.emit(snapshot)
	return snapshot, nil
}

// ExpandDirectory scans one unscanned directory level and merges it under its
// node, leaving sibling state untouched. A directory whose level is already
// loaded is left as is; a rescan refreshes it.
func (engine *Engine) ExpandDirectory(executionContext context.Context, relativePath string) (types.SelectionSnapshot, error) {
	engine.mutex.Lock()
	manager := engine.manager
	matcher := engine.matcher
	showHidden := engine.showHidden
	lifetimeContext := engine.lifetimeContext
	provider := engine.providerLocked()
	engine.mutex.Unlock()
	if manager == nil {
		return types.SelectionSnapshot{}, ErrNoOpenRoot
	}

	directoryNode := manager.NodeAt(relativePath)
	if directoryNode == nil {
		return types.SelectionSnapshot{}, fmt.Errorf(unknownPathErrorFormat, relativePath)
	}
	if !directoryNode.IsDirectory() {
		return types.SelectionSnapshot{}, fmt.Errorf(expandNotDirectoryFormat, relativePath)
	}
	if directoryNode.Scanned {
		return manager.Snapshot(), nil
	}

	scanContext, cancelScan := context.WithCancel(executionContext)
	defer cancelScan()
	if lifetimeContext != nil {
		stopLifetimeWatch := context.AfterFunc(lifetimeContext, cancelScan)
		defer stopLifetimeWatch()
	}

	entries, scanError := provider.Scan(scanContext, directoryNode.Path, false)
	if scanError != nil {
		return types.SelectionSnapshot{}, fmt.Errorf(expandScanErrorFormat, relativePath, scanError)
	}
	snapshot, mergeError := manager.MergeScanned(relativePath, entries, matcher, showHidden)
	if mergeError != nil {
		return snapshot, mergeError
	}
	engine.emit(snapshot)
	return snapshot, nil
}

// SetIgnoreRulesActive flips the ignore toggle without recompiling rules.
// Baked Ignored flags stay put; only node eligibility changes. With a root
// open the selection is re-derived and subscribers notified.
func (engine *Engine) SetIgnoreRulesActive(active bool) (types.SelectionSnapshot, error) {
	engine.mutex.Lock()
	engine.rulesActive = active
	manager := engine.manager
	engine.mutex.Unlock()

	if manager == nil {
		return types.SelectionSnapshot{}, nil
	}
	snapshot := manager.SetIgnoreRulesActive(active)
	engine.emit(snapshot)
	return snapshot, nil
}

// SetShowHidden changes hidden-file visibility. With a root open the tree is
// rebuilt; checked hidden paths drop out of the selection when hiding, since
// hidden nodes leave the tree entirely.
func (engine *Engine) SetShowHidden(executionContext context.Context, showHidden bool) (types.SelectionSnapshot, error) {
	return engine.setScanOption(executionContext, func(engineState *Engine) bool {
		if engineState.showHidden == showHidden {
			return false
		}
		engineState.showHidden = showHidden
		return true
	})
}

// SetFollowSymlinks changes symlink traversal and rescans an open root.
func (engine *Engine) SetFollowSymlinks(executionContext context.Context, followSymlinks bool) (types.SelectionSnapshot, error) {
	return engine.setScanOption(executionContext, func(engineState *Engine) bool {
		if engineState.followSymlinks == followSymlinks {
			return false
		}
		engineState.followSymlinks = followSymlinks
		return true
	})
}

func (engine *Engine) setScanOption(executionContext context.Context, apply func(*Engine) bool) (types.SelectionSnapshot, error) {
	engine.mutex.Lock()
	changed := apply(engine)
	manager := engine.manager
	engine.mutex.Unlock()

	if manager == nil || !changed {
		if manager == nil {
			return types.SelectionSnapshot{}, nil
		}
		return manager.Snapshot(), nil
	}
	return engine.Rescan(executionContext)
}

// CountTokens recounts the checked files, records per-node counts, and
// returns the aggregate. The recount is canceled when a newer root opens; a
// canceled recount never touches the new tree.
func (engine *Engine) CountTokens(executionContext context.Context, progress tokens.ProgressFunc) (types.TokenTotal, error) {
	engine.mutex.Lock()
	manager := engine.manager
	accountant := engine.accountant
	lifetimeContext := engine.lifetimeContext
	engine.mutex.Unlock()
	if manager == nil {
		return types.TokenTotal{}, ErrNoOpenRoot
	}
	if accountant == nil {
		return types.TokenTotal{}, ErrNoTokenCounter
	}

	recountContext, cancelRecount := context.WithCancel(executionContext)
	defer cancelRecount()
	if lifetimeContext != nil {
		stopLifetimeWatch := context.AfterFunc(lifetimeContext, cancelRecount)
		defer stopLifetimeWatch()
	}

	var checkedFiles []tokens.FileRef
	for _, selectedItem := range manager.SelectedItems() {
		if selectedItem.IsDirectory {
			continue
		}
		checkedFiles = append(checkedFiles, tokens.FileRef{
			AbsolutePath: selectedItem.AbsolutePath,
			RelativePath: selectedItem.RelativePath,
		})
	}

	total, tokensByPath, countError := accountant.Total(recountContext, checkedFiles, progress)
	if countError != nil {
		return total, countError
	}
	manager.ApplyTokenCounts(tokensByPath)
	return total, nil
}

// BuildDocument renders the current selection. With mapOnly only the file map
// section is produced.
func (engine *Engine) BuildDocument(mapOnly bool) (output.Document, error) {
	engine.mutex.Lock()
	manager := engine.manager
	rootPath := engine.rootPath
	engine.mutex.Unlock()
	if manager == nil {
		return output.Document{}, ErrNoOpenRoot
	}
	return output.BuildDocument(rootPath, manager.SelectedItems(), mapOnly), nil
}

// Snapshot returns the current checked sets and counts.
func (engine *Engine) Snapshot() (types.SelectionSnapshot, error) {
	manager := engine.currentManager()
	if manager == nil {
		return types.SelectionSnapshot{}, ErrNoOpenRoot
	}
	return manager.Snapshot(), nil
}

// SelectedItems returns the checked nodes in document order.
func (engine *Engine) SelectedItems() ([]types.SelectedItem, error) {
	manager := engine.currentManager()
	if manager == nil {
		return nil, ErrNoOpenRoot
	}
	return manager.SelectedItems(), nil
}

// NodeAt exposes one node of the open tree for read-only use.
func (engine *Engine) NodeAt(relativePath string) *tree.Node {
	manager := engine.currentManager()
	if manager == nil {
		return nil
	}
	return manager.NodeAt(relativePath)
}

// RootPath returns the absolute path of the open root, or empty.
func (engine *Engine) RootPath() string {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	return engine.rootPath
}

// IgnoreRulesActive reports the ignore toggle.
func (engine *Engine) IgnoreRulesActive() bool {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	return engine.rulesActive
}

// CounterName names the configured token counter, or empty without one.
func (engine *Engine) CounterName() string {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	if engine.accountant == nil {
		return ""
	}
	return engine.accountant.CounterName()
}

// Close cancels the open root's pending work.
func (engine *Engine) Close() {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	if engine.lifetimeCancel != nil {
		engine.lifetimeCancel()
	}
}

func (engine *Engine) currentManager() *selection.Manager {
	engine.mutex.Lock()
	defer engine.mutex.Unlock()
	return engine.manager
}

func (engine *Engine) providerLocked() scan.Provider {
	if engine.config.Provider != nil {
		return engine.config.Provider
	}
	return scan.NewFilesystemScanner(scan.Options{
		ShowHidden:     engine.showHidden,
		FollowSymlinks: engine.followSymlinks,
	})
}

// emit hands the snapshot to every subscriber in registration order, outside
// the engine lock so a subscriber may call back into the engine.
func (engine *Engine) emit(snapshot types.SelectionSnapshot) {
	engine.mutex.Lock()
	subscriberIDs := make([]int, 0, len(engine.subscribers))
	for subscriberID := range engine.subscribers {
		subscriberIDs = append(subscriberIDs, subscriberID)
	}
	sort.Ints(subscriberIDs)
	orderedSubscribers := make([]Subscriber, 0, len(subscriberIDs))
	for _, subscriberID := range subscriberIDs {
		orderedSubscribers = append(orderedSubscribers, engine.subscribers[subscriberID])
	}
	engine.mutex.Unlock()

	for _, subscriber := range orderedSubscribers {
		subscriber(snapshot)
	}
}
