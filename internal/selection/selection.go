// Package selection owns the tree's tri-state check model. Every mutation
// enters through the Manager and completes one full propagation pass before
// any reader observes the tree, so concurrent callers always see a consistent
// state.
package selection

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pickctx/pickctx/internal/ignore"
	"github.com/pickctx/pickctx/internal/tree"
	"github.com/pickctx/pickctx/internal/types"
)

const unknownPathErrorFormat = "no node at path %s"

// Manager serializes all check-state mutations on one tree.
type Manager struct {
	mutex             sync.Mutex
	managedTree       *tree.Tree
	ignoreRulesActive bool
}

// NewManager wraps a freshly built tree. ignoreRulesActive mirrors the
// "apply ignore rules" toggle: while true, ignored nodes can never be checked.
func NewManager(managedTree *tree.Tree, ignoreRulesActive bool) *Manager {
	return &Manager{managedTree: managedTree, ignoreRulesActive: ignoreRulesActive}
}

// SetChecked sets the node's state and propagates: downward, forcing every
// eligible descendant to the same value, then upward, re-deriving each
// ancestor from its children. Checking an ignored node while rules are active
// is a no-op. The returned snapshot reflects the completed propagation.
func (manager *Manager) SetChecked(relativePath string, checked bool) (types.SelectionSnapshot, error) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	targetNode := manager.managedTree.NodeAt(relativePath)
	if targetNode == nil {
		return manager.snapshotLocked(), fmt.Errorf(unknownPathErrorFormat, relativePath)
	}

	targetState := types.Unchecked
	if checked {
		if !manager.assignableLocked(targetNode) {
			return manager.snapshotLocked(), nil
		}
		targetState = types.Checked
	}

	manager.forceSubtreeLocked(targetNode, targetState)
	manager.recomputeAncestorsLocked(targetNode)
	return manager.snapshotLocked(), nil
}

// SetIgnoreRulesActive flips the "apply ignore rules" toggle. Re-activating
// rules unchecks every ignored node; deactivating only widens eligibility and
// never unchecks anything. Directory states are re-derived either way.
func (manager *Manager) SetIgnoreRulesActive(active bool) types.SelectionSnapshot {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	manager.ignoreRulesActive = active
	if active {
		manager.managedTree.Walk(func(node *tree.Node) {
			if node.Ignored && node.CheckState != types.Unchecked {
				node.CheckState = types.Unchecked
			}
		})
	}
	manager.rederiveDirectoryStatesLocked(manager.managedTree.Root)
	return manager.snapshotLocked()
}

// IgnoreRulesActive reports the current toggle value.
func (manager *Manager) IgnoreRulesActive() bool {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.ignoreRulesActive
}

// Snapshot returns the checked sets and counts for the current tree state.
func (manager *Manager) Snapshot() types.SelectionSnapshot {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.snapshotLocked()
}

// SelectedItems returns the checked directories and files in tree order
// (parents before children, sorted siblings), the order the output document
// uses.
func (manager *Manager) SelectedItems() []types.SelectedItem {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	var selectedItems []types.SelectedItem
	manager.managedTree.Walk(func(node *tree.Node) {
		if !manager.countsAsCheckedLocked(node) {
			return
		}
		selectedItems = append(selectedItems, types.SelectedItem{
			AbsolutePath: node.Path,
			RelativePath: node.RelativePath,
			IsDirectory:  node.IsDirectory(),
		})
	})
	return selectedItems
}

// NodeAt exposes a single node for read-only use.
func (manager *Manager) NodeAt(relativePath string) *tree.Node {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.managedTree.NodeAt(relativePath)
}

// Root returns the root node for read-only traversal.
func (manager *Manager) Root() *tree.Node {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.managedTree.Root
}

// MergeScanned merges a directory's freshly scanned entries under its node and
// re-derives the affected states. The merge runs under the same lock as check
// mutations; sibling state is untouched.
func (manager *Manager) MergeScanned(parentRelativePath string, entries []types.Entry, matcher *ignore.Matcher, showHidden bool) (types.SelectionSnapshot, error) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	parentNode := manager.managedTree.NodeAt(parentRelativePath)
	if parentNode == nil {
		return manager.snapshotLocked(), fmt.Errorf(unknownPathErrorFormat, parentRelativePath)
	}
	manager.managedTree.MergeChildren(parentNode, entries, matcher, showHidden)
	manager.rederiveDirectoryStatesLocked(parentNode)
	manager.recomputeAncestorsLocked(parentNode)
	return manager.snapshotLocked(), nil
}

// RestoreChecked re-applies a persisted selection to this tree by relative
// path. File paths are checked directly; directory paths only take effect for
// directories with no checkable children (the empty-directory case). Every
// other directory re-derives from its restored files, so paths that vanished
// or changed shape drop out instead of force-checking new children.
func (manager *Manager) RestoreChecked(checkedFiles []string, checkedDirectories []string) types.SelectionSnapshot {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for _, relativePath := range checkedFiles {
		node := manager.managedTree.NodeAt(relativePath)
		if node == nil || node.IsDirectory() || !manager.assignableLocked(node) {
			continue
		}
		node.CheckState = types.Checked
	}
	for _, relativePath := range checkedDirectories {
		node := manager.managedTree.NodeAt(relativePath)
		if node == nil || !node.IsDirectory() || !manager.assignableLocked(node) {
			continue
		}
		if manager.eligibleChildCountLocked(node) == 0 {
			node.CheckState = types.Checked
		}
	}
	manager.rederiveDirectoryStatesLocked(manager.managedTree.Root)
	return manager.snapshotLocked()
}

// ApplyTokenCounts records per-file token counts on their nodes.
func (manager *Manager) ApplyTokenCounts(tokensByRelativePath map[string]int) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for relativePath, tokenCount := range tokensByRelativePath {
		if node := manager.managedTree.NodeAt(relativePath); node != nil {
			node.TokenCount = tokenCount
			node.TokenCounted = true
		}
	}
}

// assignableLocked reports whether a node may hold the Checked state right now.
func (manager *Manager) assignableLocked(node *tree.Node) bool {
	if node.Kind == types.KindUnreadable {
		return false
	}
	if node.Ignored && manager.ignoreRulesActive {
		return false
	}
	return true
}

// forceSubtreeLocked assigns targetState to the node and every eligible
// descendant. Ineligible nodes keep Unchecked but their subtrees are still
// traversed: a negation pattern can re-include a file under an ignored
// directory. Directory states inside the subtree are re-derived bottom-up so
// mixed eligibility resolves to Partial, never a false Checked.
func (manager *Manager) forceSubtreeLocked(node *tree.Node, targetState types.CheckState) {
	if manager.assignableLocked(node) {
		node.CheckState = targetState
	} else {
		node.CheckState = types.Unchecked
	}
	for _, childNode := range node.Children {
		manager.forceSubtreeLocked(childNode, targetState)
	}
	if node.IsDirectory() {
		manager.applyDerivedStateLocked(node)
	}
}

// recomputeAncestorsLocked re-derives every ancestor up to the root.
func (manager *Manager) recomputeAncestorsLocked(node *tree.Node) {
	for ancestorNode := node.Parent; ancestorNode != nil; ancestorNode = ancestorNode.Parent {
		manager.applyDerivedStateLocked(ancestorNode)
	}
}

// rederiveDirectoryStatesLocked recomputes directory states postorder for a
// whole subtree.
func (manager *Manager) rederiveDirectoryStatesLocked(node *tree.Node) {
	for _, childNode := range node.Children {
		if childNode.IsDirectory() {
			manager.rederiveDirectoryStatesLocked(childNode)
		}
	}
	if node.IsDirectory() {
		manager.applyDerivedStateLocked(node)
	}
}

// applyDerivedStateLocked sets a directory's state from its children. A
// directory with no checkable children keeps its direct state (checking an
// empty directory is legitimate); an ignored directory tops out at Partial
// while rules are active.
func (manager *Manager) applyDerivedStateLocked(directoryNode *tree.Node) {
	eligibleCount := 0
	checkedCount := 0
	partialSeen := false
	for _, childNode := range directoryNode.Children {
		if !manager.countsForDerivationLocked(childNode) {
			continue
		}
		eligibleCount++
		switch childNode.CheckState {
		case types.Checked:
			checkedCount++
		case types.Partial:
			partialSeen = true
		}
	}
	if eligibleCount == 0 {
		if directoryNode.CheckState == types.Partial {
			directoryNode.CheckState = types.Unchecked
		}
		return
	}

	derivedState := types.Partial
	switch {
	case partialSeen:
		derivedState = types.Partial
	case checkedCount == eligibleCount:
		derivedState = types.Checked
	case checkedCount == 0:
		derivedState = types.Unchecked
	}
	if derivedState == types.Checked && !manager.assignableLocked(directoryNode) {
		derivedState = types.Partial
	}
	directoryNode.CheckState = derivedState
}

// countsForDerivationLocked reports whether a child participates in its
// parent's derived state. Ignored children are excluded while rules are
// active: a directory whose only unchecked descendants are ignored still
// resolves to Checked.
func (manager *Manager) countsForDerivationLocked(node *tree.Node) bool {
	if node.Kind == types.KindUnreadable {
		return false
	}
	if node.Ignored && manager.ignoreRulesActive {
		return node.CheckState != types.Unchecked
	}
	return true
}

func (manager *Manager) eligibleChildCountLocked(directoryNode *tree.Node) int {
	eligibleCount := 0
	for _, childNode := range directoryNode.Children {
		if manager.countsForDerivationLocked(childNode) {
			eligibleCount++
		}
	}
	return eligibleCount
}

// countsAsCheckedLocked reports whether a node belongs in the checked sets.
// The root stands for the whole tree and is never itself reported.
func (manager *Manager) countsAsCheckedLocked(node *tree.Node) bool {
	if node.RelativePath == tree.RootRelativePath {
		return false
	}
	if node.CheckState != types.Checked {
		return false
	}
	if node.Ignored && manager.ignoreRulesActive {
		return false
	}
	return node.Kind == types.KindFile || node.Kind == types.KindDirectory
}

func (manager *Manager) snapshotLocked() types.SelectionSnapshot {
	var checkedFiles []string
	var checkedDirectories []string
	manager.managedTree.Walk(func(node *tree.Node) {
		if !manager.countsAsCheckedLocked(node) {
			return
		}
		if node.IsDirectory() {
			checkedDirectories = append(checkedDirectories, node.RelativePath)
		} else {
			checkedFiles = append(checkedFiles, node.RelativePath)
		}
	})
	sort.Strings(checkedFiles)
	sort.Strings(checkedDirectories)
	return types.SelectionSnapshot{
		CheckedFiles:       checkedFiles,
		CheckedDirectories: checkedDirectories,
		FileCount:          len(checkedFiles),
		DirectoryCount:     len(checkedDirectories),
	}
}
