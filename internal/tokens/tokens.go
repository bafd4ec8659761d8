// Package tokens aggregates token counts over the checked file set. Counts
// are cached per relative path and invalidated by a size/mtime signature
// checked lazily at access time; totals run on a bounded worker pool and are
// cancelable.
package tokens

import (
	"context"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pickctx/pickctx/internal/tokenizer"
	"github.com/pickctx/pickctx/internal/types"
)

const (
	defaultCacheSize   = 4096
	defaultWorkerCount = 8
)

// FileRef identifies one file to count.
type FileRef struct {
	AbsolutePath string
	RelativePath string
}

// ProgressFunc receives completion updates during a total computation.
type ProgressFunc func(completedFiles int, totalFiles int)

type contentSignature struct {
	sizeBytes    int64
	modTimeNanos int64
}

type cacheEntry struct {
	signature contentSignature
	result    tokenizer.CountResult
}

// Accountant computes and caches per-file token counts. Failures are never
// cached, so a transient read problem heals on the next access.
type Accountant struct {
	counter     tokenizer.Counter
	cache       *lru.Cache[string, cacheEntry]
	workerCount int
}

// NewAccountant wraps counter with a bounded count cache. Non-positive sizes
// fall back to defaults.
func NewAccountant(counter tokenizer.Counter, cacheSize int, workerCount int) (*Accountant, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	countCache, newError := lru.New[string, cacheEntry](cacheSize)
	if newError != nil {
		return nil, newError
	}
	return &Accountant{counter: counter, cache: countCache, workerCount: workerCount}, nil
}

// CounterName names the underlying counter.
func (accountant *Accountant) CounterName() string {
	if accountant.counter == nil {
		return ""
	}
	return accountant.counter.Name()
}

// Reset drops every cached count, used when a new root is opened.
func (accountant *Accountant) Reset() {
	accountant.cache.Purge()
}

// FileTokens returns the file's token count, from cache when the stored
// signature still matches the file on disk.
func (accountant *Accountant) FileTokens(file FileRef) (tokenizer.CountResult, error) {
	information, statError := os.Stat(file.AbsolutePath)
	if statError != nil {
		return tokenizer.CountResult{}, statError
	}
	signature := contentSignature{
		sizeBytes:    information.Size(),
		modTimeNanos: information.ModTime().UnixNano(),
	}

	if entry, cached := accountant.cache.Get(file.RelativePath); cached && entry.signature == signature {
		return entry.result, nil
	}

	result, countError := tokenizer.CountFile(accountant.counter, file.AbsolutePath)
	if countError != nil {
		return tokenizer.CountResult{}, countError
	}
	accountant.cache.Add(file.RelativePath, cacheEntry{signature: signature, result: result})
	return result, nil
}

// Total sums token counts over files on a bounded worker pool. Per-file
// failures and undecodable files are folded into the aggregate's failed and
// skipped counts and never abort the computation; only context cancellation
// does. The returned map holds the counted tokens per relative path.
func (accountant *Accountant) Total(executionContext context.Context, files []FileRef, progress ProgressFunc) (types.TokenTotal, map[string]int, error) {
	total := types.TokenTotal{Model: accountant.CounterName()}
	tokensByRelativePath := make(map[string]int, len(files))

	var mutex sync.Mutex
	completedFiles := 0

	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(accountant.workerCount)
	for _, file := range files {
		file := file
		group.Go(func() error {
			select {
			case <-groupContext.Done():
				return groupContext.Err()
			default:
			}

			result, countError := accountant.FileTokens(file)

			mutex.Lock()
			defer mutex.Unlock()
			switch {
			case countError != nil:
				total.FailedFiles++
			case !result.Counted:
				total.SkippedFiles++
			default:
				total.CountedFiles++
				total.Tokens += result.Tokens
				tokensByRelativePath[file.RelativePath] = result.Tokens
			}
			completedFiles++
			if progress != nil {
				progress(completedFiles, len(files))
			}
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return types.TokenTotal{Model: accountant.CounterName()}, nil, waitError
	}
	return total, tokensByRelativePath, nil
}
