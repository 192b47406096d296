package gircheck

import (
	"bytes"
	"context"
	"sync"
)

// folderJob is one target queued for a worker.
type folderJob struct {
	index  int
	target Target
}

// runParallel checks targets on a pool of workers. Each folder writes its
// progress to its own buffer; buffers are flushed in target order as soon
// as every earlier folder has finished, so output matches a sequential run.
func (c *Checker) runParallel(ctx context.Context, targets []Target) []*FolderResult {
	numWorkers := max(min(c.parallel, len(targets)), 1)

	jobCh := make(chan folderJob, len(targets))
	for i, t := range targets {
		jobCh <- folderJob{index: i, target: t}
	}
	close(jobCh)

	type result struct {
		index  int
		folder *FolderResult
		out    *bytes.Buffer
	}
	resultCh := make(chan result, len(targets))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if ctx.Err() != nil {
					return
				}
				var buf bytes.Buffer
				fr := c.checkFolder(ctx, job.target, c.reporter.Fork(&buf))
				resultCh <- result{index: job.index, folder: fr, out: &buf}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	folders := make([]*FolderResult, len(targets))
	pending := make(map[int]*bytes.Buffer)
	next := 0
	for res := range resultCh {
		folders[res.index] = res.folder
		pending[res.index] = res.out
		for {
			buf, ok := pending[next]
			if !ok {
				break
			}
			if _, err := c.reporter.Out().Write(buf.Bytes()); err != nil {
				c.logger.Error("cannot write folder output", "folder", targets[next].Folder, "err", err)
			}
			delete(pending, next)
			next++
		}
	}

	// A canceled run leaves holes; Run reports the context error instead.
	out := folders[:0]
	for _, f := range folders {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
