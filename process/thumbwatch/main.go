// Command thumbwatch backfills thumbnails for images placed in the uploads
// directory out-of-band (bulk copies, migrations), and can keep watching for
// new files. The HTTP upload path generates thumbnails inline; this tool
// covers everything else.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"platebook/pkg/thumbs"
)

var verbose bool

func main() {
	dirFlag := flag.String("dir", "uploads", "uploads directory to scan")
	watch := flag.Bool("watch", false, "watch the directory for new files")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	flag.BoolVar(&verbose, "verbose", false, "verbose per-file logging")
	flag.Parse()

	if *workers <= 0 {
		*workers = runtime.NumCPU()
	}

	jobs := make(chan string, 256)
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				processFile(path)
			}
		}()
	}

	n := scanDir(*dirFlag, jobs)
	log.Printf("scanned %s: queued %d candidate files", *dirFlag, n)

	if *watch {
		watchDir(*dirFlag, jobs)
	}
	close(jobs)
	wg.Wait()
}

// scanDir queues every image under dir that has no thumbnail yet.
func scanDir(dir string, jobs chan<- string) int {
	n := 0
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.Contains(path, string(filepath.Separator)+".thumbs"+string(filepath.Separator)) {
			return nil
		}
		if !thumbs.IsImage(path) {
			return nil
		}
		if _, err := os.Stat(thumbs.PathFor(path)); err == nil {
			return nil // thumbnail already present
		}
		jobs <- path
		n++
		return nil
	})
	return n
}

func processFile(path string) {
	if dst, err := thumbs.Generate(path, thumbs.MaxDim); err != nil {
		log.Printf("thumbnail failed for %s: %v", path, err)
	} else if verbose {
		log.Printf("wrote %s", dst)
	}
}

// watchDir blocks, feeding newly created files into jobs. Writes are
// debounced briefly so half-copied files are not picked up.
func watchDir(dir string, jobs chan<- string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("watcher: %v", err)
	}
	defer watcher.Close()

	// watch the dir and its first-level subfolders (uploads are grouped by folder)
	if err := watcher.Add(dir); err != nil {
		log.Fatalf("watch %s: %v", dir, err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.IsDir() && e.Name() != ".thumbs" {
			_ = watcher.Add(filepath.Join(dir, e.Name()))
		}
	}

	log.Printf("watching %s for new uploads", dir)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				if filepath.Base(ev.Name) != ".thumbs" {
					_ = watcher.Add(ev.Name)
				}
				continue
			}
			if !thumbs.IsImage(ev.Name) || strings.Contains(ev.Name, ".thumbs") {
				continue
			}
			go func(path string) {
				time.Sleep(500 * time.Millisecond)
				jobs <- path
			}(ev.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher error: %v", err)
		}
	}
}
