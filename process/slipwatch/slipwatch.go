package slipwatch

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Rodneymondela/slip-management/models"
	"github.com/Rodneymondela/slip-management/pkg/ocr"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Options controls a watch run.
type Options struct {
	Dir      string
	Username string // owner for ingested documents
	Workers  int    // 0 means NumCPU
	Dry      bool   // recognize and print, never write to DB
	Verbose  bool
	// Debounce is how long a file must be quiet before it is picked up.
	// Editors and phone-sync tools write in bursts; 0 means 2s.
	Debounce time.Duration
}

var watchExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".pdf": true}

func mustDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in env")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	return gdb
}

// Run watches opts.Dir for dropped slips and feeds them through the OCR
// pipeline. It blocks until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}

	var gdb *gorm.DB
	var userID uint
	if !opts.Dry {
		gdb = mustDBFromEnv()
		var user models.User
		if err := gdb.Where("username = ?", opts.Username).First(&user).Error; err != nil {
			return fmt.Errorf("lookup user %q: %w", opts.Username, err)
		}
		userID = user.ID
	}

	pipe := ocr.NewPipeline(ocr.NewTesseractEngine(), ocr.Config{}.Normalize())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", opts.Dir, err)
	}

	// Shutdown runs through this derived context, never through closing jobs:
	// a debounce timer that fires during teardown may still attempt a send,
	// and a select on a closed channel would panic. With the channel left
	// open, a late send simply loses the race to ctx.Done and returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case path := <-jobs:
					ingest(ctx, pipe, gdb, userID, path, opts)
				}
			}
		}()
	}

	send := func(path string) {
		select {
		case jobs <- path:
		case <-ctx.Done():
		}
	}

	// pick up files already sitting in the directory
	if entries, err := os.ReadDir(opts.Dir); err == nil {
		for _, e := range entries {
			if !e.IsDir() && watchExts[strings.ToLower(filepath.Ext(e.Name()))] {
				send(filepath.Join(opts.Dir, e.Name()))
			}
		}
	}

	deb := newDebouncer(opts.Debounce, send)
	stop := func() {
		cancel()
		deb.stop()
		wg.Wait()
	}

	log.Printf("watching %s with %d workers", opts.Dir, opts.Workers)
	for {
		select {
		case <-ctx.Done():
			stop()
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				stop()
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !watchExts[strings.ToLower(filepath.Ext(ev.Name))] {
				continue
			}
			deb.touch(ev.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				stop()
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

// debouncer coalesces bursty file events: a path is handed to sink only after
// it has been quiet for the full window. Editors and sync tools write in
// several chunks, and picking a file up mid-write feeds the pipeline garbage.
type debouncer struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	quiet   time.Duration
	sink    func(path string)
}

func newDebouncer(quiet time.Duration, sink func(string)) *debouncer {
	return &debouncer{timers: make(map[string]*time.Timer), quiet: quiet, sink: sink}
}

// touch starts or resets the quiet-window timer for path.
func (d *debouncer) touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, exists := d.timers[path]; exists {
		t.Reset(d.quiet)
		return
	}
	d.timers[path] = time.AfterFunc(d.quiet, func() { d.fire(path) })
}

func (d *debouncer) fire(path string) {
	d.mu.Lock()
	delete(d.timers, path)
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return
	}
	d.sink(path)
}

// stop cancels pending timers and suppresses further deliveries. A timer that
// already fired and is past the stopped check may still call sink once, so
// sink must stay safe to call after stop returns.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = make(map[string]*time.Timer)
}

// ingest runs one file through the pipeline and records the document.
func ingest(ctx context.Context, pipe *ocr.Pipeline, gdb *gorm.DB, userID uint, path string, opts Options) {
	name := filepath.Base(path)
	if opts.Verbose {
		log.Printf("processing %s", name)
	}
	start := time.Now()
	text, fields, err := pipe.ProcessFile(ctx, path, nil)
	if err != nil {
		log.Printf("ocr failed %s: %v", name, err)
		if !opts.Dry && gdb != nil {
			doc := models.Document{UserID: userID, Type: "receipt", FilePath: path, Status: models.DocFailed, FailedReason: err.Error()}
			if derr := gdb.Create(&doc).Error; derr != nil {
				log.Printf("failed to record %s: %v", name, derr)
			}
		}
		return
	}
	if opts.Verbose {
		log.Printf("done %s in %s supplier=%s total=%s", name, time.Since(start).Round(time.Millisecond), strVal(fields.SupplierName), decVal(fields.TotalAmount))
	}
	if opts.Dry {
		fmt.Printf("DRY: %s supplier=%s date=%s total=%s\n", name, strVal(fields.SupplierName), dateVal(fields.EntryDate), decVal(fields.TotalAmount))
		return
	}

	doc := models.Document{UserID: userID, Type: "receipt", FilePath: path, OCRText: text, Status: models.DocParsed}
	if err := gdb.Create(&doc).Error; err != nil {
		log.Printf("failed to record %s: %v", name, err)
		return
	}
	if err := moveToProcessed(path, name); err != nil {
		log.Printf("WARN failed to move processed file %s: %v", name, err)
	}
	fmt.Printf("ingested %s as document id=%d\n", name, doc.ID)
}

func strVal(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func decVal(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2)
}

func dateVal(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// moveToProcessed moves an ingested file into a processed/ sibling directory.
// It attempts an atomic rename and falls back to copy+remove when necessary.
func moveToProcessed(srcFullPath, name string) error {
	processedDir := filepath.Join(filepath.Dir(srcFullPath), "processed")
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(processedDir, name)
	if err := os.Rename(srcFullPath, dst); err == nil {
		return nil
	}
	in, err := os.Open(srcFullPath)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()
	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dst)
		return err
	}
	_ = out.Sync()
	return os.Remove(srcFullPath)
}
