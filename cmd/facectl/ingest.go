package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/your-org/eventface/internal/facemodel"
	"github.com/your-org/eventface/internal/ingest"
	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/internal/storage"
)

// mediaNamespace derives stable media ids from photo bytes so a re-run skips
// photos that are already indexed.
var mediaNamespace = uuid.MustParse("0f5a3c1e-7d8b-4e52-9a61-3b2f4c8d9e10")

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir|file>...",
	Short: "Index the faces of event photos",
	Long: `Index every JPEG, PNG and WebP photo under the given paths into one event.
Photos are stored in object storage and their faces inserted into the index.
Already indexed photos are skipped, so an interrupted run can be resumed.

Examples:
  facectl ingest --event wedding-2026 ./photos
  facectl ingest --event gala --concurrency 2 a.jpg b.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("event", "", "event id (required)")
	ingestCmd.Flags().Int("concurrency", 4, "number of photos processed in parallel")
	ingestCmd.Flags().Bool("skip-upload", false, "index faces without storing the photo bytes")
	_ = ingestCmd.MarkFlagRequired("event")
}

func runIngest(cmd *cobra.Command, args []string) error {
	eventID, _ := cmd.Flags().GetString("event")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	skipUpload, _ := cmd.Flags().GetBool("skip-upload")
	if concurrency < 1 {
		concurrency = 1
	}

	files, err := collectImages(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no images found")
	}

	d, err := loadDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	if err := d.db.Migrate(ctx); err != nil {
		return err
	}
	if !skipUpload {
		if err := d.minio.EnsureBucket(ctx); err != nil {
			return err
		}
	}

	ex, closeModel, err := facemodel.Open(d.cfg.Extractor)
	if err != nil {
		return err
	}
	defer closeModel()

	pipeline := ingest.NewPipeline(ex, d.db, d.cfg.Ingest)

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Indexing "+eventID),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var faces, skipped, failed, faceErrors int64
	var mu sync.Mutex
	var failures []string

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, path := range files {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() { _ = bar.Add(1) }()

			res, done, err := ingestFile(ctx, d, pipeline, eventID, path, skipUpload)
			switch {
			case err != nil:
				atomic.AddInt64(&failed, 1)
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
			case !done:
				atomic.AddInt64(&skipped, 1)
			default:
				atomic.AddInt64(&faces, int64(res.FacesFound))
				atomic.AddInt64(&faceErrors, int64(len(res.Errors)))
			}
		}()
	}
	wg.Wait()
	_ = bar.Finish()

	fmt.Printf("\nphotos: %d  faces indexed: %d  face errors: %d  skipped: %d  failed: %d\n",
		len(files), faces, faceErrors, skipped, failed)
	for _, f := range failures {
		fmt.Fprintln(os.Stderr, "  "+f)
	}
	if failed > 0 {
		return fmt.Errorf("%d photos failed", failed)
	}
	return nil
}

// ingestFile indexes one photo. done is false when it was already indexed.
func ingestFile(ctx context.Context, d *deps, pipeline *ingest.Pipeline, eventID, path string, skipUpload bool) (models.IngestResult, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.IngestResult{}, false, err
	}

	mediaID := uuid.NewSHA1(mediaNamespace, append([]byte(eventID+"/"), data...)).String()
	existing, err := d.db.GetMedia(ctx, mediaID)
	if err != nil {
		return models.IngestResult{}, false, err
	}
	if existing != nil {
		return models.IngestResult{}, false, nil
	}

	contentType := http.DetectContentType(data)
	media := &models.Media{
		ID:          mediaID,
		EventID:     eventID,
		ObjectKey:   storage.MediaKey(eventID, mediaID, filepath.Ext(path)),
		ContentType: contentType,
	}

	if !skipUpload {
		if err := d.minio.PutObject(ctx, media.ObjectKey, data, contentType); err != nil {
			return models.IngestResult{}, false, err
		}
	}

	// Faces left behind by an interrupted earlier run.
	if err := d.db.Remove(ctx, mediaID); err != nil {
		return models.IngestResult{}, false, err
	}
	res, err := pipeline.Ingest(ctx, mediaID, eventID, data)
	if err != nil {
		return res, false, err
	}
	// The row marks the photo as done, so it is written last.
	if err := d.db.CreateMedia(ctx, media); err != nil {
		return res, false, err
	}
	return res, true, nil
}

func collectImages(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".jpg", ".jpeg", ".png", ".webp":
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return files, nil
}
