package image

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"

	"github.com/kilnhq/kiln/internal/config"
)

// ResizeKind identifies which resize algorithm a ResizeInstruction applies.
type ResizeKind int

const (
	// Scale resizes to an exact width and height, ignoring aspect ratio.
	Scale ResizeKind = iota
	// FitWidth scales to a target width, preserving aspect ratio. Never
	// upscales: a source narrower than the target width is left as-is.
	FitWidth
	// FitHeight scales to a target height, preserving aspect ratio. Never
	// upscales.
	FitHeight
	// Fit scales to fit within a W×H bounding box, preserving aspect ratio,
	// only if the source exceeds the box; otherwise identity.
	Fit
	// Fill crops to the target aspect ratio (if needed) then scales to
	// exactly W×H.
	Fill
)

// ResizeInstruction describes one resize operation: one of the Scale/
// FitWidth/FitHeight/Fit/Fill variants.
type ResizeInstruction struct {
	Kind   ResizeKind
	Width  int
	Height int
}

// CropRect is an optional pre-resize crop rectangle, in source pixels.
type CropRect struct {
	X, Y, W, H int
}

// Format identifies an output image encoding.
type Format int

const (
	FormatPNG Format = iota
	FormatJPEG
	FormatWebP
	FormatAVIF
)

// extension returns the output file extension (without a leading dot) for f.
func (f Format) extension() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatAVIF:
		return "avif"
	default:
		return "jpg"
	}
}

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	case FormatAVIF:
		return "avif"
	default:
		return "jpeg"
	}
}

// formatFromName maps a config format name ("png", "jpeg", "webp", "avif")
// to a Format. Unrecognized names fall back to FormatJPEG.
func formatFromName(name string) Format {
	switch strings.ToLower(name) {
	case "png":
		return FormatPNG
	case "webp":
		return FormatWebP
	case "avif":
		return FormatAVIF
	default:
		return FormatJPEG
	}
}

// OutputFormat pairs a Format with its encoding parameters. Quality applies
// to Jpeg/Webp/Avif; Speed applies to Avif only.
type OutputFormat struct {
	Format  Format
	Quality int
	Speed   int
}

// ImageOp is one pending image transformation, identified by a content hash
// of (source path, resize instruction, output format) plus a collision id
// that disambiguates distinct operations that happen to hash alike.
type ImageOp struct {
	SourcePath  string
	Instruction ResizeInstruction
	Crop        *CropRect
	Output      OutputFormat
	Hash        uint64
	CollisionID uint8

	// StaticPath is the destination file this op will (or already does)
	// produce, fixed once at enqueue time.
	StaticPath string

	ignore bool // output already exists and is newer than the source
	done   bool // already written to disk this run
}

// sameTransform reports whether op and other describe the same
// transformation, structurally.
// Hash and CollisionID are derived, not compared.
func (op *ImageOp) sameTransform(other *ImageOp) bool {
	if op.SourcePath != other.SourcePath || op.Instruction != other.Instruction || op.Output != other.Output {
		return false
	}
	if (op.Crop == nil) != (other.Crop == nil) {
		return false
	}
	if op.Crop != nil && *op.Crop != *other.Crop {
		return false
	}
	return true
}

// hashImageOp computes the 64-bit FNV-1a content hash of (source path,
// instruction, crop, output format) that names an ImageOp's output file.
func hashImageOp(sourcePath string, instr ResizeInstruction, crop *CropRect, out OutputFormat) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00%d", sourcePath, instr.Kind, instr.Width, instr.Height)
	if crop != nil {
		fmt.Fprintf(h, "\x00%d,%d,%d,%d", crop.X, crop.Y, crop.W, crop.H)
	} else {
		h.Write([]byte("\x00nocrop"))
	}
	fmt.Fprintf(h, "\x00%d\x00%d\x00%d", out.Format, out.Quality, out.Speed)
	return h.Sum64()
}

// CollisionOverflowError is returned by Enqueue when a single hash bucket
// would need a 256th distinct collision id. It corresponds to
// content.BuildError{Kind: ErrCollisionOverflow} at the build-orchestrator
// layer, which wraps it with the offending source path.
type CollisionOverflowError struct {
	Hash uint64
}

func (e *CollisionOverflowError) Error() string {
	return fmt.Sprintf("image: hash collision overflow for %016x (more than 256 distinct operations share this hash)", e.Hash)
}

// hashBucket holds every ImageOp seen so far for one hash value: index 0 is
// the first-seen op (collision id 00); later, structurally-distinct ops are
// appended with ids 01..=255 in first-seen order.
type hashBucket struct {
	ops []*ImageOp
}

// EnqueueResponse is returned by Enqueue: the URL and on-disk path the
// output will have, plus the final and original pixel dimensions.
type EnqueueResponse struct {
	URL        string
	StaticPath string
	Width      int
	Height     int
	OrigWidth  int
	OrigHeight int
}

// ProcessedImage holds metadata about a source image and all generated
// variants, as registered by Process/ProcessDir for lookup by URL.
type ProcessedImage struct {
	OriginalURL string
	Width       int
	Height      int
	Variants    []Variant
}

// Variant describes a single generated image file.
type Variant struct {
	Width  int
	Height int
	Format string // "webp", "jpeg", "png"
	URL    string
	Path   string
}

// Processor owns the pending set of ImageOps, their collision bookkeeping,
// and a metadata cache of source dimensions. One
// Processor is shared across a build; ProcessDir fans work out across
// runtime.NumCPU() workers, each writing its own output file.
type Processor struct {
	config config.ImageConfig
	meta   *MetadataCache

	mu       sync.Mutex
	pending  map[uint64]*hashBucket
	registry map[string]*ProcessedImage // keyed by source URL
}

// NewProcessor creates a Processor with the given image configuration. Its
// metadata cache is rooted at {projectRoot}/.kiln/imagemeta/.
func NewProcessor(cfg config.ImageConfig, projectRoot string) *Processor {
	cacheDir := filepath.Join(projectRoot, ".kiln", "imagemeta")
	meta, err := NewMetadataCache(cacheDir)
	if err != nil {
		// Best-effort optimisation; processing still works without it.
		meta = nil
	}
	return &Processor{
		config:   cfg,
		meta:     meta,
		pending:  make(map[uint64]*hashBucket),
		registry: make(map[string]*ProcessedImage),
	}
}

// sourceDimensions returns the pixel dimensions of srcPath, preferring the
// metadata cache over decoding the file when the content hash matches.
func (p *Processor) sourceDimensions(srcPath string) (int, int, error) {
	contentHash, hashErr := HashFile(srcPath)
	if hashErr == nil && p.meta != nil {
		if entry, ok := p.meta.Lookup(srcPath, contentHash); ok {
			return entry.Width, entry.Height, nil
		}
	}

	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, fmt.Errorf("opening image %s: %w", srcPath, err)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if hashErr == nil && p.meta != nil {
		_ = p.meta.Store(srcPath, MetadataEntry{
			ContentHash: contentHash,
			Width:       w,
			Height:      h,
			Mime:        mimeForPath(srcPath),
			Lossy:       isLossyFormat(srcPath),
		})
	}
	return w, h, nil
}

// computeDimensions returns the final pixel dimensions a ResizeInstruction
// produces for a srcW×srcH source.
func computeDimensions(instr ResizeInstruction, srcW, srcH int) (int, int) {
	switch instr.Kind {
	case Scale:
		w, h := instr.Width, instr.Height
		if w <= 0 && h > 0 {
			w = int(math.Round(float64(h) * float64(srcW) / float64(srcH)))
		}
		if h <= 0 && w > 0 {
			h = int(math.Round(float64(w) * float64(srcH) / float64(srcW)))
		}
		return w, h
	case FitWidth:
		if instr.Width >= srcW {
			return srcW, srcH
		}
		h := int(math.Round(float64(instr.Width) * float64(srcH) / float64(srcW)))
		return instr.Width, h
	case FitHeight:
		if instr.Height >= srcH {
			return srcW, srcH
		}
		w := int(math.Round(float64(instr.Height) * float64(srcW) / float64(srcH)))
		return w, instr.Height
	case Fit:
		scale := math.Min(float64(instr.Width)/float64(srcW), float64(instr.Height)/float64(srcH))
		if scale >= 1 {
			return srcW, srcH
		}
		return int(math.Round(float64(srcW) * scale)), int(math.Round(float64(srcH) * scale))
	case Fill:
		return instr.Width, instr.Height
	default:
		return srcW, srcH
	}
}

// enqueue is the internal form of Enqueue: it also returns the stored
// ImageOp so Process can process exactly the ops it just queued without
// racing other goroutines' concurrent enqueues of unrelated images.
func (p *Processor) enqueue(
	instr ResizeInstruction, srcPath string, crop *CropRect, out OutputFormat,
	outputDir, urlPrefix string,
) (*EnqueueResponse, *ImageOp, error) {
	srcW, srcH, err := p.sourceDimensions(srcPath)
	if err != nil {
		return nil, nil, err
	}
	finalW, finalH := computeDimensions(instr, srcW, srcH)
	hash := hashImageOp(srcPath, instr, crop, out)

	candidate := &ImageOp{
		SourcePath:  srcPath,
		Instruction: instr,
		Crop:        crop,
		Output:      out,
		Hash:        hash,
	}

	p.mu.Lock()
	bucket := p.pending[hash]
	if bucket == nil {
		bucket = &hashBucket{}
		p.pending[hash] = bucket
	}

	var stored *ImageOp
	for _, existing := range bucket.ops {
		if existing.sameTransform(candidate) {
			stored = existing
			break
		}
	}
	if stored == nil {
		if len(bucket.ops) > 255 {
			p.mu.Unlock()
			return nil, nil, &CollisionOverflowError{Hash: hash}
		}
		candidate.CollisionID = uint8(len(bucket.ops))
		filename := fmt.Sprintf("%016x.%02x.%s", hash, candidate.CollisionID, out.Format.extension())
		candidate.StaticPath = filepath.Join(outputDir, filename)
		bucket.ops = append(bucket.ops, candidate)
		stored = candidate
	}
	p.mu.Unlock()

	if info, statErr := os.Stat(stored.StaticPath); statErr == nil {
		if srcInfo, srcErr := os.Stat(srcPath); srcErr == nil && !info.ModTime().Before(srcInfo.ModTime()) {
			stored.ignore = true
		}
	}

	url := strings.TrimRight(urlPrefix, "/") + "/" + filepath.Base(stored.StaticPath)
	return &EnqueueResponse{
		URL:        url,
		StaticPath: stored.StaticPath,
		Width:      finalW,
		Height:     finalH,
		OrigWidth:  srcW,
		OrigHeight: srcH,
	}, stored, nil
}

// Enqueue records a pending image transformation and returns the response
// describing the output it will produce once processed. Calling Enqueue
// again with a structurally identical operation returns the same response;
// a distinct operation that happens to hash the same is assigned the next
// collision id.
func (p *Processor) Enqueue(instr ResizeInstruction, srcPath string, crop *CropRect, out OutputFormat, outputDir, urlPrefix string) (*EnqueueResponse, error) {
	resp, _, err := p.enqueue(instr, srcPath, crop, out, outputDir, urlPrefix)
	return resp, err
}

// processOps writes every non-ignored, not-yet-written op in ops to disk.
// It returns the first error encountered but continues with the rest.
func (p *Processor) processOps(ops []*ImageOp) error {
	var firstErr error
	for _, op := range ops {
		if op.ignore || op.done {
			continue
		}
		if err := p.renderOp(op); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("processing %s: %w", op.SourcePath, err)
			}
			continue
		}
		op.done = true
	}
	return firstErr
}

// Do processes every pending, non-ignored ImageOp enqueued so far across
// every source image, writing each output via a temp-file-and-rename so
// readers never observe a partial file. It returns one error per failed op
// rather than stopping at the first.
func (p *Processor) Do() []error {
	p.mu.Lock()
	var all []*ImageOp
	for _, b := range p.pending {
		all = append(all, b.ops...)
	}
	p.mu.Unlock()

	var errs []error
	for _, op := range all {
		if op.ignore || op.done {
			continue
		}
		if err := p.renderOp(op); err != nil {
			errs = append(errs, fmt.Errorf("processing %s: %w", op.SourcePath, err))
			continue
		}
		op.done = true
	}
	return errs
}

// renderOp applies op's crop and resize instruction to its source image and
// encodes the result to a temp file, then atomically renames it over
// op.StaticPath.
func (p *Processor) renderOp(op *ImageOp) error {
	srcImg, err := imaging.Open(op.SourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("opening %s: %w", op.SourcePath, err)
	}

	working := srcImg
	if op.Crop != nil {
		rect := image.Rect(op.Crop.X, op.Crop.Y, op.Crop.X+op.Crop.W, op.Crop.Y+op.Crop.H)
		working = imaging.Crop(working, rect)
	}

	bounds := working.Bounds()
	w, h := computeDimensions(op.Instruction, bounds.Dx(), bounds.Dy())

	var out image.Image
	switch op.Instruction.Kind {
	case Fill:
		out = imaging.Fill(working, w, h, imaging.Center, imaging.Lanczos)
	default:
		if w == bounds.Dx() && h == bounds.Dy() {
			out = working
		} else {
			out = imaging.Resize(working, w, h, imaging.Lanczos)
		}
	}

	destDir := filepath.Dir(op.StaticPath)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(destDir, ".kiln-img-*."+op.Output.Format.extension())
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := encodeFormat(tmp, out, op.Output.Format, op.Output.Quality); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, op.StaticPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s into place: %w", op.StaticPath, err)
	}
	return nil
}

// encodeFormat writes img to w in the given format.
func encodeFormat(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case FormatWebP:
		if err := webp.Encode(w, img, webp.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encoding webp: %w", err)
		}
	case FormatPNG:
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("encoding png: %w", err)
		}
	case FormatAVIF:
		// No AVIF encoder is available in Kiln's dependency set (none of
		// the example repos carry one); see DESIGN.md.
		return fmt.Errorf("avif encoding is not supported")
	default:
		if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encoding jpeg: %w", err)
		}
	}
	return nil
}

var processedFilenameRe = regexp.MustCompile(`^[0-9a-f]{16}\.[0-9a-f]{2}\.[a-z0-9]+$`)

// Prune removes every file in outputDir that looks like a processed-image
// output (matches the hash.collision.ext pattern) but does not correspond to
// any ImageOp currently pending on this Processor.
func (p *Processor) Prune(outputDir string) error {
	p.mu.Lock()
	keep := make(map[string]bool)
	for _, b := range p.pending {
		for _, op := range b.ops {
			keep[filepath.Base(op.StaticPath)] = true
		}
	}
	p.mu.Unlock()

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading output directory %s: %w", outputDir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !processedFilenameRe.MatchString(e.Name()) || keep[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(outputDir, e.Name())); err != nil {
			return fmt.Errorf("pruning %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Process looks up the source image's dimensions (from the metadata cache
// when the content hash matches), enqueues one ImageOp per configured
// (size, format) pair whose size does not exceed the source width,
// processes them immediately (each op decodes the source on its own), and registers
// the result under srcURL for later lookup via GetImage. This is the
// responsive-image entry point used by the Markdown renderer; Enqueue/Do
// are the lower-level primitives it is built from.
func (p *Processor) Process(srcPath, srcURL, outputDir string) (*ProcessedImage, error) {
	srcW, _, err := p.sourceDimensions(srcPath)
	if err != nil {
		return nil, err
	}

	sizes := filterSizes(p.config.Sizes, srcW)
	formats := normalizeFormats(p.config.Formats, srcPath)
	urlPrefix := urlDir(srcURL)

	var ops []*ImageOp
	var variants []Variant
	for _, size := range sizes {
		for _, format := range formats {
			instr := ResizeInstruction{Kind: FitWidth, Width: size}
			out := OutputFormat{Format: formatFromName(format), Quality: p.config.Quality}
			resp, op, err := p.enqueue(instr, srcPath, nil, out, outputDir, urlPrefix)
			if err != nil {
				return nil, fmt.Errorf("enqueueing %s: %w", srcPath, err)
			}
			ops = append(ops, op)
			variants = append(variants, Variant{
				Width:  resp.Width,
				Height: resp.Height,
				Format: format,
				URL:    resp.URL,
				Path:   resp.StaticPath,
			})
		}
	}

	if err := p.processOps(ops); err != nil {
		return nil, err
	}

	pi := &ProcessedImage{OriginalURL: srcURL, Width: srcW, Height: func() int {
		_, h, _ := p.sourceDimensions(srcPath)
		return h
	}(), Variants: variants}
	p.register(srcURL, pi)
	return pi, nil
}

// ProcessDir walks srcDir, processing every supported image found.
// Generated variants are written flat into outputDir (Kiln's dedicated
// processed-images directory; filenames are already unique by content
// hash, so no subdirectory mirroring is needed) and URLs are prefixed with
// urlPrefix plus the image's path relative to srcDir. Processing is
// parallelised across runtime.NumCPU() workers, each writing its own files.
func (p *Processor) ProcessDir(srcDir, outputDir, urlPrefix string) error {
	type job struct {
		srcPath string
		srcURL  string
	}

	var jobs []job
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isSupportedImage(path) {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		jobs = append(jobs, job{
			srcPath: path,
			srcURL:  strings.TrimRight(urlPrefix, "/") + "/" + filepath.ToSlash(rel),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking source directory %s: %w", srcDir, err)
	}
	if len(jobs) == 0 {
		return nil
	}

	numWorkers := runtime.NumCPU()
	sem := make(chan struct{}, numWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, j := range jobs {
		j := j
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := p.Process(j.srcPath, j.srcURL, outputDir); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// GetImage returns the ProcessedImage for the given source URL, or nil if it
// has not been processed. Safe for concurrent use.
func (p *Processor) GetImage(srcURL string) *ProcessedImage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry[srcURL]
}

func (p *Processor) register(srcURL string, pi *ProcessedImage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry[srcURL] = pi
}

// isSupportedImage reports whether the file at path is a JPEG or PNG based
// on its extension.
func isSupportedImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// filterSizes returns the configured sizes that do not exceed srcWidth,
// preserving order. Larger sizes would only upscale, which Kiln never does.
func filterSizes(sizes []int, srcWidth int) []int {
	var out []int
	for _, s := range sizes {
		if s <= srcWidth {
			out = append(out, s)
		}
	}
	return out
}

// normalizeFormats converts config format strings (e.g. "webp", "original")
// into concrete format names. "original" is replaced with the source file's
// format.
func normalizeFormats(configFormats []string, srcPath string) []string {
	srcFmt := sourceFormat(srcPath)
	var formats []string
	seen := make(map[string]bool)
	for _, f := range configFormats {
		f = strings.ToLower(f)
		if f == "original" {
			f = srcFmt
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats
}

// sourceFormat returns "jpeg" or "png" based on the file extension.
func sourceFormat(path string) string {
	if strings.ToLower(filepath.Ext(path)) == ".png" {
		return "png"
	}
	return "jpeg"
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// isLossyFormat reports whether a source image's format discards an
// embedded ICC profile on re-encode.
func isLossyFormat(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".gif":
		return false
	default:
		return true
	}
}

// urlDir returns the directory portion of a URL path.
func urlDir(u string) string {
	idx := strings.LastIndex(u, "/")
	if idx < 0 {
		return ""
	}
	return u[:idx]
}
