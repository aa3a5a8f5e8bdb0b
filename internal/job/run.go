// Package job orchestrates a whole render: scene resolution, slot
// ownership, media prefetch, per-scene headless capture and encode, and the
// final lossless concatenation. Scenes run strictly sequentially — the
// headless raster surface is a single shared resource and bounded memory
// beats parallelism here.
package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ivlev/lottie2video/internal/card"
	"github.com/ivlev/lottie2video/internal/inject"
	"github.com/ivlev/lottie2video/internal/lottie"
	"github.com/ivlev/lottie2video/internal/media"
	"github.com/ivlev/lottie2video/internal/render"
	"github.com/ivlev/lottie2video/internal/scene"
	"github.com/ivlev/lottie2video/internal/slot"
	"github.com/ivlev/lottie2video/internal/system"
	"github.com/ivlev/lottie2video/internal/video"
)

// SceneRequest names one scene to render and an optional target resolution
// (zero means the scene's own size).
type SceneRequest struct {
	Query  string
	Width  int
	Height int
}

// Job is one unit of render work.
type Job struct {
	Doc    *lottie.Document
	Scenes []SceneRequest // empty: render every scene found by Scan, in order
	Photos map[string]string
	Texts  map[string]string

	AudioPath  string
	Card       *card.Spec // optional trailing card
	OutputPath string

	SceneOpts    scene.Options
	Conventions  slot.Conventions
	ReadyTimeout time.Duration

	// Progress receives advisory integers 0..100; errors and panics inside
	// the callback are swallowed.
	Progress func(percent int)
}

// Result describes a completed job.
type Result struct {
	OutputPath  string
	Scenes      []scene.Descriptor
	TotalFrames int
	Warnings    []string
}

// Runner holds the collaborators a job needs. Zero values get production
// defaults: ffmpeg encoder, chromedp engine, plain fetcher.
type Runner struct {
	NewEngine   func() render.HeadlessEngine
	Encoder     video.Encoder
	Fetcher     *media.Fetcher
	EncoderName string
	Quality     int
}

func (r *Runner) newEngine() render.HeadlessEngine {
	if r.NewEngine != nil {
		return r.NewEngine()
	}
	return render.NewChromeEngine(render.ChromeOptions{})
}

func (r *Runner) encoder() video.Encoder {
	if r.Encoder != nil {
		return r.Encoder
	}
	return &video.FFmpegEncoder{}
}

func (r *Runner) fetcher() *media.Fetcher {
	if r.Fetcher != nil {
		return r.Fetcher
	}
	return &media.Fetcher{}
}

func (r *Runner) encoderName() string {
	if r.EncoderName != "" {
		return r.EncoderName
	}
	return "libx264"
}

func (r *Runner) quality() int {
	if r.Quality > 0 {
		return r.Quality
	}
	return 23
}

// Run executes the job. Temp artifacts (frames are never spooled, but
// per-scene segments are) live in a scoped temp dir removed on success,
// failure and cancellation alike.
func (r *Runner) Run(ctx context.Context, j *Job) (*Result, error) {
	if j.Doc == nil {
		return nil, errors.New("job: document is required")
	}
	if j.OutputPath == "" {
		return nil, errors.New("job: output path is required")
	}

	progress := newProgress(j.Progress)

	// 1. Порядок сцен. Он же определяет владение слотами.
	scenes, err := r.resolveScenes(j)
	if err != nil {
		return nil, err
	}

	sets := slot.ResolveScenes(j.Doc, scenes, j.Conventions)

	// 2. Предзагрузка пользовательских фото (параллельно, с ретраями).
	content, warnings := r.prefetch(ctx, j, scenes, sets)
	progress.set(5)

	tmpDir, err := os.MkdirTemp("", "lottie2video_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	totalFrames := 0
	for _, d := range scenes {
		totalFrames += d.Frames
	}
	cardFrames := 0
	if j.Card != nil {
		cardFrames = j.Card.Frames(j.Doc.FrameRate)
		totalFrames += cardFrames
	}
	if totalFrames == 0 {
		return nil, fmt.Errorf("job: scenes have zero total duration")
	}

	if j.AudioPath != "" {
		// Флаг -shortest обрежет финал по более короткому потоку;
		// предупреждаем заранее, если дорожка заметно расходится с видео.
		if audioSec, err := system.GetAudioDuration(j.AudioPath); err == nil {
			videoSec := float64(totalFrames) / j.Doc.FrameRate
			if diff := audioSec - videoSec; diff > 1 || diff < -1 {
				log.Printf("[!] Аудио %.1fс, видео %.1fс: финал будет обрезан по короткому потоку", audioSec, videoSec)
			}
		}
	}

	fmt.Printf("[*] Сцен: %d | Кадров всего: %d @ %.2f FPS | Энкодер: %s\n",
		len(scenes), totalFrames, j.Doc.FrameRate, r.encoderName())

	// 3. Посценовый цикл: извлечь -> подставить контент -> отрендерить ->
	// закодировать. Следующая сцена начинается только после полного
	// завершения предыдущей.
	segments := make([]string, 0, len(scenes)+1)
	framesDone := 0
	for i, desc := range scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		segPath, err := r.renderScene(ctx, j, i, desc, sets[i], content, tmpDir, progress, framesDone, totalFrames)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segPath)
		framesDone += desc.Frames
		progress.set(5 + framesDone*90/totalFrames)
		fmt.Printf("[>] Ready: %d/%d\n", i+1, len(scenes))
	}

	// 4. Финальная карточка (опционально).
	if j.Card != nil {
		segPath := filepath.Join(tmpDir, "card.mp4")
		if err := r.encodeCard(ctx, j, cardFrames, segPath); err != nil {
			return nil, &StageError{SceneIndex: -1, Stage: StageEncode, Err: err}
		}
		segments = append(segments, segPath)
		framesDone += cardFrames
		progress.set(5 + framesDone*90/totalFrames)
	}

	// 5. Склейка без перекодирования, сцены в заявленном порядке.
	fmt.Println("[*] Сборка финального видео...")
	err = r.encoder().Concatenate(ctx, segments, j.OutputPath, tmpDir, video.ConcatParams{AudioPath: j.AudioPath})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &StageError{SceneIndex: -1, Stage: StageConcat, Err: err}
	}

	progress.set(100)
	return &Result{
		OutputPath:  j.OutputPath,
		Scenes:      scenes,
		TotalFrames: totalFrames,
		Warnings:    warnings,
	}, nil
}

// resolveScenes builds the ordered descriptor list. An unresolvable query
// aborts the whole job: silently rendering fewer scenes than asked for is
// worse than failing loudly.
func (r *Runner) resolveScenes(j *Job) ([]scene.Descriptor, error) {
	if len(j.Scenes) == 0 {
		scenes := scene.Scan(j.Doc, j.SceneOpts)
		if len(scenes) == 0 {
			return nil, fmt.Errorf("job: %w: документ не содержит сцен", scene.ErrSceneNotFound)
		}
		return scenes, nil
	}

	queries := make([]string, len(j.Scenes))
	for i, req := range j.Scenes {
		queries[i] = req.Query
	}
	scenes, err := scene.FromIDs(j.Doc, queries, j.SceneOpts)
	if err != nil {
		return nil, err
	}
	for i, req := range j.Scenes {
		if req.Width > 0 {
			scenes[i].Width = req.Width
		}
		if req.Height > 0 {
			scenes[i].Height = req.Height
		}
	}
	return scenes, nil
}

// prefetch downloads the user photos for all photo slots that got content,
// sized by the slot composition. Failures degrade to warnings (the slot
// keeps its authored placeholder).
func (r *Runner) prefetch(ctx context.Context, j *Job, scenes []scene.Descriptor, sets []slot.Set) (inject.Content, []string) {
	targets := map[string]media.Target{}
	for _, set := range sets {
		for _, s := range set.Photos {
			url, ok := j.Photos[s.AssetID]
			if !ok {
				continue
			}
			if _, have := targets[s.AssetID]; have {
				continue
			}
			t := media.Target{URL: url}
			if a := j.Doc.Asset(s.AssetID); a != nil {
				t.MaxWidth, t.MaxHeight = a.Width, a.Height
			}
			targets[s.AssetID] = t
		}
	}

	content := inject.Content{Texts: j.Texts}
	if len(targets) == 0 {
		content.Photos = j.Photos
		return content, nil
	}

	fetched, warnings := r.fetcher().Prefetch(ctx, targets)
	content.Photos = fetched
	return content, warnings
}

// renderScene runs the full capture+encode of one scene on a fresh engine
// instance. The engine is closed before returning so no loaded assets leak
// into the next scene.
func (r *Runner) renderScene(ctx context.Context, j *Job, idx int, desc scene.Descriptor, slots slot.Set, content inject.Content, tmpDir string, progress *progressSink, framesDone, totalFrames int) (string, error) {
	ex, err := scene.Extract(j.Doc, desc)
	if err != nil {
		return "", &StageError{SceneIndex: idx, SceneID: desc.AssetID, Stage: StageExtract, Err: err}
	}

	injected := inject.Apply(ex, slots, content)
	docBytes, err := injected.Doc.Marshal()
	if err != nil {
		return "", &StageError{SceneIndex: idx, SceneID: desc.AssetID, Stage: StageExtract, Err: err}
	}

	engine := r.newEngine()
	defer engine.Close()

	seq, err := render.Start(ctx, engine, docBytes, desc.Width, desc.Height, desc.Frames, j.ReadyTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &StageError{SceneIndex: idx, SceneID: desc.AssetID, Stage: StageReady, Err: err}
	}

	// Прогресс обновляем раз в 10 кадров: канал чисто информационный и не
	// должен тормозить захват.
	seq.OnFrame(func(frame int) {
		if frame%10 == 0 {
			progress.set(5 + (framesDone+frame)*90/totalFrames)
		}
	})

	// Захват идет с небольшим опережением кодирования: кадры проходят через
	// ограниченный канал, глубина которого подбирается по свободной памяти.
	spoolCtx, stopSpool := context.WithCancel(ctx)
	defer stopSpool()
	frames := render.Spool(spoolCtx, seq, system.FrameSpoolFrames(desc.Width, desc.Height))

	segPath := filepath.Join(tmpDir, fmt.Sprintf("s%d.mp4", idx))
	params := video.SegmentParams{
		Width:   desc.Width,
		Height:  desc.Height,
		FPS:     j.Doc.FrameRate,
		Encoder: r.encoderName(),
		Quality: r.quality(),
	}
	if err := r.encoder().EncodeSegment(ctx, frames, segPath, params); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &StageError{SceneIndex: idx, SceneID: desc.AssetID, Stage: StageEncode, Err: err}
	}
	return segPath, nil
}

func (r *Runner) encodeCard(ctx context.Context, j *Job, frames int, segPath string) error {
	w, h := j.Doc.Width, j.Doc.Height
	if len(j.Scenes) > 0 {
		// Карточка наследует размер последней сцены, чтобы склейка
		// оставалась без перекодирования.
		if req := j.Scenes[len(j.Scenes)-1]; req.Width > 0 && req.Height > 0 {
			w, h = req.Width, req.Height
		}
	}
	img, err := card.Compose(*j.Card, w, h)
	if err != nil {
		return err
	}
	params := video.SegmentParams{
		Width:   w,
		Height:  h,
		FPS:     j.Doc.FrameRate,
		Encoder: r.encoderName(),
		Quality: r.quality(),
	}
	return r.encoder().EncodeSegment(ctx, card.Repeat(img, frames), segPath, params)
}

// progressSink keeps reported progress monotone and shields the pipeline
// from a misbehaving callback.
type progressSink struct {
	fn   func(int)
	last int
}

func newProgress(fn func(int)) *progressSink {
	return &progressSink{fn: fn, last: -1}
}

func (p *progressSink) set(percent int) {
	if p.fn == nil {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= p.last {
		return
	}
	p.last = percent
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[!] Прогресс-коллбек упал: %v", rec)
		}
	}()
	p.fn(percent)
}
