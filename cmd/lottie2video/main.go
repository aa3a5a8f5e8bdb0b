package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/lottie2video/internal/card"
	"github.com/ivlev/lottie2video/internal/job"
	"github.com/ivlev/lottie2video/internal/jobspec"
	"github.com/ivlev/lottie2video/internal/lottie"
	"github.com/ivlev/lottie2video/internal/render"
	"github.com/ivlev/lottie2video/internal/scene"
	"github.com/ivlev/lottie2video/internal/system"
)

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	jobPtr := flag.String("job", "", "Путь к YAML-описанию задачи рендеринга")
	inputPtr := flag.String("input", "", "Путь или URL анимационного документа (JSON)")
	outputPtr := flag.String("output", "", "Путь к видео (если пусто, генерируется автоматически в output/)")
	scenesPtr := flag.String("scenes", "", "Список сцен через запятую (по умолчанию: все сцены документа)")
	audioPtr := flag.String("audio", "", "Путь к аудио-дорожке")
	keywordsPtr := flag.String("keywords", "", "Ключевые слова имен сцен через запятую (по умолчанию: scene,сцена)")
	timeoutPtr := flag.Duration("ready-timeout", 30*time.Second, "Таймаут готовности движка на сцену")
	qualityPtr := flag.Int("quality", 0, "Качество видео (0 - авто, x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	playerPtr := flag.String("player", "", "URL или file:// путь к сборке lottie-web")

	flag.Parse()

	j := &job.Job{ReadyTimeout: *timeoutPtr}
	docSource := *inputPtr

	if *jobPtr != "" {
		spec, err := jobspec.Read(*jobPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка чтения задачи: %v", err)
		}
		docSource = spec.Document
		j.OutputPath = spec.Output
		j.Photos = spec.Photos
		j.Texts = spec.Texts
		j.AudioPath = spec.Audio
		j.SceneOpts = scene.Options{Keywords: spec.Keywords}
		for _, sc := range spec.Scenes {
			j.Scenes = append(j.Scenes, job.SceneRequest{Query: sc.ID, Width: sc.Width, Height: sc.Height})
		}
		if spec.Card != nil {
			j.Card = &card.Spec{Title: spec.Card.Title, URL: spec.Card.URL, Seconds: spec.Card.Seconds}
		}
	}

	if docSource == "" {
		log.Fatalf("[-] Ошибка: укажите -input или -job")
	}

	data, err := loadDocument(docSource)
	if err != nil {
		log.Fatalf("[-] Ошибка загрузки документа: %v", err)
	}
	doc, err := lottie.Parse(data)
	if err != nil {
		log.Fatalf("[-] Ошибка разбора документа: %v", err)
	}
	j.Doc = doc

	if *scenesPtr != "" {
		j.Scenes = nil
		for _, q := range strings.Split(*scenesPtr, ",") {
			if q = strings.TrimSpace(q); q != "" {
				j.Scenes = append(j.Scenes, job.SceneRequest{Query: q})
			}
		}
	}
	if *keywordsPtr != "" {
		j.SceneOpts = scene.Options{Keywords: strings.Split(*keywordsPtr, ",")}
	}
	if *audioPtr != "" {
		j.AudioPath = *audioPtr
	}
	if j.AudioPath == "" {
		// Саундтрек по умолчанию: самый свежий аудио-файл в текущей папке.
		if audio, err := system.FindLatestAudio("."); err == nil {
			fmt.Printf("[*] Найдена аудио-дорожка: %s\n", filepath.Base(audio))
			j.AudioPath = audio
		}
	}
	if *outputPtr != "" {
		j.OutputPath = *outputPtr
	}
	if j.OutputPath == "" {
		os.MkdirAll("output", 0755)
		baseName := strings.TrimSuffix(filepath.Base(docSource), filepath.Ext(docSource))
		cleanName := strings.ReplaceAll(baseName, " ", "_")
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		j.OutputPath = filepath.Join("output", fmt.Sprintf("%s_%s.mp4", cleanName, timestamp))
	}

	encoderName, _ := system.GetBestH264Encoder()
	if encoderName != "libx264" {
		fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", encoderName)
	}

	quality := *qualityPtr
	if quality == 0 {
		switch encoderName {
		case "h264_videotoolbox":
			quality = 75
		case "h264_nvenc":
			quality = 28
		default:
			quality = 23
		}
	}

	runner := &job.Runner{EncoderName: encoderName, Quality: quality}
	if *playerPtr != "" {
		runner.NewEngine = newEngineFactory(*playerPtr)
	}

	j.Progress = func(p int) {
		fmt.Printf("\r[*] Прогресс: %3d%%", p)
		if p >= 100 {
			fmt.Println()
		}
	}

	// Ctrl+C отменяет задачу; промежуточные артефакты убираются так же,
	// как при ошибке.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := runner.Run(ctx, j)
	if err != nil {
		log.Fatalf("[-] Ошибка рендеринга: %v", err)
	}

	for _, w := range result.Warnings {
		fmt.Printf("[!] Предупреждение: %s\n", w)
	}
	fmt.Printf("[+++] Успех! Сцен: %d, кадров: %d. Результат: %s\n",
		len(result.Scenes), result.TotalFrames, result.OutputPath)
}

func newEngineFactory(player string) func() render.HeadlessEngine {
	return func() render.HeadlessEngine {
		return render.NewChromeEngine(render.ChromeOptions{PlayerScript: player})
	}
}

func loadDocument(source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d при загрузке %s", resp.StatusCode, source)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(source)
}
