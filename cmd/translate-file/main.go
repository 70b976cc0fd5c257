// Command translate-file translates a single local document through the
// same pipeline as the service, driving queue ticks synchronously until the
// job finishes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"doc-translator/internal/config"
	"doc-translator/internal/jobs"
	"doc-translator/internal/logger"
	"doc-translator/internal/queue"
	"doc-translator/internal/reconstruct"
	"doc-translator/internal/storage"
	"doc-translator/internal/store"
	"doc-translator/internal/translate"
)

func main() {
	input := flag.String("in", "", "input document (.docx, .pdf, .txt, .html)")
	output := flag.String("out", "", "output path (default: <in>.translated.<ext>)")
	source := flag.String("source", "en", "source language")
	target := flag.String("target", "zh", "target language")
	mock := flag.Bool("mock", false, "use the mock provider instead of OpenAI")
	maxTicks := flag.Int("max-ticks", 10000, "tick ceiling before giving up")
	flag.Parse()

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*input, *output, *source, *target, *mock, *maxTicks); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(input, output, source, target string, mock bool, maxTicks int) error {
	logCfg := logger.DefaultConfig()
	logCfg.EnableConsole = false
	logCfg.LogFilePath = filepath.Join(os.TempDir(), "doc-translator-cli.log")
	if err := logger.Init(logCfg); err != nil {
		return err
	}
	defer logger.Close()

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	var provider translate.Provider
	if mock {
		provider = translate.NewMockProvider()
	} else {
		apiKey := os.Getenv(config.EnvOpenAIAPIKey)
		if apiKey == "" {
			return fmt.Errorf("no OpenAI API key (set %s or pass -mock)", config.EnvOpenAIAPIKey)
		}
		provider = translate.NewRetryableProvider(translate.NewOpenAIProvider(translate.OpenAIConfig{
			APIKey:  apiKey,
			BaseURL: os.Getenv(config.EnvOpenAIBaseURL),
		}), translate.DefaultRetryConfig())
	}

	workDir, err := os.MkdirTemp("", "doctrans-cli-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	objects, err := storage.NewLocalStore(workDir)
	if err != nil {
		return err
	}
	jobRepo := store.NewMemoryJobRepository()
	chunkRepo := store.NewMemoryChunkRepository()
	jobRepo.BindChunks(chunkRepo)
	builder := reconstruct.NewBuilder(objects, nil)
	svc := jobs.NewService(jobRepo, chunkRepo, objects, provider, builder, config.DefaultMaxChunkChars, config.DefaultMaxUploadBytes)
	proc := queue.NewProcessor(jobRepo, chunkRepo, provider, nil, builder, queue.DefaultConfig())

	ctx := context.Background()
	job, err := svc.Create(ctx, jobs.CreateRequest{
		Filename:   filepath.Base(input),
		Data:       data,
		SourceLang: source,
		TargetLang: target,
	})
	if err != nil {
		return err
	}
	fmt.Printf("job %s (%s, %s)\n", job.ID, job.ContentKind, job.Method)

	for tick := 0; job.Status == store.StatusActive; tick++ {
		if tick >= maxTicks {
			return fmt.Errorf("job did not finish within %d ticks", maxTicks)
		}
		result := proc.Tick(ctx)
		switch result.Outcome {
		case queue.OutcomeChunkTranslated:
			fmt.Printf("  chunk %d translated\n", result.ChunkSeq)
		case queue.OutcomeChunkRetrying:
			fmt.Printf("  chunk %d failed, retrying: %s\n", result.ChunkSeq, result.Error)
			time.Sleep(time.Second)
		case queue.OutcomeIdle:
			// Waiting on chunk backoff.
			time.Sleep(time.Second)
		}

		job, err = svc.Get(ctx, job.ID)
		if err != nil {
			return err
		}
	}

	if job.Status == store.StatusFailed {
		return fmt.Errorf("translation failed: %s", job.ErrorMsg)
	}

	result, filename, _, err := svc.Result(ctx, job.ID)
	if err != nil {
		return err
	}
	if output == "" {
		ext := filepath.Ext(filename)
		base := input[:len(input)-len(filepath.Ext(input))]
		output = base + ".translated" + ext
	}
	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}

	if job.Warning != "" {
		fmt.Println("warning:", job.Warning)
	}
	fmt.Println("wrote", output)
	return nil
}
