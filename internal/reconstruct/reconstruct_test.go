package reconstruct

import (
	"context"
	"strings"
	"testing"

	"doc-translator/internal/pdf"
	"doc-translator/internal/storage"
	"doc-translator/internal/store"
	"doc-translator/internal/translate"
)

const sampleHTML = `<html><head><title>Greeting</title><style>p { color: red }</style></head>
<body>
<h1>Hello</h1>
<p>First paragraph.</p>
<p>Second <b>bold</b> paragraph.</p>
<script>var x = "not text";</script>
</body></html>`

func TestExtractHTMLBlocks(t *testing.T) {
	blocks, err := ExtractHTMLBlocks(sampleHTML)
	if err != nil {
		t.Fatalf("ExtractHTMLBlocks: %v", err)
	}
	want := []string{"Greeting", "Hello", "First paragraph.", "Second", "bold", "paragraph."}
	if len(blocks) != len(want) {
		t.Fatalf("blocks = %q, want %q", blocks, want)
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Errorf("block %d = %q, want %q", i, blocks[i], want[i])
		}
	}
}

func TestReinsertHTML(t *testing.T) {
	blocks, err := ExtractHTMLBlocks(sampleHTML)
	if err != nil {
		t.Fatalf("ExtractHTMLBlocks: %v", err)
	}

	translations := make([]string, len(blocks))
	for i, b := range blocks {
		translations[i] = "T:" + b
	}

	out, err := ReinsertHTML(sampleHTML, translations)
	if err != nil {
		t.Fatalf("ReinsertHTML: %v", err)
	}

	for _, want := range []string{"T:Hello", "T:First paragraph.", "T:bold", "<b>", "<h1>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	// Ignored tags keep their content.
	if !strings.Contains(out, `var x = "not text";`) {
		t.Error("script content was altered")
	}
	if !strings.Contains(out, "color: red") {
		t.Error("style content was altered")
	}
}

func TestReinsertHTMLCountMismatch(t *testing.T) {
	if _, err := ReinsertHTML(sampleHTML, []string{"only one"}); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestReinsertRoundTripStability(t *testing.T) {
	// Extracting from a reinserted document yields the same block count.
	blocks, _ := ExtractHTMLBlocks(sampleHTML)
	translations := make([]string, len(blocks))
	for i := range blocks {
		translations[i] = "x"
	}
	out, err := ReinsertHTML(sampleHTML, translations)
	if err != nil {
		t.Fatalf("ReinsertHTML: %v", err)
	}
	again, err := ExtractHTMLBlocks(out)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if len(again) != len(blocks) {
		t.Errorf("block count changed: %d -> %d", len(blocks), len(again))
	}
}

func translatedChunks(jobID string, texts ...string) []store.Chunk {
	chunks := make([]store.Chunk, len(texts))
	for i, text := range texts {
		t := text
		chunks[i] = store.Chunk{JobID: jobID, Seq: i + 1, Total: len(texts), TranslatedText: &t}
	}
	return chunks
}

func TestFinalizePlainJoinsChunks(t *testing.T) {
	objStore, _ := storage.NewLocalStore(t.TempDir())
	b := NewBuilder(objStore, nil)
	ctx := context.Background()

	job := &store.TranslationJob{ID: "job-1", OwnerID: "alice", ContentKind: store.KindPlain}
	key, warning, err := b.Finalize(ctx, job, translatedChunks("job-1", "First.", "Second.", "Third."))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if warning != "" {
		t.Errorf("warning = %q", warning)
	}

	data, err := objStore.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download(%q): %v", key, err)
	}
	if string(data) != "First.\n\nSecond.\n\nThird." {
		t.Errorf("output = %q", data)
	}
}

func TestFinalizeHTMLReinsertsIntoOriginal(t *testing.T) {
	objStore, _ := storage.NewLocalStore(t.TempDir())
	b := NewBuilder(objStore, nil)
	ctx := context.Background()

	src := `<html><body><p>One</p><p>Two</p></body></html>`
	origKey := storage.OriginalKey("alice", "job-1", "page.html")
	if err := objStore.Upload(ctx, origKey, []byte(src), "text/html"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	job := &store.TranslationJob{ID: "job-1", OwnerID: "alice", ContentKind: store.KindHTML, OriginalKey: origKey}
	key, _, err := b.Finalize(ctx, job, translatedChunks("job-1", "Un", "Deux"))
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	data, _ := objStore.Download(ctx, key)
	out := string(data)
	if !strings.Contains(out, "<p>Un</p>") || !strings.Contains(out, "<p>Deux</p>") {
		t.Errorf("output = %q", out)
	}
}

func TestFinalizeRejectsUntranslatedChunk(t *testing.T) {
	objStore, _ := storage.NewLocalStore(t.TempDir())
	b := NewBuilder(objStore, nil)

	job := &store.TranslationJob{ID: "job-1", ContentKind: store.KindPlain}
	chunks := []store.Chunk{{JobID: "job-1", Seq: 1, Total: 1}}
	if _, _, err := b.Finalize(context.Background(), job, chunks); err == nil {
		t.Error("expected error for untranslated chunk")
	}
}

func TestGroupByPage(t *testing.T) {
	clusters := []pdf.Cluster{
		{Page: 1, Text: "a"},
		{Page: 1, Text: "b"},
		{Page: 2, Text: "c"},
		{Page: 4, Text: "d"},
	}
	pages := groupByPage(clusters)
	if len(pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(pages))
	}
	if len(pages[0]) != 2 || pages[0][1].Text != "b" {
		t.Errorf("page 0 = %+v", pages[0])
	}
	if len(pages[2]) != 1 || pages[2][0].Page != 4 {
		t.Errorf("page 2 = %+v", pages[2])
	}
}

// fakeDocProvider is an in-memory document provider.
type fakeDocProvider struct {
	uploaded map[string][]byte
	status   translate.DocumentStatus
	result   []byte
}

func (f *fakeDocProvider) Upload(ctx context.Context, filename string, data []byte, sourceLang, targetLang string) (string, error) {
	if f.uploaded == nil {
		f.uploaded = make(map[string][]byte)
	}
	f.uploaded[filename] = data
	return "ref-" + filename, nil
}

func (f *fakeDocProvider) Poll(ctx context.Context, ref string) (translate.DocumentStatus, error) {
	return f.status, nil
}

func (f *fakeDocProvider) Download(ctx context.Context, ref string) ([]byte, error) {
	return f.result, nil
}

func TestNativeRoundTrip(t *testing.T) {
	objStore, _ := storage.NewLocalStore(t.TempDir())
	docs := &fakeDocProvider{status: translate.DocumentDone, result: []byte("translated docx")}
	b := NewBuilder(objStore, docs)
	ctx := context.Background()

	origKey := storage.OriginalKey("alice", "job-1", "report.docx")
	if err := objStore.Upload(ctx, origKey, []byte("original docx"), contentTypeDocx); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	job := &store.TranslationJob{
		ID:          "job-1",
		OwnerID:     "alice",
		SourceLang:  "en",
		TargetLang:  "de",
		ContentKind: store.KindDocx,
		OriginalKey: origKey,
	}

	ref, err := b.NativeUpload(ctx, job)
	if err != nil {
		t.Fatalf("NativeUpload: %v", err)
	}
	if ref != "ref-original.docx" {
		t.Errorf("ref = %q", ref)
	}
	if string(docs.uploaded["original.docx"]) != "original docx" {
		t.Error("provider did not receive the original bytes")
	}

	job.ProviderRef = ref
	status, err := b.NativePoll(ctx, job)
	if err != nil || status != translate.DocumentDone {
		t.Fatalf("NativePoll = %v, %v", status, err)
	}

	key, warning, err := b.NativeFetch(ctx, job)
	if err != nil {
		t.Fatalf("NativeFetch: %v", err)
	}
	if warning != "" {
		t.Errorf("warning = %q", warning)
	}
	data, err := objStore.Download(ctx, key)
	if err != nil || string(data) != "translated docx" {
		t.Errorf("stored output = %q, %v", data, err)
	}
	if !strings.HasSuffix(key, ".docx") {
		t.Errorf("output key = %q, want .docx suffix", key)
	}
}

func TestNativeUploadWithoutProvider(t *testing.T) {
	objStore, _ := storage.NewLocalStore(t.TempDir())
	b := NewBuilder(objStore, nil)
	job := &store.TranslationJob{ID: "job-1", OriginalKey: "owner/a/job-1/original.docx"}
	if _, err := b.NativeUpload(context.Background(), job); err == nil {
		t.Error("expected error without a document provider")
	}
}
