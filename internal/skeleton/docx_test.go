package skeleton

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func buildTestPackage(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entries := map[string]string{
		"[Content_Types].xml":          `<Types/>`,
		"word/document.xml":            documentXML,
		"word/styles.xml":              `<w:styles/>`,
		"word/media/image1.png":        "\x89PNG fake image bytes",
		"word/_rels/document.xml.rels": `<Relationships/>`,
	}
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readEntry(t *testing.T, pkg []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			return string(data)
		}
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestReadDocument(t *testing.T) {
	pkg := buildTestPackage(t, `<w:document><w:body/></w:document>`)
	doc, err := ReadDocument(pkg)
	if err != nil {
		t.Fatalf("ReadDocument() error = %v", err)
	}
	if doc != `<w:document><w:body/></w:document>` {
		t.Errorf("ReadDocument() = %q", doc)
	}
}

func TestReadDocumentMissingEntry(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("other.xml")
	w.Write([]byte("<x/>"))
	zw.Close()

	if _, err := ReadDocument(buf.Bytes()); err == nil {
		t.Error("ReadDocument() should fail without word/document.xml")
	}
}

func TestReadDocumentInvalidZip(t *testing.T) {
	if _, err := ReadDocument([]byte("not a zip")); err == nil {
		t.Error("ReadDocument() should fail on invalid package")
	}
}

func TestRewritePackagePreservesOtherEntries(t *testing.T) {
	pkg := buildTestPackage(t, `<w:document><w:t>old</w:t></w:document>`)

	out, err := RewritePackage(pkg, `<w:document><w:t>new</w:t></w:document>`)
	if err != nil {
		t.Fatalf("RewritePackage() error = %v", err)
	}

	if got := readEntry(t, out, "word/document.xml"); got != `<w:document><w:t>new</w:t></w:document>` {
		t.Errorf("document.xml = %q", got)
	}
	// Untouched entries survive byte-for-byte.
	if got := readEntry(t, out, "word/media/image1.png"); got != "\x89PNG fake image bytes" {
		t.Errorf("image entry changed: %q", got)
	}
	if got := readEntry(t, out, "word/styles.xml"); got != `<w:styles/>` {
		t.Errorf("styles entry changed: %q", got)
	}
}

func TestStripRebuildThroughPackage(t *testing.T) {
	docXML := `<w:document><w:body><w:p><w:r><w:t>Hello</w:t></w:r></w:p></w:body></w:document>`
	pkg := buildTestPackage(t, docXML)

	doc, err := ReadDocument(pkg)
	if err != nil {
		t.Fatal(err)
	}
	m, err := Strip(doc)
	if err != nil {
		t.Fatal(err)
	}
	d := string(m.Delimiter)
	rebuilt, err := m.Rebuild(d + "Bonjour" + d)
	if err != nil {
		t.Fatal(err)
	}
	out, err := RewritePackage(pkg, rebuilt)
	if err != nil {
		t.Fatal(err)
	}

	want := `<w:document><w:body><w:p><w:r><w:t>Bonjour</w:t></w:r></w:p></w:body></w:document>`
	if got := readEntry(t, out, "word/document.xml"); got != want {
		t.Errorf("translated document = %q, want %q", got, want)
	}
}
