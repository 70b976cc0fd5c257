package skeleton

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// documentEntry is the zip entry holding the main document body of a
// WordprocessingML package.
const documentEntry = "word/document.xml"

// ReadDocument returns the word/document.xml payload of a .docx package.
func ReadDocument(pkg []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return "", fmt.Errorf("not a valid docx package: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != documentEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", documentEntry, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", documentEntry, err)
		}
		return string(data), nil
	}

	return "", fmt.Errorf("docx package has no %s entry", documentEntry)
}

// RewritePackage produces a copy of the .docx package with word/document.xml
// replaced by documentXML. Every other entry, including images, styles, and
// relationship parts, is copied without recompression so the rest of the
// package stays byte-for-byte identical.
func RewritePackage(pkg []byte, documentXML string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return nil, fmt.Errorf("not a valid docx package: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	replaced := false
	for _, f := range zr.File {
		if f.Name == documentEntry {
			w, err := zw.Create(f.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", f.Name, err)
			}
			if _, err := w.Write([]byte(documentXML)); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", f.Name, err)
			}
			replaced = true
			continue
		}

		raw, err := f.OpenRaw()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		hdr := f.FileHeader
		w, err := zw.CreateRaw(&hdr)
		if err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
		if _, err := io.Copy(w, raw); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.Name, err)
		}
	}

	if !replaced {
		return nil, fmt.Errorf("docx package has no %s entry", documentEntry)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize docx package: %w", err)
	}
	return buf.Bytes(), nil
}
