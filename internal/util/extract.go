package util

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/intellego/platform/internal/logger"
)

const minExamLength = 20

// ExtractText returns the text of an uploaded exam. Markdown and plain text
// are read as is; PDFs use the embedded text layer and fall back to OCR when
// a page has none.
func ExtractText(path string, log *logger.Logger) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return checkLength(strings.TrimSpace(string(data)))
	case ".pdf":
		text, err := extractPDFText(path)
		if err == nil && len(text) >= minExamLength {
			return text, nil
		}
		log.Debug("pdf has no text layer, running OCR", "path", path, "error", err)
		return ExtractPDFOCR(path, log)
	default:
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func checkLength(text string) (string, error) {
	if len(text) < minExamLength {
		return "", fmt.Errorf("content too short for meaningful evaluation")
	}
	return text, nil
}

func extractPDFText(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	for n := 0; n < doc.NumPage(); n++ {
		text, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", n+1, err)
		}
		if t := strings.TrimSpace(text); t != "" {
			b.WriteString(t)
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// ExtractPDFOCR renders every page and runs it through tesseract.
func ExtractPDFOCR(path string, log *logger.Logger) (string, error) {
	if err := checkTesseract(); err != nil {
		return "", fmt.Errorf("tesseract check failed: %w", err)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var fullText bytes.Buffer
	var lastErr error

	for n := 0; n < doc.NumPage(); n++ {
		pageText, err := ocrPage(doc, n)
		if err != nil {
			lastErr = fmt.Errorf("page %d: %w", n+1, err)
			log.Warn("ocr page failed", "path", path, "error", lastErr)
			continue
		}
		if len(pageText) > 0 {
			fullText.WriteString(pageText)
			fullText.WriteString("\n\n")
		}
	}

	result := strings.TrimSpace(fullText.String())
	if len(result) == 0 {
		if lastErr != nil {
			return "", fmt.Errorf("failed to extract text via OCR: %w", lastErr)
		}
		return "", fmt.Errorf("no text extracted from PDF (PDF might be empty or images are unreadable)")
	}
	return checkLength(result)
}

func ocrPage(doc *fitz.Document, n int) (string, error) {
	img, err := doc.Image(n)
	if err != nil {
		return "", fmt.Errorf("failed to extract image: %w", err)
	}

	tmpFile, err := os.CreateTemp("", "page-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	if err := savePNG(tmpPath, img); err != nil {
		return "", err
	}

	out, err := exec.Command("tesseract", tmpPath, "stdout", "-l", "spa").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tesseract error: %w, output: %s", err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

func checkTesseract() error {
	out, err := exec.Command("tesseract", "-v").CombinedOutput()
	if err != nil {
		return fmt.Errorf("tesseract not found or not executable: %w\nOutput: %s", err, string(out))
	}
	return nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
