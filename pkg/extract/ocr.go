package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// OCRClient turns an image into text with a confidence score in [0,1].
type OCRClient interface {
	Recognize(ctx context.Context, image []byte) (text string, confidence float64, err error)
}

// TesseractCLI shells out to the tesseract binary. TSV output carries
// per-word confidences which are averaged into the overall score.
type TesseractCLI struct {
	Binary string
}

func NewTesseractCLI(binary string) *TesseractCLI {
	if binary == "" {
		binary = "tesseract"
	}
	return &TesseractCLI{Binary: binary}
}

func (t *TesseractCLI) Recognize(ctx context.Context, image []byte) (string, float64, error) {
	tmp, err := os.CreateTemp("", "inkwell-ocr-*")
	if err != nil {
		return "", 0, fmt.Errorf("creating temp image: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(image); err != nil {
		_ = tmp.Close()
		return "", 0, fmt.Errorf("writing temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("closing temp image: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.Binary, tmp.Name(), "stdout", "tsv")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", 0, fmt.Errorf("tesseract: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	text, confidence := parseTesseractTSV(stdout.String())
	return text, confidence, nil
}

// parseTesseractTSV reconstructs line text from word rows and averages
// word confidences. Rows with conf -1 are layout markers, not words.
func parseTesseractTSV(tsv string) (string, float64) {
	var words []string
	var confSum float64
	var confCount int
	lastLine := ""

	var text strings.Builder
	flushLine := func() {
		if len(words) > 0 {
			if text.Len() > 0 {
				text.WriteByte('\n')
			}
			text.WriteString(strings.Join(words, " "))
			words = words[:0]
		}
	}

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 {
			continue // header
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}
		lineKey := cols[1] + ":" + cols[2] + ":" + cols[3] + ":" + cols[4]
		if lineKey != lastLine {
			flushLine()
			lastLine = lineKey
		}
		words = append(words, word)
		confSum += conf
		confCount++
	}
	flushLine()

	if confCount == 0 {
		return text.String(), 0
	}
	return text.String(), confSum / float64(confCount) / 100.0
}

// commonWords is a small dictionary for the OCR quality proxy: the
// fraction of recognized tokens that are plausible words.
var commonWords = func() map[string]struct{} {
	list := strings.Fields(`the a an and or of to in is it for on with as at by from that this be are was were
have has had not but they you we he she his her its their our i me my your will would can could should
do does did so if then than when where what who how all any some no yes one two three time day year new
der die das und ist ein eine nicht mit von auf für im am el la de en un una los las que es por con para`)
	m := make(map[string]struct{}, len(list))
	for _, w := range list {
		m[w] = struct{}{}
	}
	return m
}()

// DictionaryWordRatio is the share of alphabetic tokens that are either
// common words or look like natural words (length 2-20, mostly letters).
func DictionaryWordRatio(text string) float64 {
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return 0
	}
	good := 0
	for _, tok := range tokens {
		tok = strings.Trim(tok, ".,;:!?()[]{}\"'")
		if tok == "" {
			continue
		}
		if _, ok := commonWords[tok]; ok {
			good++
			continue
		}
		if looksLikeWord(tok) {
			good++
		}
	}
	return float64(good) / float64(len(tokens))
}

func looksLikeWord(tok string) bool {
	if len(tok) < 2 || len(tok) > 20 {
		return false
	}
	letters := 0
	for _, r := range tok {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= 0x80 {
			letters++
		}
	}
	return float64(letters)/float64(len(tok)) >= 0.7
}

// MaxRepeatedRun returns the longest run of a single repeated character,
// a cheap signal of OCR garbage like "IIIIIIII".
func MaxRepeatedRun(text string) int {
	maxRun, run := 0, 0
	var prev rune = -1
	for _, r := range text {
		if r == prev && r != ' ' && r != '\n' {
			run++
		} else {
			run = 1
			prev = r
		}
		if run > maxRun {
			maxRun = run
		}
	}
	return maxRun
}

// ocrLooksGarbled flags low-quality OCR output: dictionary-word ratio
// below 0.5 or long repeated-character runs.
func ocrLooksGarbled(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	return DictionaryWordRatio(text) < 0.5 || MaxRepeatedRun(text) >= 8
}
