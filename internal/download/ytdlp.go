package download

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultBinary = "yt-dlp"

// YtDlpExtractor implements Extractor by invoking the yt-dlp binary.
type YtDlpExtractor struct {
	binary string
}

// NewYtDlpExtractor creates an extractor for the yt-dlp binary found on PATH.
// It returns an error when the binary is not installed.
func NewYtDlpExtractor() (*YtDlpExtractor, error) {
	if _, err := exec.LookPath(defaultBinary); err != nil {
		return nil, fmt.Errorf("yt-dlp not found: %w", err)
	}
	return &YtDlpExtractor{binary: defaultBinary}, nil
}

// FFmpegAvailable reports whether the ffmpeg converter is present on PATH.
func FFmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// Extract implements Extractor by running yt-dlp. In download mode the
// produced file paths are read from `--print after_move:filepath`; in
// metadata mode the direct media URL is read from `--print urls`.
func (e *YtDlpExtractor) Extract(ctx context.Context, sourceURL string, opts Options) (*Result, error) {
	args := []string{
		"--no-playlist",
		"--geo-bypass",
		"--no-check-certificate",
		"--restrict-filenames",
		"--no-warnings",
		"--quiet",
	}

	if opts.CookieFile != "" {
		args = append(args, "--cookies", opts.CookieFile)
	}

	if opts.MetadataOnly {
		args = append(args, "--skip-download", "--print", "urls")
	} else {
		args = append(args,
			"-o", filepath.Join(opts.WorkDir, "%(title).200s.%(ext)s"),
			"--print", "after_move:filepath",
		)
		if opts.AudioOnly {
			args = append(args, "-f", "bestaudio/best")
			if FFmpegAvailable() {
				args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", "0")
			}
		} else {
			args = append(args, "-f", "bv*+ba/best")
		}
	}

	args = append(args, sourceURL)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	lines := nonEmptyLines(stdout.String())

	if opts.MetadataOnly {
		result := &Result{}
		if len(lines) > 0 {
			result.DirectURL = lines[0]
		}
		return result, nil
	}

	result := &Result{Files: make([]File, 0, len(lines))}
	for _, path := range lines {
		info, err := os.Stat(path)
		if err != nil {
			log.Printf("[yt-dlp] Reported file %q is not readable: %v", path, err)
			continue
		}
		result.Files = append(result.Files, File{
			Path:     path,
			Size:     info.Size(),
			MIMEType: mime.TypeByExtension(filepath.Ext(path)),
		})
	}
	return result, nil
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
