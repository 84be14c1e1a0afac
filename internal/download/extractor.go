package download

import "context"

// File is one artifact produced by an extraction run.
type File struct {
	Path     string
	Size     int64
	MIMEType string // declared media type, may be empty
}

// Result is the outcome of a successful extraction: either a list of produced
// files, or a direct playable URL recovered from metadata, or both empty.
type Result struct {
	Files     []File
	DirectURL string
}

// Options controls a single extraction run.
type Options struct {
	// WorkDir is the directory produced files are written to.
	WorkDir string
	// CookieFile is the path to a Netscape cookie file, empty for anonymous access.
	CookieFile string
	// AudioOnly requests the best audio stream, converted to mp3 when a
	// post-processing converter is available in the environment.
	AudioOnly bool
	// MetadataOnly skips the download and only resolves a direct media URL.
	MetadataOnly bool
}

// Extractor turns a source URL into downloaded media files or a direct URL.
// Implementations are black boxes to the pipeline, which lets tests substitute
// canned outcomes.
type Extractor interface {
	Extract(ctx context.Context, sourceURL string, opts Options) (*Result, error)
}
