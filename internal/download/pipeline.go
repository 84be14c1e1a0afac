package download

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"vkform-bot/internal/locales"
	"vkform-bot/internal/storage"
	telegoapi "vkform-bot/pkg/telegoapi"
	"vkform-bot/pkg/utils"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const captionLimit = 900

type mediaKind int

const (
	kindVideo mediaKind = iota
	kindAudio
	kindDocument
)

var (
	videoExtensions = map[string]bool{".mp4": true, ".mkv": true, ".webm": true, ".mov": true}
	audioExtensions = map[string]bool{".mp3": true, ".m4a": true, ".ogg": true, ".opus": true}
)

// Pipeline orchestrates a download request: load saved cookies, run the
// extractor in a scoped working directory, classify and validate the produced
// files, enforce the delivery size limit and deliver the results.
type Pipeline struct {
	bot       telegoapi.BotAPI
	cookies   storage.CookieStore
	extractor Extractor
	sizeLimit int64
}

// NewPipeline creates a download pipeline.
func NewPipeline(bot telegoapi.BotAPI, cookies storage.CookieStore, extractor Extractor, sizeLimitBytes int64) *Pipeline {
	if bot == nil {
		log.Fatal("Download Pipeline: BotAPI instance is nil")
	}
	if cookies == nil {
		log.Fatal("Download Pipeline: cookie store is nil")
	}
	if extractor == nil {
		log.Fatal("Download Pipeline: extractor is nil")
	}
	return &Pipeline{
		bot:       bot,
		cookies:   cookies,
		extractor: extractor,
		sizeLimit: sizeLimitBytes,
	}
}

// Download runs one download request for the given user and reports every
// outcome back to chatID, replying to replyToMessageID. Failures are reported
// to the user and never returned as errors unless even reporting failed.
func (p *Pipeline) Download(ctx context.Context, chatID int64, replyToMessageID int, sourceURL string, userID int64, audioOnly bool) error {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	workDir, err := os.MkdirTemp("", "vkdl_")
	if err != nil {
		log.Printf("[Download User:%d] Failed to create working directory: %v", userID, err)
		return p.sendText(ctx, chatID, replyToMessageID, locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil))
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			log.Printf("[Download User:%d] Failed to remove working directory %s: %v", userID, workDir, rmErr)
		}
	}()

	cookieFile := p.writeCookieFile(ctx, workDir, userID)

	// Primary attempt downloads; a single metadata-only retry recovers a
	// direct URL when the download itself is not possible.
	result, err := p.extractor.Extract(ctx, sourceURL, Options{
		WorkDir:    workDir,
		CookieFile: cookieFile,
		AudioOnly:  audioOnly,
	})
	metadataTried := false
	if err != nil {
		log.Printf("[Download User:%d] Extraction failed: %v. Retrying metadata only.", userID, err)
		metadataTried = true
		result, err = p.extractor.Extract(ctx, sourceURL, Options{
			WorkDir:      workDir,
			CookieFile:   cookieFile,
			AudioOnly:    audioOnly,
			MetadataOnly: true,
		})
		if err != nil {
			log.Printf("[Download User:%d] Metadata retry failed: %v", userID, err)
			return p.sendText(ctx, chatID, replyToMessageID, locales.GetMessage(localizer, "MsgVKDownloadFailed", nil, nil))
		}
	}

	// Lazily resolve the direct URL at most once per invocation.
	directURL := result.DirectURL
	directResolved := directURL != "" || metadataTried
	resolveDirectURL := func() string {
		if directResolved {
			return directURL
		}
		directResolved = true
		meta, metaErr := p.extractor.Extract(ctx, sourceURL, Options{
			CookieFile:   cookieFile,
			MetadataOnly: true,
		})
		if metaErr != nil {
			log.Printf("[Download User:%d] Direct URL lookup failed: %v", userID, metaErr)
			return ""
		}
		directURL = meta.DirectURL
		return directURL
	}

	if len(result.Files) == 0 {
		if direct := resolveDirectURL(); direct != "" {
			msg := locales.GetMessage(localizer, "MsgVKDirectLinkOnly", map[string]interface{}{"URL": direct}, nil)
			return p.sendText(ctx, chatID, replyToMessageID, msg)
		}
		return p.sendText(ctx, chatID, replyToMessageID, locales.GetMessage(localizer, "MsgVKNothingObtained", nil, nil))
	}

	// Files are processed in extractor order; a failure on one file never
	// aborts the rest.
	for _, file := range result.Files {
		if _, statErr := os.Stat(file.Path); statErr != nil {
			log.Printf("[Download User:%d] Produced file vanished: %s", userID, file.Path)
			continue
		}

		if file.Size > p.sizeLimit {
			msgID := "MsgVKFileTooLarge"
			data := map[string]interface{}{}
			if direct := resolveDirectURL(); direct != "" {
				msgID = "MsgVKFileTooLargeWithLink"
				data["URL"] = direct
			}
			if sendErr := p.sendText(ctx, chatID, replyToMessageID, locales.GetMessage(localizer, msgID, data, nil)); sendErr != nil {
				log.Printf("[Download User:%d] Failed to report over-limit file: %v", userID, sendErr)
			}
			continue
		}

		if sendErr := p.deliverFile(ctx, chatID, replyToMessageID, file, audioOnly); sendErr != nil {
			log.Printf("[Download User:%d] Failed to send %s: %v", userID, file.Path, sendErr)
			msg := locales.GetMessage(localizer, "MsgVKSendFileFailed", map[string]interface{}{
				"Name": filepath.Base(file.Path),
			}, nil)
			if reportErr := p.sendText(ctx, chatID, replyToMessageID, msg); reportErr != nil {
				log.Printf("[Download User:%d] Failed to report send failure: %v", userID, reportErr)
			}
		}
	}

	return nil
}

// writeCookieFile loads the user's saved cookies and writes them into the
// working directory. An absent record or a store error yields anonymous access.
func (p *Pipeline) writeCookieFile(ctx context.Context, workDir string, userID int64) string {
	text, found, err := p.cookies.Get(ctx, userID)
	if err != nil {
		log.Printf("[Download User:%d] Cookie store lookup failed: %v. Proceeding anonymously.", userID, err)
		return ""
	}
	if !found {
		return ""
	}
	path := filepath.Join(workDir, "cookies.txt")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		log.Printf("[Download User:%d] Failed to write cookie file: %v. Proceeding anonymously.", userID, err)
		return ""
	}
	return path
}

// deliverFile sends one produced file as video, audio or document according to
// its detected kind. audioOnly forces audio delivery regardless of the kind.
func (p *Pipeline) deliverFile(ctx context.Context, chatID int64, replyToMessageID int, file File, audioOnly bool) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("failed to open produced file: %w", err)
	}
	defer f.Close()

	caption := utils.TruncateRunes(titleFromPath(file.Path), captionLimit)
	input := tu.File(f)

	kind := classifyKind(file.Path, file.MIMEType)
	if audioOnly {
		kind = kindAudio
	}

	var replyParams *telego.ReplyParameters
	if replyToMessageID != 0 {
		replyParams = &telego.ReplyParameters{MessageID: replyToMessageID}
	}

	switch kind {
	case kindVideo:
		params := tu.Video(tu.ID(chatID), input).WithCaption(caption)
		params.ReplyParameters = replyParams
		_, err = p.bot.SendVideo(ctx, params)
	case kindAudio:
		params := tu.Audio(tu.ID(chatID), input).WithCaption(caption)
		params.ReplyParameters = replyParams
		_, err = p.bot.SendAudio(ctx, params)
	default:
		params := tu.Document(tu.ID(chatID), input).WithCaption(caption)
		params.ReplyParameters = replyParams
		_, err = p.bot.SendDocument(ctx, params)
	}
	return err
}

// classifyKind determines the delivery kind from the file extension first and
// the declared media type second.
func classifyKind(path, mimeType string) mediaKind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case videoExtensions[ext]:
		return kindVideo
	case audioExtensions[ext]:
		return kindAudio
	case strings.HasPrefix(mimeType, "video/"):
		return kindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return kindAudio
	default:
		return kindDocument
	}
}

// titleFromPath derives a display title from the file name.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(stem, "_", " ")
}

func (p *Pipeline) sendText(ctx context.Context, chatID int64, replyToMessageID int, text string) error {
	params := tu.Message(tu.ID(chatID), text).
		WithLinkPreviewOptions(&telego.LinkPreviewOptions{IsDisabled: true})
	if replyToMessageID != 0 {
		params = params.WithReplyParameters(&telego.ReplyParameters{MessageID: replyToMessageID})
	}
	_, err := p.bot.SendMessage(ctx, params)
	return err
}
