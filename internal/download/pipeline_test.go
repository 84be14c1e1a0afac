package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vkform-bot/internal/locales"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

// MockBot is a mock implementing the telegoapi.BotAPI interface
type MockBot struct {
	mock.Mock
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if user, ok := args.Get(0).(*telego.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendAudio(ctx context.Context, params *telego.SendAudioParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendDocument(ctx context.Context, params *telego.SendDocumentParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error) {
	args := m.Called(ctx, params)
	if file, ok := args.Get(0).(*telego.File); ok {
		return file, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) FileDownloadURL(filepath string) string {
	args := m.Called(filepath)
	return args.String(0)
}

// MockCookieStore is a mock for storage.CookieStore
type MockCookieStore struct {
	mock.Mock
}

func (m *MockCookieStore) Get(ctx context.Context, userID int64) (string, bool, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCookieStore) Set(ctx context.Context, userID int64, text string) error {
	args := m.Called(ctx, userID, text)
	return args.Error(0)
}

func (m *MockCookieStore) Delete(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockCookieStore) UpdatedAt(ctx context.Context, userID int64) (time.Time, bool, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(time.Time), args.Bool(1), args.Error(2)
}

// MockExtractor is a mock implementing the Extractor interface
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, sourceURL string, opts Options) (*Result, error) {
	args := m.Called(ctx, sourceURL, opts)
	if res, ok := args.Get(0).(*Result); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- Test Suite Setup ---

const (
	testChatID    = int64(424242)
	testUserID    = int64(98765)
	testReplyToID = 777
	testSourceURL = "https://vk.com/video-111_222"
	testSizeLimit = int64(45 * 1024 * 1024)
)

type testPipelineSuite struct {
	t             *testing.T
	mockBot       *MockBot
	mockCookies   *MockCookieStore
	mockExtractor *MockExtractor
	pipeline      *Pipeline
}

func setupTestPipelineSuite(t *testing.T) *testPipelineSuite {
	t.Helper()
	locales.Init("ru")

	s := &testPipelineSuite{
		t:             t,
		mockBot:       new(MockBot),
		mockCookies:   new(MockCookieStore),
		mockExtractor: new(MockExtractor),
	}
	s.pipeline = NewPipeline(s.mockBot, s.mockCookies, s.mockExtractor, testSizeLimit)

	// No cookies stored unless a test says otherwise
	s.mockCookies.On("Get", mock.Anything, testUserID).Return("", false, nil).Maybe()
	return s
}

// makeProducedFile writes a small real file (delivery opens it from disk) and
// returns a File declaring the given size, which may exceed the actual bytes.
func makeProducedFile(t *testing.T, name string, declaredSize int64) File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("media payload"), 0o600); err != nil {
		t.Fatalf("failed to write produced file: %v", err)
	}
	return File{Path: path, Size: declaredSize}
}

func isDownloadOpts(opts Options) bool { return !opts.MetadataOnly }
func isMetadataOpts(opts Options) bool { return opts.MetadataOnly }

// --- Test Functions ---

func TestDownloadBothAttemptsFail(t *testing.T) {
	ctx := context.Background()
	s := setupTestPipelineSuite(t)

	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isDownloadOpts)).
		Return(nil, errors.New("ERROR: This video is only available for registered users")).Once()
	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isMetadataOpts)).
		Return(nil, errors.New("ERROR: Unable to extract video data")).Once()

	var captured *telego.SendMessageParams
	s.mockBot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*telego.SendMessageParams)
		}).
		Return(&telego.Message{}, nil).Once()

	err := s.pipeline.Download(ctx, testChatID, testReplyToID, testSourceURL, testUserID, false)

	assert.NoError(t, err)
	s.mockExtractor.AssertExpectations(t)
	s.mockBot.AssertExpectations(t)
	if assert.NotNil(t, captured) {
		localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
		assert.Equal(t, locales.GetMessage(localizer, "MsgVKDownloadFailed", nil, nil), captured.Text)
		assert.Equal(t, testReplyToID, captured.ReplyParameters.MessageID)
	}
}

func TestDownloadDeliversVideoAndReportsOversized(t *testing.T) {
	ctx := context.Background()
	s := setupTestPipelineSuite(t)

	smallFile := makeProducedFile(t, "clip_one.mp4", 10*1024*1024)
	largeFile := makeProducedFile(t, "clip_two.mp4", 50*1024*1024)
	directURL := "https://vkvideo.example/direct.mp4"

	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isDownloadOpts)).
		Return(&Result{Files: []File{smallFile, largeFile}}, nil).Once()
	// Over-limit report triggers exactly one metadata lookup
	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isMetadataOpts)).
		Return(&Result{DirectURL: directURL}, nil).Once()

	var sentVideo *telego.SendVideoParams
	s.mockBot.On("SendVideo", mock.Anything, mock.AnythingOfType("*telego.SendVideoParams")).
		Run(func(args mock.Arguments) {
			sentVideo = args.Get(1).(*telego.SendVideoParams)
		}).
		Return(&telego.Message{}, nil).Once()

	var sentText *telego.SendMessageParams
	s.mockBot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Run(func(args mock.Arguments) {
			sentText = args.Get(1).(*telego.SendMessageParams)
		}).
		Return(&telego.Message{}, nil).Once()

	err := s.pipeline.Download(ctx, testChatID, testReplyToID, testSourceURL, testUserID, false)

	assert.NoError(t, err)
	s.mockExtractor.AssertExpectations(t)
	s.mockBot.AssertExpectations(t)
	if assert.NotNil(t, sentVideo) {
		assert.Equal(t, "clip one", sentVideo.Caption)
		assert.Equal(t, testReplyToID, sentVideo.ReplyParameters.MessageID)
	}
	if assert.NotNil(t, sentText) {
		localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
		expected := locales.GetMessage(localizer, "MsgVKFileTooLargeWithLink", map[string]interface{}{"URL": directURL}, nil)
		assert.Equal(t, expected, sentText.Text)
	}
}

func TestDownloadSizeAtLimitDelivers(t *testing.T) {
	ctx := context.Background()
	s := setupTestPipelineSuite(t)

	exactFile := makeProducedFile(t, "exact.mp4", testSizeLimit)
	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isDownloadOpts)).
		Return(&Result{Files: []File{exactFile}}, nil).Once()
	s.mockBot.On("SendVideo", mock.Anything, mock.AnythingOfType("*telego.SendVideoParams")).
		Return(&telego.Message{}, nil).Once()

	err := s.pipeline.Download(ctx, testChatID, testReplyToID, testSourceURL, testUserID, false)

	assert.NoError(t, err)
	s.mockBot.AssertExpectations(t)
	s.mockBot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestDownloadNoFilesFallsBackToDirectLink(t *testing.T) {
	ctx := context.Background()
	s := setupTestPipelineSuite(t)

	directURL := "https://vkvideo.example/stream.m3u8"
	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isDownloadOpts)).
		Return(&Result{}, nil).Once()
	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isMetadataOpts)).
		Return(&Result{DirectURL: directURL}, nil).Once()

	var captured *telego.SendMessageParams
	s.mockBot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*telego.SendMessageParams)
		}).
		Return(&telego.Message{}, nil).Once()

	err := s.pipeline.Download(ctx, testChatID, testReplyToID, testSourceURL, testUserID, false)

	assert.NoError(t, err)
	s.mockExtractor.AssertExpectations(t)
	if assert.NotNil(t, captured) {
		localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
		expected := locales.GetMessage(localizer, "MsgVKDirectLinkOnly", map[string]interface{}{"URL": directURL}, nil)
		assert.Equal(t, expected, captured.Text)
	}
}

func TestDownloadNothingObtained(t *testing.T) {
	ctx := context.Background()
	s := setupTestPipelineSuite(t)

	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isDownloadOpts)).
		Return(&Result{}, nil).Once()
	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isMetadataOpts)).
		Return(&Result{}, nil).Once()

	var captured *telego.SendMessageParams
	s.mockBot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*telego.SendMessageParams)
		}).
		Return(&telego.Message{}, nil).Once()

	err := s.pipeline.Download(ctx, testChatID, testReplyToID, testSourceURL, testUserID, false)

	assert.NoError(t, err)
	if assert.NotNil(t, captured) {
		localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
		assert.Equal(t, locales.GetMessage(localizer, "MsgVKNothingObtained", nil, nil), captured.Text)
	}
}

func TestDownloadAudioOnlyForcesAudioDelivery(t *testing.T) {
	ctx := context.Background()
	s := setupTestPipelineSuite(t)

	// Extension says video; audio mode must still deliver via SendAudio
	audioFile := makeProducedFile(t, "track.mp4", 5*1024*1024)
	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(func(opts Options) bool {
		return opts.AudioOnly && !opts.MetadataOnly
	})).Return(&Result{Files: []File{audioFile}}, nil).Once()

	s.mockBot.On("SendAudio", mock.Anything, mock.AnythingOfType("*telego.SendAudioParams")).
		Return(&telego.Message{}, nil).Once()

	err := s.pipeline.Download(ctx, testChatID, testReplyToID, testSourceURL, testUserID, true)

	assert.NoError(t, err)
	s.mockBot.AssertExpectations(t)
	s.mockBot.AssertNotCalled(t, "SendVideo", mock.Anything, mock.Anything)
}

func TestDownloadSendFailureDoesNotAbortRemaining(t *testing.T) {
	ctx := context.Background()
	s := setupTestPipelineSuite(t)

	first := makeProducedFile(t, "first.mp4", 1024)
	second := makeProducedFile(t, "second.mp4", 1024)
	s.mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isDownloadOpts)).
		Return(&Result{Files: []File{first, second}}, nil).Once()

	// First video send fails, second succeeds
	s.mockBot.On("SendVideo", mock.Anything, mock.AnythingOfType("*telego.SendVideoParams")).
		Return(nil, errors.New("Bad Request: wrong file identifier")).Once()
	s.mockBot.On("SendVideo", mock.Anything, mock.AnythingOfType("*telego.SendVideoParams")).
		Return(&telego.Message{}, nil).Once()

	var reports []*telego.SendMessageParams
	s.mockBot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Run(func(args mock.Arguments) {
			reports = append(reports, args.Get(1).(*telego.SendMessageParams))
		}).
		Return(&telego.Message{}, nil)

	err := s.pipeline.Download(ctx, testChatID, testReplyToID, testSourceURL, testUserID, false)

	assert.NoError(t, err)
	s.mockBot.AssertNumberOfCalls(t, "SendVideo", 2)
	if assert.Len(t, reports, 1) {
		localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
		expected := locales.GetMessage(localizer, "MsgVKSendFileFailed", map[string]interface{}{"Name": "first.mp4"}, nil)
		assert.Equal(t, expected, reports[0].Text)
	}
}

func TestDownloadWritesStoredCookies(t *testing.T) {
	ctx := context.Background()
	locales.Init("ru")

	mockBot := new(MockBot)
	mockCookies := new(MockCookieStore)
	mockExtractor := new(MockExtractor)
	pipeline := NewPipeline(mockBot, mockCookies, mockExtractor, testSizeLimit)

	cookieText := "# Netscape HTTP Cookie File\n.vk.com\tTRUE\t/\tTRUE\t0\tremixsid\tabc\n"
	mockCookies.On("Get", mock.Anything, testUserID).Return(cookieText, true, nil).Once()

	var usedOpts Options
	mockExtractor.On("Extract", mock.Anything, testSourceURL, mock.MatchedBy(isDownloadOpts)).
		Run(func(args mock.Arguments) {
			usedOpts = args.Get(2).(Options)
		}).
		Return(&Result{Files: []File{}, DirectURL: "https://vkvideo.example/x.mp4"}, nil).Once()

	mockBot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Return(&telego.Message{}, nil).Once()

	err := pipeline.Download(ctx, testChatID, 0, testSourceURL, testUserID, false)

	assert.NoError(t, err)
	mockCookies.AssertExpectations(t)
	if assert.NotEmpty(t, usedOpts.CookieFile) {
		assert.Equal(t, "cookies.txt", filepath.Base(usedOpts.CookieFile))
		// The working directory is removed after the run
		_, statErr := os.Stat(usedOpts.CookieFile)
		assert.True(t, os.IsNotExist(statErr))
	}
}
