package analysis

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/interview-feedback-api/internal/feedback"
	"github.com/maauso/interview-feedback-api/internal/gemini"
	"github.com/maauso/interview-feedback-api/internal/media"
	"github.com/maauso/interview-feedback-api/internal/storage"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) UploadAndWait(ctx context.Context, localPath string) (*gemini.RemoteFile, error) {
	args := m.Called(ctx, localPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.RemoteFile), args.Error(1)
}

func (m *mockUploader) Discard(file *gemini.RemoteFile) {
	m.Called(file)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, questionType string, file *gemini.RemoteFile, modality feedback.Modality) (string, error) {
	args := m.Called(ctx, questionType, file, modality)
	return args.String(0), args.Error(1)
}

// fakeExtractor writes content to the audio path, or fails with err.
type fakeExtractor struct {
	calls   int
	content []byte
	err     error
	video   string
	audio   string
}

func (f *fakeExtractor) Extract(_ context.Context, videoPath, audioPath string) error {
	f.calls++
	f.video, f.audio = videoPath, audioPath
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(audioPath, f.content, 0o600)
}

type recordingMetrics struct {
	completed []string
	failed    []string
}

func (r *recordingMetrics) AnalysisCompleted(analysisType string, _ time.Duration) {
	r.completed = append(r.completed, analysisType)
}

func (r *recordingMetrics) AnalysisFailed(category string, _ time.Duration) {
	r.failed = append(r.failed, category)
}

// archivingStorage records S3 uploads on top of local disk.
type archivingStorage struct {
	*storage.LocalStorage
	keys   []string
	bodies [][]byte
	err    error
}

func (a *archivingStorage) UploadToS3(_ context.Context, key string, data io.Reader) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	b, _ := io.ReadAll(data)
	a.keys = append(a.keys, key)
	a.bodies = append(a.bodies, b)
	return "https://bucket.example/" + key, nil
}

func newLocalStorage(t *testing.T) (*storage.LocalStorage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return s, dir
}

func assertNoArtifacts(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "artifacts left behind")
}

func existingPath(suffix string) any {
	return mock.MatchedBy(func(p string) bool {
		if !strings.HasSuffix(p, suffix) {
			return false
		}
		info, err := os.Stat(p)
		return err == nil && info.Size() > 0
	})
}

func activeFile(name string) *gemini.RemoteFile {
	return &gemini.RemoteFile{Name: name, URI: "https://files/" + name, State: gemini.StateActive}
}

func request(name string, payload []byte, questionType string) Request {
	return Request{
		Payload:      bytes.NewReader(payload),
		DeclaredName: name,
		DeclaredSize: int64(len(payload)),
		QuestionType: questionType,
	}
}

func TestService_VideoDirect(t *testing.T) {
	store, dir := newLocalStorage(t)
	videoFile := activeFile("files/video")

	up := new(mockUploader)
	up.On("UploadAndWait", mock.Anything, existingPath(".mp4")).Return(videoFile, nil).Once()
	up.On("Discard", videoFile).Once()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, "technical", videoFile, feedback.ModalityVideo).
		Return("Strong answer with clear structure.", nil).Once()

	ext := &fakeExtractor{}
	m := &recordingMetrics{}
	svc := NewService(store, ext, nil, WithBackend(up, gen), WithMetrics(m))

	out := svc.Analyze(context.Background(), request("answer.mp4", bytes.Repeat([]byte{1}, 2<<20), "technical"))

	require.True(t, out.Success, "err: %v", out.Err)
	assert.Equal(t, AnalysisVideoDirect, out.AnalysisType)
	assert.Equal(t, "Strong answer with clear structure.", out.Feedback)
	assert.Equal(t, "technical", out.QuestionType)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, []State{StateValidating, StateStored, StateVideoAttempt, StateSuccess}, out.States)
	assert.Equal(t, http.StatusOK, out.HTTPStatus())
	assert.Equal(t, 0, ext.calls)
	assert.Equal(t, []string{"video_direct"}, m.completed)
	assertNoArtifacts(t, dir)
	up.AssertExpectations(t)
	gen.AssertExpectations(t)
}

func TestService_AudioFallback(t *testing.T) {
	store, dir := newLocalStorage(t)
	videoFile := activeFile("files/video")
	audioFile := activeFile("files/audio")

	up := new(mockUploader)
	up.On("UploadAndWait", mock.Anything, existingPath(".webm")).Return(videoFile, nil).Once()
	up.On("UploadAndWait", mock.Anything, existingPath(".mp3")).Return(audioFile, nil).Once()
	up.On("Discard", videoFile).Once()
	up.On("Discard", audioFile).Once()

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, "behavioral", videoFile, feedback.ModalityVideo).
		Return("", errors.New("Error 429, Status: RESOURCE_EXHAUSTED QUOTA_EXCEEDED")).Once()
	gen.On("Generate", mock.Anything, "behavioral", audioFile, feedback.ModalityAudio).
		Return("Good use of the STAR method.", nil).Once()

	ext := &fakeExtractor{content: []byte("ID3 audio")}
	svc := NewService(store, ext, nil, WithBackend(up, gen))

	out := svc.Analyze(context.Background(), request("recording.webm", []byte("webm bytes"), "behavioral"))

	require.True(t, out.Success, "err: %v", out.Err)
	assert.Equal(t, AnalysisAudioFallback, out.AnalysisType)
	assert.Equal(t, "Good use of the STAR method.", out.Feedback)
	assert.Equal(t, []State{StateValidating, StateStored, StateVideoAttempt, StateAudioFallback, StateSuccess}, out.States)
	assert.Equal(t, 1, ext.calls)
	assert.Equal(t, ".webm", filepath.Ext(ext.video))
	assert.Equal(t, ".mp3", filepath.Ext(ext.audio))
	assertNoArtifacts(t, dir)
	up.AssertExpectations(t)
	gen.AssertExpectations(t)
}

func TestService_EmptyUpload(t *testing.T) {
	store, dir := newLocalStorage(t)
	up := new(mockUploader)
	gen := new(mockGenerator)
	m := &recordingMetrics{}
	svc := NewService(store, &fakeExtractor{}, nil, WithBackend(up, gen), WithMetrics(m))

	out := svc.Analyze(context.Background(), request("answer.mp4", nil, "general"))

	assert.False(t, out.Success)
	assert.Equal(t, CategoryInvalidInput, out.Category)
	assert.Equal(t, http.StatusBadRequest, out.HTTPStatus())
	assert.Equal(t, "Empty video file", out.Message())
	assert.Equal(t, []State{StateValidating, StateFailed}, out.States)
	assert.Equal(t, []string{"invalid_input"}, m.failed)
	assertNoArtifacts(t, dir)
	up.AssertNotCalled(t, "UploadAndWait", mock.Anything, mock.Anything)
}

func TestService_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		message string
	}{
		{
			name:    "unsupported extension",
			req:     request("notes.txt", []byte("text"), "general"),
			message: "Unsupported file format. Supported formats: .mp4, .webm, .mkv, .avi, .mov, .wmv",
		},
		{
			name: "declared too large",
			req: Request{
				Payload:      bytes.NewReader([]byte("x")),
				DeclaredName: "a.mp4",
				DeclaredSize: media.MaxUploadBytes + 1,
			},
			message: "File too large (max 100MB)",
		},
		{
			name: "declared size but empty body",
			req: Request{
				Payload:      bytes.NewReader(nil),
				DeclaredName: "a.mp4",
				DeclaredSize: 1024,
			},
			message: "Empty video file",
		},
		{
			name:    "missing payload",
			req:     Request{DeclaredName: "a.mp4", DeclaredSize: 10},
			message: "No video file provided",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, dir := newLocalStorage(t)
			svc := NewService(store, &fakeExtractor{}, nil)

			out := svc.Analyze(context.Background(), tt.req)

			assert.False(t, out.Success)
			assert.Equal(t, http.StatusBadRequest, out.HTTPStatus())
			assert.Equal(t, tt.message, out.Message())
			assertNoArtifacts(t, dir)
		})
	}
}

func TestService_BodyLargerThanCeiling(t *testing.T) {
	store, dir := newLocalStorage(t)
	svc := NewService(store, &fakeExtractor{}, nil)

	req := Request{
		Payload:      io.LimitReader(zeroReader{}, media.MaxUploadBytes+10),
		DeclaredName: "a.mp4",
		DeclaredSize: 10,
	}
	out := svc.Analyze(context.Background(), req)

	assert.False(t, out.Success)
	assert.Equal(t, http.StatusBadRequest, out.HTTPStatus())
	assert.Equal(t, "File too large (max 100MB)", out.Message())
	assertNoArtifacts(t, dir)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestService_Unavailable(t *testing.T) {
	store, dir := newLocalStorage(t)
	ext := &fakeExtractor{}
	svc := NewService(store, ext, nil)

	assert.False(t, svc.AIAvailable())

	out := svc.Analyze(context.Background(), request("answer.mp4", []byte("video"), ""))

	assert.True(t, out.Success)
	assert.Equal(t, AnalysisUnavailable, out.AnalysisType)
	assert.Equal(t, UnavailableMessage, out.Feedback)
	assert.Equal(t, "general", out.QuestionType)
	assert.Equal(t, http.StatusOK, out.HTTPStatus())
	assert.Equal(t, 0, ext.calls)
	assertNoArtifacts(t, dir)
}

func TestService_BothModalitiesFail(t *testing.T) {
	store, dir := newLocalStorage(t)

	up := new(mockUploader)
	up.On("UploadAndWait", mock.Anything, existingPath(".mov")).
		Return(nil, errors.New("remote file files/v processing failed")).Once()

	gen := new(mockGenerator)
	ext := &fakeExtractor{err: errors.New("ffmpeg exited with status 1")}
	m := &recordingMetrics{}
	svc := NewService(store, ext, nil, WithBackend(up, gen), WithMetrics(m))

	out := svc.Analyze(context.Background(), request("answer.mov", []byte("mov"), "general"))

	require.False(t, out.Success)
	assert.Equal(t, CategoryBothModalitiesFailed, out.Category)
	assert.Equal(t, "Unable to process your video. Try recording in a different format.", out.Message())
	assert.Equal(t, http.StatusInternalServerError, out.HTTPStatus())

	var fbErr *FallbackError
	require.True(t, errors.As(out.Err, &fbErr))
	assert.Contains(t, fbErr.Video.Error(), "processing failed")
	assert.Contains(t, fbErr.Audio.Error(), "status 1")

	run := &Run{History: out.States}
	assert.Equal(t, 1, run.Attempts(StateVideoAttempt))
	assert.Equal(t, 1, run.Attempts(StateAudioFallback))
	assert.Equal(t, StateFailed, out.States[len(out.States)-1])
	assert.Equal(t, []string{"both_modalities_failed"}, m.failed)

	assertNoArtifacts(t, dir)
	up.AssertNumberOfCalls(t, "UploadAndWait", 1)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_AudioGenerationFailsReleasesAudio(t *testing.T) {
	store, dir := newLocalStorage(t)
	videoFile := activeFile("files/video")
	audioFile := activeFile("files/audio")

	up := new(mockUploader)
	up.On("UploadAndWait", mock.Anything, existingPath(".mp4")).Return(videoFile, nil).Once()
	up.On("UploadAndWait", mock.Anything, existingPath(".mp3")).Return(audioFile, nil).Once()
	up.On("Discard", mock.Anything)

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, "general", videoFile, feedback.ModalityVideo).
		Return("", errors.New("Error 500 internal")).Once()
	gen.On("Generate", mock.Anything, "general", audioFile, feedback.ModalityAudio).
		Return("", errors.New("Error 403 PERMISSION_DENIED: API key was reported as leaked")).Once()

	svc := NewService(store, &fakeExtractor{content: []byte("mp3")}, nil, WithBackend(up, gen))

	out := svc.Analyze(context.Background(), request("a.mp4", []byte("mp4"), "general"))

	require.False(t, out.Success)
	assert.Equal(t, CategoryPermissionDenied, out.Category)
	assert.Equal(t, http.StatusBadGateway, out.HTTPStatus())
	assert.NotContains(t, out.Message(), "leaked")
	assertNoArtifacts(t, dir)
	up.AssertCalled(t, "Discard", videoFile)
	up.AssertCalled(t, "Discard", audioFile)
	gen.AssertNumberOfCalls(t, "Generate", 2)
}

func TestService_RequestTimeout(t *testing.T) {
	store, dir := newLocalStorage(t)

	up := new(mockUploader)
	up.On("UploadAndWait", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()

	ext := &fakeExtractor{content: []byte("mp3")}
	svc := NewService(store, ext, nil, WithBackend(up, new(mockGenerator)), WithTimeout(50*time.Millisecond))

	out := svc.Analyze(context.Background(), request("a.mkv", []byte("mkv"), "general"))

	require.False(t, out.Success)
	assert.Equal(t, CategoryTimeout, out.Category)
	assert.Equal(t, "Analysis took too long. Please try with a shorter video.", out.Message())
	assert.Equal(t, 0, ext.calls)
	assertNoArtifacts(t, dir)
	up.AssertNumberOfCalls(t, "UploadAndWait", 1)
}

func TestService_ArchivesRecording(t *testing.T) {
	local, dir := newLocalStorage(t)
	store := &archivingStorage{LocalStorage: local}
	svc := NewService(store, &fakeExtractor{}, nil, WithArchive(true))

	out := svc.Analyze(context.Background(), request("clip.MOV", []byte("quicktime"), "general"))

	require.True(t, out.Success)
	require.Len(t, store.keys, 1)
	assert.Equal(t, out.RunID+".mov", store.keys[0])
	assert.Equal(t, []byte("quicktime"), store.bodies[0])
	assertNoArtifacts(t, dir)
}

func TestService_ArchiveFailureIsIgnored(t *testing.T) {
	local, dir := newLocalStorage(t)
	store := &archivingStorage{LocalStorage: local, err: errors.New("s3 down")}
	svc := NewService(store, &fakeExtractor{}, nil, WithArchive(true))

	out := svc.Analyze(context.Background(), request("clip.mp4", []byte("mp4"), "general"))

	assert.True(t, out.Success)
	assert.Equal(t, AnalysisUnavailable, out.AnalysisType)
	assertNoArtifacts(t, dir)
}

func TestFallbackError(t *testing.T) {
	video := errors.New("video: 500")
	audio := context.DeadlineExceeded
	err := &FallbackError{Video: video, Audio: audio}

	assert.True(t, strings.HasPrefix(err.Error(), "both video and audio analysis failed"))
	assert.ErrorIs(t, err, video)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, CategoryTimeout, ClassifyError(err))
}
