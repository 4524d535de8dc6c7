package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/testutil"
	"sage_edu_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	mp4Header = append([]byte{0, 0, 0, 24}, []byte("ftypmp42\x00\x00\x00\x00isommp41")...)
)

func fileHeader(t *testing.T, filename string, data []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, "/", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	t.Cleanup(func() { _ = req.MultipartForm.RemoveAll() })
	return req.MultipartForm.File["file"][0]
}

func newMediaService(t *testing.T) (*MediaService, *util.Claims, *model.Course, func(model.ModuleType) *model.CourseModule) {
	t.Helper()
	builder, db := newBuilderService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Biology")

	svc := NewMediaService(builder, &StorageService{Provider: &LocalStorageProvider{Root: t.TempDir()}})
	svc.Probe = func(string) (*util.VideoInfo, error) { return &util.VideoInfo{Duration: 125}, nil }
	svc.Thumbnail = func(_, thumb, _ string) error { return os.WriteFile(thumb, []byte("jpg"), 0644) }

	claims := &util.Claims{UserID: teacher.ID, Role: model.Teacher}
	create := func(mt model.ModuleType) *model.CourseModule {
		return testutil.CreateModule(t, db, course.ID, mt, 0)
	}
	return svc, claims, course, create
}

func TestUploadVideoSetsDurationAndThumbnail(t *testing.T) {
	svc, claims, course, create := newMediaService(t)
	m := create(model.ModuleVideo)

	res, err := svc.UploadModuleMedia(context.Background(), claims, m.ID, fileHeader(t, "lesson.MP4", mp4Header))
	require.NoError(t, err)

	assert.Equal(t, "video/mp4", res.MimeType)
	assert.Contains(t, res.URL, "/uploads/modules/"+course.ID+"/"+m.ID+"/")
	assert.NotEmpty(t, res.ThumbnailURL)
	assert.Equal(t, 3, res.Module.DurationMinutes)

	var content map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Module.Content, &content))
	assert.Equal(t, res.URL, content["mediaUrl"])
	assert.Equal(t, res.ThumbnailURL, content["thumbnailUrl"])
}

func TestUploadVideoToleratesProbeFailure(t *testing.T) {
	svc, claims, _, create := newMediaService(t)
	svc.Probe = func(string) (*util.VideoInfo, error) { return nil, errors.New("ffprobe missing") }
	svc.Thumbnail = func(string, string, string) error { return errors.New("ffmpeg missing") }
	m := create(model.ModuleVideo)

	res, err := svc.UploadModuleMedia(context.Background(), claims, m.ID, fileHeader(t, "lesson.mp4", mp4Header))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Module.DurationMinutes)
	assert.Empty(t, res.ThumbnailURL)
}

func TestUploadImageKeepsExistingContent(t *testing.T) {
	svc, claims, _, create := newMediaService(t)
	m := create(model.ModuleImage)
	caption := json.RawMessage(`{"caption":"cell"}`)
	_, err := svc.Builder.UpdateModule(context.Background(), m.ID, ModuleUpdate{Content: caption})
	require.NoError(t, err)

	res, err := svc.UploadModuleMedia(context.Background(), claims, m.ID, fileHeader(t, "cell.png", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", res.MimeType)
	assert.Empty(t, res.ThumbnailURL)

	var content map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Module.Content, &content))
	assert.Equal(t, "cell", content["caption"])
	assert.Equal(t, res.URL, content["mediaUrl"])
}

func TestUploadRejectsMismatchedMedia(t *testing.T) {
	svc, claims, _, create := newMediaService(t)
	ctx := context.Background()

	quiz := create(model.ModuleQuiz)
	_, err := svc.UploadModuleMedia(ctx, claims, quiz.ID, fileHeader(t, "cell.png", pngHeader))
	assert.ErrorIs(t, err, util.ErrInvalidMediaType)

	image := create(model.ModuleImage)
	_, err = svc.UploadModuleMedia(ctx, claims, image.ID, fileHeader(t, "lesson.mp4", mp4Header))
	assert.ErrorIs(t, err, util.ErrInvalidMediaType)

	// 扩展名合法但内容不是图片
	_, err = svc.UploadModuleMedia(ctx, claims, image.ID, fileHeader(t, "fake.png", []byte("plain text body")))
	assert.ErrorIs(t, err, util.ErrInvalidMediaType)
}

func TestUploadRequiresOwnership(t *testing.T) {
	svc, _, _, create := newMediaService(t)
	m := create(model.ModuleImage)

	_, err := svc.UploadModuleMedia(context.Background(), &util.Claims{UserID: 9999, Role: model.Teacher}, m.ID, fileHeader(t, "cell.png", pngHeader))
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}
