package service

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/util"
	"sage_edu_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
)

const thumbnailOffset = "00:00:01"

// MediaUploadResult 上传后的模块与媒体地址
type MediaUploadResult struct {
	Module       *model.CourseModule `json:"module"`
	URL          string              `json:"url"`
	ThumbnailURL string              `json:"thumbnailUrl,omitempty"`
	MimeType     string              `json:"mimeType"`
}

type MediaService struct {
	Builder *CourseBuilderService
	Storage *StorageService

	Probe     func(videoPath string) (*util.VideoInfo, error)
	Thumbnail func(videoPath, thumbnailPath, offset string) error
}

func NewMediaService(builder *CourseBuilderService, storage *StorageService) *MediaService {
	return &MediaService{
		Builder:   builder,
		Storage:   storage,
		Probe:     util.GetVideoInfo,
		Thumbnail: util.GenerateThumbnail,
	}
}

type mediaRule struct {
	extensions []string
	mimePrefix string
}

var mediaRules = map[model.ModuleType]mediaRule{
	model.ModuleVideo: {extensions: util.AllowedVideoExtensions, mimePrefix: util.MimeVideo},
	model.ModuleImage: {extensions: util.AllowedImageExtensions, mimePrefix: util.MimeImage},
}

// UploadModuleMedia 为视频或图片模块上传媒体，视频时长写回 duration_minutes
func (s *MediaService) UploadModuleMedia(ctx context.Context, claims *util.Claims, moduleID string, header *multipart.FileHeader) (*MediaUploadResult, error) {
	m, err := s.Builder.AuthorizeModule(ctx, moduleID, claims)
	if err != nil {
		return nil, err
	}

	rule, ok := mediaRules[m.ModuleType]
	if !ok || !util.HasAllowedExtension(header.Filename, rule.extensions) {
		return nil, util.ErrInvalidMediaType
	}
	if header.Size > util.MaxMediaUploadBytes {
		return nil, util.ErrMediaTooLarge
	}

	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	mimeType, err := util.ValidateMimeType(src, []string{rule.mimePrefix})
	if err != nil {
		return nil, util.ErrInvalidMediaType
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	// ffprobe 需要落盘的文件
	tmp, err := os.CreateTemp("", "module-media-*"+strings.ToLower(filepath.Ext(header.Filename)))
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	key := MediaKey(m.CourseID, m.ID, header.Filename)
	url, err := s.Storage.UploadFile(ctx, key, tmp.Name(), mimeType)
	if err != nil {
		return nil, err
	}

	result := &MediaUploadResult{URL: url, MimeType: mimeType}
	update := ModuleUpdate{}

	if m.ModuleType == model.ModuleVideo {
		if info, err := s.Probe(tmp.Name()); err != nil {
			logger.Log.Warn("Video probe failed, keeping duration", zap.String("module_id", m.ID), zap.Error(err))
		} else {
			minutes := info.DurationMinutes()
			update.DurationMinutes = &minutes
		}
		result.ThumbnailURL = s.uploadThumbnail(ctx, m, key, tmp.Name())
	}

	content, err := mergeMediaContent(m.Content, result)
	if err != nil {
		return nil, err
	}
	update.Content = content

	updated, err := s.Builder.UpdateModule(ctx, m.ID, update)
	if err != nil {
		_ = s.Storage.Delete(ctx, key)
		return nil, err
	}
	result.Module = updated
	return result, nil
}

// uploadThumbnail 缩略图失败不影响主流程
func (s *MediaService) uploadThumbnail(ctx context.Context, m *model.CourseModule, key, videoPath string) string {
	thumbPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "_thumb.jpg"
	defer os.Remove(thumbPath)

	if err := s.Thumbnail(videoPath, thumbPath, thumbnailOffset); err != nil {
		logger.Log.Warn("Thumbnail generation failed", zap.String("module_id", m.ID), zap.Error(err))
		return ""
	}
	thumbKey := strings.TrimSuffix(key, path.Ext(key)) + "_thumb.jpg"
	url, err := s.Storage.UploadFile(ctx, thumbKey, thumbPath, "image/jpeg")
	if err != nil {
		logger.Log.Warn("Thumbnail upload failed", zap.String("module_id", m.ID), zap.Error(err))
		return ""
	}
	return url
}

func mergeMediaContent(existing []byte, r *MediaUploadResult) (json.RawMessage, error) {
	content := map[string]interface{}{}
	if len(existing) > 0 && string(existing) != "null" {
		if err := json.Unmarshal(existing, &content); err != nil {
			content = map[string]interface{}{}
		}
	}
	content["mediaUrl"] = r.URL
	content["mimeType"] = r.MimeType
	if r.ThumbnailURL != "" {
		content["thumbnailUrl"] = r.ThumbnailURL
	} else {
		delete(content, "thumbnailUrl")
	}
	return json.Marshal(content)
}
