package util

import "errors"

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrEmailRegistered   = errors.New("该邮箱已被注册")
	ErrInvalidCredential = errors.New("invalid credentials")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrPermissionDenied  = errors.New("permission denied")

	ErrCourseNotFound     = errors.New("course not found")
	ErrModuleNotFound     = errors.New("module not found")
	ErrInvalidModuleType  = errors.New("invalid module type")
	ErrInvalidPosition    = errors.New("timeline position out of range")
	ErrInvalidField       = errors.New("invalid field")
	ErrInvalidDuration    = errors.New("duration must be a positive number of minutes")
	ErrSlotOccupied       = errors.New("slot already holds a module")
	ErrNoActiveDrag       = errors.New("no drag in progress")
	ErrDropRejected       = errors.New("drop zone does not accept the dragged item")
	ErrInvalidMediaType   = errors.New("media type does not match module type")
	ErrMediaTooLarge      = errors.New("media file exceeds the upload limit")
	ErrEmptyMessage       = errors.New("message content is empty")
	ErrCannotMessageSelf  = errors.New("cannot send a message to yourself")
	ErrGenerationFailed   = errors.New("generation failed")
	ErrAIResponseInvalid  = errors.New("AI response is not a JSON document")
	ErrCourseNotPublished = errors.New("course is not published")
)
