package service

import (
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/util"
)

// DropZone 时间线上的放置区
// 空位常驻显示；已占用的位置只在拖拽时以覆盖层出现，且只接受已有模块
type DropZone struct {
	Position int  `json:"position"`
	Occupied bool `json:"occupied"`
}

func (z DropZone) Accepts(s DragSnapshot) bool {
	if !s.Active || s.Payload == nil {
		return false
	}
	switch s.Payload.Kind {
	case DragNewModule:
		return !z.Occupied
	case DragExistingModule:
		return s.Payload.Module != nil
	default:
		return false
	}
}

func (z DropZone) Highlighted(s DragSnapshot) bool {
	return z.Accepts(s) && s.hovering(z.Position)
}

type IntentKind string

const (
	IntentNone   IntentKind = "none"
	IntentCreate IntentKind = "create"
	IntentMove   IntentKind = "move"
	IntentSelect IntentKind = "select"
	IntentDelete IntentKind = "delete"
)

// Intent 一次用户操作解析出的意图，由编辑会话执行
type Intent struct {
	Kind       IntentKind       `json:"kind"`
	ModuleType model.ModuleType `json:"moduleType,omitempty"`
	ModuleID   string           `json:"moduleId,omitempty"`
	Position   int              `json:"position"`
}

// ResolveDrop 把放置事件翻译成意图，模块放回原位时为 IntentNone
func ResolveDrop(s DragSnapshot, z DropZone) (Intent, error) {
	if !s.Active || s.Payload == nil {
		return Intent{}, util.ErrNoActiveDrag
	}
	if !z.Accepts(s) {
		return Intent{}, util.ErrDropRejected
	}

	p := s.Payload
	if p.Kind == DragNewModule {
		if !p.ModuleType.Valid() {
			return Intent{}, util.ErrInvalidModuleType
		}
		return Intent{Kind: IntentCreate, ModuleType: p.ModuleType, Position: z.Position}, nil
	}

	if p.Module.TimelinePosition == z.Position {
		return Intent{Kind: IntentNone, ModuleID: p.Module.ID, Position: z.Position}, nil
	}
	return Intent{Kind: IntentMove, ModuleID: p.Module.ID, ModuleType: p.Module.ModuleType, Position: z.Position}, nil
}

// SelectIntent 点击卡片打开设置面板
func SelectIntent(m model.CourseModule) Intent {
	return Intent{Kind: IntentSelect, ModuleID: m.ID, ModuleType: m.ModuleType, Position: m.TimelinePosition}
}

func DeleteIntent(m model.CourseModule) Intent {
	return Intent{Kind: IntentDelete, ModuleID: m.ID, ModuleType: m.ModuleType, Position: m.TimelinePosition}
}
