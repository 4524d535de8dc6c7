package service

import (
	"context"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/util"
	"sort"
	"strings"
	"sync"
	"time"
)

// ModuleStore 编辑会话依赖的持久化接口，由 CourseBuilderService 实现
type ModuleStore interface {
	ListModules(ctx context.Context, courseID string) ([]model.CourseModule, error)
	// PlaceModule 以存储中的时间线为准检查槽位，已占用时返回 util.ErrSlotOccupied
	PlaceModule(ctx context.Context, courseID string, t model.ModuleType, position, durationMinutes int) (*model.CourseModule, error)
	UpdateModule(ctx context.Context, moduleID string, u ModuleUpdate) (*model.CourseModule, error)
	MoveModule(ctx context.Context, moduleID string, position int) (*model.CourseModule, error)
	DeleteModule(ctx context.Context, moduleID string) error
}

const pendingPrefix = "pending-"

func IsPendingModule(m model.CourseModule) bool {
	return strings.HasPrefix(m.ID, pendingPrefix)
}

// BuilderSession 一个编辑器会话：本地模块列表 + 拖拽状态
// 写操作分两步：先改本地，再写存储，存储失败时回滚本地
type BuilderSession struct {
	CourseID        string
	store           ModuleStore
	drag            *DragState
	defaultDuration int
	maxPosition     int

	mu      sync.Mutex
	modules []model.CourseModule
}

// NewBuilderSession maxPosition 不大于 0 或超过 model.MaxTimelinePosition 时取默认上限
func NewBuilderSession(courseID string, store ModuleStore, defaultDuration, maxPosition int) *BuilderSession {
	if defaultDuration <= 0 {
		defaultDuration = 5
	}
	if maxPosition <= 0 || maxPosition > model.MaxTimelinePosition {
		maxPosition = defaultMaxPosition
	}
	return &BuilderSession{
		CourseID:        courseID,
		store:           store,
		drag:            NewDragState(),
		defaultDuration: defaultDuration,
		maxPosition:     maxPosition,
	}
}

func (s *BuilderSession) validPosition(position int) bool {
	return position >= 0 && position <= s.maxPosition
}

// Load 从存储重新拉取模块列表，覆盖本地状态
func (s *BuilderSession) Load(ctx context.Context) error {
	modules, err := s.store.ListModules(ctx, s.CourseID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.modules = append([]model.CourseModule(nil), modules...)
	s.sortLocked()
	s.mu.Unlock()
	return nil
}

func (s *BuilderSession) Drag() *DragState {
	return s.drag
}

func (s *BuilderSession) Modules() []model.CourseModule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CourseModule(nil), s.modules...)
}

func (s *BuilderSession) Layout() TimelineLayout {
	return BuildTimeline(s.Modules())
}

func (s *BuilderSession) Find(moduleID string) (model.CourseModule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(moduleID); i >= 0 {
		return s.modules[i], true
	}
	return model.CourseModule{}, false
}

func (s *BuilderSession) BeginDragType(t model.ModuleType) error {
	p := NewModulePayload(t)
	if err := p.Validate(); err != nil {
		return err
	}
	s.drag.BeginDrag(p)
	return nil
}

func (s *BuilderSession) BeginDragModule(moduleID string) error {
	m, ok := s.Find(moduleID)
	if !ok || IsPendingModule(m) {
		return util.ErrModuleNotFound
	}
	s.drag.BeginDrag(ExistingModulePayload(m))
	return nil
}

// Drop 在 position 处结束拖拽；无论成功与否拖拽状态都会被清空
func (s *BuilderSession) Drop(ctx context.Context, position int) (Intent, *model.CourseModule, error) {
	defer s.drag.EndDrag()

	if !s.validPosition(position) {
		return Intent{}, nil, util.ErrInvalidPosition
	}
	snap := s.drag.Snapshot()
	zone := DropZone{Position: position, Occupied: s.Layout().Slot(position).Occupied()}

	intent, err := ResolveDrop(snap, zone)
	if err != nil {
		return Intent{}, nil, err
	}
	m, err := s.Apply(ctx, intent)
	return intent, m, err
}

// Apply 执行意图，select 只返回模块，none 不做任何事
func (s *BuilderSession) Apply(ctx context.Context, intent Intent) (*model.CourseModule, error) {
	switch intent.Kind {
	case IntentNone:
		return nil, nil
	case IntentCreate:
		return s.Create(ctx, intent.ModuleType, intent.Position, 0)
	case IntentMove:
		return s.Move(ctx, intent.ModuleID, intent.Position)
	case IntentDelete:
		return nil, s.Delete(ctx, intent.ModuleID)
	case IntentSelect:
		m, ok := s.Find(intent.ModuleID)
		if !ok {
			return nil, util.ErrModuleNotFound
		}
		return &m, nil
	default:
		return nil, util.ErrDropRejected
	}
}

// Create 只能放在空位上；先插入占位模块，写入成功后替换为存储返回的模块
func (s *BuilderSession) Create(ctx context.Context, t model.ModuleType, position, durationMinutes int) (*model.CourseModule, error) {
	if !t.Valid() {
		return nil, util.ErrInvalidModuleType
	}
	if !s.validPosition(position) {
		return nil, util.ErrInvalidPosition
	}
	if durationMinutes < 0 {
		return nil, util.ErrInvalidDuration
	}
	if durationMinutes == 0 {
		durationMinutes = s.defaultDuration
	}

	placeholder := model.CourseModule{
		CourseID:         s.CourseID,
		ModuleType:       t,
		Title:            model.DefaultModuleTitle(t),
		TimelinePosition: position,
		DurationMinutes:  durationMinutes,
	}
	placeholder.ID = pendingPrefix + model.GenerateUUID()
	placeholder.CreatedAt = time.Now()

	s.mu.Lock()
	if s.occupiedLocked(position) {
		s.mu.Unlock()
		return nil, util.ErrSlotOccupied
	}
	s.modules = append(s.modules, placeholder)
	s.sortLocked()
	s.mu.Unlock()

	// 本地列表可能落后于其他编辑器的写入，最终以存储为准
	created, err := s.store.PlaceModule(ctx, s.CourseID, t, position, durationMinutes)

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(placeholder.ID)
	if err != nil {
		if i >= 0 {
			s.removeLocked(i)
		}
		return nil, err
	}
	if i >= 0 {
		s.modules[i] = *created
	} else {
		s.modules = append(s.modules, *created)
	}
	s.sortLocked()
	return created, nil
}

// Move 只改被拖动模块的位置，与其他模块重叠时保留重叠
func (s *BuilderSession) Move(ctx context.Context, moduleID string, position int) (*model.CourseModule, error) {
	if !s.validPosition(position) {
		return nil, util.ErrInvalidPosition
	}
	return s.mutate(moduleID, func(m *model.CourseModule) {
		m.TimelinePosition = position
	}, func() (*model.CourseModule, error) {
		return s.store.MoveModule(ctx, moduleID, position)
	})
}

// Update 设置面板的局部更新
func (s *BuilderSession) Update(ctx context.Context, moduleID string, u ModuleUpdate) (*model.CourseModule, error) {
	if u.TimelinePosition != nil && !s.validPosition(*u.TimelinePosition) {
		return nil, util.ErrInvalidPosition
	}
	if u.DurationMinutes != nil && *u.DurationMinutes <= 0 {
		return nil, util.ErrInvalidDuration
	}
	return s.mutate(moduleID, u.ApplyTo, func() (*model.CourseModule, error) {
		return s.store.UpdateModule(ctx, moduleID, u)
	})
}

// Delete 删除恰好一个模块，其他模块位置不变
func (s *BuilderSession) Delete(ctx context.Context, moduleID string) error {
	s.mu.Lock()
	i := s.indexLocked(moduleID)
	if i < 0 || IsPendingModule(s.modules[i]) {
		s.mu.Unlock()
		return util.ErrModuleNotFound
	}
	removed := s.modules[i]
	s.removeLocked(i)
	s.mu.Unlock()

	if err := s.store.DeleteModule(ctx, moduleID); err != nil {
		s.mu.Lock()
		s.modules = append(s.modules, removed)
		s.sortLocked()
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *BuilderSession) mutate(moduleID string, local func(*model.CourseModule), remote func() (*model.CourseModule, error)) (*model.CourseModule, error) {
	s.mu.Lock()
	i := s.indexLocked(moduleID)
	if i < 0 || IsPendingModule(s.modules[i]) {
		s.mu.Unlock()
		return nil, util.ErrModuleNotFound
	}
	previous := s.modules[i]
	local(&s.modules[i])
	s.sortLocked()
	s.mu.Unlock()

	updated, err := remote()

	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.indexLocked(moduleID)
	if err != nil {
		if j >= 0 {
			s.modules[j] = previous
			s.sortLocked()
		}
		return nil, err
	}
	if j >= 0 {
		s.modules[j] = *updated
		s.sortLocked()
	}
	return updated, nil
}

func (s *BuilderSession) indexLocked(moduleID string) int {
	for i := range s.modules {
		if s.modules[i].ID == moduleID {
			return i
		}
	}
	return -1
}

func (s *BuilderSession) occupiedLocked(position int) bool {
	for _, m := range s.modules {
		if m.TimelinePosition == position {
			return true
		}
	}
	return false
}

func (s *BuilderSession) removeLocked(i int) {
	s.modules = append(s.modules[:i], s.modules[i+1:]...)
}

// 与存储层的排序一致：位置升序，同位置按创建时间
func (s *BuilderSession) sortLocked() {
	sort.SliceStable(s.modules, func(i, j int) bool {
		a, b := s.modules[i], s.modules[j]
		if a.TimelinePosition != b.TimelinePosition {
			return a.TimelinePosition < b.TimelinePosition
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
