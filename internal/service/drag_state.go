package service

import (
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/util"
	"sync"
)

type DragKind string

const (
	DragNewModule      DragKind = "new-module"
	DragExistingModule DragKind = "existing-module"
)

// DragPayload 拖拽中的对象：组件面板里的模块类型，或时间线上已有的模块
type DragPayload struct {
	Kind       DragKind            `json:"kind"`
	ModuleType model.ModuleType    `json:"moduleType,omitempty"`
	Module     *model.CourseModule `json:"module,omitempty"`
}

func NewModulePayload(t model.ModuleType) DragPayload {
	return DragPayload{Kind: DragNewModule, ModuleType: t}
}

func ExistingModulePayload(m model.CourseModule) DragPayload {
	return DragPayload{Kind: DragExistingModule, ModuleType: m.ModuleType, Module: &m}
}

func (p DragPayload) Validate() error {
	switch p.Kind {
	case DragNewModule:
		if !p.ModuleType.Valid() {
			return util.ErrInvalidModuleType
		}
	case DragExistingModule:
		if p.Module == nil || p.Module.ID == "" {
			return util.ErrModuleNotFound
		}
	default:
		return util.ErrDropRejected
	}
	return nil
}

func (p DragPayload) clone() DragPayload {
	if p.Module != nil {
		m := *p.Module
		p.Module = &m
	}
	return p
}

// DragSnapshot 拖拽状态的只读副本
type DragSnapshot struct {
	Active        bool         `json:"active"`
	Payload       *DragPayload `json:"payload,omitempty"`
	HoverPosition *int         `json:"hoverPosition,omitempty"`
}

func (s DragSnapshot) hovering(position int) bool {
	return s.HoverPosition != nil && *s.HoverPosition == position
}

type DragObserver func(DragSnapshot)

// DragState 单个编辑会话的拖拽状态，由会话显式持有
type DragState struct {
	mu        sync.Mutex
	active    bool
	payload   *DragPayload
	hover     *int
	observers map[int]DragObserver
	nextID    int
}

func NewDragState() *DragState {
	return &DragState{observers: make(map[int]DragObserver)}
}

// BeginDrag 开始拖拽，已有的拖拽直接被覆盖
func (d *DragState) BeginDrag(p DragPayload) {
	d.mu.Lock()
	cp := p.clone()
	d.payload = &cp
	d.active = true
	d.hover = nil
	snap, observers := d.snapshotLocked(), d.observerList()
	d.mu.Unlock()

	notify(observers, snap)
}

// UpdateHoverPosition 只影响高亮，不在拖拽中时忽略
func (d *DragState) UpdateHoverPosition(position int) {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	if d.hover != nil && *d.hover == position {
		d.mu.Unlock()
		return
	}
	pos := position
	d.hover = &pos
	snap, observers := d.snapshotLocked(), d.observerList()
	d.mu.Unlock()

	notify(observers, snap)
}

// EndDrag 无论是否发生放置都清空状态
func (d *DragState) EndDrag() {
	d.mu.Lock()
	d.active = false
	d.payload = nil
	d.hover = nil
	snap, observers := d.snapshotLocked(), d.observerList()
	d.mu.Unlock()

	notify(observers, snap)
}

func (d *DragState) Snapshot() DragSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Subscribe 注册观察者，返回取消函数
func (d *DragState) Subscribe(fn DragObserver) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.observers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

func (d *DragState) snapshotLocked() DragSnapshot {
	snap := DragSnapshot{Active: d.active}
	if d.payload != nil {
		cp := d.payload.clone()
		snap.Payload = &cp
	}
	if d.hover != nil {
		pos := *d.hover
		snap.HoverPosition = &pos
	}
	return snap
}

func (d *DragState) observerList() []DragObserver {
	list := make([]DragObserver, 0, len(d.observers))
	for i := 0; i < d.nextID; i++ {
		if fn, ok := d.observers[i]; ok {
			list = append(list, fn)
		}
	}
	return list
}

// 在锁外回调，观察者可以重新读取状态
func notify(observers []DragObserver, snap DragSnapshot) {
	for _, fn := range observers {
		fn(snap)
	}
}
