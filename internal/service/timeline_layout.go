package service

import "sage_edu_backend/internal/model"

// TimelineSlot 时间线上的一个位置，Modules 为空时是可放置的空位
type TimelineSlot struct {
	Position int                  `json:"position"`
	Modules  []model.CourseModule `json:"modules"`
}

func (s TimelineSlot) Occupied() bool {
	return len(s.Modules) > 0
}

type TimelineLayout struct {
	Slots       []TimelineSlot `json:"slots"`
	MaxPosition int            `json:"maxPosition"`
}

// BuildTimeline 生成 0..maxPos+1 的连续槽位，末尾永远留一个空位
// 同一位置的多个模块按输入顺序堆叠，负数位置不参与布局
// 超过 model.MaxTimelinePosition 的历史数据归入上限槽位，保证槽位数有界
func BuildTimeline(modules []model.CourseModule) TimelineLayout {
	maxPos := -1
	for _, m := range modules {
		if p := slotIndex(m.TimelinePosition); p > maxPos {
			maxPos = p
		}
	}

	slots := make([]TimelineSlot, maxPos+2)
	for i := range slots {
		slots[i].Position = i
		slots[i].Modules = []model.CourseModule{}
	}
	for _, m := range modules {
		if m.TimelinePosition < 0 {
			continue
		}
		slot := &slots[slotIndex(m.TimelinePosition)]
		slot.Modules = append(slot.Modules, m)
	}

	return TimelineLayout{Slots: slots, MaxPosition: maxPos}
}

func slotIndex(position int) int {
	if position > model.MaxTimelinePosition {
		return model.MaxTimelinePosition
	}
	return position
}

// Slot 越界返回空槽
func (l TimelineLayout) Slot(position int) TimelineSlot {
	if position < 0 || position >= len(l.Slots) {
		return TimelineSlot{Position: position, Modules: []model.CourseModule{}}
	}
	return l.Slots[position]
}

// DropZones 每个槽位对应一个放置区
func (l TimelineLayout) DropZones() []DropZone {
	zones := make([]DropZone, len(l.Slots))
	for i, s := range l.Slots {
		zones[i] = DropZone{Position: s.Position, Occupied: s.Occupied()}
	}
	return zones
}

// TotalMinutes 时间线上所有模块时长之和
func (l TimelineLayout) TotalMinutes() int {
	total := 0
	for _, s := range l.Slots {
		for _, m := range s.Modules {
			total += m.DurationMinutes
		}
	}
	return total
}
