package allocator

import (
	"errors"
	"fmt"
)

var (
	ErrNoSections       = errors.New("课程未配置任何班级")
	ErrDuplicateSection = errors.New("班级重复配置")
	ErrInvalidCapacity  = errors.New("班级容量不能为负数")
)

// Section 一个班级的容量约束
type Section struct {
	ID       string
	Capacity int
}

// SectionFill 班级当前填充情况
type SectionFill struct {
	ID        string
	Capacity  int
	Filled    int
	Remaining int
}

// Ledger 单门课程的班级容量账本
// 只在一次分配内使用，非并发安全
type Ledger struct {
	sections []Section
	filled   []int
	index    map[string]int
}

// NewLedger 按定义顺序建立账本，所有班级初始计数为 0
func NewLedger(sections []Section) (*Ledger, error) {
	if len(sections) == 0 {
		return nil, ErrNoSections
	}

	l := &Ledger{
		sections: make([]Section, len(sections)),
		filled:   make([]int, len(sections)),
		index:    make(map[string]int, len(sections)),
	}
	for i, s := range sections {
		if s.Capacity < 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCapacity, s.ID)
		}
		if _, dup := l.index[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSection, s.ID)
		}
		l.sections[i] = s
		l.index[s.ID] = i
	}
	return l, nil
}

// Has 班级是否属于本课程
func (l *Ledger) Has(id string) bool {
	_, ok := l.index[id]
	return ok
}

// HasRoom 班级是否还有余量；未知班级视为已满
func (l *Ledger) HasRoom(id string) bool {
	i, ok := l.index[id]
	if !ok {
		return false
	}
	return l.filled[i] < l.sections[i].Capacity
}

// Remaining 班级剩余容量，超额时为负数
func (l *Ledger) Remaining(id string) int {
	i, ok := l.index[id]
	if !ok {
		return 0
	}
	return l.sections[i].Capacity - l.filled[i]
}

// Take 占用一个名额，返回占用后是否超出容量
func (l *Ledger) Take(id string) (overfilled bool) {
	i := l.index[id]
	l.filled[i]++
	return l.filled[i] > l.sections[i].Capacity
}

// BestFit 剩余容量最大的班级；并列时取定义顺序靠前者
// 所有班级都已满时仍返回"最不满"的班级
func (l *Ledger) BestFit() string {
	best := 0
	bestRemaining := l.sections[0].Capacity - l.filled[0]
	for i := 1; i < len(l.sections); i++ {
		if r := l.sections[i].Capacity - l.filled[i]; r > bestRemaining {
			best, bestRemaining = i, r
		}
	}
	return l.sections[best].ID
}

// Snapshot 按定义顺序返回各班级填充情况
func (l *Ledger) Snapshot() []SectionFill {
	out := make([]SectionFill, len(l.sections))
	for i, s := range l.sections {
		out[i] = SectionFill{
			ID:        s.ID,
			Capacity:  s.Capacity,
			Filled:    l.filled[i],
			Remaining: s.Capacity - l.filled[i],
		}
	}
	return out
}
