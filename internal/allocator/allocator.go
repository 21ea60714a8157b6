// Package allocator 实现 CBCS 选修课分班算法。
//
// 算法是纯函数：输入单门课程按 preference_order 排好的志愿与班级容量，
// 输出每个学生所分配的班级。志愿班级有余量则直接分入；否则退而选择
// 剩余容量最大的班级（并列取定义顺序靠前者）。first_come 策略下即使所有
// 班级都已满也会分入"最不满"的班级（与原系统行为一致，允许超额）；
// strict 策略下该学生不予分配并以 UnallocatableStudentError 报告。
package allocator

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Policy 分配策略
type Policy string

const (
	PolicyFirstCome Policy = "first_come"
	PolicyStrict    Policy = "strict"
)

var (
	ErrUnknownPolicy    = errors.New("未知的分配策略")
	ErrDuplicateStudent = errors.New("同一课程下学生志愿重复")
)

// ParsePolicy 解析策略名称，空字符串视为 first_come
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyFirstCome:
		return PolicyFirstCome, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Preference 一条志愿：学生对本课程的首选班级及处理优先级
type Preference struct {
	StudentID string
	SectionID string
	Order     int
}

// Assignment 一条分配结果
type Assignment struct {
	StudentID  string
	SectionID  string
	Order      int
	Fallback   bool // 未分入志愿班级
	Overfilled bool // 分入后该班级超出容量
}

// Result 单门课程的分配结果
type Result struct {
	Assignments []Assignment
	Unallocated []string // 仅 strict 策略下可能非空
	Sections    []SectionFill
}

// Mapping 学生 → 班级
func (r *Result) Mapping() map[string]string {
	m := make(map[string]string, len(r.Assignments))
	for _, a := range r.Assignments {
		m[a.StudentID] = a.SectionID
	}
	return m
}

// Counts 班级 → 分入人数
func (r *Result) Counts() map[string]int {
	m := make(map[string]int)
	for _, a := range r.Assignments {
		m[a.SectionID]++
	}
	return m
}

// UnallocatableStudentError strict 策略下无法分配的学生
type UnallocatableStudentError struct {
	StudentIDs []string
}

func (e *UnallocatableStudentError) Error() string {
	return fmt.Sprintf("%d 名学生无可用班级: %s", len(e.StudentIDs), strings.Join(e.StudentIDs, ","))
}

// Allocate 对单门课程执行分班
//
// prefs 按 Order 升序稳定排序后依次处理（Order 相同则保持输入顺序）。
// 复杂度 O(S×K)，S 为志愿数，K 为班级数。
func Allocate(prefs []Preference, sections []Section, policy Policy) (*Result, error) {
	if len(prefs) == 0 {
		fills := []SectionFill{}
		if len(sections) > 0 {
			if l, err := NewLedger(sections); err == nil {
				fills = l.Snapshot()
			}
		}
		return &Result{Assignments: []Assignment{}, Sections: fills}, nil
	}

	ledger, err := NewLedger(sections)
	if err != nil {
		return nil, err
	}

	ordered := make([]Preference, len(prefs))
	copy(ordered, prefs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})

	res := &Result{Assignments: make([]Assignment, 0, len(ordered))}
	seen := make(map[string]struct{}, len(ordered))

	for _, p := range ordered {
		if _, dup := seen[p.StudentID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStudent, p.StudentID)
		}
		seen[p.StudentID] = struct{}{}

		if ledger.HasRoom(p.SectionID) {
			ledger.Take(p.SectionID)
			res.Assignments = append(res.Assignments, Assignment{
				StudentID: p.StudentID,
				SectionID: p.SectionID,
				Order:     p.Order,
			})
			continue
		}

		best := ledger.BestFit()
		if policy == PolicyStrict && ledger.Remaining(best) <= 0 {
			res.Unallocated = append(res.Unallocated, p.StudentID)
			continue
		}
		overfilled := ledger.Take(best)
		res.Assignments = append(res.Assignments, Assignment{
			StudentID:  p.StudentID,
			SectionID:  best,
			Order:      p.Order,
			Fallback:   true,
			Overfilled: overfilled,
		})
	}

	res.Sections = ledger.Snapshot()

	if len(res.Unallocated) > 0 {
		return res, &UnallocatableStudentError{StudentIDs: res.Unallocated}
	}
	return res, nil
}
