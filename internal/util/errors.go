package util

import (
	"errors"
	"fmt"
)

var (
	// ErrRemoteUnreachable 远程存储不可达，调用方应降级为本地模式，不作为用户可见的硬错误
	ErrRemoteUnreachable = errors.New("remote store unreachable")

	// ErrPreconditionNotMet 奖励动作的前置条件未满足，操作被拒绝且状态不变
	ErrPreconditionNotMet = errors.New("precondition not met")

	ErrNotFound = errors.New("resource not found")

	ErrLessonNotFound        = fmt.Errorf("lesson %w", ErrNotFound)
	ErrMissionNotFound       = fmt.Errorf("mission %w", ErrNotFound)
	ErrChecklistItemNotFound = fmt.Errorf("checklist item %w", ErrNotFound)

	ErrQuizNotUnlocked      = fmt.Errorf("quiz not unlocked, watch at least 90%% of the video first: %w", ErrPreconditionNotMet)
	ErrMissionNotAvailable  = fmt.Errorf("mission locked by prerequisites: %w", ErrPreconditionNotMet)
	ErrRequiredItemsPending = fmt.Errorf("required checklist items not all checked: %w", ErrPreconditionNotMet)
)
