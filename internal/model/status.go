package model

// ProgressStatus 课时/任务进度状态机的标签值
type ProgressStatus string

const (
	StatusLocked     ProgressStatus = "locked"
	StatusNotStarted ProgressStatus = "not_started"
	StatusAvailable  ProgressStatus = "available"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
	StatusFailed     ProgressStatus = "failed"
	StatusExpired    ProgressStatus = "expired"
)

// StatusRank 状态机推进程度排序：completed > in_progress > available/not_started > locked。
// failed/expired 为终态备用分支（当前不会产生），排在 in_progress 之后。
func StatusRank(s ProgressStatus) int {
	switch s {
	case StatusCompleted:
		return 4
	case StatusFailed, StatusExpired:
		return 3
	case StatusInProgress:
		return 2
	case StatusNotStarted, StatusAvailable:
		return 1
	case StatusLocked:
		return 0
	default:
		return 0
	}
}

// IsTerminal 终态不允许被任何更低状态覆盖
func (s ProgressStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusExpired
}

// MergeStatus 本地/远程状态合并：推进更远的一方胜出，平局时远程胜出。
// ambiguous 表示双方为不同终态等无法由排序覆盖的分歧，调用方应记录日志而非报错。
func MergeStatus(local, remote ProgressStatus) (winner ProgressStatus, remoteWins bool, ambiguous bool) {
	lr, rr := StatusRank(local), StatusRank(remote)
	ambiguous = lr == rr && local != remote
	if rr >= lr {
		return remote, true, ambiguous
	}
	return local, false, ambiguous
}
