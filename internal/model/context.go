package model

// SyncContext 显式贯穿引擎每次调用的会话上下文：租户、用户与远程可达性。
// 不读取任何全局状态，所有数据访问必须同时携带租户与用户标识。
type SyncContext struct {
	TenantID  string
	UserID    string
	Reachable bool
}

// Offline 返回同一会话的离线副本，用于远程写入失败后的本地降级路径
func (c SyncContext) Offline() SyncContext {
	c.Reachable = false
	return c
}
