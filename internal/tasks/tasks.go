// Package tasks 定义后台任务类型与载荷。
package tasks

import "encoding/json"

// 任务类型常量
const (
	TypeIssueClassify      = "issue:classify"       // 单个工单的 AI 分类
	TypeIssueClassifySweep = "issue:classify_sweep" // 周期性捞起未分类工单
)

// IssueClassifyPayload 是工单分类任务的数据结构
type IssueClassifyPayload struct {
	IssueID uint `json:"issue_id"`
}

// NewIssueClassifyTask 构造工单分类任务的载荷
func NewIssueClassifyTask(issueID uint) ([]byte, error) {
	return json.Marshal(IssueClassifyPayload{IssueID: issueID})
}

// NewIssueClassifySweepTask 构造周期扫描任务的载荷 (无参数)
func NewIssueClassifySweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
