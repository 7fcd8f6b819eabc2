package wecom

import (
	"context"

	"github.com/minato-lab/leavesync/pkg/domain/model"
)

// BatchMode selects the detail-fetch discipline
type BatchMode int

const (
	// BatchBulk is used by the incremental poller: concurrency 3, adaptive
	// inter-batch delay, per-item rate-limit retries.
	BatchBulk BatchMode = iota
	// BatchStatusCheck is used by the status checker: concurrency 5, fixed
	// 50 ms inter-batch delay, transient misses tolerated.
	BatchStatusCheck
)

// UserInfo is an upstream contact-directory entry
type UserInfo struct {
	UserID         string
	Name           string
	DepartmentIDs  []int64
	MainDepartment int64
}

// Client talks to the upstream approval platform. Implementations cache the
// access token and the user/department directories for the process lifetime.
type Client interface {
	// ListApprovals returns the approval numbers of leave records submitted
	// in [startUnix, endUnix]. The window must not exceed 31 days.
	ListApprovals(ctx context.Context, startUnix, endUnix int64) ([]string, error)

	// ApprovalDetail fetches the detail of a single approval
	ApprovalDetail(ctx context.Context, spNo string) (*model.ApprovalDetail, error)

	// FetchDetails fetches many details with bounded parallelism. Items that
	// keep failing are logged and dropped from the result.
	FetchDetails(ctx context.Context, spNos []string, mode BatchMode) ([]*model.ApprovalDetail, error)

	// User resolves a userid; returns nil (not an error) when lookup fails
	User(ctx context.Context, userID string) (*UserInfo, error)

	// Department resolves a department name; empty when lookup fails
	Department(ctx context.Context, deptID int64) (string, error)
}

type tokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type listApprovalsRequest struct {
	StartTime string       `json:"starttime"`
	EndTime   string       `json:"endtime"`
	NewCursor string       `json:"new_cursor"`
	Size      int          `json:"size"`
	Filters   []listFilter `json:"filters,omitempty"`
}

type listFilter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type listApprovalsResponse struct {
	ErrCode   int      `json:"errcode"`
	ErrMsg    string   `json:"errmsg"`
	SpNoList  []string `json:"sp_no_list"`
	NewCursor string   `json:"new_cursor"`
}

type approvalDetailRequest struct {
	SpNo string `json:"sp_no"`
}

type approvalDetailResponse struct {
	ErrCode int                   `json:"errcode"`
	ErrMsg  string                `json:"errmsg"`
	Info    *model.ApprovalDetail `json:"info"`
}

type userResponse struct {
	ErrCode        int     `json:"errcode"`
	ErrMsg         string  `json:"errmsg"`
	UserID         string  `json:"userid"`
	Name           string  `json:"name"`
	Department     []int64 `json:"department"`
	MainDepartment int64   `json:"main_department"`
}

type departmentResponse struct {
	ErrCode    int    `json:"errcode"`
	ErrMsg     string `json:"errmsg"`
	Department struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"department"`
}
