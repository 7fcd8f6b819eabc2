package wecom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/minato-lab/leavesync/pkg/domain/model"
	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
	"github.com/minato-lab/leavesync/pkg/utils/safe"
)

const (
	defaultBaseURL = "https://qyapi.weixin.qq.com"

	// MaxWindow is the largest query window the upstream accepts
	MaxWindow = 31 * 24 * time.Hour

	// tokenRefreshMargin: re-issue when less than 5 minutes of lifetime remain
	tokenRefreshMargin = 5 * time.Minute

	listPageSize = 100

	errCodeRateLimit = 45009

	// leave records in the approval list query
	recordTypeLeave = "1"
)

// auth-related upstream error codes surfaced as AuthError
var authErrCodes = map[int]bool{
	40001: true, // invalid credential
	40013: true, // invalid corpid
	40014: true, // invalid access_token
	42001: true, // access_token expired
}

type client struct {
	corpID string
	secret string

	baseURL    string
	httpClient *http.Client

	pageInterval time.Duration
	batchTuning  batchTuning

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time

	userMu sync.RWMutex
	users  map[string]*UserInfo

	deptMu sync.RWMutex
	depts  map[int64]string
}

// Option is a functional option for client configuration
type Option func(*client)

// WithBaseURL overrides the upstream endpoint (used by tests)
func WithBaseURL(u string) Option {
	return func(c *client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithPageInterval overrides the pause between approval-list pages
func WithPageInterval(d time.Duration) Option {
	return func(c *client) { c.pageInterval = d }
}

// New creates an upstream client authenticated by (corpID, secret)
func New(corpID, secret string, opts ...Option) (Client, error) {
	if corpID == "" || secret == "" {
		return nil, goerr.New("upstream corp ID and secret are required",
			goerr.T(types.ErrTagAuth))
	}

	c := &client{
		corpID:       corpID,
		secret:       secret,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pageInterval: 200 * time.Millisecond,
		batchTuning:  defaultBatchTuning(),
		users:        make(map[string]*UserInfo),
		depts:        make(map[int64]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// accessToken returns the cached token, re-issuing it when fewer than five
// minutes of lifetime remain.
func (c *client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > tokenRefreshMargin {
		return c.token, nil
	}

	endpoint := fmt.Sprintf("%s/cgi-bin/gettoken?corpid=%s&corpsecret=%s",
		c.baseURL, url.QueryEscape(c.corpID), url.QueryEscape(c.secret))

	var resp tokenResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return "", goerr.Wrap(err, "token request failed", goerr.T(types.ErrTagAuth))
	}
	if resp.ErrCode != 0 {
		return "", goerr.New("upstream rejected credentials",
			goerr.T(types.ErrTagAuth),
			goerr.V(types.UpstreamCodeKey, resp.ErrCode),
			goerr.V("errmsg", resp.ErrMsg))
	}

	c.token = resp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *client) ListApprovals(ctx context.Context, startUnix, endUnix int64) ([]string, error) {
	if endUnix < startUnix {
		return nil, goerr.New("query window end precedes start",
			goerr.T(types.ErrTagRange),
			goerr.V("start", startUnix), goerr.V("end", endUnix))
	}
	if endUnix-startUnix > int64(MaxWindow/time.Second) {
		return nil, goerr.New("query window exceeds 31 days",
			goerr.T(types.ErrTagRange),
			goerr.V("start", startUnix), goerr.V("end", endUnix))
	}

	var spNos []string
	cursor := ""
	for {
		req := listApprovalsRequest{
			StartTime: strconv.FormatInt(startUnix, 10),
			EndTime:   strconv.FormatInt(endUnix, 10),
			NewCursor: cursor,
			Size:      listPageSize,
			Filters:   []listFilter{{Key: "record_type", Value: recordTypeLeave}},
		}

		var resp listApprovalsResponse
		if err := c.postJSON(ctx, "/cgi-bin/oa/getapprovalinfo", req, &resp); err != nil {
			return nil, err
		}
		if err := upstreamError(resp.ErrCode, resp.ErrMsg); err != nil {
			return nil, err
		}

		spNos = append(spNos, resp.SpNoList...)
		if resp.NewCursor == "" {
			return spNos, nil
		}
		cursor = resp.NewCursor

		select {
		case <-ctx.Done():
			return nil, goerr.Wrap(ctx.Err(), "approval listing cancelled")
		case <-time.After(c.pageInterval):
		}
	}
}

func (c *client) ApprovalDetail(ctx context.Context, spNo string) (*model.ApprovalDetail, error) {
	var resp approvalDetailResponse
	if err := c.postJSON(ctx, "/cgi-bin/oa/getapprovaldetail", approvalDetailRequest{SpNo: spNo}, &resp); err != nil {
		return nil, goerr.Wrap(err, "detail fetch failed", goerr.V(types.SpNoKey, spNo))
	}
	if err := upstreamError(resp.ErrCode, resp.ErrMsg); err != nil {
		return nil, goerr.Wrap(err, "detail fetch rejected", goerr.V(types.SpNoKey, spNo))
	}
	if resp.Info == nil {
		return nil, goerr.New("detail response has no info object",
			goerr.T(types.ErrTagTransform), goerr.V(types.SpNoKey, spNo))
	}
	return resp.Info, nil
}

// User resolves a userid through the process-lifetime cache. Failed lookups
// are logged and return nil; callers fall back to "未知".
func (c *client) User(ctx context.Context, userID string) (*UserInfo, error) {
	c.userMu.RLock()
	cached, ok := c.users[userID]
	c.userMu.RUnlock()
	if ok {
		return cached, nil
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/cgi-bin/user/get?access_token=%s&userid=%s",
		c.baseURL, url.QueryEscape(token), url.QueryEscape(userID))

	var resp userResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		logging.From(ctx).Warn("user lookup failed", "userid", userID, "error", err)
		return nil, nil
	}
	if resp.ErrCode != 0 {
		logging.From(ctx).Warn("user lookup rejected",
			"userid", userID, "errcode", resp.ErrCode, "errmsg", resp.ErrMsg)
		return nil, nil
	}

	info := &UserInfo{
		UserID:         resp.UserID,
		Name:           resp.Name,
		DepartmentIDs:  resp.Department,
		MainDepartment: resp.MainDepartment,
	}
	c.userMu.Lock()
	c.users[userID] = info
	c.userMu.Unlock()
	return info, nil
}

// Department resolves a department name with the same cache discipline
func (c *client) Department(ctx context.Context, deptID int64) (string, error) {
	c.deptMu.RLock()
	cached, ok := c.depts[deptID]
	c.deptMu.RUnlock()
	if ok {
		return cached, nil
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/cgi-bin/department/get?access_token=%s&id=%d",
		c.baseURL, url.QueryEscape(token), deptID)

	var resp departmentResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		logging.From(ctx).Warn("department lookup failed", "dept_id", deptID, "error", err)
		return "", nil
	}
	if resp.ErrCode != 0 {
		logging.From(ctx).Warn("department lookup rejected",
			"dept_id", deptID, "errcode", resp.ErrCode, "errmsg", resp.ErrMsg)
		return "", nil
	}

	c.deptMu.Lock()
	c.depts[deptID] = resp.Department.Name
	c.deptMu.Unlock()
	return resp.Department.Name, nil
}

func (c *client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to build request")
	}
	return c.do(req, out)
}

func (c *client) postJSON(ctx context.Context, path string, body, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal request body")
	}

	endpoint := fmt.Sprintf("%s%s?access_token=%s", c.baseURL, path, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return goerr.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "upstream request failed",
			goerr.T(types.ErrTagAPI), goerr.V("url", req.URL.Path))
	}
	defer safe.Close(req.Context(), resp.Body)

	if resp.StatusCode != http.StatusOK {
		return goerr.New("upstream returned non-200",
			goerr.T(types.ErrTagAPI),
			goerr.V("status", resp.StatusCode), goerr.V("url", req.URL.Path))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerr.Wrap(err, "failed to read upstream response",
			goerr.T(types.ErrTagAPI))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return goerr.Wrap(err, "failed to parse upstream response",
			goerr.T(types.ErrTagAPI), goerr.V("url", req.URL.Path))
	}
	return nil
}

// upstreamError classifies a non-zero upstream application code
func upstreamError(code int, msg string) error {
	switch {
	case code == 0:
		return nil
	case code == errCodeRateLimit:
		return goerr.New("upstream rate limit",
			goerr.T(types.ErrTagRateLimit),
			goerr.V(types.UpstreamCodeKey, code), goerr.V("errmsg", msg))
	case authErrCodes[code]:
		return goerr.New("upstream auth failure",
			goerr.T(types.ErrTagAuth),
			goerr.V(types.UpstreamCodeKey, code), goerr.V("errmsg", msg))
	default:
		return goerr.New("upstream application error",
			goerr.T(types.ErrTagAPI),
			goerr.V(types.UpstreamCodeKey, code), goerr.V("errmsg", msg))
	}
}

// IsRateLimited reports whether the error is an upstream rate limit
func IsRateLimited(err error) bool {
	return goerr.HasTag(err, types.ErrTagRateLimit)
}
