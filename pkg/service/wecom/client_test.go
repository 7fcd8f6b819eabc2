package wecom_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/minato-lab/leavesync/pkg/domain/model"
	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/service/wecom"
)

const (
	testCorpID = "ww_test_corp"
	testSecret = "test_secret"
	testAccess = "ACCESS_TOKEN_1"
)

// fakeUpstream emulates the approval platform endpoints with per-endpoint
// call counters and a configurable rate-limit schedule per approval number.
type fakeUpstream struct {
	t *testing.T

	mu             sync.Mutex
	tokenExpiresIn int64
	tokenCalls     int
	listPages      []listPage
	listBodies     []json.RawMessage
	detailCalls    map[string]int
	rateLimitUntil map[string]int // 45009 for the first N calls; -1 means always
	userCalls      int
	deptCalls      int

	srv *httptest.Server
}

type listPage struct {
	errCode int
	spNos   []string
	cursor  string
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		t:              t,
		tokenExpiresIn: 7200,
		detailCalls:    map[string]int{},
		rateLimitUntil: map[string]int{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/cgi-bin/gettoken":
		f.tokenCalls++
		writeJSON(w, map[string]any{
			"errcode":      0,
			"access_token": fmt.Sprintf("%s_%d", testAccess, f.tokenCalls),
			"expires_in":   f.tokenExpiresIn,
		})

	case "/cgi-bin/oa/getapprovalinfo":
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.t.Errorf("bad list request body: %v", err)
		}
		f.listBodies = append(f.listBodies, body)

		page := listPage{}
		if len(f.listPages) > 0 {
			page = f.listPages[0]
			f.listPages = f.listPages[1:]
		}
		writeJSON(w, map[string]any{
			"errcode":    page.errCode,
			"errmsg":     "fake",
			"sp_no_list": page.spNos,
			"new_cursor": page.cursor,
		})

	case "/cgi-bin/oa/getapprovaldetail":
		var req struct {
			SpNo string `json:"sp_no"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("bad detail request body: %v", err)
		}
		f.detailCalls[req.SpNo]++
		if n := f.rateLimitUntil[req.SpNo]; n == -1 || f.detailCalls[req.SpNo] <= n {
			writeJSON(w, map[string]any{"errcode": 45009, "errmsg": "api freq out of limit"})
			return
		}
		writeJSON(w, map[string]any{
			"errcode": 0,
			"info": map[string]any{
				"sp_no":      req.SpNo,
				"sp_name":    "请假",
				"sp_status":  1,
				"apply_time": 1767196800,
			},
		})

	case "/cgi-bin/user/get":
		f.userCalls++
		writeJSON(w, map[string]any{
			"errcode":         0,
			"userid":          r.URL.Query().Get("userid"),
			"name":            "张三",
			"department":      []int64{2, 5},
			"main_department": 5,
		})

	case "/cgi-bin/department/get":
		f.deptCalls++
		writeJSON(w, map[string]any{
			"errcode": 0,
			"department": map[string]any{
				"id":   7,
				"name": "研发部",
			},
		})

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeUpstream) newClient(t *testing.T, opts ...wecom.Option) wecom.Client {
	t.Helper()
	opts = append([]wecom.Option{
		wecom.WithBaseURL(f.srv.URL),
		wecom.WithPageInterval(time.Millisecond),
		wecom.WithBatchTuning(time.Millisecond, 4*time.Millisecond, time.Millisecond, time.Millisecond,
			[]time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}),
	}, opts...)
	client, err := wecom.New(testCorpID, testSecret, opts...)
	gt.NoError(t, err).Required()
	return client
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := wecom.New("", "secret")
	gt.Error(t, err)
	gt.Bool(t, goerr.HasTag(err, types.ErrTagAuth)).True()

	_, err = wecom.New("corp", "")
	gt.Error(t, err)
}

func TestAccessTokenReuse(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(t)
	client := up.newClient(t)

	detail, err := client.ApprovalDetail(ctx, "SP1")
	gt.NoError(t, err).Required()
	gt.Value(t, detail.SpNo).Equal("SP1")

	_, err = client.ApprovalDetail(ctx, "SP2")
	gt.NoError(t, err).Required()

	// Both calls ride the same cached token
	gt.Value(t, up.tokenCalls).Equal(1)
}

func TestAccessTokenRefresh(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(t)
	// Shorter than the refresh margin, so every call re-issues
	up.tokenExpiresIn = 60
	client := up.newClient(t)

	_, err := client.ApprovalDetail(ctx, "SP1")
	gt.NoError(t, err).Required()
	_, err = client.ApprovalDetail(ctx, "SP2")
	gt.NoError(t, err).Required()

	gt.Value(t, up.tokenCalls).Equal(2)
}

func TestListApprovalsPagination(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(t)
	up.listPages = []listPage{
		{spNos: []string{"SP1", "SP2"}, cursor: "cursor-1"},
		{spNos: []string{"SP3"}, cursor: ""},
	}
	client := up.newClient(t)

	start := int64(1767196800)
	end := start + 86400

	spNos, err := client.ListApprovals(ctx, start, end)
	gt.NoError(t, err).Required()
	gt.Array(t, spNos).Length(3)
	gt.Value(t, spNos).Equal([]string{"SP1", "SP2", "SP3"})

	gt.Array(t, up.listBodies).Length(2).Required()

	type listBody struct {
		StartTime string `json:"starttime"`
		EndTime   string `json:"endtime"`
		NewCursor string `json:"new_cursor"`
		Size      int    `json:"size"`
		Filters   []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"filters"`
	}

	var first listBody
	gt.NoError(t, json.Unmarshal(up.listBodies[0], &first)).Required()
	gt.Value(t, first.StartTime).Equal(strconv.FormatInt(start, 10))
	gt.Value(t, first.EndTime).Equal(strconv.FormatInt(end, 10))
	gt.Value(t, first.NewCursor).Equal("")
	gt.Value(t, first.Size).Equal(100)
	gt.Array(t, first.Filters).Length(1).Required()
	gt.Value(t, first.Filters[0].Key).Equal("record_type")
	gt.Value(t, first.Filters[0].Value).Equal("1")

	var second listBody
	gt.NoError(t, json.Unmarshal(up.listBodies[1], &second)).Required()
	gt.Value(t, second.NewCursor).Equal("cursor-1")
}

func TestListApprovalsWindowValidation(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(t)
	client := up.newClient(t)

	start := int64(1767196800)

	t.Run("end precedes start", func(t *testing.T) {
		_, err := client.ListApprovals(ctx, start, start-1)
		gt.Error(t, err)
		gt.Bool(t, goerr.HasTag(err, types.ErrTagRange)).True()
	})

	t.Run("window exceeds 31 days", func(t *testing.T) {
		_, err := client.ListApprovals(ctx, start, start+32*86400)
		gt.Error(t, err)
		gt.Bool(t, goerr.HasTag(err, types.ErrTagRange)).True()
	})

	// Validation rejects before any upstream traffic
	gt.Value(t, up.tokenCalls).Equal(0)
	gt.Array(t, up.listBodies).Length(0)
}

func TestUpstreamErrorClassification(t *testing.T) {
	ctx := context.Background()
	start := int64(1767196800)

	run := func(t *testing.T, errCode int) error {
		up := newFakeUpstream(t)
		up.listPages = []listPage{{errCode: errCode}}
		client := up.newClient(t)
		_, err := client.ListApprovals(ctx, start, start+3600)
		gt.Error(t, err)
		return err
	}

	t.Run("45009 is a rate limit", func(t *testing.T) {
		err := run(t, 45009)
		gt.Bool(t, wecom.IsRateLimited(err)).True()
	})

	t.Run("40001 is an auth failure", func(t *testing.T) {
		err := run(t, 40001)
		gt.Bool(t, goerr.HasTag(err, types.ErrTagAuth)).True()
		gt.Bool(t, wecom.IsRateLimited(err)).False()
	})

	t.Run("unknown codes are API errors", func(t *testing.T) {
		err := run(t, 301)
		gt.Bool(t, goerr.HasTag(err, types.ErrTagAPI)).True()
	})
}

func TestFetchDetailsBulkRetry(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(t)
	up.rateLimitUntil["SP2"] = 2  // recovers on the third attempt
	up.rateLimitUntil["SP3"] = -1 // never recovers
	client := up.newClient(t)

	details, err := client.FetchDetails(ctx, []string{"SP1", "SP2", "SP3"}, wecom.BatchBulk)
	gt.NoError(t, err).Required()

	gt.Array(t, details).Length(2)
	bySpNo := map[string]*model.ApprovalDetail{}
	for _, d := range details {
		bySpNo[d.SpNo] = d
	}
	gt.Value(t, bySpNo["SP1"]).NotNil()
	gt.Value(t, bySpNo["SP2"]).NotNil()
	gt.Value(t, bySpNo["SP3"]).Nil()

	gt.Value(t, up.detailCalls["SP1"]).Equal(1)
	gt.Value(t, up.detailCalls["SP2"]).Equal(3)
	// Initial attempt plus one per backoff step, then dropped
	gt.Value(t, up.detailCalls["SP3"]).Equal(4)
}

func TestFetchDetailsStatusMode(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(t)
	up.rateLimitUntil["SP1"] = -1
	client := up.newClient(t)

	details, err := client.FetchDetails(ctx, []string{"SP1", "SP2"}, wecom.BatchStatusCheck)
	gt.NoError(t, err).Required()

	gt.Array(t, details).Length(1)
	gt.Value(t, details[0].SpNo).Equal("SP2")

	// Status mode drops rate-limited items without retrying
	gt.Value(t, up.detailCalls["SP1"]).Equal(1)
}

func TestUserCache(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(t)
	client := up.newClient(t)

	info, err := client.User(ctx, "zhangsan")
	gt.NoError(t, err).Required()
	gt.Value(t, info).NotNil().Required()
	gt.Value(t, info.UserID).Equal("zhangsan")
	gt.Value(t, info.Name).Equal("张三")
	gt.Value(t, info.MainDepartment).Equal(int64(5))

	again, err := client.User(ctx, "zhangsan")
	gt.NoError(t, err).Required()
	gt.Value(t, again).Equal(info)
	gt.Value(t, up.userCalls).Equal(1)
}

func TestDepartmentCache(t *testing.T) {
	ctx := context.Background()
	up := newFakeUpstream(t)
	client := up.newClient(t)

	name, err := client.Department(ctx, 7)
	gt.NoError(t, err).Required()
	gt.Value(t, name).Equal("研发部")

	name, err = client.Department(ctx, 7)
	gt.NoError(t, err).Required()
	gt.Value(t, name).Equal("研发部")
	gt.Value(t, up.deptCalls).Equal(1)
}

func TestLookupFailureIsSoft(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cgi-bin/gettoken":
			writeJSON(w, map[string]any{"errcode": 0, "access_token": testAccess, "expires_in": 7200})
		default:
			writeJSON(w, map[string]any{"errcode": 60111, "errmsg": "userid not found"})
		}
	}))
	t.Cleanup(srv.Close)

	client, err := wecom.New(testCorpID, testSecret, wecom.WithBaseURL(srv.URL))
	gt.NoError(t, err).Required()

	// Directory misses degrade to empty results, not errors
	info, err := client.User(ctx, "nobody")
	gt.NoError(t, err)
	gt.Value(t, info).Nil()

	name, err := client.Department(ctx, 42)
	gt.NoError(t, err)
	gt.Value(t, name).Equal("")
}
