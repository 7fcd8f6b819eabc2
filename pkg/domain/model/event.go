package model

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/minato-lab/leavesync/pkg/domain/types"
)

// statusChangeComment is the StatuChangeEvent code of a comment-only event.
// Other codes are not documented by the upstream and are treated uniformly.
const statusChangeComment = 10

// CallbackEvent is one decrypted approval push event
type CallbackEvent struct {
	SpNo         string
	SpStatus     int
	SpName       string
	StatusChange int
}

// IsComment reports whether the event only carries an approval comment
func (e *CallbackEvent) IsComment() bool {
	return e.StatusChange == statusChangeComment
}

var (
	fieldPatternMu sync.Mutex
	fieldPatterns  = map[string]*regexp.Regexp{}
)

// ExtractXMLField pulls one field value out of a callback payload,
// recognizing both <Field><![CDATA[v]]></Field> and <Field>v</Field>.
// Upstream payloads are shallow and regular; full XML parsing is deliberately
// not attempted.
func ExtractXMLField(body, name string) string {
	fieldPatternMu.Lock()
	re, ok := fieldPatterns[name]
	if !ok {
		re = regexp.MustCompile(`<` + name + `>(?:<!\[CDATA\[)?(.*?)(?:\]\]>)?</` + name + `>`)
		fieldPatterns[name] = re
	}
	fieldPatternMu.Unlock()

	m := re.FindStringSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// ParseApprovalInfo extracts the approval event from a decrypted callback
// payload containing an <ApprovalInfo> block.
func ParseApprovalInfo(body string) (*CallbackEvent, error) {
	spNo := ExtractXMLField(body, "SpNo")
	if spNo == "" {
		return nil, goerr.New("callback payload has no SpNo",
			goerr.T(types.ErrTagTransform))
	}

	ev := &CallbackEvent{
		SpNo:   spNo,
		SpName: ExtractXMLField(body, "SpName"),
	}

	if raw := ExtractXMLField(body, "SpStatus"); raw != "" {
		status, err := strconv.Atoi(raw)
		if err != nil {
			return nil, goerr.Wrap(err, "callback SpStatus is not a number",
				goerr.T(types.ErrTagTransform), goerr.V(types.SpNoKey, spNo))
		}
		ev.SpStatus = status
	}

	if raw := ExtractXMLField(body, "StatuChangeEvent"); raw != "" {
		if change, err := strconv.Atoi(raw); err == nil {
			ev.StatusChange = change
		}
	}

	return ev, nil
}
