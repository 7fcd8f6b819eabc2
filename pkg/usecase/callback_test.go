package usecase_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/minato-lab/leavesync/pkg/domain/model"
	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/service/wecom"
	"github.com/minato-lab/leavesync/pkg/usecase"
)

const (
	cbToken    = "QDG6eK"
	cbAESKey   = "jWmYm7qr5nMoAUwZRjGtBxmz3KA1tkAj3ykkR6q2B2C"
	cbReceiver = "ww1234567890abcdef"
)

func newCallbackCodec(t *testing.T) *wecom.Codec {
	t.Helper()
	codec, err := wecom.NewCodec(cbToken, cbAESKey, cbReceiver)
	gt.NoError(t, err).Required()
	return codec
}

// encryptEvent packs an approval event the way the upstream pushes it:
// encrypted XML inside an <Encrypt> envelope plus the signature params.
func encryptEvent(t *testing.T, codec *wecom.Codec, spNo string, status int) (sig, ts, nonce, body string) {
	t.Helper()
	payload := fmt.Sprintf(
		`<xml><ApprovalInfo><SpNo><![CDATA[%s]]></SpNo><SpName><![CDATA[请假]]></SpName><SpStatus>%d</SpStatus><StatuChangeEvent>%d</StatuChangeEvent></ApprovalInfo></xml>`,
		spNo, status, status)

	encrypted, err := codec.Encrypt([]byte(payload))
	gt.NoError(t, err).Required()

	ts = "1767200000"
	nonce = "n0nce"
	sig = codec.Signature(ts, nonce, encrypted)
	body = fmt.Sprintf("<xml><Encrypt><![CDATA[%s]]></Encrypt></xml>", encrypted)
	return sig, ts, nonce, body
}

func newCallbackEngine(t *testing.T) (*engine, *wecom.Codec) {
	t.Helper()
	codec := newCallbackCodec(t)
	e := newEngine(t, time.Unix(testBaseline+7200, 0), usecase.WithCodec(codec))
	return e, codec
}

func TestVerifyURL(t *testing.T) {
	ctx := context.Background()
	e, codec := newCallbackEngine(t)

	echo := "3486350478452376"
	encrypted, err := codec.Encrypt([]byte(echo))
	gt.NoError(t, err).Required()
	sig := codec.Signature("1767200000", "n1", encrypted)

	t.Run("valid challenge echoes plaintext", func(t *testing.T) {
		plain, err := e.uc.VerifyURL(ctx, sig, "1767200000", "n1", encrypted)
		gt.NoError(t, err).Required()
		gt.Value(t, plain).Equal(echo)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		_, err := e.uc.VerifyURL(ctx, "bad-signature", "1767200000", "n1", encrypted)
		gt.Error(t, err)
	})
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("pending event starts tracking", func(t *testing.T) {
		e, codec := newCallbackEngine(t)
		day := time.Date(2026, 1, 5, 9, 0, 0, 0, time.Local)
		e.client.put(pendingLeave("SP1", "u1", testBaseline+100, day))

		sig, ts, nonce, body := encryptEvent(t, codec, "SP1", int(types.StatusPending))
		gt.NoError(t, e.uc.HandleEvent(ctx, sig, ts, nonce, body)).Required()

		idx, err := e.repo.ActiveIndex().Load(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, idx.Has("SP1")).True()

		doc, err := e.repo.Leave().Load(ctx)
		gt.NoError(t, err).Required()
		text, _ := doc.Slot("u1", model.FormatSlot(day))
		gt.Value(t, text).Equal(types.StatusPending.Text())
	})

	t.Run("approved event finalizes a tracked approval", func(t *testing.T) {
		e, codec := newCallbackEngine(t)
		day := time.Date(2026, 1, 6, 9, 0, 0, 0, time.Local)
		e.client.put(pendingLeave("SP2", "u1", testBaseline+100, day))

		sig, ts, nonce, body := encryptEvent(t, codec, "SP2", int(types.StatusPending))
		gt.NoError(t, e.uc.HandleEvent(ctx, sig, ts, nonce, body)).Required()

		e.client.setStatus("SP2", types.StatusApproved)
		sig, ts, nonce, body = encryptEvent(t, codec, "SP2", int(types.StatusApproved))
		gt.NoError(t, e.uc.HandleEvent(ctx, sig, ts, nonce, body)).Required()

		doc, err := e.repo.Leave().Load(ctx)
		gt.NoError(t, err).Required()
		text, _ := doc.Slot("u1", model.FormatSlot(day))
		gt.Value(t, text).Equal(types.StatusApproved.Text())

		idx, err := e.repo.ActiveIndex().Load(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, idx.Has("SP2")).False()
	})

	t.Run("tampered signature changes nothing", func(t *testing.T) {
		e, codec := newCallbackEngine(t)
		day := time.Date(2026, 1, 7, 9, 0, 0, 0, time.Local)
		e.client.put(pendingLeave("SP3", "u1", testBaseline+100, day))

		_, ts, nonce, body := encryptEvent(t, codec, "SP3", int(types.StatusPending))
		err := e.uc.HandleEvent(ctx, "forged-signature", ts, nonce, body)
		gt.Error(t, err)

		idx, loadErr := e.repo.ActiveIndex().Load(ctx)
		gt.NoError(t, loadErr).Required()
		gt.Bool(t, idx.Has("SP3")).False()

		doc, loadErr := e.repo.Leave().Load(ctx)
		gt.NoError(t, loadErr).Required()
		gt.Value(t, len(doc.LeaveData)).Equal(0)
	})

	t.Run("comment event is ignored", func(t *testing.T) {
		e, codec := newCallbackEngine(t)
		day := time.Date(2026, 1, 8, 9, 0, 0, 0, time.Local)
		e.client.put(pendingLeave("SP4", "u1", testBaseline+100, day))

		sig, ts, nonce, body := encryptEvent(t, codec, "SP4", 10)
		gt.NoError(t, e.uc.HandleEvent(ctx, sig, ts, nonce, body)).Required()

		idx, err := e.repo.ActiveIndex().Load(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, idx.Has("SP4")).False()
	})

	t.Run("held lock parks the event for the drain timer", func(t *testing.T) {
		e, codec := newCallbackEngine(t)
		day := time.Date(2026, 1, 9, 9, 0, 0, 0, time.Local)
		e.client.put(pendingLeave("SP5", "u1", testBaseline+100, day))

		gt.Bool(t, e.uc.Lock().TryAcquire()).True()
		sig, ts, nonce, body := encryptEvent(t, codec, "SP5", int(types.StatusPending))
		gt.NoError(t, e.uc.HandleEvent(ctx, sig, ts, nonce, body)).Required()
		gt.Value(t, e.uc.QueueLength()).Equal(1)

		idx, err := e.repo.ActiveIndex().Load(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, idx.Has("SP5")).False()

		e.uc.Lock().Release()
		gt.NoError(t, e.uc.DrainQueue(ctx)).Required()
		gt.Value(t, e.uc.QueueLength()).Equal(0)

		idx, err = e.repo.ActiveIndex().Load(ctx)
		gt.NoError(t, err).Required()
		gt.Bool(t, idx.Has("SP5")).True()
	})
}

func TestCallbackQueueDedupe(t *testing.T) {
	now := time.Unix(testBaseline, 0)
	q := &usecase.CallbackQueue{}

	q.Push("SP1", int(types.StatusPending), now)
	q.Push("SP2", int(types.StatusPending), now)
	q.Push("SP1", int(types.StatusApproved), now.Add(time.Second))
	q.Push("SP3", int(types.StatusPending), now)

	gt.Value(t, q.Len()).Equal(4)

	events := q.Drain()
	gt.Array(t, events).Length(3)
	gt.Value(t, events[0]).Equal(usecase.DrainedEvent{SpNo: "SP2", Status: int(types.StatusPending)})
	gt.Value(t, events[1]).Equal(usecase.DrainedEvent{SpNo: "SP1", Status: int(types.StatusApproved)})
	gt.Value(t, events[2]).Equal(usecase.DrainedEvent{SpNo: "SP3", Status: int(types.StatusPending)})
	gt.Value(t, q.Len()).Equal(0)
}
