package http

import (
	"context"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"

	"github.com/minato-lab/leavesync/pkg/utils/async"
	"github.com/minato-lab/leavesync/pkg/utils/errutil"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
	"github.com/minato-lab/leavesync/pkg/utils/safe"
)

// maxCallbackBody bounds the encrypted event payload size
const maxCallbackBody = 1 << 20

// handleCallbackVerify answers the upstream URL ownership challenge.
// The decrypted echostr goes back as the plain response body.
func (s *Server) handleCallbackVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	signature := q.Get("msg_signature")
	timestamp := q.Get("timestamp")
	nonce := q.Get("nonce")
	echostr := q.Get("echostr")

	if signature == "" || timestamp == "" || nonce == "" || echostr == "" {
		http.Error(w, "missing verification parameters", http.StatusBadRequest)
		return
	}

	plain, err := s.uc.VerifyURL(r.Context(), signature, timestamp, nonce, echostr)
	if err != nil {
		// Log the concrete failure but answer uniformly: the response must
		// not reveal whether the signature, padding, or recipient was wrong
		_ = errutil.Handle(r.Context(), err, "callback verification failed")
		http.Error(w, "verification failed", http.StatusBadRequest)
		return
	}

	safe.Write(r.Context(), w, []byte(plain))
}

// handleCallbackEvent receives an encrypted approval event. The upstream
// retries on any response other than a 200 with body "success", so the
// acknowledgement is unconditional and processing happens asynchronously.
func (s *Server) handleCallbackEvent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	signature := q.Get("msg_signature")
	timestamp := q.Get("timestamp")
	nonce := q.Get("nonce")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		logging.From(r.Context()).Warn("failed to read callback body", "error", err.Error())
		safe.Write(r.Context(), w, []byte("success"))
		return
	}

	async.Dispatch(r.Context(), func(ctx context.Context) error {
		if err := s.uc.HandleEvent(ctx, signature, timestamp, nonce, string(body)); err != nil {
			return goerr.Wrap(err, "callback event processing failed")
		}
		return nil
	})

	safe.Write(r.Context(), w, []byte("success"))
}
