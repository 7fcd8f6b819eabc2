package wecom_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/minato-lab/leavesync/pkg/service/wecom"
)

const (
	testToken      = "QDG6eK"
	testEncKey     = "jWmYm7qr5nMoAUwZRjGtBxmz3KA1tkAj3ykkR6q2B2C"
	testReceiverID = "wx5823bf96d3bd56c7"
)

func newTestCodec(t *testing.T) *wecom.Codec {
	t.Helper()
	codec, err := wecom.NewCodec(testToken, testEncKey, testReceiverID)
	gt.NoError(t, err).Required()
	return codec
}

func TestNewCodec(t *testing.T) {
	t.Run("rejects short key", func(t *testing.T) {
		_, err := wecom.NewCodec(testToken, "tooshort", testReceiverID)
		gt.Error(t, err)
	})

	t.Run("rejects non-base64 key", func(t *testing.T) {
		_, err := wecom.NewCodec(testToken, strings.Repeat("!", 43), testReceiverID)
		gt.Error(t, err)
	})

	t.Run("accepts 43-character key", func(t *testing.T) {
		codec, err := wecom.NewCodec(testToken, testEncKey, testReceiverID)
		gt.NoError(t, err).Required()
		gt.Value(t, codec).NotNil()
	})
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	lengths := []int{0, 1, 15, 16, 17, 31, 32, 33, 255, 1024, 10000}
	for _, n := range lengths {
		msg := make([]byte, n)
		for i := range msg {
			msg[i] = byte('a' + i%26)
		}

		encrypted, err := codec.Encrypt(msg)
		gt.NoError(t, err).Required()

		decrypted, err := codec.Decrypt(encrypted)
		gt.NoError(t, err).Required()
		gt.Value(t, decrypted).Equal(msg)
	}
}

func TestCodecRandomizedPrefix(t *testing.T) {
	codec := newTestCodec(t)

	msg := []byte("<xml><ToUserName>x</ToUserName></xml>")
	first, err := codec.Encrypt(msg)
	gt.NoError(t, err).Required()
	second, err := codec.Encrypt(msg)
	gt.NoError(t, err).Required()

	// Same message, different ciphertext
	gt.Value(t, first).NotEqual(second)
}

func TestCodecDecryptRejects(t *testing.T) {
	codec := newTestCodec(t)

	t.Run("non-base64 payload", func(t *testing.T) {
		_, err := codec.Decrypt("not base64 at all!!!")
		gt.Error(t, err)
	})

	t.Run("ciphertext not block aligned", func(t *testing.T) {
		_, err := codec.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
		gt.Error(t, err)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		encrypted, err := codec.Encrypt([]byte("payload of interest"))
		gt.NoError(t, err).Required()

		raw, err := base64.StdEncoding.DecodeString(encrypted)
		gt.NoError(t, err).Required()
		raw[len(raw)-1] ^= 0xff

		_, decErr := codec.Decrypt(base64.StdEncoding.EncodeToString(raw))
		gt.Error(t, decErr)
	})

	t.Run("recipient mismatch", func(t *testing.T) {
		other, err := wecom.NewCodec(testToken, testEncKey, "someone-else")
		gt.NoError(t, err).Required()

		encrypted, err := other.Encrypt([]byte("hello"))
		gt.NoError(t, err).Required()

		_, decErr := codec.Decrypt(encrypted)
		gt.Error(t, decErr)
	})
}

func TestCodecSignature(t *testing.T) {
	codec := newTestCodec(t)

	const (
		timestamp = "1409659589"
		nonce     = "263014780"
	)

	encrypted, err := codec.Encrypt([]byte("echo test"))
	gt.NoError(t, err).Required()

	sig := codec.Signature(timestamp, nonce, encrypted)
	gt.Number(t, len(sig)).Equal(40)

	t.Run("valid signature verifies", func(t *testing.T) {
		gt.Bool(t, codec.Verify(sig, timestamp, nonce, encrypted)).True()
	})

	t.Run("tampered signature fails", func(t *testing.T) {
		tampered := "0" + sig[1:]
		if tampered == sig {
			tampered = "1" + sig[1:]
		}
		gt.Bool(t, codec.Verify(tampered, timestamp, nonce, encrypted)).False()
	})

	t.Run("wrong length fails", func(t *testing.T) {
		gt.Bool(t, codec.Verify(sig[:20], timestamp, nonce, encrypted)).False()
	})

	t.Run("different nonce fails", func(t *testing.T) {
		gt.Bool(t, codec.Verify(sig, timestamp, "other-nonce", encrypted)).False()
	})
}

func TestCodecEchoFlow(t *testing.T) {
	codec := newTestCodec(t)

	echo := []byte("1616140317555161061")
	encrypted, err := codec.Encrypt(echo)
	gt.NoError(t, err).Required()

	sig := codec.Signature("1409659589", "263014780", encrypted)
	gt.Bool(t, codec.Verify(sig, "1409659589", "263014780", encrypted)).True()

	plain, err := codec.Decrypt(encrypted)
	gt.NoError(t, err).Required()
	gt.Value(t, plain).Equal(echo)
}
