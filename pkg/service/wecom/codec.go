package wecom

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1" // #nosec G505 -- the upstream callback scheme mandates SHA-1
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/minato-lab/leavesync/pkg/domain/types"
)

const (
	encodingKeyLength = 43
	cipherBlockSize   = 32
	randomPrefixSize  = 16
)

// Crypto subcodes carried as the crypto_subcode error value
const (
	cryptoSubBadKey       = "bad_key"
	cryptoSubBadBase64    = "bad_base64"
	cryptoSubBadLength    = "bad_length"
	cryptoSubBadPadding   = "bad_padding"
	cryptoSubBadRecipient = "recipient_mismatch"
)

// Codec verifies and encrypts callback payloads of the upstream platform.
// The 43-character encoding key decodes (with a trailing "=") to a 32-byte
// AES key whose first 16 bytes serve as the CBC IV.
type Codec struct {
	token      string
	key        []byte
	receiverID string
}

// NewCodec creates a codec bound to the configured recipient identifier
func NewCodec(token, encodingAESKey, receiverID string) (*Codec, error) {
	if len(encodingAESKey) != encodingKeyLength {
		return nil, goerr.New("encoding AES key must be 43 characters",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadKey),
			goerr.V("key_len", len(encodingAESKey)))
	}

	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	if err != nil {
		return nil, goerr.Wrap(err, "encoding AES key is not valid base64",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadKey))
	}
	if len(key) != cipherBlockSize {
		return nil, goerr.New("encoding AES key does not decode to 32 bytes",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadKey),
			goerr.V("decoded_len", len(key)))
	}

	return &Codec{token: token, key: key, receiverID: receiverID}, nil
}

// Signature computes the callback signature: hex SHA-1 over the
// lexicographically sorted concatenation of token, timestamp, nonce and
// ciphertext.
func (c *Codec) Signature(timestamp, nonce, ciphertext string) string {
	parts := []string{c.token, timestamp, nonce, ciphertext}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, ""))) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the signature and compares it in constant time
func (c *Codec) Verify(received, timestamp, nonce, ciphertext string) bool {
	expected := c.Signature(timestamp, nonce, ciphertext)
	if len(received) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(expected)) == 1
}

// Decrypt decodes and decrypts a base64 callback payload and returns the
// embedded message. The trailing recipient identifier must match the
// configured one.
func (c *Codec) Decrypt(encoded string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, goerr.Wrap(err, "callback payload is not valid base64",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadBase64))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, goerr.New("callback ciphertext has invalid length",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadLength),
			goerr.V("len", len(ciphertext)))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize cipher",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadKey))
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, c.key[:aes.BlockSize]).CryptBlocks(plain, ciphertext)

	plain, err = stripPKCS7(plain)
	if err != nil {
		return nil, err
	}

	if len(plain) < randomPrefixSize+4 {
		return nil, goerr.New("decrypted payload too short",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadLength),
			goerr.V("len", len(plain)))
	}

	msgLen := binary.BigEndian.Uint32(plain[randomPrefixSize : randomPrefixSize+4])
	msgEnd := randomPrefixSize + 4 + int(msgLen)
	if msgEnd > len(plain) {
		return nil, goerr.New("decrypted message length exceeds payload",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadLength),
			goerr.V("msg_len", msgLen))
	}

	if receiver := string(plain[msgEnd:]); receiver != c.receiverID {
		return nil, goerr.New("callback recipient mismatch",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadRecipient))
	}

	return plain[randomPrefixSize+4 : msgEnd], nil
}

// Encrypt packs the message as random16 | len4_BE | msg | recipient, pads to
// a 32-byte multiple with PKCS#7, and returns base64 AES-256-CBC ciphertext.
func (c *Codec) Encrypt(msg []byte) (string, error) {
	prefix := make([]byte, randomPrefixSize)
	if _, err := rand.Read(prefix); err != nil {
		return "", goerr.Wrap(err, "failed to generate random prefix",
			goerr.T(types.ErrTagCrypto))
	}

	buf := make([]byte, 0, randomPrefixSize+4+len(msg)+len(c.receiverID)+cipherBlockSize)
	buf = append(buf, prefix...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg)))
	buf = append(buf, msg...)
	buf = append(buf, []byte(c.receiverID)...)
	buf = padPKCS7(buf)

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to initialize cipher",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadKey))
	}

	out := make([]byte, len(buf))
	cipher.NewCBCEncrypter(block, c.key[:aes.BlockSize]).CryptBlocks(out, buf)
	return base64.StdEncoding.EncodeToString(out), nil
}

// stripPKCS7 removes PKCS#7 padding at the 32-byte block size. The pad byte
// must be in [1,32] and every trailing pad byte must equal it.
func stripPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, goerr.New("empty plaintext",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadPadding))
	}
	pad := int(data[len(data)-1])
	if pad < 1 || pad > cipherBlockSize || pad > len(data) {
		return nil, goerr.New("invalid padding length",
			goerr.T(types.ErrTagCrypto),
			goerr.V(types.CryptoSubKey, cryptoSubBadPadding),
			goerr.V("pad", pad))
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, goerr.New("inconsistent padding bytes",
				goerr.T(types.ErrTagCrypto),
				goerr.V(types.CryptoSubKey, cryptoSubBadPadding))
		}
	}
	return data[:len(data)-pad], nil
}

func padPKCS7(data []byte) []byte {
	pad := cipherBlockSize - len(data)%cipherBlockSize
	for i := 0; i < pad; i++ {
		data = append(data, byte(pad))
	}
	return data
}
