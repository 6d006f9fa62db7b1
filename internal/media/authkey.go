package media

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

const saltedPrefix = "Salted__"

// KeySigner builds the x-auth-key header value the media service expects:
// {"client","secret","time"} encrypted with an AES passphrase in the OpenSSL
// "Salted__" layout.
type KeySigner struct {
	client     string
	secret     string
	passphrase string
	now        func() time.Time
	rand       io.Reader
}

func NewKeySigner(client, secret, passphrase string) *KeySigner {
	return &KeySigner{
		client:     client,
		secret:     secret,
		passphrase: passphrase,
		now:        time.Now,
		rand:       rand.Reader,
	}
}

type authPayload struct {
	Client string `json:"client"`
	Secret string `json:"secret"`
	Time   int64  `json:"time"`
}

func (s *KeySigner) Sign() (string, error) {
	plain, err := json.Marshal(authPayload{
		Client: s.client,
		Secret: s.secret,
		Time:   s.now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	return EncryptPassphrase(plain, s.passphrase, s.rand)
}

func EncryptPassphrase(plain []byte, passphrase string, rnd io.Reader) (string, error) {
	if rnd == nil {
		rnd = rand.Reader
	}

	salt := make([]byte, 8)
	if _, err := io.ReadFull(rnd, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key, iv := deriveKeyIV([]byte(passphrase), salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	buf := make([]byte, 0, len(saltedPrefix)+len(salt)+len(out))
	buf = append(buf, saltedPrefix...)
	buf = append(buf, salt...)
	buf = append(buf, out...)

	return base64.StdEncoding.EncodeToString(buf), nil
}

func DecryptPassphrase(encoded, passphrase string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	if len(raw) < 16 || !bytes.Equal(raw[:8], []byte(saltedPrefix)) {
		return nil, errors.New("missing salt header")
	}

	salt, body := raw[8:16], raw[16:]
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a whole number of blocks")
	}

	key, iv := deriveKeyIV([]byte(passphrase), salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)

	return pkcs7Unpad(out, aes.BlockSize)
}

// deriveKeyIV is OpenSSL's EVP_BytesToKey with MD5 and one round, producing
// an AES-256 key and a CBC iv.
func deriveKeyIV(passphrase, salt []byte) ([]byte, []byte) {
	const need = 32 + aes.BlockSize

	var (
		derived []byte
		prev    []byte
	)

	for len(derived) < need {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}

	return derived[:32], derived[32:need]
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}

	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.New("bad padding")
	}

	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("bad padding")
		}
	}

	return b[:len(b)-n], nil
}
