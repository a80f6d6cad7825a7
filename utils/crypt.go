// From https://github.com/Xeoncross/go-aesctr-with-hmac
// Author Xeoncross
// File https://github.com/Xeoncross/go-aesctr-with-hmac/blob/master/crypt.go
// Commit a777569d9869525dbd110ad743b2b658dfc701c5

package utils

import (
	"bufio"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/scrypt"
)

// hmacSize must be less than bufferSize
const (
	bufferSize         = 16 * 1024
	ivSize             = 16
	saltSize           = 32
	version1      byte = 0x1
	hmacSize           = sha512.Size
	envelopeHead       = 1 + ivSize + 2*saltSize
)

var (
	// ErrInvalidHMAC for authentication failure
	ErrInvalidHMAC = errors.New("invalid HMAC: wrong key or corrupted archive")
	// ErrUnknownVersion is returned for streams not written by Encrypt.
	ErrUnknownVersion = errors.New("unknown encryption envelope version")
	// ErrTruncated is returned when the stream ends before the HMAC.
	ErrTruncated = errors.New("encrypted stream is truncated")
)

// Encrypt the stream using the given AES-CTR and SHA512-HMAC key
func Encrypt(in io.Reader, out io.Writer, key []byte) error {
	keyAes, saltAes, err := DeriveKey(key, nil)
	if err != nil {
		return err
	}
	keyHmac, saltHmac, err := DeriveKey(key, nil)
	if err != nil {
		return err
	}

	iv := make([]byte, ivSize)
	if _, err = rand.Read(iv); err != nil {
		return err
	}

	block, err := aes.NewCipher(keyAes)
	if err != nil {
		return err
	}

	ctr := cipher.NewCTR(block, iv)
	mac := hmac.New(sha512.New, keyHmac)

	if _, err = out.Write([]byte{version1}); err != nil {
		return err
	}

	w := io.MultiWriter(out, mac)
	for _, part := range [][]byte{iv, saltAes, saltHmac} {
		if _, err = w.Write(part); err != nil {
			return err
		}
	}

	buf := make([]byte, bufferSize)
	for {
		n, rerr := in.Read(buf)
		if rerr != nil && rerr != io.EOF {
			return rerr
		}

		if n != 0 {
			outBuf := make([]byte, n)
			ctr.XORKeyStream(outBuf, buf[:n])
			if _, err = w.Write(outBuf); err != nil {
				return err
			}
		}

		if rerr == io.EOF {
			break
		}
	}

	_, err = out.Write(mac.Sum(nil))
	return err
}

// Decrypt the stream and verify HMAC using the given AES-CTR and SHA512-HMAC key
// Do not trust the out io.Writer contents until the function returns the result
// of validating the ending HMAC hash.
func Decrypt(in io.Reader, out io.Writer, key []byte) error {
	head := make([]byte, envelopeHead)
	if _, err := io.ReadFull(in, head); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return ErrTruncated
		}
		return err
	}
	if head[0] != version1 {
		return ErrUnknownVersion
	}
	iv := head[1 : 1+ivSize]
	saltAes := head[1+ivSize : 1+ivSize+saltSize]
	saltHmac := head[1+ivSize+saltSize:]

	keyAes, _, err := DeriveKey(key, saltAes)
	if err != nil {
		return err
	}
	keyHmac, _, err := DeriveKey(key, saltHmac)
	if err != nil {
		return err
	}

	block, err := aes.NewCipher(keyAes)
	if err != nil {
		return err
	}

	ctr := cipher.NewCTR(block, iv)
	h := hmac.New(sha512.New, keyHmac)
	h.Write(head[1:])

	// Always keep hmacSize bytes back: they may be the trailing HMAC.
	buf := bufio.NewReaderSize(in, bufferSize)
	for {
		b, perr := buf.Peek(bufferSize)
		if perr != nil && perr != io.EOF && perr != bufio.ErrBufferFull {
			return perr
		}

		limit := len(b) - hmacSize
		if perr == io.EOF {
			if limit < 0 {
				return ErrTruncated
			}
			mac := b[limit:]
			h.Write(b[:limit])
			outBuf := make([]byte, limit)
			ctr.XORKeyStream(outBuf, b[:limit])
			if _, err := out.Write(outBuf); err != nil {
				return err
			}
			if !hmac.Equal(mac, h.Sum(nil)) {
				return ErrInvalidHMAC
			}
			return nil
		}

		h.Write(b[:limit])
		outBuf := make([]byte, limit)
		ctr.XORKeyStream(outBuf, b[:limit])
		if _, err := out.Write(outBuf); err != nil {
			return err
		}
		if _, err := buf.Discard(limit); err != nil {
			return err
		}
	}
}

func DeriveKey(password, salt []byte) ([]byte, []byte, error) {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}

	key, err := scrypt.Key(password, salt, 32768, 8, 1, 32)
	if err != nil {
		return nil, nil, err
	}

	return key, salt, nil
}

// EncryptFile writes the encryption of src to dst.
func EncryptFile(src, dst string, key []byte) error {
	return transformFile(src, dst, key, Encrypt)
}

// DecryptFile writes the decryption of src to dst. dst is removed when the
// HMAC does not verify.
func DecryptFile(src, dst string, key []byte) error {
	return transformFile(src, dst, key, Decrypt)
}

func transformFile(src, dst string, key []byte, fn func(io.Reader, io.Writer, []byte) error) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if err := fn(in, out, key); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
