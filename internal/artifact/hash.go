package artifact

import (
	_ "crypto/sha256"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
)

const hashBufSize = 32 << 10

// FileDigest streams path through a SHA-256 digester with a fixed buffer.
func FileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	d := digest.SHA256.Digester()
	h := d.Hash()
	buf := make([]byte, hashBufSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return d.Digest(), nil
}
