package sim

import (
	"crypto/aes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/chmike/cmac-go"
)

// SealSuffix is appended to an image path to name its seal file.
const SealSuffix = ".cmac"

// Seal computes the AES-CMAC of the application region with key
// (16, 24 or 32 bytes).
func (s *Store) Seal(key []byte) ([]byte, error) {
	h, err := cmac.New(aes.NewCipher, key)
	if err != nil {
		return nil, fmt.Errorf("cmac: %w", err)
	}
	s.mu.Lock()
	h.Write(s.mem[s.geo.AppStart():s.geo.AppEnd()])
	s.mu.Unlock()
	return h.Sum(nil), nil
}

// Verify checks tag against the current application region.
func (s *Store) Verify(key, tag []byte) error {
	sum, err := s.Seal(key)
	if err != nil {
		return err
	}
	if !cmac.Equal(sum, tag) {
		return ErrSealMismatch
	}
	return nil
}

// WriteSeal stores the hex-encoded seal next to the image at path.
func (s *Store) WriteSeal(path string, key []byte) error {
	sum, err := s.Seal(key)
	if err != nil {
		return err
	}
	return os.WriteFile(path+SealSuffix, []byte(hex.EncodeToString(sum)+"\n"), 0o644)
}

// VerifyFile checks the seal stored next to path.
func (s *Store) VerifyFile(path string, key []byte) error {
	raw, err := os.ReadFile(path + SealSuffix)
	if err != nil {
		return err
	}
	tag, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return fmt.Errorf("%s%s: %w", path, SealSuffix, err)
	}
	return s.Verify(key, tag)
}
