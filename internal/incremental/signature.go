// Package incremental decides whether a build can be skipped by hashing
// its inputs: the output-shaping config plus every content file.
package incremental

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileDigest identifies one content file inside a build signature.
type FileDigest struct {
	Path string `json:"path"` // slash-separated, relative to the content root
	Size int64  `json:"size"`
	Hash string `json:"hash"`
}

// BuildSignature is the complete digest of a build's inputs. Two builds
// with equal Hash values produce identical output.
type BuildSignature struct {
	ConfigHash string       `json:"config_hash"`
	Files      []FileDigest `json:"files"`
	Hash       string       `json:"hash"`
}

// Compute walks the content root and derives the build signature.
// Hidden files and underscore-prefixed directories are ignored, matching
// what the content scanner feeds into a build. The walk order is
// lexical, so the result is deterministic.
func Compute(configHash, contentRoot string) (*BuildSignature, error) {
	sig := &BuildSignature{ConfigHash: configHash}

	err := filepath.WalkDir(contentRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != contentRoot && (name[0] == '.' || name[0] == '_') {
				return filepath.SkipDir
			}
			return nil
		}
		if name[0] == '.' {
			return nil
		}

		rel, err := filepath.Rel(contentRoot, path)
		if err != nil {
			return err
		}
		digest, size, err := hashFile(path)
		if err != nil {
			return fmt.Errorf("hash %s: %w", rel, err)
		}
		sig.Files = append(sig.Files, FileDigest{
			Path: filepath.ToSlash(rel),
			Size: size,
			Hash: digest,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk content root: %w", err)
	}

	hash, err := signatureHash(sig)
	if err != nil {
		return nil, err
	}
	sig.Hash = hash
	return sig, nil
}

// Signature is the single-string convenience around Compute.
func Signature(configHash, contentRoot string) (string, error) {
	sig, err := Compute(configHash, contentRoot)
	if err != nil {
		return "", err
	}
	return sig.Hash, nil
}

// Equals reports whether two signatures digest the same inputs.
func (s *BuildSignature) Equals(other *BuildSignature) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Hash == other.Hash
}

// signatureHash digests the normalized signature components, excluding
// the Hash field itself.
func signatureHash(sig *BuildSignature) (string, error) {
	normalized := struct {
		ConfigHash string       `json:"config_hash"`
		Files      []FileDigest `json:"files"`
	}{
		ConfigHash: sig.ConfigHash,
		Files:      sig.Files,
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("marshal signature: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
