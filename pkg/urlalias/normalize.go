package urlalias

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// foldText returns the comparison form of a path segment. A Caser is
// stateful, so one is built per call.
func foldText(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func equalFold(a, b string) bool {
	return foldText(a) == foldText(b)
}

// textHash is the md5 of the lowercased text as used in display ids.
func textHash(text string) string {
	sum := md5.Sum([]byte(strings.ToLower(text)))
	return hex.EncodeToString(sum[:])
}

// DisplayID renders the external id of an alias leaf.
func DisplayID(parent int64, text string) string {
	return fmt.Sprintf("%d-%s", parent, textHash(text))
}

// ParseDisplayID splits "<parent>-<hash>".
func ParseDisplayID(id string) (int64, string, error) {
	parentPart, hash, ok := strings.Cut(id, "-")
	if !ok || len(hash) != md5.Size*2 {
		return 0, "", fmt.Errorf("%w: malformed alias id %q", ErrInvalidArgument, id)
	}
	parent, err := strconv.ParseInt(parentPart, 10, 64)
	if err != nil || parent < 0 {
		return 0, "", fmt.Errorf("%w: malformed alias id %q", ErrInvalidArgument, id)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return 0, "", fmt.Errorf("%w: malformed alias id %q", ErrInvalidArgument, id)
	}
	return parent, strings.ToLower(hash), nil
}

// splitPath trims surrounding slashes and splits on "/". Empty inner
// segments are rejected.
func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return nil, nil
	}
	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			return nil, fmt.Errorf("%w: empty segment in path %q", ErrInvalidArgument, path)
		}
	}
	return segments, nil
}

// lookupKey is the cache key for a lookup path.
func lookupKey(path string) string {
	return foldText(strings.Trim(strings.TrimSpace(path), "/"))
}

// suffixed returns name for the first attempt and name<N> afterwards.
func suffixed(name string, attempt int) string {
	if attempt <= 1 {
		return name
	}
	return name + strconv.Itoa(attempt)
}
