// Package objectstore uploads rendered reports and issues time-bounded
// retrieval URLs for them.
package objectstore

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Object locates one stored artifact.
type Object struct {
	Bucket string
	Key    string
}

// Uploader stores a local file under a key.
type Uploader interface {
	Upload(ctx context.Context, key, localPath string) (Object, error)
}

// Presigner issues retrieval URLs that expire after ttl.
type Presigner interface {
	PresignGet(ctx context.Context, obj Object, ttl time.Duration) (string, error)
}

// Store is both halves of the capability.
type Store interface {
	Uploader
	Presigner
	Bucket() string
}

// DefaultFolderName replaces a company name with no usable characters.
const DefaultFolderName = "customer"

// SafeName lowercases the company name and replaces every character that is
// not a letter, digit, '-' or '_' with '_'.
func SafeName(company string) string {
	lower := strings.ToLower(strings.TrimSpace(company))
	if lower == "" {
		return DefaultFolderName
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, lower)
}

// Folder returns the prefix shared by every artifact of one job.
func Folder(prefix, company, jobID string) string {
	return fmt.Sprintf("%s%s/%s/", normalizePrefix(prefix), SafeName(company), jobID)
}

// Key returns the object key of one report artifact.
func Key(prefix, company, jobID, kind string, at time.Time) string {
	return fmt.Sprintf("%s%s_report_%s.pdf", Folder(prefix, company, jobID), kind, at.UTC().Format("20060102_150405"))
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimLeft(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
