package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
)

// S3Config names the bucket/prefix/region an S3 backend writes under, plus
// an optional local staging directory used by UploadDirRecursive: tasks
// that produce folder outputs (extracted frames, etc.) write them under
// StagingDir/<rel> with the ordinary filesystem, then call
// UploadDirRecursive(ctx, rel) once to push the whole tree in one pass.
type S3Config struct {
	Bucket     string
	Prefix     string
	Region     string
	StagingDir string
}

// S3 is the S3 blob store backend.
type S3 struct {
	client     *s3.Client
	bucket     string
	prefix     string
	stagingDir string
}

func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, cberrors.Permanentf("storage.NewS3", errMissingBucket{})
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, cberrors.Transientf("storage.NewS3", err)
	}
	return &S3{
		client:     s3.NewFromConfig(awsCfg),
		bucket:     cfg.Bucket,
		prefix:     strings.Trim(cfg.Prefix, "/"),
		stagingDir: cfg.StagingDir,
	}, nil
}

type errMissingBucket struct{}

func (errMissingBucket) Error() string { return "s3 backend requires a bucket name" }

func (s *S3) key(rel string) (string, error) {
	if !validRel(rel) {
		return "", &cberrors.PathError{Path: rel, Operation: "storage.s3", Reason: "absolute or escaping path"}
	}
	clean := path.Clean(filepath.ToSlash(rel))
	if s.prefix == "" {
		return clean, nil
	}
	return path.Join(s.prefix, clean), nil
}

func validRel(rel string) bool {
	if filepath.IsAbs(rel) {
		return false
	}
	cleaned := filepath.Clean(rel)
	return cleaned != ".." && !strings.HasPrefix(cleaned, ".."+string(filepath.Separator))
}

func (s *S3) Read(ctx context.Context, rel string) ([]byte, error) {
	key, err := s.key(rel)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, cberrors.NewNotFound("storage.s3.Read", rel)
		}
		return nil, classify(ctx, "storage.s3.Read", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, cberrors.Transientf("storage.s3.Read", err)
	}
	return data, nil
}

func (s *S3) Write(ctx context.Context, rel string, data []byte) error {
	return s.WriteStream(ctx, rel, bytes.NewReader(data))
}

func (s *S3) WriteStream(ctx context.Context, rel string, r io.Reader) error {
	key, err := s.key(rel)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: r})
	if err != nil {
		return classify(ctx, "storage.s3.WriteStream", err)
	}
	return nil
}

func (s *S3) List(ctx context.Context, rel string, recursive bool) ([]Entry, error) {
	prefix, err := s.key(rel)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix}
	if !recursive {
		delim := "/"
		input.Delimiter = &delim
	}

	var entries []Entry
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, cberrors.NewCancelled("storage.s3.List")
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(ctx, "storage.s3.List", err)
		}
		for _, obj := range page.Contents {
			entries = append(entries, Entry{
				Path:  s.stripPrefix(*obj.Key),
				IsDir: false,
				Size:  derefInt64(obj.Size),
			})
		}
		for _, cp := range page.CommonPrefixes {
			entries = append(entries, Entry{Path: s.stripPrefix(*cp.Prefix), IsDir: true})
		}
	}
	return entries, nil
}

func (s *S3) stripPrefix(key string) string {
	if s.prefix != "" {
		key = strings.TrimPrefix(key, s.prefix+"/")
	}
	return strings.TrimSuffix(key, "/")
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func (s *S3) Remove(ctx context.Context, rel string) error {
	key, err := s.key(rel)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return classify(ctx, "storage.s3.Remove", err)
	}
	return nil
}

func (s *S3) RemoveDirAll(ctx context.Context, rel string) error {
	prefix, err := s.key(rel)
	if err != nil {
		return err
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix})
	var toDelete []s3types.ObjectIdentifier
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return classify(ctx, "storage.s3.RemoveDirAll", err)
		}
		for _, obj := range page.Contents {
			k := *obj.Key
			toDelete = append(toDelete, s3types.ObjectIdentifier{Key: &k})
		}
	}
	if len(toDelete) == 0 {
		return cberrors.NewNotFound("storage.s3.RemoveDirAll", rel)
	}

	const batchSize = 1000
	for i := 0; i < len(toDelete); i += batchSize {
		end := i + batchSize
		if end > len(toDelete) {
			end = len(toDelete)
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: &s.bucket,
			Delete: &s3types.Delete{Objects: toDelete[i:end]},
		})
		if err != nil {
			return classify(ctx, "storage.s3.RemoveDirAll", err)
		}
	}
	return nil
}

// UploadDirRecursive walks stagingDir/rel on the local filesystem and
// uploads each regular file to bucket/prefix/rel, mirroring the relative
// structure. It is a no-op when no staging directory is configured.
func (s *S3) UploadDirRecursive(ctx context.Context, rel string) error {
	if s.stagingDir == "" {
		return nil
	}
	localRoot := filepath.Join(s.stagingDir, filepath.FromSlash(rel))

	return filepath.WalkDir(localRoot, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == localRoot {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		relPath, err := filepath.Rel(s.stagingDir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return s.Write(ctx, filepath.ToSlash(relPath), data)
	})
}

func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return cberrors.NewCancelled(op)
	}
	return cberrors.Transientf(op, err)
}

func isNotFound(err error) bool {
	type apiError interface{ ErrorCode() string }
	var ae apiError
	for e := err; e != nil; {
		if a, ok := e.(apiError); ok {
			ae = a
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if ae != nil {
		return ae.ErrorCode() == "NoSuchKey"
	}
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}
