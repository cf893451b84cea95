package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/hupe1980/kosha/blobstore"
	"github.com/hupe1980/kosha/blobstore/minio"
	"github.com/hupe1980/kosha/blobstore/s3"
	"github.com/hupe1980/kosha/internal/cache"
)

// location is a parsed store location: a directory, s3://bucket/prefix or
// minio://endpoint/bucket/prefix.
type location struct {
	scheme   string
	endpoint string
	bucket   string
	prefix   string
	path     string
}

func parseLocation(s string) (location, error) {
	if s == "" {
		return location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(s, "://") {
		return location{scheme: "file", path: s}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return location{}, fmt.Errorf("invalid location %q: %w", s, err)
	}
	rest := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case "file":
		return location{scheme: "file", path: u.Host + u.Path}, nil
	case "s3":
		if u.Host == "" {
			return location{}, fmt.Errorf("invalid location %q: missing bucket", s)
		}
		return location{scheme: "s3", bucket: u.Host, prefix: withSlash(rest)}, nil
	case "minio":
		bucket, prefix, _ := strings.Cut(rest, "/")
		if u.Host == "" || bucket == "" {
			return location{}, fmt.Errorf("invalid location %q: want minio://endpoint/bucket/prefix", s)
		}
		return location{scheme: "minio", endpoint: u.Host, bucket: bucket, prefix: withSlash(prefix)}, nil
	default:
		return location{}, fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
}

func withSlash(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

func (l location) String() string {
	switch l.scheme {
	case "s3":
		return "s3://" + l.bucket + "/" + l.prefix
	case "minio":
		return "minio://" + l.endpoint + "/" + l.bucket + "/" + l.prefix
	default:
		return l.path
	}
}

// openStore resolves loc to a blob store. Remote stores are wrapped in a
// CachingStore so that repeated reads of the same blocks stay local.
func (a *app) openStore(ctx context.Context, loc location) (blobstore.BlobStore, error) {
	v := a.v
	var store blobstore.BlobStore

	switch loc.scheme {
	case "file":
		return blobstore.NewLocalStore(loc.path), nil
	case "s3":
		opts := []s3.Option{s3.WithPrefix(loc.prefix)}
		if r := v.GetString("s3-region"); r != "" {
			opts = append(opts, s3.WithRegion(r))
		}
		if e := v.GetString("s3-endpoint"); e != "" {
			opts = append(opts, s3.WithEndpoint(e))
		}
		s, err := s3.New(ctx, loc.bucket, opts...)
		if err != nil {
			return nil, err
		}
		store = s

		if table := v.GetString("s3-ddb-table"); table != "" {
			var loadOpts []func(*config.LoadOptions) error
			if r := v.GetString("s3-region"); r != "" {
				loadOpts = append(loadOpts, config.WithRegion(r))
			}
			cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
			if err != nil {
				return nil, fmt.Errorf("load aws config: %w", err)
			}
			store = s3.NewDDBCommitStore(s, dynamodb.NewFromConfig(cfg), table, loc.String())
		}
	case "minio":
		opts := []minio.Option{
			minio.WithPrefix(loc.prefix),
			minio.WithSecure(v.GetBool("minio-secure")),
		}
		if ak := v.GetString("minio-access-key"); ak != "" {
			opts = append(opts, minio.WithCredentials(ak, v.GetString("minio-secret-key")))
		}
		s, err := minio.New(loc.endpoint, loc.bucket, opts...)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unsupported location scheme %q", loc.scheme)
	}

	if size := v.GetInt64("remote-cache-size"); size > 0 {
		store = blobstore.NewCachingStore(store, cache.NewShardedLRUBlockCache(size, nil), 0)
	}
	return store, nil
}
