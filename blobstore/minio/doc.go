// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is an S3-compatible object storage system. This package uses the
// official MinIO Go client and also works with other S3-compatible services
// such as Ceph, SeaweedFS and Garage.
//
// # Basic Usage
//
//	store, err := minioblob.New("localhost:9000", "my-bucket",
//	    minioblob.WithCredentials("minioadmin", "minioadmin"),
//	    minioblob.WithPrefix("lexicon/"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	k, err := kosha.OpenStore(ctx, store)
//
// An existing *minio.Client can be wrapped with NewStore.
package minio
